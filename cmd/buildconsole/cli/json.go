// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"

	"github.com/alecthomas/chroma/v2/quick"
)

// JSONOutput adds a --json flag to a params struct:
//
//	type metaParams struct {
//	    cli.JSONOutput
//	}
//
//	if done, err := params.EmitJSON(w, meta); done {
//	    return err
//	}
type JSONOutput struct {
	OutputJSON bool `flag:"json" desc:"output as JSON"`
}

// EmitJSON writes result to w as indented JSON when --json is set and
// reports whether it did. A nil slice is written as [].
func (j *JSONOutput) EmitJSON(w io.Writer, result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	return true, WriteJSON(w, normalizeNilSlice(result))
}

// WriteJSON writes value as indented JSON. On a terminal the output
// is syntax highlighted; pipes get plain JSON.
func WriteJSON(w io.Writer, value any) error {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return Internal("encoding JSON: %w", err)
	}
	if IsTerminal(w) {
		if err := quick.Highlight(w, buffer.String(), "json", "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err := w.Write(buffer.Bytes())
	return err
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}
