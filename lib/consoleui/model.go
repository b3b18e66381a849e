// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/buildconsole/lib/buildstream"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
	"github.com/bureau-foundation/buildconsole/lib/tui"
)

// Controller starts and stops runs. *buildstream.Client satisfies it.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
}

// View selects what the body shows.
type View int

const (
	// ViewOutput shows the raw build output.
	ViewOutput View = iota
	// ViewCategories shows the categorized summary.
	ViewCategories
)

// noticeFadeDelay is how long a footer notice stays visible.
const noticeFadeDelay = 3 * time.Second

// Options configures a Model.
type Options struct {
	Controller Controller
	Feed       *Feed
	// Context is passed to Controller.Start on rebuild. Defaults to
	// context.Background().
	Context context.Context
	// Title names the build target in the header, usually the
	// server address.
	Title string
	Theme tui.Theme
	Keys  KeyMap
	// ExitOnComplete quits the program when a run reaches a terminal
	// status.
	ExitOnComplete bool
}

// stateMsg carries a stream snapshot into the update loop.
type stateMsg struct {
	state buildstream.State
}

// startResultMsg reports the outcome of a rebuild request.
type startResultMsg struct {
	err error
}

type noticeFadeMsg struct {
	generation int
}

// Model is the bubbletea model for the live build view.
type Model struct {
	controller     Controller
	feed           *Feed
	ctx            context.Context
	title          string
	theme          tui.Theme
	keys           KeyMap
	exitOnComplete bool

	width  int
	height int
	ready  bool

	state    buildstream.State
	view     View
	follow   bool
	spinner  spinner.Model
	viewport viewport.Model

	notice           string
	noticeGeneration int
}

// NewModel returns a model showing an idle build. Options.Controller
// and Options.Feed are required.
func NewModel(options Options) Model {
	if options.Context == nil {
		options.Context = context.Background()
	}
	if options.Theme == (tui.Theme{}) {
		options.Theme = tui.DefaultTheme
	}
	if len(options.Keys.Quit.Keys()) == 0 {
		options.Keys = DefaultKeyMap
	}
	indicator := spinner.New(spinner.WithSpinner(spinner.Dot))
	indicator.Style = indicator.Style.Foreground(options.Theme.StatusRunning)
	return Model{
		controller:     options.Controller,
		feed:           options.Feed,
		ctx:            options.Context,
		title:          options.Title,
		theme:          options.Theme,
		keys:           options.Keys,
		exitOnComplete: options.ExitOnComplete,
		state:          buildstream.State{Status: build.StatusIdle},
		follow:         true,
		spinner:        indicator,
		viewport:       viewport.New(0, 0),
	}
}

// State returns the most recent snapshot the model has rendered.
func (model Model) State() buildstream.State {
	return model.state
}

// CurrentView reports which body is showing.
func (model Model) CurrentView() View {
	return model.view
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return tea.Batch(model.spinner.Tick, listenForState(model.feed))
}

// listenForState blocks until the feed has a new snapshot.
func listenForState(feed *Feed) tea.Cmd {
	return func() tea.Msg {
		state, ok := feed.Next()
		if !ok {
			return nil
		}
		return stateMsg{state: state}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(message)

	case tea.MouseMsg:
		switch message.Button {
		case tea.MouseButtonWheelUp:
			model.viewport.LineUp(3)
			model.follow = false
		case tea.MouseButtonWheelDown:
			model.viewport.LineDown(3)
			model.follow = model.viewport.AtBottom()
		}

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.resize()

	case stateMsg:
		previous := model.state.Status
		model.state = message.state
		if model.state.Categorized == nil && model.view == ViewCategories {
			model.view = ViewOutput
		}
		model.refresh()
		listen := listenForState(model.feed)
		if model.exitOnComplete && previous == build.StatusRunning && model.state.Status.IsTerminal() {
			return model, tea.Quit
		}
		return model, listen

	case startResultMsg:
		if message.err != nil {
			if errors.Is(message.err, buildstream.ErrAlreadyRunning) {
				return model, model.setNotice("A build is already running")
			}
			return model, model.setNotice(message.err.Error())
		}

	case noticeFadeMsg:
		if message.generation == model.noticeGeneration {
			model.notice = ""
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		model.spinner, cmd = model.spinner.Update(message)
		return model, cmd
	}
	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		model.controller.Stop()
		model.feed.Close()
		return model, tea.Quit

	case key.Matches(message, model.keys.Stop):
		if model.state.Status != build.StatusRunning {
			return model, model.setNotice("No build is running")
		}
		model.controller.Stop()

	case key.Matches(message, model.keys.Restart):
		if model.state.Status == build.StatusRunning {
			return model, model.setNotice("A build is already running")
		}
		model.view = ViewOutput
		model.follow = true
		controller, ctx := model.controller, model.ctx
		return model, func() tea.Msg {
			return startResultMsg{err: controller.Start(ctx)}
		}

	case key.Matches(message, model.keys.ToggleView):
		if model.view == ViewCategories {
			model.view = ViewOutput
		} else if model.state.Categorized != nil {
			model.view = ViewCategories
		} else {
			return model, model.setNotice("No categorized output yet")
		}
		model.follow = model.view == ViewOutput
		model.refresh()
		if model.view == ViewCategories {
			model.viewport.GotoTop()
		}

	case key.Matches(message, model.keys.Up):
		model.viewport.LineUp(1)
		model.follow = false

	case key.Matches(message, model.keys.Down):
		model.viewport.LineDown(1)
		model.follow = model.viewport.AtBottom()

	case key.Matches(message, model.keys.PageUp):
		model.viewport.SetYOffset(model.viewport.YOffset - model.viewport.Height)
		model.follow = false

	case key.Matches(message, model.keys.PageDown):
		model.viewport.SetYOffset(model.viewport.YOffset + model.viewport.Height)
		model.follow = model.viewport.AtBottom()

	case key.Matches(message, model.keys.Top):
		model.viewport.GotoTop()
		model.follow = false

	case key.Matches(message, model.keys.Bottom):
		model.viewport.GotoBottom()
		model.follow = true
	}
	return model, nil
}

// setNotice shows text in the footer until a later notice replaces it
// or the fade delay passes.
func (model *Model) setNotice(text string) tea.Cmd {
	model.notice = text
	model.noticeGeneration++
	generation := model.noticeGeneration
	return tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{generation: generation}
	})
}

// resize fits the viewport between the header and footer, leaving one
// column for the scrollbar.
func (model *Model) resize() {
	model.viewport.Width = max(1, model.width-1)
	model.viewport.Height = max(1, model.height-headerHeight-footerHeight)
	model.refresh()
}

// refresh re-renders the body content and keeps the view pinned to
// the newest output while following.
func (model *Model) refresh() {
	if !model.ready {
		return
	}
	model.viewport.SetContent(model.body())
	if model.follow {
		model.viewport.GotoBottom()
	}
}
