// Package tui renders the audit log browser in the terminal. Rows are
// virtualized through logview.ComputeVisibleWindow and further pages are
// requested by logview.ScrollTrigger as the cursor approaches the end of
// the loaded entries.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/elimika/auditlog/internal/audit"
	"github.com/elimika/auditlog/internal/logview"
)

// rowHeight is the height of one entry in terminal lines.
const rowHeight = 1

const toastTTL = 4 * time.Second

// EventLister supplies known event names for filter suggestions.
type EventLister interface {
	Events(ctx context.Context) ([]string, error)
}

// Options configures the browser.
type Options struct {
	ExportDir string
	Events    EventLister
	Overscan  int
	Now       func() time.Time
	Logger    *slog.Logger
}

type toastLevel int

const (
	toastInfo toastLevel = iota
	toastSuccess
	toastError
)

type toast struct {
	text    string
	level   toastLevel
	expires time.Time
}

type pageLoadedMsg struct{ err error }

type refetchedMsg struct{ err error }

type exportedMsg struct {
	path  string
	count int
	err   error
}

type eventsMsg struct {
	events []string
	err    error
}

// Model is the bubbletea model of the audit log browser.
type Model struct {
	ctx       context.Context
	ctrl      *logview.Controller
	events    EventLister
	exportDir string
	overscan  int
	now       func() time.Time
	logger    *slog.Logger
	trigger   logview.ScrollTrigger

	keys       keyMap
	help       help.Model
	spin       spinner.Model
	input      textinput.Model
	editing    logview.Field
	eventNames []string

	width     int
	height    int
	cursor    int
	scrollTop int
	toast     toast
	quitting  bool
}

// New builds the browser around ctrl. ctx bounds every request issued by
// the model.
func New(ctx context.Context, ctrl *logview.Controller, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Overscan <= 0 {
		opts.Overscan = logview.DefaultOverscan
	}
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = scrollThumbStyle

	input := textinput.New()
	input.CharLimit = 200

	return Model{
		ctx:       ctx,
		ctrl:      ctrl,
		events:    opts.Events,
		exportDir: opts.ExportDir,
		overscan:  opts.Overscan,
		now:       opts.Now,
		logger:    opts.Logger,
		trigger:   logview.ScrollTrigger{Threshold: logview.DefaultThreshold},
		keys:      defaultKeyMap(),
		help:      help.New(),
		spin:      spin,
		input:     input,
		width:     120,
		height:    30,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.loadFirstPage(), m.loadEvents())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampScroll()
		return m, m.checkTrigger()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.toast.text != "" && !m.now().Before(m.toast.expires) {
			m.toast = toast{}
		}
		return m, cmd

	case pageLoadedMsg:
		if errors.Is(msg.err, logview.ErrStaleResult) {
			return m, nil
		}
		if msg.err != nil {
			m.setToast("Failed to load audit entries: "+msg.err.Error(), toastError)
			return m, nil
		}
		m.clampScroll()
		return m, m.checkTrigger()

	case refetchedMsg:
		if errors.Is(msg.err, logview.ErrStaleResult) {
			return m, nil
		}
		if msg.err != nil {
			m.setToast("Refresh failed: "+msg.err.Error(), toastError)
			return m, nil
		}
		m.setToast("Audit log refreshed", toastSuccess)
		m.clampScroll()
		return m, m.checkTrigger()

	case exportedMsg:
		switch {
		case errors.Is(msg.err, logview.ErrNothingToExport):
			m.setToast("Nothing to export yet", toastInfo)
		case msg.err != nil:
			m.logger.Error("export audit entries", slog.Any("error", msg.err))
			m.setToast("Export failed: "+msg.err.Error(), toastError)
		default:
			m.setToast(fmt.Sprintf("Exported %d entries to %s", msg.count, msg.path), toastSuccess)
		}
		return m, nil

	case eventsMsg:
		if msg.err != nil {
			m.logger.Warn("load audit events", slog.Any("error", msg.err))
			return m, nil
		}
		m.eventNames = msg.events
		return m, nil

	case tea.KeyMsg:
		if m.editing != "" {
			return m.handleInput(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		return m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		return m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		return m.moveCursor(-m.viewportRows())
	case key.Matches(msg, m.keys.PageDown):
		return m.moveCursor(m.viewportRows())
	case key.Matches(msg, m.keys.Top):
		return m.moveCursor(-m.cursor)
	case key.Matches(msg, m.keys.Bottom):
		return m.moveCursor(len(m.ctrl.Snapshot().Entries))
	case key.Matches(msg, m.keys.Search):
		return m.startEditing(logview.FieldSearch)
	case key.Matches(msg, m.keys.Event):
		return m.startEditing(logview.FieldEvent)
	case key.Matches(msg, m.keys.Actor):
		return m.startEditing(logview.FieldActor)
	case key.Matches(msg, m.keys.Start):
		return m.startEditing(logview.FieldStartDate)
	case key.Matches(msg, m.keys.End):
		return m.startEditing(logview.FieldEndDate)
	case key.Matches(msg, m.keys.Status):
		return m.applyFilter(logview.FieldStatus, nextStatus(m.ctrl.Filters().Status))
	case key.Matches(msg, m.keys.Reset):
		m.ctrl.ResetFilters()
		m.cursor, m.scrollTop = 0, 0
		m.setToast("Filters reset", toastInfo)
		return m, m.loadFirstPage()
	case key.Matches(msg, m.keys.Refetch):
		return m, m.refetch()
	case key.Matches(msg, m.keys.Export):
		return m, m.export()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.clampScroll()
		return m, nil
	}
	return m, nil
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEsc:
		m.stopEditing()
		return m, nil
	case tea.KeyEnter:
		field, value := m.editing, m.input.Value()
		m.stopEditing()
		return m.applyFilter(field, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startEditing(field logview.Field) (tea.Model, tea.Cmd) {
	m.editing = field
	m.input.Prompt = fieldLabel(field) + ": "
	m.input.Placeholder = fieldPlaceholder(field)
	m.input.SetValue(m.ctrl.Filters().Get(field))
	m.input.CursorEnd()
	m.input.ShowSuggestions = field == logview.FieldEvent && len(m.eventNames) > 0
	if m.input.ShowSuggestions {
		m.input.SetSuggestions(m.eventNames)
	} else {
		m.input.SetSuggestions(nil)
	}
	return m, m.input.Focus()
}

func (m *Model) stopEditing() {
	m.editing = ""
	m.input.Blur()
	m.input.Reset()
}

// applyFilter updates one filter. A new filter key restarts the list from
// the top and loads page 1.
func (m Model) applyFilter(field logview.Field, value string) (tea.Model, tea.Cmd) {
	before := m.ctrl.Snapshot().Key
	if err := m.ctrl.UpdateFilter(field, value); err != nil {
		m.setToast(err.Error(), toastError)
		return m, nil
	}
	if m.ctrl.Snapshot().Key == before {
		return m, nil
	}
	m.cursor, m.scrollTop = 0, 0
	return m, m.loadFirstPage()
}

func (m Model) moveCursor(delta int) (tea.Model, tea.Cmd) {
	n := len(m.ctrl.Snapshot().Entries)
	if n == 0 {
		return m, nil
	}
	m.cursor = clamp(m.cursor+delta, 0, n-1)
	rows := m.viewportRows()
	if m.cursor < m.scrollTop {
		m.scrollTop = m.cursor
	}
	if m.cursor >= m.scrollTop+rows {
		m.scrollTop = m.cursor - rows + 1
	}
	m.clampScroll()
	return m, m.checkTrigger()
}

func (m *Model) clampScroll() {
	n := len(m.ctrl.Snapshot().Entries)
	m.scrollTop = clamp(m.scrollTop, 0, max(0, n-m.viewportRows()))
	m.cursor = clamp(m.cursor, 0, max(0, n-1))
}

func (m *Model) setToast(text string, level toastLevel) {
	m.toast = toast{text: text, level: level, expires: m.now().Add(toastTTL)}
}

// viewportRows is the number of list rows left after the chrome.
func (m Model) viewportRows() int {
	chrome := 6
	if m.help.ShowAll {
		chrome += len(m.keys.FullHelp()[0]) - 1
	}
	return max(1, m.height-chrome)
}

// checkTrigger feeds the current scroll position to the scroll trigger and
// returns the page load it requested, if any.
func (m Model) checkTrigger() tea.Cmd {
	p := &pager{ctx: m.ctx, source: m.ctrl.Source()}
	m.trigger.OnScroll(logview.ScrollMetrics{
		ScrollTop:    m.scrollTop * rowHeight,
		ClientHeight: m.viewportRows() * rowHeight,
		ScrollHeight: len(m.ctrl.Snapshot().Entries) * rowHeight,
	}, p)
	return p.cmd
}

func (m Model) loadFirstPage() tea.Cmd {
	src := m.ctrl.Source()
	if src.Snapshot().Pages > 0 {
		return nil
	}
	run, ok := src.PrepareNextPage()
	if !ok {
		return nil
	}
	return loadPage(m.ctx, run)
}

func (m Model) loadEvents() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ctx, lister := m.ctx, m.events
	return func() tea.Msg {
		events, err := lister.Events(ctx)
		return eventsMsg{events: events, err: err}
	}
}

func (m Model) refetch() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return refetchedMsg{err: ctrl.Refetch(ctx)}
	}
}

func (m Model) export() tea.Cmd {
	entries := m.ctrl.Snapshot().Entries
	now, dir := m.now(), m.exportDir
	return func() tea.Msg {
		file, err := logview.Export(entries, now)
		if err != nil {
			return exportedMsg{err: err}
		}
		path, err := file.Save(dir)
		return exportedMsg{path: path, count: len(entries), err: err}
	}
}

func loadPage(ctx context.Context, run func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return pageLoadedMsg{err: run(ctx)}
	}
}

// pager adapts a PagedSource to the scroll trigger. The reservation made in
// RequestNextPage is synchronous, so a second trigger before the command
// runs sees IsFetchingNextPage and stays quiet.
type pager struct {
	ctx    context.Context
	source *logview.PagedSource
	cmd    tea.Cmd
}

func (p *pager) HasNextPage() bool        { return p.source.HasNextPage() }
func (p *pager) IsFetchingNextPage() bool { return p.source.IsFetchingNextPage() }

func (p *pager) RequestNextPage() {
	if run, ok := p.source.PrepareNextPage(); ok {
		p.cmd = loadPage(p.ctx, run)
	}
}

func nextStatus(current string) string {
	statuses := audit.Statuses()
	for i, s := range statuses {
		if string(s) == current {
			if i+1 < len(statuses) {
				return string(statuses[i+1])
			}
			return ""
		}
	}
	return string(statuses[0])
}

func fieldLabel(field logview.Field) string {
	switch field {
	case logview.FieldSearch:
		return "Search"
	case logview.FieldEvent:
		return "Event"
	case logview.FieldActor:
		return "Actor"
	case logview.FieldStatus:
		return "Status"
	case logview.FieldStartDate:
		return "From"
	case logview.FieldEndDate:
		return "To"
	}
	return string(field)
}

func fieldPlaceholder(field logview.Field) string {
	switch field {
	case logview.FieldSearch:
		return "event, actor, resource or IP"
	case logview.FieldEvent:
		return "e.g. invitation.sent"
	case logview.FieldActor:
		return "email, name or id"
	case logview.FieldStartDate, logview.FieldEndDate:
		return "YYYY-MM-DD or RFC 3339"
	}
	return ""
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
