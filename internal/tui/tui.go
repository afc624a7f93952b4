// Package tui provides a terminal user interface over the reconciling cache.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"todoq/backend"
	"todoq/internal/notification"
	"todoq/internal/reconcile"
)

// Store is the part of the reconciling cache the view drives
type Store interface {
	Items() backend.ItemList
	Loaded() bool
	Fetching() bool
	InProgress(kind reconcile.Kind) bool
	Changes() <-chan struct{}
	Add(ctx context.Context, title string) (*reconcile.Mutation, error)
	Update(ctx context.Context, id backend.ItemID, title string) (*reconcile.Mutation, error)
	Delete(ctx context.Context, id backend.ItemID) (*reconcile.Mutation, error)
	Refresh(ctx context.Context) error
}

// Options controls presentation
type Options struct {
	NewestFirst bool
	// Notices is drained for failure notices; nil disables the status line feed.
	Notices <-chan notification.Notification
}

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeEdit
	ModeHelp
	ModeConfirmDelete
)

// Model represents the TUI state
type Model struct {
	store   Store
	notices <-chan notification.Notification
	ctx     context.Context
	opts    Options

	// Data, in display order
	items  backend.ItemList
	cursor int

	// Mode and input
	mode      Mode
	textInput textinput.Model
	editing   backend.ItemID
	deleting  backend.Item

	// Status line
	notice string
	failed bool

	width  int
	height int

	listStyle      lipgloss.Style
	selectedStyle  lipgloss.Style
	pendingStyle   lipgloss.Style
	helpStyle      lipgloss.Style
	dialogStyle    lipgloss.Style
	statusBarStyle lipgloss.Style
	errorStyle     lipgloss.Style
}

// Message types
type changedMsg struct{}

type noticeMsg struct {
	n notification.Notification
}

type refreshedMsg struct {
	err error
}

// New creates a new TUI model
func New(store Store, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "Enter text..."
	ti.CharLimit = 256

	return &Model{
		store:     store,
		notices:   opts.Notices,
		ctx:       context.Background(),
		opts:      opts,
		textInput: ti,
		mode:      ModeNormal,
		listStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		pendingStyle: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("245")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
	}
}

// Init loads the list and starts listening for cache changes and notices
func (m *Model) Init() tea.Cmd {
	m.sync()
	return tea.Batch(m.refresh(), m.waitForChange(), m.waitForNotice())
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: m.store.Refresh(m.ctx)}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	changes := m.store.Changes()
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m *Model) waitForNotice() tea.Cmd {
	if m.notices == nil {
		return nil
	}
	notices := m.notices
	return func() tea.Msg {
		n, ok := <-notices
		if !ok {
			return nil
		}
		return noticeMsg{n}
	}
}

// sync copies the visible list and keeps the cursor on the same item when it still exists
func (m *Model) sync() {
	var key string
	if sel, ok := m.selected(); ok {
		key = sel.Key()
	}

	items := m.store.Items()
	if m.opts.NewestFirst {
		items = items.Reversed()
	}
	m.items = items

	if key != "" {
		for i, it := range m.items {
			if it.Key() == key {
				m.cursor = i
				return
			}
		}
	}
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) selected() (backend.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return backend.Item{}, false
	}
	return m.items[m.cursor], true
}

func (m *Model) setError(err error) {
	m.notice = err.Error()
	m.failed = true
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case changedMsg:
		m.sync()
		return m, m.waitForChange()

	case noticeMsg:
		if msg.n.Type.IsFailure() {
			m.notice = msg.n.Title + ": " + msg.n.Message
			m.failed = true
		} else if !m.failed {
			m.notice = msg.n.Title
		}
		return m, m.waitForNotice()

	case refreshedMsg:
		// A failed read also arrives as a notice; a superseded one is not a failure.
		if msg.err != nil && !errors.Is(msg.err, reconcile.ErrFetchSuperseded) && m.notices == nil {
			m.setError(msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeAdd:
			return m.handleAddMode(msg)
		case ModeEdit:
			return m.handleEditMode(msg)
		case ModeHelp:
			return m.handleHelpMode(msg)
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	return m, nil
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
		return m, nil

	case "a":
		m.mode = ModeAdd
		m.textInput.Reset()
		m.textInput.Placeholder = "New item title..."
		m.textInput.Focus()
		return m, textinput.Blink

	case "e":
		sel, ok := m.selected()
		if !ok || !sel.Confirmed() {
			return m, nil
		}
		if m.store.InProgress(reconcile.KindUpdate) {
			m.notice = "An edit is still being saved"
			m.failed = false
			return m, nil
		}
		m.mode = ModeEdit
		m.editing = sel.ID
		m.textInput.Reset()
		m.textInput.SetValue(sel.Title)
		m.textInput.Focus()
		return m, textinput.Blink

	case "d":
		if sel, ok := m.selected(); ok && sel.Confirmed() {
			m.mode = ModeConfirmDelete
			m.deleting = sel
		}
		return m, nil

	case "r":
		return m, m.refresh()

	case "?":
		m.mode = ModeHelp
		return m, nil

	case "esc":
		m.notice = ""
		m.failed = false
		return m, nil
	}
	return m, nil
}

func (m *Model) handleAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		value := m.textInput.Value()
		m.mode = ModeNormal
		if _, err := m.store.Add(m.ctx, value); err != nil {
			m.setError(err)
			return m, nil
		}
		m.cursorToNewest()
		return m, nil

	case tea.KeyEsc:
		m.mode = ModeNormal
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// cursorToNewest points at the end of the list where a fresh item appears
func (m *Model) cursorToNewest() {
	m.sync()
	if m.opts.NewestFirst {
		m.cursor = 0
	} else if len(m.items) > 0 {
		m.cursor = len(m.items) - 1
	}
}

func (m *Model) handleEditMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		value := m.textInput.Value()
		id := m.editing
		m.mode = ModeNormal
		m.editing = backend.NoID
		if _, err := m.store.Update(m.ctx, id, value); err != nil {
			m.setError(err)
			return m, nil
		}
		m.sync()
		return m, nil

	case tea.KeyEsc:
		m.mode = ModeNormal
		m.editing = backend.NoID
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) handleHelpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		m.mode = ModeNormal
		return m, nil
	}

	if msg.String() == "q" || msg.String() == "?" {
		m.mode = ModeNormal
	}
	return m, nil
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		// the item picked with 'd', even if the list moved under the cursor since
		id := m.deleting.ID
		m.mode = ModeNormal
		m.deleting = backend.Item{}
		if _, err := m.store.Delete(m.ctx, id); err != nil {
			m.setError(err)
			return m, nil
		}
		m.sync()
		return m, nil

	case "n", "N", "esc":
		m.mode = ModeNormal
		m.deleting = backend.Item{}
		return m, nil
	}
	return m, nil
}

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	switch m.mode {
	case ModeAdd:
		return m.renderInputDialog("Add New Item")
	case ModeEdit:
		return m.renderInputDialog("Edit Item " + m.editing.String())
	case ModeHelp:
		return m.renderHelpDialog()
	case ModeConfirmDelete:
		return m.renderConfirmDeleteDialog()
	}

	var b strings.Builder
	content := m.renderList(m.width - 6)
	b.WriteString(m.listStyle.Width(m.width - 2).Height(m.height - 4).Render(content))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderList(width int) string {
	var b strings.Builder
	b.WriteString("Items\n")
	if width > 0 {
		b.WriteString(strings.Repeat("─", width))
	}
	b.WriteString("\n")

	if len(m.items) == 0 {
		if !m.store.Loaded() {
			b.WriteString("Loading...\n")
		} else {
			b.WriteString("No items\n")
		}
		return b.String()
	}

	for i, it := range m.items {
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}

		id := fmt.Sprintf("%4s", it.ID.String())
		title := it.Title
		switch {
		case !it.Confirmed():
			id = "   …"
			title = m.pendingStyle.Render(title + " (saving)")
		case i == m.cursor:
			title = m.selectedStyle.Render(title)
		}
		b.WriteString(cursor + " " + id + "  " + title + "\n")
	}
	return b.String()
}

func (m *Model) renderStatusBar() string {
	var left string
	switch {
	case m.store.InProgress(reconcile.KindAdd):
		left = "Adding..."
	case m.store.Fetching():
		left = "Refreshing..."
	default:
		left = fmt.Sprintf("%d items", len(m.items))
	}
	if m.notice != "" {
		notice := m.notice
		if m.failed {
			notice = m.errorStyle.Render("! " + notice)
		}
		left += "  " + notice
	}

	right := "q:quit  ?:help"
	padding := m.width - lipgloss.Width(left) - len(right) - 2
	if padding < 1 {
		padding = 1
	}

	return m.statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderInputDialog(title string) string {
	dialog := m.dialogStyle.Render(
		title + "\n\n" +
			m.textInput.View() + "\n\n" +
			m.helpStyle.Render("Enter: confirm  Esc: cancel"),
	)
	return m.centerDialog(dialog)
}

func (m *Model) renderHelpDialog() string {
	help := `Help - Key Bindings

Navigation:
  j/↓    Move down
  k/↑    Move up

Actions:
  a      Add new item
  e      Edit selected item
  d      Delete item (with confirm)
  r      Refresh from server

General:
  Esc    Dismiss status message
  ?      Show this help
  q      Quit

Items marked (saving) are not confirmed yet
and cannot be edited or deleted.`

	return m.centerDialog(m.dialogStyle.Render(help))
}

func (m *Model) renderConfirmDeleteDialog() string {
	title := fmt.Sprintf("Delete %q?", m.deleting.Title)
	dialog := m.dialogStyle.Render(
		title + "\n\n" +
			m.helpStyle.Render("y: yes  n: no"),
	)
	return m.centerDialog(dialog)
}

func (m *Model) centerDialog(dialog string) string {
	dialogHeight := lipgloss.Height(dialog)
	dialogWidth := lipgloss.Width(dialog)

	topPad := (m.height - dialogHeight) / 2
	leftPad := (m.width - dialogWidth) / 2
	if topPad < 0 {
		topPad = 0
	}
	if leftPad < 0 {
		leftPad = 0
	}

	var b strings.Builder
	for i := 0; i < topPad; i++ {
		b.WriteString("\n")
	}
	for _, line := range strings.Split(dialog, "\n") {
		b.WriteString(strings.Repeat(" ", leftPad))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
