package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/reconsole/internal/config"
	"github.com/jask/reconsole/internal/grid"
	"github.com/jask/reconsole/internal/hub"
	"github.com/jask/reconsole/internal/session"
)

const historyLimit = 50

// Hub is the inventory hub surface the console talks to.
type Hub interface {
	session.Hub
	FetchInvoices(ctx context.Context, supplier string) ([]hub.Invoice, error)
}

// App ties together views.
type App struct {
	ctx  context.Context
	hub  Hub
	cfg  config.Config
	sess *session.Session

	state  appState
	modal  modalState
	width  int
	height int

	invoices      []hub.Invoice
	invoiceCursor int
	invoice       hub.Invoice

	rowCursor int
	colCursor int
	colOffset int

	input       textinput.Model
	editingCode string
	editingCol  string

	picker        *columnPicker
	historyCursor int

	spin       spinner.Model
	keys       gridKeyMap
	help       help.Model
	dateFormat string
	status     string
}

type appState string

const (
	viewInvoices appState = "invoices"
	viewGrid     appState = "grid"
	viewHistory  appState = "history"
	viewColumns  appState = "columns"
)

type modalState string

const (
	modalNone         modalState = ""
	modalEditCell     modalState = "editCell"
	modalFilter       modalState = "filter"
	modalConfirmApply modalState = "confirmApply"
	modalConfirmSend  modalState = "confirmSend"
)

func New(ctx context.Context, cfg config.Config, h Hub) *App {
	input := textinput.New()
	input.CharLimit = 256
	input.Width = 48

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return &App{
		ctx: ctx,
		hub: h,
		cfg: cfg,
		sess: session.New(cfg.Console.Supplier, cfg.Console.Shop, session.Options{
			PageSize:   cfg.Console.PageSize,
			FetchLimit: cfg.Console.FetchLimit,
		}),
		state:      viewInvoices,
		input:      input,
		spin:       spin,
		keys:       newGridKeyMap(),
		help:       help.New(),
		dateFormat: cfg.Console.DateFormat,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadInvoices(), a.loadPresets(), a.spin.Tick)
}

func (a *App) loadInvoices() tea.Cmd {
	return func() tea.Msg {
		list, err := a.hub.FetchInvoices(a.ctx, a.sess.Supplier)
		if err != nil {
			return errMsg{err}
		}
		return invoicesMsg(list)
	}
}

func (a *App) loadPresets() tea.Cmd {
	return func() tea.Msg {
		saved, err := a.hub.FetchPreset(a.ctx, a.sess.Shop)
		if err != nil {
			return errMsg{err}
		}
		return presetsMsg(saved)
	}
}

func (a *App) loadDataset(req session.LoadRequest) tea.Cmd {
	return func() tea.Msg {
		ds, err := a.hub.FetchDataset(a.ctx, req.DatasetRequest)
		return datasetMsg{token: req.Token, data: ds, err: err}
	}
}

func (a *App) applyCmd(req hub.ApplyRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := a.hub.Apply(a.ctx, a.sess.Supplier, req)
		return appliedMsg{result: res, err: err}
	}
}

func (a *App) sendCmd(req hub.SendRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := a.hub.Send(a.ctx, a.sess.Supplier, req)
		return sentMsg{result: res, err: err}
	}
}

func (a *App) loadHistory() tea.Cmd {
	invoiceID := a.sess.InvoiceID()
	return func() tea.Msg {
		items, err := a.hub.FetchHistory(a.ctx, a.sess.Supplier, invoiceID, historyLimit)
		if err != nil {
			return errMsg{err}
		}
		return historyMsg(items)
	}
}

func (a *App) savePresetCmd(tab grid.Tab, cols []string) tea.Cmd {
	return func() tea.Msg {
		return presetSavedMsg{tab: tab, err: a.hub.SavePreset(a.ctx, a.sess.Shop, tab, cols)}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.help.Width = m.Width
		a.fitColumns()
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(m)
		return a, cmd
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		switch a.state {
		case viewGrid:
			return a.handleGridKey(m)
		case viewHistory:
			return a.handleHistoryKey(m)
		case viewColumns:
			return a.handleColumnsKey(m)
		default:
			return a.handleInvoicesKey(m)
		}
	case invoicesMsg:
		a.invoices = []hub.Invoice(m)
		if a.invoiceCursor >= len(a.invoices) {
			a.invoiceCursor = 0
		}
		if a.state == viewInvoices && a.status == "loading..." {
			a.status = ""
		}
	case presetsMsg:
		a.sess.InstallPresets(map[grid.Tab][]string(m))
		a.fitColumns()
	case datasetMsg:
		if a.sess.FinishLoad(m.token, m.data, m.err) {
			a.status = ""
			a.rowCursor, a.colCursor, a.colOffset = 0, 0, 0
			a.fitColumns()
		}
	case appliedMsg:
		a.sess.FinishApply(m.result, m.err)
		if m.err != nil {
			a.status = "apply failed: " + m.err.Error()
		} else if f := m.result.SelectedFiles[string(a.sess.Tab())]; f != "" {
			a.status = "applied, output " + f
		} else {
			a.status = "applied"
		}
	case sentMsg:
		a.sess.FinishSend(m.result, m.err)
		if m.err != nil {
			a.status = "send failed: " + m.err.Error()
			return a, nil
		}
		a.status = fmt.Sprintf("sent %d file(s), status %s", len(m.result.Sent), m.result.Status)
		return a, a.loadHistory()
	case historyMsg:
		a.sess.SetHistory([]hub.HistoryEntry(m))
		if a.historyCursor >= len(m) {
			a.historyCursor = 0
		}
	case presetSavedMsg:
		if m.err != nil {
			a.status = "save columns: " + m.err.Error()
		} else {
			a.status = fmt.Sprintf("%s columns saved as %s default", m.tab, a.sess.Shop)
		}
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewHistory:
		body = a.renderHistory()
	case viewColumns:
		body = a.renderColumns()
	case viewGrid:
		body = a.renderGrid()
	default:
		body = a.renderInvoices()
	}
	if a.modal != modalNone {
		return composite(body, a.renderModal(), a.width, a.height)
	}
	return body
}

func (a *App) handleInvoicesKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "up", "k":
		if a.invoiceCursor > 0 {
			a.invoiceCursor--
		}
	case "down", "j":
		if a.invoiceCursor < len(a.invoices)-1 {
			a.invoiceCursor++
		}
	case "r":
		a.status = "loading..."
		return a, a.loadInvoices()
	case "esc":
		if a.sess.InvoiceID() != "" {
			a.state = viewGrid
		}
	case "enter":
		if a.invoiceCursor < len(a.invoices) {
			inv := a.invoices[a.invoiceCursor]
			a.invoice = inv
			a.state = viewGrid
			a.status = "loading..."
			return a, a.loadDataset(a.sess.BeginLoad(inv.ID, a.sess.Tab(), a.sess.Detail()))
		}
	}
	return a, nil
}

func (a *App) handleGridKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(m, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(m, a.keys.Up):
		if a.rowCursor > 0 {
			a.rowCursor--
		}
	case key.Matches(m, a.keys.Down):
		if a.rowCursor < len(a.sess.PageRows())-1 {
			a.rowCursor++
		}
	case key.Matches(m, a.keys.Left):
		if a.colCursor > 0 {
			a.colCursor--
			if a.colCursor < a.colOffset {
				a.colOffset = a.colCursor
			}
		}
	case key.Matches(m, a.keys.Right):
		if a.colCursor < len(a.visibleColumns())-1 {
			a.colCursor++
			a.fitColumns()
		}
	case key.Matches(m, a.keys.PrevPage):
		a.sess.PrevPage()
		a.rowCursor = 0
	case key.Matches(m, a.keys.NextPage):
		a.sess.NextPage()
		a.rowCursor = 0
	case key.Matches(m, a.keys.NextTab):
		return a, a.switchTab(nextTab(a.sess.Tab()))
	case key.Matches(m, a.keys.Tab1):
		return a, a.switchTab(grid.TabUpdates)
	case key.Matches(m, a.keys.Tab2):
		return a, a.switchTab(grid.TabNew)
	case key.Matches(m, a.keys.Tab3):
		return a, a.switchTab(grid.TabUnmatched)
	case key.Matches(m, a.keys.Detail):
		a.status = "loading..."
		return a, a.loadDataset(a.sess.BeginLoad(a.sess.InvoiceID(), a.sess.Tab(), !a.sess.Detail()))
	case key.Matches(m, a.keys.Select):
		rows := a.sess.PageRows()
		if a.rowCursor < len(rows) {
			code := a.sess.Dataset().Identity(rows[a.rowCursor])
			if code == "" {
				a.status = "row has no product code"
			} else {
				a.sess.ToggleSelect(code)
			}
		}
	case key.Matches(m, a.keys.SelectPage):
		a.sess.ToggleSelectAll()
	case key.Matches(m, a.keys.Edit):
		return a, a.openCellEditor()
	case key.Matches(m, a.keys.Discard):
		if a.sess.HasEdits() {
			a.sess.DiscardEdits()
			a.status = "edits discarded"
		}
	case key.Matches(m, a.keys.Filter):
		a.modal = modalFilter
		a.input.SetValue(a.sess.Filter())
		a.input.CursorEnd()
		return a, a.input.Focus()
	case key.Matches(m, a.keys.Columns):
		a.openColumnPicker()
	case key.Matches(m, a.keys.Apply):
		if err := a.sess.CanApply(); err != nil {
			a.status = err.Error()
			return a, nil
		}
		a.modal = modalConfirmApply
	case key.Matches(m, a.keys.Send):
		if a.sess.Applied() == nil {
			a.status = session.ErrNothingApplied.Error()
			return a, nil
		}
		a.modal = modalConfirmSend
	case key.Matches(m, a.keys.History):
		a.state = viewHistory
		a.historyCursor = 0
		return a, a.loadHistory()
	case key.Matches(m, a.keys.Reload):
		a.status = "loading..."
		return a, a.loadDataset(a.sess.Reload())
	case key.Matches(m, a.keys.Invoices):
		a.state = viewInvoices
		return a, a.loadInvoices()
	}
	return a, nil
}

func (a *App) handleHistoryKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "esc", "v":
		a.state = viewGrid
	case "up", "k":
		if a.historyCursor > 0 {
			a.historyCursor--
		}
	case "down", "j":
		if a.historyCursor < len(a.sess.History())-1 {
			a.historyCursor++
		}
	case "r":
		return a, a.loadHistory()
	}
	return a, nil
}

func (a *App) handleColumnsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.picker == nil {
		a.state = viewGrid
		return a, nil
	}
	switch a.picker.handleKey(m) {
	case pickerQuit:
		return a, tea.Quit
	case pickerCancel:
		a.closeColumnPicker()
	case pickerApplyOnce:
		draft := a.picker.draft
		a.closeColumnPicker()
		a.sess.ApplyPreset(draft.Tab, draft.Selected)
		a.status = "columns applied for this session"
	case pickerSaveDefault:
		draft := a.picker.draft
		a.closeColumnPicker()
		a.sess.ApplyPreset(draft.Tab, draft.Selected)
		a.status = "saving columns..."
		return a, a.savePresetCmd(draft.Tab, draft.Selected)
	}
	return a, nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalEditCell:
		switch m.Type {
		case tea.KeyEsc:
			a.closeInput()
		case tea.KeyEnter:
			a.sess.SetCell(a.editingCode, a.editingCol, strings.TrimSpace(a.input.Value()))
			a.closeInput()
		default:
			var cmd tea.Cmd
			a.input, cmd = a.input.Update(m)
			return a, cmd
		}
	case modalFilter:
		switch m.Type {
		case tea.KeyEsc:
			a.closeInput()
		case tea.KeyEnter:
			if err := a.sess.SetFilter(strings.TrimSpace(a.input.Value())); err != nil {
				a.status = "filter: " + err.Error()
				return a, nil
			}
			a.rowCursor = 0
			a.status = ""
			a.closeInput()
		default:
			var cmd tea.Cmd
			a.input, cmd = a.input.Update(m)
			return a, cmd
		}
	case modalConfirmApply:
		switch m.String() {
		case "y", "Y", "enter":
			a.modal = modalNone
			req, err := a.sess.BeginApply()
			if err != nil {
				a.status = err.Error()
				return a, nil
			}
			a.status = "applying..."
			return a, a.applyCmd(req)
		case "n", "N", "esc":
			a.modal = modalNone
		}
	case modalConfirmSend:
		switch m.String() {
		case "y", "Y", "enter":
			a.modal = modalNone
			req, err := a.sess.BeginSend()
			if err != nil {
				a.status = err.Error()
				return a, nil
			}
			a.status = "sending..."
			return a, a.sendCmd(req)
		case "n", "N", "esc":
			a.modal = modalNone
		}
	}
	return a, nil
}

func (a *App) openCellEditor() tea.Cmd {
	rows := a.sess.PageRows()
	if a.rowCursor >= len(rows) {
		return nil
	}
	row := rows[a.rowCursor]
	code := a.sess.Dataset().Identity(row)
	if code == "" {
		a.status = "row has no product code"
		return nil
	}
	cols := a.visibleColumns()
	if a.colCursor >= len(cols) {
		return nil
	}
	col := cols[a.colCursor]
	if grid.RoleOf(a.sess.Tab(), col) != grid.RoleEditable {
		a.status = fmt.Sprintf("%s is not editable", col)
		return nil
	}
	a.editingCode = code
	a.editingCol = col
	a.modal = modalEditCell
	a.input.SetValue(a.sess.Resolver().Resolve(code, row, col))
	a.input.CursorEnd()
	return a.input.Focus()
}

func (a *App) closeInput() {
	a.modal = modalNone
	a.input.Blur()
	a.input.SetValue("")
	a.editingCode, a.editingCol = "", ""
}

func (a *App) openColumnPicker() {
	if a.sess.State() != session.StateReady {
		a.status = "no dataset loaded"
		return
	}
	tab := a.sess.Tab()
	a.picker = newColumnPicker(a.sess.Catalog().NewDraft(tab), a.sess.Dataset().Columns)
	a.state = viewColumns
}

func (a *App) closeColumnPicker() {
	a.picker = nil
	a.state = viewGrid
	a.colCursor, a.colOffset = 0, 0
	a.fitColumns()
}

func (a *App) switchTab(tab grid.Tab) tea.Cmd {
	if tab == a.sess.Tab() {
		return nil
	}
	a.status = "loading..."
	return a.loadDataset(a.sess.BeginLoad(a.sess.InvoiceID(), tab, a.sess.Detail()))
}

func nextTab(t grid.Tab) grid.Tab {
	tabs := grid.Tabs()
	for i, tab := range tabs {
		if tab == t {
			return tabs[(i+1)%len(tabs)]
		}
	}
	return tabs[0]
}

func (a *App) visibleColumns() []string {
	return a.sess.Catalog().Visible(a.sess.Tab())
}

// fitColumns clamps the column cursor to the visible preset and slides
// the horizontal window until the cursor's column is rendered.
func (a *App) fitColumns() {
	cols := a.visibleColumns()
	if len(cols) == 0 {
		a.colCursor, a.colOffset = 0, 0
		return
	}
	if a.colCursor >= len(cols) {
		a.colCursor = len(cols) - 1
	}
	if a.colOffset > a.colCursor {
		a.colOffset = a.colCursor
	}
	widths := a.columnWidths(cols)
	for a.colCursor >= a.windowEnd(widths, a.colOffset) {
		a.colOffset++
	}
}

// keymap

// gridKeyMap drives the grid view; the help footer renders from it.
type gridKeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Left       key.Binding
	Right      key.Binding
	PrevPage   key.Binding
	NextPage   key.Binding
	NextTab    key.Binding
	Tab1       key.Binding
	Tab2       key.Binding
	Tab3       key.Binding
	Detail     key.Binding
	Select     key.Binding
	SelectPage key.Binding
	Edit       key.Binding
	Discard    key.Binding
	Filter     key.Binding
	Columns    key.Binding
	Apply      key.Binding
	Send       key.Binding
	History    key.Binding
	Reload     key.Binding
	Invoices   key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newGridKeyMap() gridKeyMap {
	return gridKeyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "row up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "row down")),
		Left:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "col left")),
		Right:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "col right")),
		PrevPage:   key.NewBinding(key.WithKeys("pgup", "p"), key.WithHelp("p", "prev page")),
		NextPage:   key.NewBinding(key.WithKeys("pgdown", "n"), key.WithHelp("n", "next page")),
		NextTab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Tab1:       key.NewBinding(key.WithKeys("1")),
		Tab2:       key.NewBinding(key.WithKeys("2")),
		Tab3:       key.NewBinding(key.WithKeys("3")),
		Detail:     key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "detail")),
		Select:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "select")),
		SelectPage: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select page")),
		Edit:       key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
		Discard:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "discard edits")),
		Filter:     key.NewBinding(key.WithKeys("/", "f"), key.WithHelp("/", "filter")),
		Columns:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "columns")),
		Apply:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "apply")),
		Send:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "send")),
		History:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "history")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Invoices:   key.NewBinding(key.WithKeys("i", "esc"), key.WithHelp("i", "invoices")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k gridKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Edit, k.Filter, k.Columns, k.Apply, k.Send, k.Help, k.Quit}
}

func (k gridKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.PrevPage, k.NextPage},
		{k.Select, k.SelectPage, k.Edit, k.Discard, k.Filter},
		{k.NextTab, k.Detail, k.Columns, k.Apply, k.Send},
		{k.History, k.Reload, k.Invoices, k.Quit},
	}
}

// messages
type invoicesMsg []hub.Invoice

type presetsMsg map[grid.Tab][]string

type datasetMsg struct {
	token uint64
	data  grid.Dataset
	err   error
}

type appliedMsg struct {
	result hub.ApplyResult
	err    error
}

type sentMsg struct {
	result hub.SendResult
	err    error
}

type historyMsg []hub.HistoryEntry

type presetSavedMsg struct {
	tab grid.Tab
	err error
}

type errMsg struct{ error }
