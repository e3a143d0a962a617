package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/reconsole/internal/grid"
	"github.com/jask/reconsole/internal/hub"
	"github.com/jask/reconsole/internal/session"
)

const (
	fallbackWidth = 120
	gridGutter    = 8
	minColWidth   = 6
	maxColWidth   = 28
)

// styles
var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Underline(true)
	tabActiveStyle   = lipgloss.NewStyle().Bold(true)
	tabInactiveStyle = lipgloss.NewStyle().Foreground(colorOverlay1)
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorSubtext1)
	cursorCellStyle  = lipgloss.NewStyle().Foreground(colorCrust).Background(colorFocus)
	editedStyle      = lipgloss.NewStyle().Foreground(colorEdited)
	computedStyle    = lipgloss.NewStyle().Foreground(colorComputed)
	errorStyle       = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle       = lipgloss.NewStyle().Foreground(colorOverlay1)
	statusStyle      = lipgloss.NewStyle().Foreground(colorInfo)
	appliedStyle     = lipgloss.NewStyle().Foreground(colorSuccess)
	modalStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
)

func (a *App) gridWidth() int {
	if a.width > 0 {
		return a.width
	}
	return fallbackWidth
}

func (a *App) renderInvoices() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Invoices: "+a.sess.Supplier) + "\n\n")
	if len(a.invoices) == 0 {
		b.WriteString(mutedStyle.Render("no invoices for this supplier") + "\n")
	}
	for i, inv := range a.invoices {
		cursor := "  "
		if i == a.invoiceCursor {
			cursor = "▶ "
		}
		b.WriteString(cursor + a.invoiceLabel(inv) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("[enter] Open  [r] Refresh  [q] Quit") + "\n")
	if a.status != "" {
		b.WriteString(statusStyle.Render(a.status) + "\n")
	}
	return b.String()
}

func (a *App) invoiceLabel(inv hub.Invoice) string {
	processed := "never processed"
	if inv.HistoryCount > 0 {
		processed = fmt.Sprintf("%d run(s), last %s", inv.HistoryCount, a.timestampLabel(inv.LastProcessedAt))
	}
	return fmt.Sprintf("%-16s %-12s %-10s %s", inv.Number, inv.IssueDate, inv.Status, mutedStyle.Render(processed))
}

func (a *App) renderGrid() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Invoice %s, shop %s", a.invoiceTitle(), a.sess.Shop)) + "\n")
	b.WriteString(a.renderTabBar() + "\n\n")
	switch a.sess.State() {
	case session.StateLoading:
		b.WriteString(a.spin.View() + " loading " + string(a.sess.Tab()) + "...\n")
	case session.StateError:
		b.WriteString(errorStyle.Render("load failed: "+a.sess.LastError()) + "\n\n")
		b.WriteString(mutedStyle.Render("[r] Retry  [i] Invoices  [q] Quit") + "\n")
	case session.StateReady:
		b.WriteString(a.renderTable())
		b.WriteString("\n" + a.renderGridFooter() + "\n")
	default:
		b.WriteString(mutedStyle.Render("no dataset, pick an invoice with [i]") + "\n")
	}
	return b.String()
}

func (a *App) renderTabBar() string {
	parts := make([]string, 0, 3)
	for i, tab := range grid.Tabs() {
		label := fmt.Sprintf("%d:%s", i+1, tab)
		if tab == a.sess.Tab() {
			if a.sess.Detail() {
				label += " (detail)"
			}
			parts = append(parts, tabActiveStyle.Foreground(tabAccent(tab)).Render("["+label+"]"))
		} else {
			parts = append(parts, tabInactiveStyle.Render(" "+label+" "))
		}
	}
	return strings.Join(parts, " ")
}

func (a *App) renderTable() string {
	cols := a.visibleColumns()
	if len(cols) == 0 {
		return mutedStyle.Render("dataset has no columns") + "\n"
	}
	ds := a.sess.Dataset()
	res := a.sess.Resolver()
	tab := a.sess.Tab()
	rows := a.sess.PageRows()
	pageIDs := a.sess.PageIdentities()
	widths := a.columnWidths(cols)
	end := a.windowEnd(widths, a.colOffset)

	var b strings.Builder

	box := "[ ]"
	if a.sess.Selection().AllSelected(tab, pageIDs) {
		box = "[x]"
	} else if a.sess.Selection().PartiallySelected(tab, pageIDs) {
		box = "[~]"
	}
	b.WriteString("  " + box + " ")
	for i := a.colOffset; i < end; i++ {
		name := fit(cols[i], widths[i])
		if i == a.colCursor {
			b.WriteString(headerStyle.Underline(true).Render(name))
		} else {
			b.WriteString(headerStyle.Render(name))
		}
		b.WriteString("  ")
	}
	if end < len(cols) {
		b.WriteString(mutedStyle.Render("…"))
	}
	b.WriteString("\n")

	for ri, row := range rows {
		id := ds.Identity(row)
		cursor := "  "
		if ri == a.rowCursor {
			cursor = "▶ "
		}
		var mark string
		switch {
		case id == "":
			mark = "    "
		case a.sess.Selection().Has(tab, id):
			mark = "[x] "
		default:
			mark = "[ ] "
		}
		b.WriteString(cursor + mark)
		for ci := a.colOffset; ci < end; ci++ {
			col := cols[ci]
			cell := res.Display(id, row, col)
			edited := res.Edited(id, row, col)
			if edited {
				cell += "*"
			}
			cell = fit(cell, widths[ci])
			switch {
			case ri == a.rowCursor && ci == a.colCursor:
				cell = cursorCellStyle.Render(cell)
			case edited:
				cell = editedStyle.Render(cell)
			case grid.RoleOf(tab, col) == grid.RoleComputed:
				cell = computedStyle.Render(cell)
			}
			b.WriteString(cell + "  ")
		}
		b.WriteString("\n")
	}
	if len(rows) == 0 {
		b.WriteString(mutedStyle.Render("  no rows on this page") + "\n")
	}
	return b.String()
}

func (a *App) renderGridFooter() string {
	var b strings.Builder
	tab := a.sess.Tab()

	info := fmt.Sprintf("Page %d/%d, %d rows", a.sess.Page()+1, a.sess.PageCount(), a.sess.TotalRows())
	if f := a.sess.Filter(); f != "" {
		info += ", filter " + f
	}
	if n := a.sess.Selection().Count(tab); n > 0 {
		info += fmt.Sprintf(", %d selected", n)
	}
	if a.sess.HasEdits() {
		info += ", unsaved edits"
	}
	b.WriteString(mutedStyle.Render(info) + "\n")

	if ap := a.sess.Applied(); ap != nil {
		if f := ap.SelectedFiles[string(tab)]; f != "" {
			b.WriteString(appliedStyle.Render("applied: "+f) + "\n")
		} else {
			b.WriteString(appliedStyle.Render("applied") + "\n")
		}
	}
	if a.sess.Applying() {
		b.WriteString(a.spin.View() + " applying...\n")
	}
	if a.sess.Sending() {
		b.WriteString(a.spin.View() + " sending...\n")
	}
	b.WriteString(a.help.View(a.keys))
	if a.status != "" {
		b.WriteString("\n" + statusStyle.Render(a.status))
	}
	return b.String()
}

func (a *App) renderHistory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("History: invoice "+a.invoiceTitle()) + "\n\n")
	items := a.sess.History()
	if len(items) == 0 {
		b.WriteString(mutedStyle.Render("no processing history yet") + "\n")
	}
	for i, it := range items {
		cursor := "  "
		if i == a.historyCursor {
			cursor = "▶ "
		}
		b.WriteString(cursor + a.historyLabel(it) + "\n")
		if i == a.historyCursor {
			if it.OutputFile != "" {
				b.WriteString(mutedStyle.Render("     output "+it.OutputFile) + "\n")
			}
			if it.SentFile != "" {
				b.WriteString(mutedStyle.Render("     sent   "+it.SentFile) + "\n")
			}
		}
	}
	b.WriteString("\n" + mutedStyle.Render("[j/k] Move  [r] Refresh  [esc] Back  [q] Quit") + "\n")
	if a.status != "" {
		b.WriteString(statusStyle.Render(a.status) + "\n")
	}
	return b.String()
}

func (a *App) historyLabel(it hub.HistoryEntry) string {
	label := fmt.Sprintf("%-16s %-9s %-10s", a.timestampLabel(it.Timestamp), it.Type, it.Tab)
	if it.SelectedCount > 0 {
		label += fmt.Sprintf(" %d rows", it.SelectedCount)
	}
	if it.Shop != "" {
		label += " " + it.Shop
	}
	return label
}

func (a *App) renderColumns() string {
	if a.picker == nil {
		return ""
	}
	return a.picker.render(a.gridWidth())
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalEditCell:
		body := fmt.Sprintf("Edit %s for %s", a.editingCol, a.editingCode) +
			"\n\n" + a.input.View() +
			"\n\n" + mutedStyle.Render("[enter] Save  [esc] Cancel")
		return modalStyle.Render(body)
	case modalFilter:
		body := "Filter rows" +
			"\n\n" + a.input.View() +
			"\n\n" + mutedStyle.Render("e.g. STOCK_DELTA > 0 && INVOICE_QTY >= 2") +
			"\n" + mutedStyle.Render("[enter] Apply  [esc] Cancel")
		return modalStyle.Render(body)
	case modalConfirmApply:
		n := a.sess.Selection().Count(a.sess.Tab())
		body := fmt.Sprintf("Apply %d selected row(s) on %s?", n, a.sess.Tab()) +
			"\n\n" + mutedStyle.Render("[y] Apply  [n] Cancel")
		return modalStyle.Render(body)
	case modalConfirmSend:
		body := fmt.Sprintf("Send applied %s rows to %s?", a.sess.Tab(), a.sess.Shop) +
			"\n\n" + mutedStyle.Render("[y] Send  [n] Cancel")
		return modalStyle.Render(body)
	}
	return ""
}

func (a *App) invoiceTitle() string {
	if a.invoice.Number != "" {
		return a.invoice.Number
	}
	return a.sess.InvoiceID()
}

// timestampLabel renders an RFC 3339 hub timestamp in the operator's
// configured date format; anything unparseable passes through untouched.
func (a *App) timestampLabel(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	layout := a.dateFormat
	if layout == "" {
		layout = "2006-01-02"
	}
	return t.Format(layout + " 15:04")
}

// columnWidths sizes each visible column to its widest page cell, header
// included, within fixed bounds. Edited cells count one extra for the
// change marker.
func (a *App) columnWidths(cols []string) []int {
	ds := a.sess.Dataset()
	res := a.sess.Resolver()
	rows := a.sess.PageRows()
	widths := make([]int, len(cols))
	for i, col := range cols {
		w := lipgloss.Width(col)
		for _, row := range rows {
			id := ds.Identity(row)
			cw := lipgloss.Width(res.Display(id, row, col))
			if res.Edited(id, row, col) {
				cw++
			}
			if cw > w {
				w = cw
			}
		}
		widths[i] = min(max(w, minColWidth), maxColWidth)
	}
	return widths
}

// windowEnd returns the index one past the last column that fits on
// screen when rendering starts at offset. The offset column itself always
// renders, however narrow the terminal.
func (a *App) windowEnd(widths []int, offset int) int {
	avail := a.gridWidth() - gridGutter
	used := 0
	end := offset
	for end < len(widths) {
		w := widths[end] + 2
		if end > offset && used+w > avail {
			break
		}
		used += w
		end++
	}
	return end
}
