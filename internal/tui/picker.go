package tui

import (
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/reconsole/internal/grid"
)

// pickerAction tells the app what to do after a key reached the picker.
type pickerAction int

const (
	pickerNone pickerAction = iota
	pickerQuit
	pickerCancel
	pickerApplyOnce
	pickerSaveDefault
)

const (
	paneAvailable = 0
	paneSelected  = 1
)

// columnPicker edits one tab's column preset as a two-pane dialog:
// available dataset columns on the left, the draft selection on the
// right. The catalog stays untouched until the operator applies or saves.
type columnPicker struct {
	draft   *grid.Draft
	columns []string
	pane    int
	cursor  [2]int
	query   string
}

func newColumnPicker(draft *grid.Draft, columns []string) *columnPicker {
	return &columnPicker{draft: draft, columns: append([]string(nil), columns...)}
}

// available lists the dataset columns not yet in the draft, narrowed by
// the fuzzy query and best matches first while one is typed.
func (p *columnPicker) available() []string {
	var out []string
	for _, col := range p.columns {
		taken := false
		for _, s := range p.draft.Selected {
			if grid.SameColumn(s, col) {
				taken = true
				break
			}
		}
		if taken {
			continue
		}
		if p.query == "" || fuzzyScore(p.query, col) > 0 {
			out = append(out, col)
		}
	}
	if p.query != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return fuzzyScore(p.query, out[i]) > fuzzyScore(p.query, out[j])
		})
	}
	return out
}

func (p *columnPicker) handleKey(m tea.KeyMsg) pickerAction {
	switch m.Type {
	case tea.KeyEsc:
		return pickerCancel
	case tea.KeyEnter:
		return pickerApplyOnce
	case tea.KeyCtrlS:
		return pickerSaveDefault
	case tea.KeyCtrlC:
		return pickerQuit
	case tea.KeyTab, tea.KeyLeft, tea.KeyRight:
		p.pane = 1 - p.pane
		return pickerNone
	case tea.KeyUp:
		p.moveCursor(-1)
		return pickerNone
	case tea.KeyDown:
		p.moveCursor(1)
		return pickerNone
	case tea.KeySpace:
		p.toggle()
		return pickerNone
	case tea.KeyBackspace:
		if p.query != "" {
			r := []rune(p.query)
			p.query = string(r[:len(r)-1])
			p.cursor[paneAvailable] = 0
		}
		return pickerNone
	}
	switch m.String() {
	case " ":
		p.toggle()
	case "j":
		p.moveCursor(1)
	case "k":
		p.moveCursor(-1)
	case "h", "l":
		p.pane = 1 - p.pane
	case "[":
		if p.pane == paneSelected {
			p.cursor[paneSelected] = p.draft.Move(p.cursor[paneSelected], -1)
		}
	case "]":
		if p.pane == paneSelected {
			p.cursor[paneSelected] = p.draft.Move(p.cursor[paneSelected], 1)
		}
	default:
		if m.Type == tea.KeyRunes {
			p.query += string(m.Runes)
			p.cursor[paneAvailable] = 0
		}
	}
	return pickerNone
}

// toggle moves the highlighted column to the other pane.
func (p *columnPicker) toggle() {
	if p.pane == paneSelected {
		p.draft.RemoveAt(p.cursor[paneSelected])
		p.clampCursors()
		return
	}
	avail := p.available()
	if c := p.cursor[paneAvailable]; c < len(avail) {
		p.draft.Add(avail[c])
		p.clampCursors()
	}
}

func (p *columnPicker) moveCursor(delta int) {
	n := p.paneLen(p.pane)
	if n == 0 {
		p.cursor[p.pane] = 0
		return
	}
	c := p.cursor[p.pane] + delta
	if c < 0 {
		c = 0
	}
	if c >= n {
		c = n - 1
	}
	p.cursor[p.pane] = c
}

func (p *columnPicker) paneLen(pane int) int {
	if pane == paneSelected {
		return len(p.draft.Selected)
	}
	return len(p.available())
}

func (p *columnPicker) clampCursors() {
	for pane := range p.cursor {
		if n := p.paneLen(pane); p.cursor[pane] >= n {
			p.cursor[pane] = max(n-1, 0)
		}
	}
}

func (p *columnPicker) render(width int) string {
	paneWidth := (width - 8) / 2
	if paneWidth > 36 {
		paneWidth = 36
	}
	if paneWidth < 16 {
		paneWidth = 16
	}
	left := p.renderPane("Available", p.available(), paneAvailable, paneWidth)
	right := p.renderPane("Shown", p.draft.Selected, paneSelected, paneWidth)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Columns: "+string(p.draft.Tab)) + "\n\n")
	if p.query != "" {
		b.WriteString("search: " + p.query + "\n\n")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right) + "\n\n")
	b.WriteString(mutedStyle.Render("[space] Move  [tab] Pane  [enter] Apply once  [ctrl+s] Save default  [esc] Cancel") + "\n")
	b.WriteString(mutedStyle.Render("reorder with [ and ], type to search") + "\n")
	return b.String()
}

func (p *columnPicker) renderPane(title string, items []string, pane, width int) string {
	var b strings.Builder
	if p.pane == pane {
		b.WriteString(headerStyle.Render(title) + "\n")
	} else {
		b.WriteString(mutedStyle.Render(title) + "\n")
	}
	if len(items) == 0 {
		b.WriteString(mutedStyle.Render("  (none)") + "\n")
	}
	for i, col := range items {
		cursor := "  "
		if p.pane == pane && p.cursor[pane] == i {
			cursor = "▶ "
		}
		b.WriteString(cursor + fit(col, width) + "\n")
	}
	return b.String()
}

// fuzzyScore rates query against candidate as a case-insensitive
// subsequence match. Zero means no match; contiguous runs and whole
// prefixes score higher so tighter matches sort first.
func fuzzyScore(query, candidate string) int {
	ql := strings.ToLower(query)
	cl := strings.ToLower(candidate)
	if ql == "" {
		return 1
	}
	c := []rune(cl)
	score := 0
	prev := -2
	ci := 0
	for _, qr := range ql {
		found := -1
		for i := ci; i < len(c); i++ {
			if c[i] == qr {
				found = i
				break
			}
		}
		if found < 0 {
			return 0
		}
		score++
		if found == prev+1 {
			score += 3
		}
		prev = found
		ci = found + 1
	}
	if strings.HasPrefix(cl, ql) {
		score += 10
	}
	return score
}
