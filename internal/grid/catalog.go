package grid

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultPreset returns the built-in column list for a tab, used whenever
// no saved preset survives sanitization. Order follows the enriched
// comparison layout the hub produces.
func DefaultPreset(tab Tab) []string {
	switch tab {
	case TabUpdates:
		return []string{
			"PRODUCT_CODE", "TITLE",
			"INVOICE_UNIT_PRICE_EUR", "PRICE_BUY", FieldBuyDelta,
			"PRICE_WITH_VAT „Predvolené“", FieldPriceDelta,
			FieldProfitEUR, FieldProfitPct,
			"SHOP_STOCK_CURRENT", "INVOICE_QTY", FieldStockDelta, FieldStockAfter,
		}
	case TabNew:
		return []string{"PRODUCT_CODE", "TITLE", "EAN", "INVOICE_QTY", "INVOICE_UNIT_PRICE_EUR"}
	case TabUnmatched:
		return []string{"PRODUCT_CODE", "SCM", "TITLE", "INVOICE_QTY"}
	}
	return nil
}

// Dropped records a preset entry removed during sanitization because the
// current dataset no longer carries its column.
type Dropped struct {
	Tab        Tab
	Column     string
	Suggestion string // nearest dataset column, "" when nothing is close
}

// Catalog resolves which columns each tab shows: the operator's saved
// preset when one survives against the current dataset, else the built-in
// default, else every dataset column. Presets are operator-ordered;
// sanitization preserves that order and never invents columns.
type Catalog struct {
	presets map[Tab][]string
	visible map[Tab][]string
	columns []string
}

// NewCatalog returns a catalog with no presets and no dataset columns.
func NewCatalog() *Catalog {
	return &Catalog{
		presets: make(map[Tab][]string),
		visible: make(map[Tab][]string),
	}
}

// SetPresets installs the saved per-tab presets, typically straight from
// the shop config, and re-sanitizes every tab. Tabs missing from saved
// keep no override and fall back to the default.
func (c *Catalog) SetPresets(saved map[Tab][]string) []Dropped {
	c.presets = make(map[Tab][]string)
	for tab, cols := range saved {
		if len(cols) > 0 {
			c.presets[tab] = append([]string(nil), cols...)
		}
	}
	return c.sanitizeAll()
}

// Preset returns the tab's effective preset before sanitization: the
// operator's override when set, else the built-in default.
func (c *Catalog) Preset(tab Tab) []string {
	if cols, ok := c.presets[tab]; ok {
		return append([]string(nil), cols...)
	}
	return DefaultPreset(tab)
}

// SetColumns records the current dataset's column set and re-sanitizes
// the stored preset of every tab, not just the active one, so switching
// tabs can never surface a stale selection.
func (c *Catalog) SetColumns(columns []string) []Dropped {
	c.columns = append([]string(nil), columns...)
	return c.sanitizeAll()
}

// ApplyOnce replaces the tab's in-memory preset without persisting it
// anywhere. The caller owns writing presets back to the config store.
func (c *Catalog) ApplyOnce(tab Tab, cols []string) []Dropped {
	c.presets[tab] = append([]string(nil), cols...)
	return c.sanitize(tab)
}

// Visible returns the tab's sanitized column selectors in preset order.
// Every selector is a raw header of the current dataset.
func (c *Catalog) Visible(tab Tab) []string {
	if cols, ok := c.visible[tab]; ok {
		return append([]string(nil), cols...)
	}
	return nil
}

// Available returns the dataset columns the tab does not currently show,
// in dataset order, for the picker's left pane.
func (c *Catalog) Available(tab Tab) []string {
	shown := make(map[string]bool)
	for _, v := range c.visible[tab] {
		shown[Normalize(v)] = true
	}
	var out []string
	for _, col := range c.columns {
		if !shown[Normalize(col)] {
			out = append(out, col)
		}
	}
	return out
}

func (c *Catalog) sanitizeAll() []Dropped {
	var dropped []Dropped
	for _, tab := range Tabs() {
		dropped = append(dropped, c.sanitize(tab)...)
	}
	return dropped
}

func (c *Catalog) sanitize(tab Tab) []Dropped {
	if len(c.columns) == 0 {
		// No dataset yet, nothing to judge the preset against.
		c.visible[tab] = nil
		return nil
	}
	vis, missing := filterPreset(c.Preset(tab), c.columns)
	if len(vis) == 0 {
		vis, _ = filterPreset(DefaultPreset(tab), c.columns)
	}
	if len(vis) == 0 {
		// Neither preset nor default matched; show the dataset as-is.
		vis = append([]string(nil), c.columns...)
	}
	c.visible[tab] = vis

	dropped := make([]Dropped, 0, len(missing))
	for _, m := range missing {
		dropped = append(dropped, Dropped{
			Tab:        tab,
			Column:     m,
			Suggestion: nearestColumn(m, c.columns),
		})
	}
	return dropped
}

// filterPreset keeps preset entries whose normalized form matches a
// dataset column, returning the dataset's own raw headers so the grid
// labels match the data. Preset order is preserved.
func filterPreset(preset, columns []string) (vis, missing []string) {
	for _, want := range preset {
		if idx := columnIndex(columns, want); idx >= 0 {
			vis = append(vis, columns[idx])
		} else {
			missing = append(missing, want)
		}
	}
	return vis, missing
}

// nearestColumn suggests the dataset column closest to a dropped preset
// entry, or "" when nothing is within editing distance worth mentioning.
func nearestColumn(want string, columns []string) string {
	wantN := strings.ToLower(Normalize(want))
	if wantN == "" {
		return ""
	}
	best := ""
	bestScore := 0.0
	for _, col := range columns {
		colN := strings.ToLower(Normalize(col))
		if colN == "" {
			continue
		}
		dist := levenshtein.ComputeDistance(wantN, colN)
		longest := max(utf8.RuneCountInString(wantN), utf8.RuneCountInString(colN))
		score := 1 - float64(dist)/float64(longest)
		if score > bestScore {
			best, bestScore = col, score
		}
	}
	if bestScore < 0.5 {
		return ""
	}
	return best
}

// Draft is an in-progress preset edit for one tab: the picker mutates it
// freely and nothing touches the catalog until the operator applies or
// saves it.
type Draft struct {
	Tab      Tab
	Selected []string
}

// NewDraft starts a draft from the tab's currently visible columns.
func (c *Catalog) NewDraft(tab Tab) *Draft {
	return &Draft{Tab: tab, Selected: c.Visible(tab)}
}

// Add appends a column to the draft if it is not already selected.
func (d *Draft) Add(column string) {
	for _, s := range d.Selected {
		if SameColumn(s, column) {
			return
		}
	}
	d.Selected = append(d.Selected, column)
}

// RemoveAt drops the i-th selected column.
func (d *Draft) RemoveAt(i int) {
	if i < 0 || i >= len(d.Selected) {
		return
	}
	d.Selected = append(d.Selected[:i], d.Selected[i+1:]...)
}

// Move shifts the i-th selected column by delta positions, clamped to
// the list bounds. Returns the column's new index.
func (d *Draft) Move(i, delta int) int {
	if i < 0 || i >= len(d.Selected) {
		return i
	}
	j := i + delta
	if j < 0 {
		j = 0
	}
	if j >= len(d.Selected) {
		j = len(d.Selected) - 1
	}
	col := d.Selected[i]
	rest := append(d.Selected[:i:i], d.Selected[i+1:]...)
	d.Selected = append(rest[:j:j], append([]string{col}, rest[j:]...)...)
	return j
}
