package grid

import "strings"

// Tab identifies one of the reconciliation views over an invoice's
// comparison output.
type Tab string

const (
	TabUpdates   Tab = "updates"
	TabNew       Tab = "new"
	TabUnmatched Tab = "unmatched"
)

// Tabs lists every tab in display order.
func Tabs() []Tab { return []Tab{TabUpdates, TabNew, TabUnmatched} }

// Valid reports whether t is one of the known tabs.
func (t Tab) Valid() bool {
	return t == TabUpdates || t == TabNew || t == TabUnmatched
}

// Dataset is one fetched comparison table: raw column headers plus rows
// aligned positionally with them. A Dataset is never mutated after fetch;
// a re-fetch replaces it wholesale.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// identityCandidates are the headers that can carry the row key, in
// priority order. SCM is the supplier-side code used when the shop export
// carries no PRODUCT_CODE.
var identityCandidates = []string{"PRODUCT_CODE", "SCM"}

// IdentityColumn returns the index of the column holding row identity, or
// -1 when the dataset has none. It is resolved per call so a re-fetched
// dataset with a different column order can never serve a stale position.
func (d Dataset) IdentityColumn() int {
	for _, want := range identityCandidates {
		for i, c := range d.Columns {
			if c == want {
				return i
			}
		}
	}
	for _, want := range identityCandidates {
		for i, c := range d.Columns {
			if Normalize(c) == want {
				return i
			}
		}
	}
	return -1
}

// Identity extracts the stable business key for a row, or "" when the row
// has none. A PL- prefix comes from the supplier feed and is not part of
// the shop's code. Rows without identity are neither selectable nor
// editable.
func (d Dataset) Identity(row []string) string {
	return d.identityAt(d.IdentityColumn(), row)
}

func (d Dataset) identityAt(idx int, row []string) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	code := strings.TrimSpace(row[idx])
	return strings.TrimPrefix(code, "PL-")
}

// Identities returns the resolvable identity of each row in rows, skipping
// rows that have none.
func (d Dataset) Identities(rows [][]string) []string {
	idx := d.IdentityColumn()
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := d.identityAt(idx, row); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// ColumnIndex locates a column by exact header first, then by normalized
// form. Returns -1 when absent.
func (d Dataset) ColumnIndex(name string) int {
	return columnIndex(d.Columns, name)
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	want := Normalize(name)
	for i, c := range columns {
		if Normalize(c) == want {
			return i
		}
	}
	return -1
}

// Value reads the raw cell for name from row, "" when the column is
// missing or the row is short.
func (d Dataset) Value(row []string, name string) string {
	idx := d.ColumnIndex(name)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Empty reports whether the dataset holds no rows.
func (d Dataset) Empty() bool { return len(d.Rows) == 0 }
