package grid

// Role classifies a column for rendering and edit gating.
type Role string

const (
	RoleIdentity Role = "identity"
	RoleComputed Role = "computed"
	RoleEditable Role = "editable"
	RoleReadonly Role = "readonly"
)

// TabAllowsEdits reports whether a tab's rows may be edited and applied.
// Unmatched rows have no shop-side counterpart to update.
func TabAllowsEdits(t Tab) bool { return t == TabUpdates || t == TabNew }

// RoleOf classifies a column. Classification depends only on the tab and
// the normalized column name, never on row content. Identity candidates
// classify as identity regardless of which one the current dataset uses,
// so the key a selection hangs on can never be edited away.
func RoleOf(tab Tab, column string) Role {
	n := Normalize(column)
	for _, c := range identityCandidates {
		if n == c {
			return RoleIdentity
		}
	}
	if computedFields[n] {
		return RoleComputed
	}
	if TabAllowsEdits(tab) {
		return RoleEditable
	}
	return RoleReadonly
}

// Overlay is the sparse draft of unsaved cell edits for the currently
// displayed dataset: row identity to normalized header to entered value.
// It is recreated empty on every dataset swap and mutated only through
// Set; recomputation never writes to it.
type Overlay struct {
	edits map[string]map[string]string
}

// NewOverlay returns an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{edits: make(map[string]map[string]string)}
}

// Set records an edit unconditionally. Writes without a row identity are
// dropped since nothing could ever read them back.
func (o *Overlay) Set(identity, column, value string) {
	if identity == "" {
		return
	}
	cols := o.edits[identity]
	if cols == nil {
		cols = make(map[string]string)
		o.edits[identity] = cols
	}
	cols[Normalize(column)] = value
}

// Get returns the overlaid value for (identity, column) if one exists.
func (o *Overlay) Get(identity, column string) (string, bool) {
	v, ok := o.edits[identity][Normalize(column)]
	return v, ok
}

// ResetAll discards every draft edit.
func (o *Overlay) ResetAll() {
	o.edits = make(map[string]map[string]string)
}

// Empty reports whether the overlay holds no edits.
func (o *Overlay) Empty() bool { return len(o.edits) == 0 }

// ForIdentity returns a copy of the edits recorded for one identity,
// keyed by normalized header, or nil when there are none.
func (o *Overlay) ForIdentity(identity string) map[string]string {
	cols := o.edits[identity]
	if len(cols) == 0 {
		return nil
	}
	out := make(map[string]string, len(cols))
	for k, v := range cols {
		out[k] = v
	}
	return out
}

// Resolver reads cells for one dataset with the draft overlay applied.
// It holds no state of its own and is cheap to construct per render.
type Resolver struct {
	Data    Dataset
	Overlay *Overlay
	Tab     Tab
}

// Resolve returns the current value of a cell: the overlaid value when
// one exists and the column is not computed, else the dataset's raw value
// at the column's position (exact header match first, normalized
// fallback), else "". Derived fields are the calculator's job, never
// this layer's.
func (r Resolver) Resolve(identity string, row []string, column string) string {
	if identity != "" && RoleOf(r.Tab, column) != RoleComputed {
		if v, ok := r.Overlay.Get(identity, column); ok {
			return v
		}
	}
	return r.Data.Value(row, column)
}

// Edited reports whether a cell should highlight as changed: the column
// is editable on this tab and the resolved value differs from the
// dataset's original. Used for display only, never to gate Apply.
func (r Resolver) Edited(identity string, row []string, column string) bool {
	if RoleOf(r.Tab, column) != RoleEditable {
		return false
	}
	return r.Resolve(identity, row, column) != r.Data.Value(row, column)
}
