package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowFilterBlankMatchesAll(t *testing.T) {
	t.Parallel()

	f, err := NewRowFilter("   ")
	require.NoError(t, err)
	require.Nil(t, f)

	r := newResolver(TabUpdates)
	require.True(t, f.Match(r, "A1", r.Data.Rows[0]))
	require.Len(t, f.Filter(r, r.Data.Rows), len(r.Data.Rows))
}

func TestRowFilterInvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := NewRowFilter("INVOICE_QTY >")
	require.Error(t, err)
}

func TestRowFilterNumericComparison(t *testing.T) {
	t.Parallel()

	r := newResolver(TabUpdates)
	f, err := NewRowFilter("INVOICE_QTY >= 2")
	require.NoError(t, err)

	rows := f.Filter(r, r.Data.Rows)
	require.Len(t, rows, 1)
	require.Equal(t, "A1", r.Data.Identity(rows[0]))
}

func TestRowFilterCurrencyCellsBindNumeric(t *testing.T) {
	t.Parallel()

	r := newResolver(TabUpdates)
	f, err := NewRowFilter("[PRICE_WITH_VAT Predvolené] > 10")
	require.NoError(t, err)

	rows := f.Filter(r, r.Data.Rows)
	require.Len(t, rows, 1)
	require.Equal(t, "Widget", r.Data.Value(rows[0], "TITLE"))
}

func TestRowFilterStringEquality(t *testing.T) {
	t.Parallel()

	r := newResolver(TabUpdates)
	f, err := NewRowFilter("TITLE == 'Gadget'")
	require.NoError(t, err)

	rows := f.Filter(r, r.Data.Rows)
	require.Len(t, rows, 1)
	require.Equal(t, "A2", r.Data.Identity(rows[0]))
}

func TestRowFilterSeesEdits(t *testing.T) {
	t.Parallel()

	r := newResolver(TabUpdates)
	f, err := NewRowFilter("INVOICE_QTY > 5")
	require.NoError(t, err)
	require.Empty(t, f.Filter(r, r.Data.Rows))

	r.Overlay.Set("A2", "INVOICE_QTY", "9")
	rows := f.Filter(r, r.Data.Rows)
	require.Len(t, rows, 1)
	require.Equal(t, "A2", r.Data.Identity(rows[0]))
}

func TestRowFilterComputedFields(t *testing.T) {
	t.Parallel()

	r := newResolver(TabUpdates)
	f, err := NewRowFilter("BUY_DELTA_EUR != ''")
	require.NoError(t, err)

	rows := f.Filter(r, r.Data.Rows)
	require.Len(t, rows, 2) // A1 and the identityless row both price
}

func TestRowFilterUnknownColumnExcludes(t *testing.T) {
	t.Parallel()

	r := newResolver(TabUpdates)
	f, err := NewRowFilter("NOPE == 1")
	require.NoError(t, err)
	require.Empty(t, f.Filter(r, r.Data.Rows))
}
