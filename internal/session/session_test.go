package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/reconsole/internal/grid"
	"github.com/jask/reconsole/internal/hub"
)

func testDataset() grid.Dataset {
	return grid.Dataset{
		Columns: []string{"[PRODUCT_CODE]", "TITLE", "INVOICE_UNIT_PRICE_EUR", "PRICE_BUY", "INVOICE_QTY"},
		Rows: [][]string{
			{"PL-A1", "Widget", "10.00", "8.00", "2"},
			{"PL-A2", "Gadget", "", "", "1"},
			{"PL-A3", "Sprocket", "5.00", "4.00", "3"},
			{"", "Orphan", "1.00", "1.00", "1"},
		},
	}
}

func readySession(t *testing.T) *Session {
	t.Helper()
	s := New("paul-lange", "biketrek", Options{PageSize: 2})
	req := s.BeginLoad("paul-lange:F100", grid.TabUpdates, false)
	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	require.Equal(t, StateReady, s.State())
	return s
}

func TestLoadLifecycle(t *testing.T) {
	t.Parallel()
	s := New("paul-lange", "biketrek", Options{PageSize: 2, FetchLimit: 300})
	require.Equal(t, StateIdle, s.State())

	req := s.BeginLoad("paul-lange:F100", grid.TabUpdates, true)
	require.Equal(t, StateLoading, s.State())
	require.Equal(t, "paul-lange", req.Supplier)
	require.Equal(t, "biketrek", req.Shop)
	require.Equal(t, grid.TabUpdates, req.DatasetRequest.Tab)
	require.True(t, req.Detail)
	require.Equal(t, 300, req.Limit)

	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	require.Equal(t, StateReady, s.State())
	require.Len(t, s.Dataset().Rows, 4)
	require.NotEmpty(t, s.Catalog().Visible(grid.TabUpdates))
}

func TestStaleResponseDiscarded(t *testing.T) {
	t.Parallel()
	s := New("paul-lange", "biketrek", Options{})
	slow := s.BeginLoad("paul-lange:F100", grid.TabUpdates, false)
	fast := s.BeginLoad("paul-lange:F100", grid.TabNew, false)

	stale := grid.Dataset{Columns: []string{"STALE"}, Rows: [][]string{{"x"}}}
	require.False(t, s.FinishLoad(slow.Token, stale, nil))
	require.Equal(t, StateLoading, s.State())

	require.True(t, s.FinishLoad(fast.Token, testDataset(), nil))
	require.Equal(t, StateReady, s.State())
	require.Equal(t, "[PRODUCT_CODE]", s.Dataset().Columns[0])

	// A stale error must not clobber the fresh dataset either.
	require.False(t, s.FinishLoad(slow.Token, grid.Dataset{}, errors.New("timeout")))
	require.Equal(t, StateReady, s.State())
	require.Empty(t, s.LastError())
}

func TestLoadFailureEntersErrorState(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	req := s.BeginLoad(s.InvoiceID(), grid.TabNew, false)
	require.True(t, s.FinishLoad(req.Token, grid.Dataset{}, errors.New("hub: status 502: bad gateway")))

	require.Equal(t, StateError, s.State())
	require.Contains(t, s.LastError(), "502")
	require.True(t, s.Dataset().Empty())

	retry := s.Reload()
	require.Equal(t, StateLoading, s.State())
	require.Greater(t, retry.Token, req.Token)
	require.Equal(t, grid.TabNew, retry.DatasetRequest.Tab)
}

func TestOverlayResetsOnEveryLoad(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	s.SetCell("A1", "PRICE_BUY", "9.99")
	require.True(t, s.HasEdits())

	row := s.Dataset().Rows[0]
	require.Equal(t, "9.99", s.Resolver().Resolve("A1", row, "PRICE_BUY"))

	req := s.BeginLoad(s.InvoiceID(), grid.TabUpdates, true)
	require.False(t, s.HasEdits())
	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	require.Equal(t, "8.00", s.Resolver().Resolve("A1", s.Dataset().Rows[0], "PRICE_BUY"))
}

func TestSelectionSurvivesTabButNotInvoiceChange(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	s.ToggleSelect("A1")
	require.Equal(t, 1, s.Selection().Count(grid.TabUpdates))

	req := s.BeginLoad(s.InvoiceID(), grid.TabNew, false)
	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	require.Equal(t, 1, s.Selection().Count(grid.TabUpdates))

	req = s.BeginLoad("paul-lange:F200", grid.TabUpdates, false)
	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	require.Zero(t, s.Selection().Count(grid.TabUpdates))
}

func TestApplyPayloadMinimality(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	s.ToggleSelect("A3")
	s.ToggleSelect("A1")
	s.SetCell("A1", "PRICE_BUY", "9.99")
	s.SetCell("A2", "PRICE_BUY", "7.77") // edited but not selected

	req, err := s.BeginApply()
	require.NoError(t, err)
	require.True(t, s.Applying())

	require.Equal(t, "paul-lange:F100", req.InvoiceID)
	require.Equal(t, "biketrek", req.Shop)
	require.Equal(t, "updates", req.Tab)
	require.Equal(t, []string{"A3", "A1"}, req.SelectedCodes)
	require.Equal(t, map[string]map[string]string{"A1": {"PRICE_BUY": "9.99"}}, req.Edits)
}

func TestApplyGates(t *testing.T) {
	t.Parallel()
	idle := New("paul-lange", "biketrek", Options{})
	require.ErrorIs(t, idle.CanApply(), ErrNotReady)

	s := readySession(t)
	require.ErrorIs(t, s.CanApply(), ErrNothingSelected)

	req := s.BeginLoad(s.InvoiceID(), grid.TabUnmatched, false)
	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	require.ErrorIs(t, s.CanApply(), ErrTabReadOnly)

	req = s.BeginLoad(s.InvoiceID(), grid.TabUpdates, false)
	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	s.ToggleSelect("A1")
	_, err := s.BeginApply()
	require.NoError(t, err)
	require.ErrorIs(t, s.CanApply(), ErrBusy)
	_, err = s.BeginSend()
	require.ErrorIs(t, err, ErrBusy)
}

func TestApplyFailureKeepsDraft(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	s.ToggleSelect("A1")
	s.SetCell("A1", "PRICE_BUY", "9.99")

	_, err := s.BeginApply()
	require.NoError(t, err)
	s.FinishApply(hub.ApplyResult{}, errors.New("hub: status 400: no matching rows"))

	require.False(t, s.Applying())
	require.Equal(t, StateReady, s.State())
	require.Equal(t, 1, s.Selection().Count(grid.TabUpdates))
	require.True(t, s.HasEdits())
	require.Nil(t, s.Applied())
}

func TestApplyThenSend(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	s.ToggleSelect("A1")

	_, err := s.BeginApply()
	require.NoError(t, err)
	s.FinishApply(hub.ApplyResult{
		SelectedFiles: map[string]string{"updates": "suppliers/paul-lange/imports/upgates_selected/F100_sel.csv"},
		HistoryEntry:  "suppliers/paul-lange/invoices/history/F100_apply_1.json",
	}, nil)
	require.NotNil(t, s.Applied())

	req, err := s.BeginSend()
	require.NoError(t, err)
	require.True(t, s.Sending())
	require.Equal(t, "paul-lange:F100", req.InvoiceID)
	require.Equal(t, "updates", req.Tab)
	require.Equal(t, []string{"suppliers/paul-lange/imports/upgates_selected/F100_sel.csv"}, req.SelectedFiles)
	require.Equal(t, hub.SendModeUpgatesCSV, req.Mode)

	s.FinishSend(hub.SendResult{Status: "ok"}, nil)
	require.False(t, s.Sending())

	s.SetHistory([]hub.HistoryEntry{{Type: "send"}, {Type: "apply"}})
	require.Len(t, s.History(), 2)
}

func TestSendRequiresSameContext(t *testing.T) {
	t.Parallel()
	s := readySession(t)

	_, err := s.BeginSend()
	require.ErrorIs(t, err, ErrNothingApplied)

	s.ToggleSelect("A1")
	_, err = s.BeginApply()
	require.NoError(t, err)
	s.FinishApply(hub.ApplyResult{SelectedFiles: map[string]string{"updates": "out.csv"}}, nil)

	req := s.BeginLoad(s.InvoiceID(), grid.TabNew, false)
	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	require.Nil(t, s.Applied())
	_, err = s.BeginSend()
	require.ErrorIs(t, err, ErrContextChanged)

	// Back on the original tab the stored output is valid again.
	req = s.BeginLoad(s.InvoiceID(), grid.TabUpdates, false)
	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	require.NotNil(t, s.Applied())
	_, err = s.BeginSend()
	require.NoError(t, err)
}

func TestPaginationWindows(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	require.Equal(t, 4, s.TotalRows())
	require.Equal(t, 2, s.PageCount())

	require.Len(t, s.PageRows(), 2)
	require.Equal(t, []string{"A1", "A2"}, s.PageIdentities())

	s.NextPage()
	require.Equal(t, 1, s.Page())
	// The orphan row has no identity and cannot be addressed.
	require.Equal(t, []string{"A3"}, s.PageIdentities())

	s.NextPage()
	require.Equal(t, 1, s.Page())
	s.PrevPage()
	s.PrevPage()
	s.PrevPage()
	require.Zero(t, s.Page())
}

func TestFilterNarrowsAndResetsPage(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	s.NextPage()
	require.Equal(t, 1, s.Page())

	require.NoError(t, s.SetFilter("INVOICE_QTY >= 2"))
	require.Zero(t, s.Page())
	require.Equal(t, 2, s.TotalRows())
	require.Equal(t, []string{"A1", "A3"}, s.PageIdentities())
	require.Equal(t, "INVOICE_QTY >= 2", s.Filter())

	require.Error(t, s.SetFilter("TITLE =="))
	require.Equal(t, 2, s.TotalRows())

	require.NoError(t, s.SetFilter(""))
	require.Equal(t, 4, s.TotalRows())
}

func TestToggleSelectAllIsPageScoped(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	s.ToggleSelectAll()
	require.Equal(t, 2, s.Selection().Count(grid.TabUpdates))

	s.NextPage()
	s.ToggleSelectAll()
	require.Equal(t, 3, s.Selection().Count(grid.TabUpdates))

	s.ToggleSelectAll()
	require.Equal(t, 2, s.Selection().Count(grid.TabUpdates))
	require.True(t, s.Selection().Has(grid.TabUpdates, "A1"))
	require.True(t, s.Selection().Has(grid.TabUpdates, "A2"))
}

func TestSetCellGates(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	s.SetCell("A1", "PRODUCT_CODE", "hijack")
	s.SetCell("A1", "BUY_DELTA_EUR", "0.00")
	require.False(t, s.HasEdits())

	req := s.BeginLoad(s.InvoiceID(), grid.TabUnmatched, false)
	require.True(t, s.FinishLoad(req.Token, testDataset(), nil))
	s.SetCell("A1", "TITLE", "nope")
	require.False(t, s.HasEdits())
}

func TestPresetsFlowThroughCatalog(t *testing.T) {
	t.Parallel()
	s := readySession(t)
	s.InstallPresets(map[grid.Tab][]string{grid.TabUpdates: {"TITLE", "[PRODUCT_CODE]"}})
	require.Equal(t, []string{"TITLE", "[PRODUCT_CODE]"}, s.Catalog().Visible(grid.TabUpdates))

	s.ApplyPreset(grid.TabUpdates, []string{"INVOICE_QTY"})
	require.Equal(t, []string{"INVOICE_QTY"}, s.Catalog().Visible(grid.TabUpdates))
}
