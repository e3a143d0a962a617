// Package session holds the mutable state of one reconciliation session:
// the invoice/tab/detail tuple on screen, the loaded dataset with its
// catalog, overlay and selection, and the apply/send commit lifecycle.
//
// All mutation happens on the UI loop. Network calls run as commands
// elsewhere and their results re-enter through the Finish methods, where
// a monotonic request token discards responses that a newer request has
// superseded.
package session

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/jask/reconsole/internal/grid"
	"github.com/jask/reconsole/internal/hub"
	"github.com/jask/reconsole/internal/util/logx"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

var (
	ErrNotReady        = errors.New("no dataset loaded")
	ErrNothingSelected = errors.New("nothing selected")
	ErrTabReadOnly     = errors.New("unmatched rows cannot be applied")
	ErrNothingApplied  = errors.New("apply a selection first")
	ErrContextChanged  = errors.New("last apply belongs to a different invoice or tab")
	ErrBusy            = errors.New("another operation is still running")
)

// Hub is the slice of the inventory hub API the console drives on a
// session's behalf. *hub.Client is the production implementation.
type Hub interface {
	FetchDataset(ctx context.Context, req hub.DatasetRequest) (grid.Dataset, error)
	FetchPreset(ctx context.Context, shop string) (map[grid.Tab][]string, error)
	SavePreset(ctx context.Context, shop string, tab grid.Tab, cols []string) error
	Apply(ctx context.Context, supplier string, req hub.ApplyRequest) (hub.ApplyResult, error)
	Send(ctx context.Context, supplier string, req hub.SendRequest) (hub.SendResult, error)
	FetchHistory(ctx context.Context, supplier, invoiceID string, limit int) ([]hub.HistoryEntry, error)
}

type Options struct {
	PageSize   int
	FetchLimit int
}

const defaultPageSize = 25

// Session is one supplier/shop reconciliation context.
type Session struct {
	ID       string
	Supplier string
	Shop     string

	pageSize   int
	fetchLimit int

	state   State
	lastErr string

	invoiceID string
	tab       grid.Tab
	detail    bool

	data      grid.Dataset
	catalog   *grid.Catalog
	overlay   *grid.Overlay
	selection *grid.Selection
	filter    *grid.RowFilter
	page      int

	token    uint64
	applying bool
	sending  bool

	applied        *hub.ApplyResult
	appliedTab     grid.Tab
	appliedInvoice string

	history []hub.HistoryEntry
}

func New(supplier, shop string, opt Options) *Session {
	pageSize := opt.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Session{
		ID:         uuid.NewString(),
		Supplier:   supplier,
		Shop:       shop,
		pageSize:   pageSize,
		fetchLimit: opt.FetchLimit,
		state:      StateIdle,
		tab:        grid.TabUpdates,
		catalog:    grid.NewCatalog(),
		overlay:    grid.NewOverlay(),
		selection:  grid.NewSelection(),
	}
}

func (s *Session) State() State          { return s.state }
func (s *Session) LastError() string     { return s.lastErr }
func (s *Session) InvoiceID() string     { return s.invoiceID }
func (s *Session) Tab() grid.Tab         { return s.tab }
func (s *Session) Detail() bool          { return s.detail }
func (s *Session) Applying() bool        { return s.applying }
func (s *Session) Sending() bool         { return s.sending }
func (s *Session) Dataset() grid.Dataset { return s.data }

func (s *Session) Catalog() *grid.Catalog     { return s.catalog }
func (s *Session) Selection() *grid.Selection { return s.selection }

// Resolver views the current dataset through the edit overlay.
func (s *Session) Resolver() grid.Resolver {
	return grid.Resolver{Data: s.data, Overlay: s.overlay, Tab: s.tab}
}

// LoadRequest describes one dataset fetch. Token ties the eventual
// response back to the request that issued it.
type LoadRequest struct {
	Token uint64
	hub.DatasetRequest
}

// BeginLoad switches the session to a new invoice/tab/detail tuple and
// returns the fetch to run. The overlay is a draft scoped to the
// displayed dataset, so it resets on every load; the selection survives
// everything except an invoice change.
func (s *Session) BeginLoad(invoiceID string, tab grid.Tab, detail bool) LoadRequest {
	invoiceChanged := invoiceID != s.invoiceID
	s.invoiceID = invoiceID
	s.tab = tab
	s.detail = detail

	s.state = StateLoading
	s.overlay.ResetAll()
	if invoiceChanged {
		s.selection.ClearAll()
		s.applied = nil
		s.history = nil
	}
	s.page = 0
	s.token++

	logx.Infof("session %s: load invoice=%s tab=%s detail=%v token=%d", s.ID, invoiceID, tab, detail, s.token)
	return LoadRequest{
		Token: s.token,
		DatasetRequest: hub.DatasetRequest{
			Supplier:  s.Supplier,
			InvoiceID: invoiceID,
			Shop:      s.Shop,
			Tab:       tab,
			Detail:    detail,
			Limit:     s.fetchLimit,
		},
	}
}

// Reload re-issues the fetch for the current tuple, for manual retry.
func (s *Session) Reload() LoadRequest {
	return s.BeginLoad(s.invoiceID, s.tab, s.detail)
}

// FinishLoad installs a fetch result. A response whose token is not the
// latest issued one belongs to a superseded request and is dropped; the
// return value reports whether the result was taken.
func (s *Session) FinishLoad(token uint64, ds grid.Dataset, err error) bool {
	if token != s.token {
		logx.Debugf("session %s: dropping stale dataset response (token=%d latest=%d)", s.ID, token, s.token)
		return false
	}
	if err != nil {
		s.state = StateError
		s.lastErr = err.Error()
		s.data = grid.Dataset{}
		logx.Errorf("session %s: load failed: %v", s.ID, err)
		return true
	}
	s.state = StateReady
	s.lastErr = ""
	s.data = ds
	s.logDropped(s.catalog.SetColumns(ds.Columns))
	s.clampPage()
	logx.Infof("session %s: dataset ready, %d rows, %d columns", s.ID, len(ds.Rows), len(ds.Columns))
	return true
}

// InstallPresets loads the shop's saved column lists into the catalog.
func (s *Session) InstallPresets(saved map[grid.Tab][]string) {
	s.logDropped(s.catalog.SetPresets(saved))
}

// ApplyPreset swaps the current tab's visible columns for this session
// only; persistence goes through the hub separately.
func (s *Session) ApplyPreset(tab grid.Tab, cols []string) {
	s.logDropped(s.catalog.ApplyOnce(tab, cols))
}

func (s *Session) logDropped(dropped []grid.Dropped) {
	for _, d := range dropped {
		if d.Suggestion != "" {
			logx.Infof("session %s: preset column %q not in %s dataset (closest match %q)", s.ID, d.Column, d.Tab, d.Suggestion)
		} else {
			logx.Infof("session %s: preset column %q not in %s dataset", s.ID, d.Column, d.Tab)
		}
	}
}

// SetFilter parses and installs a row filter expression; blank clears
// it. The page resets because the row universe changed.
func (s *Session) SetFilter(input string) error {
	f, err := grid.NewRowFilter(input)
	if err != nil {
		return err
	}
	s.filter = f
	s.page = 0
	return nil
}

func (s *Session) Filter() string { return s.filter.String() }

// SetCell records a draft edit. Identity and computed columns never
// take edits, and read-only tabs take none at all.
func (s *Session) SetCell(identity, column, value string) {
	if s.state != StateReady || grid.RoleOf(s.tab, column) != grid.RoleEditable {
		return
	}
	s.overlay.Set(identity, column, value)
}

func (s *Session) HasEdits() bool { return !s.overlay.Empty() }

// DiscardEdits drops every draft edit for the current dataset.
func (s *Session) DiscardEdits() { s.overlay.ResetAll() }

func (s *Session) visibleRows() [][]string {
	if s.state != StateReady {
		return nil
	}
	return s.filter.Filter(s.Resolver(), s.data.Rows)
}

// PageRows returns the current page of filtered rows.
func (s *Session) PageRows() [][]string {
	rows := s.visibleRows()
	start := s.page * s.pageSize
	if start >= len(rows) {
		return nil
	}
	return rows[start:min(start+s.pageSize, len(rows))]
}

// PageIdentities returns the resolvable identities of the current page.
func (s *Session) PageIdentities() []string {
	return s.data.Identities(s.PageRows())
}

func (s *Session) Page() int      { return s.page }
func (s *Session) TotalRows() int { return len(s.visibleRows()) }

func (s *Session) PageCount() int {
	n := len(s.visibleRows())
	if n == 0 {
		return 1
	}
	return (n + s.pageSize - 1) / s.pageSize
}

func (s *Session) NextPage() {
	if s.page < s.PageCount()-1 {
		s.page++
	}
}

func (s *Session) PrevPage() {
	if s.page > 0 {
		s.page--
	}
}

func (s *Session) clampPage() {
	if s.page >= s.PageCount() {
		s.page = s.PageCount() - 1
	}
	if s.page < 0 {
		s.page = 0
	}
}

// ToggleSelect flips one row's membership in the current tab's selection.
func (s *Session) ToggleSelect(identity string) {
	s.selection.Toggle(s.tab, identity, !s.selection.Has(s.tab, identity))
}

// ToggleSelectAll selects every resolvable row on the current page, or
// clears the page when all of them are already selected. Other pages'
// selections are untouched either way.
func (s *Session) ToggleSelectAll() {
	ids := s.PageIdentities()
	s.selection.SetPage(s.tab, ids, !s.selection.AllSelected(s.tab, ids))
}

// CanApply reports whether an apply could start right now.
func (s *Session) CanApply() error {
	if s.state != StateReady {
		return ErrNotReady
	}
	if !grid.TabAllowsEdits(s.tab) {
		return ErrTabReadOnly
	}
	if s.applying || s.sending {
		return ErrBusy
	}
	if s.selection.Count(s.tab) == 0 {
		return ErrNothingSelected
	}
	return nil
}

// BeginApply builds the commit payload and marks the apply in flight.
// The payload carries only the selected identities, in the order they
// were selected, and only the overlay entries belonging to them. Full
// rows and untouched columns never leave the client; the hub owns the
// source CSV and does its own filtering.
func (s *Session) BeginApply() (hub.ApplyRequest, error) {
	if err := s.CanApply(); err != nil {
		return hub.ApplyRequest{}, err
	}
	codes := s.selection.Selected(s.tab)
	edits := make(map[string]map[string]string)
	for _, code := range codes {
		if e := s.overlay.ForIdentity(code); len(e) > 0 {
			edits[code] = e
		}
	}
	s.applying = true
	logx.Infof("session %s: apply %d rows (%d edited) invoice=%s tab=%s", s.ID, len(codes), len(edits), s.invoiceID, s.tab)
	return hub.ApplyRequest{
		InvoiceID:     s.invoiceID,
		Shop:          s.Shop,
		Tab:           string(s.tab),
		SelectedCodes: codes,
		Edits:         edits,
	}, nil
}

// FinishApply records the hub's answer. On failure the session stays
// Ready with selection and overlay intact; the user retries manually.
func (s *Session) FinishApply(res hub.ApplyResult, err error) {
	s.applying = false
	if err != nil {
		logx.Warnf("session %s: apply failed: %v", s.ID, err)
		return
	}
	s.applied = &res
	s.appliedTab = s.tab
	s.appliedInvoice = s.invoiceID
	logx.Infof("session %s: applied, output %v", s.ID, res.SelectedFiles)
}

// Applied returns the last successful apply result for the current
// invoice and tab, or nil.
func (s *Session) Applied() *hub.ApplyResult {
	if s.applied == nil || s.appliedInvoice != s.invoiceID || s.appliedTab != s.tab {
		return nil
	}
	return s.applied
}

// BeginSend builds the transfer payload from the stored apply output
// and marks the send in flight. Send is only reachable after an apply
// in the same invoice and tab context.
func (s *Session) BeginSend() (hub.SendRequest, error) {
	if s.applying || s.sending {
		return hub.SendRequest{}, ErrBusy
	}
	if s.applied == nil {
		return hub.SendRequest{}, ErrNothingApplied
	}
	if s.appliedInvoice != s.invoiceID || s.appliedTab != s.tab {
		return hub.SendRequest{}, ErrContextChanged
	}
	files := s.appliedFiles()
	if len(files) == 0 {
		return hub.SendRequest{}, ErrNothingApplied
	}
	s.sending = true
	logx.Infof("session %s: send %d file(s) invoice=%s tab=%s", s.ID, len(files), s.invoiceID, s.tab)
	return hub.SendRequest{
		InvoiceID:     s.invoiceID,
		Tab:           string(s.tab),
		SelectedFiles: files,
		Mode:          hub.SendModeUpgatesCSV,
	}, nil
}

func (s *Session) appliedFiles() []string {
	if p := s.applied.SelectedFiles[string(s.appliedTab)]; p != "" {
		return []string{p}
	}
	files := make([]string, 0, len(s.applied.SelectedFiles))
	for _, p := range s.applied.SelectedFiles {
		if p != "" {
			files = append(files, p)
		}
	}
	sort.Strings(files)
	return files
}

// FinishSend records the hub's answer. Failures keep the stored apply
// output so the send can be retried.
func (s *Session) FinishSend(res hub.SendResult, err error) {
	s.sending = false
	if err != nil {
		logx.Warnf("session %s: send failed: %v", s.ID, err)
		return
	}
	logx.Infof("session %s: sent, status %s", s.ID, res.Status)
}

// SetHistory installs a freshly fetched timeline.
func (s *Session) SetHistory(items []hub.HistoryEntry) { s.history = items }

func (s *Session) History() []hub.HistoryEntry { return s.history }
