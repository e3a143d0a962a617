// Package hub is the HTTP client for the inventory hub REST API, the
// service that owns invoice CSVs, shop exports and the import pipeline.
// The console never touches files directly; everything goes through here.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jask/reconsole/internal/grid"
	"github.com/jask/reconsole/internal/util/logx"
)

// defaultLimit bounds a dataset fetch when the caller does not say
// otherwise. The hub caps file previews at 1000 rows.
const defaultLimit = 400

type Client struct {
	httpClient *http.Client
	baseURL    string
}

type Config struct {
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: hc, baseURL: cfg.BaseURL}
}

// HubError is any non-2xx answer from the hub. Body holds the server's
// detail message when one could be extracted.
type HubError struct {
	Status int
	Body   string
}

func (e *HubError) Error() string {
	return fmt.Sprintf("hub: status %d: %s", e.Status, e.Body)
}

// FetchInvoices lists the supplier's invoice index for the picker.
func (c *Client) FetchInvoices(ctx context.Context, supplier string) ([]Invoice, error) {
	idx, err := getJSON[invoiceIndex](ctx, c, "/suppliers/"+url.PathEscape(supplier)+"/invoices/index")
	if err != nil {
		return nil, fmt.Errorf("fetch invoices: %w", err)
	}
	return idx.Invoices, nil
}

// FetchDataset loads one tab's rows. Detail mode on the updates tab uses
// the hub's enriched preview (server-side join against the shop export);
// all other combinations read the tab's output CSV through the file
// preview endpoint, whose first row is the header.
func (c *Client) FetchDataset(ctx context.Context, req DatasetRequest) (grid.Dataset, error) {
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Detail && req.Tab == grid.TabUpdates {
		return c.fetchEnriched(ctx, req)
	}
	return c.fetchRaw(ctx, req)
}

func (c *Client) fetchEnriched(ctx context.Context, req DatasetRequest) (grid.Dataset, error) {
	q := url.Values{}
	q.Set("shop", req.Shop)
	q.Set("tab", string(req.Tab))
	q.Set("offset", strconv.Itoa(req.Offset))
	q.Set("limit", strconv.Itoa(req.Limit))
	path := fmt.Sprintf("/suppliers/%s/invoices/%s/enriched-preview?%s",
		url.PathEscape(req.Supplier), url.PathEscape(req.InvoiceID), q.Encode())

	p, err := getJSON[previewPayload](ctx, c, path)
	if err != nil {
		return grid.Dataset{}, fmt.Errorf("fetch enriched preview: %w", err)
	}
	return grid.Dataset{Columns: p.Columns, Rows: p.Rows}, nil
}

func (c *Client) fetchRaw(ctx context.Context, req DatasetRequest) (grid.Dataset, error) {
	outsPath := fmt.Sprintf("/suppliers/%s/invoices/%s/csv-outputs",
		url.PathEscape(req.Supplier), url.PathEscape(req.InvoiceID))
	outs, err := getJSON[csvOutputs](ctx, c, outsPath)
	if err != nil {
		return grid.Dataset{}, fmt.Errorf("fetch csv outputs: %w", err)
	}

	ent := outs.entry(req.Tab)
	if ent == nil || ent.Relpath == "" {
		// The pipeline produced no file for this tab.
		return grid.Dataset{}, nil
	}

	q := url.Values{}
	q.Set("relpath", ent.Relpath)
	// The preview limit counts the header row too.
	q.Set("limit", strconv.Itoa(req.Limit+1))
	rows, err := getJSON[[][]string](ctx, c, "/files/preview?"+q.Encode())
	if err != nil {
		return grid.Dataset{}, fmt.Errorf("fetch file preview: %w", err)
	}
	if len(rows) == 0 {
		return grid.Dataset{}, nil
	}
	return grid.Dataset{Columns: rows[0], Rows: rows[1:]}, nil
}

// FetchPreset reads the shop's saved column presets, one list per tab.
// Tabs without a saved list are absent from the result.
func (c *Client) FetchPreset(ctx context.Context, shop string) (map[grid.Tab][]string, error) {
	doc, err := getJSON[map[string]any](ctx, c, "/shops/"+url.PathEscape(shop)+"/config")
	if err != nil {
		return nil, fmt.Errorf("fetch shop config: %w", err)
	}
	cols := childMap(childMap(childMap(doc, "console"), "import_console"), "columns")
	out := make(map[grid.Tab][]string)
	for _, tab := range grid.Tabs() {
		raw, ok := cols[string(tab)].([]any)
		if !ok {
			continue
		}
		list := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				list = append(list, s)
			}
		}
		if len(list) > 0 {
			out[tab] = list
		}
	}
	return out, nil
}

// SavePreset persists one tab's column list into the shop config. The
// config document belongs to the hub, so only the columns subtree is
// rewritten: read the document, set the one key, put it back.
func (c *Client) SavePreset(ctx context.Context, shop string, tab grid.Tab, cols []string) error {
	path := "/shops/" + url.PathEscape(shop) + "/config"
	doc, err := getJSON[map[string]any](ctx, c, path)
	if err != nil {
		var he *HubError
		if errors.As(err, &he) && he.Status == http.StatusNotFound {
			doc = map[string]any{}
		} else {
			return fmt.Errorf("load shop config: %w", err)
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	columns := ensureMap(ensureMap(ensureMap(doc, "console"), "import_console"), "columns")
	columns[string(tab)] = cols
	if _, err := sendJSON[map[string]any](ctx, c, http.MethodPut, path, doc); err != nil {
		return fmt.Errorf("save shop config: %w", err)
	}
	return nil
}

// Apply commits the current selection and edits for one invoice tab.
func (c *Client) Apply(ctx context.Context, supplier string, req ApplyRequest) (ApplyResult, error) {
	path := "/suppliers/" + url.PathEscape(supplier) + "/imports/apply"
	res, err := sendJSON[ApplyResult](ctx, c, http.MethodPost, path, req)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("apply import: %w", err)
	}
	return res, nil
}

// Send forwards previously applied output files to the shop channel.
func (c *Client) Send(ctx context.Context, supplier string, req SendRequest) (SendResult, error) {
	path := "/suppliers/" + url.PathEscape(supplier) + "/imports/send"
	res, err := sendJSON[SendResult](ctx, c, http.MethodPost, path, req)
	if err != nil {
		return SendResult{}, fmt.Errorf("send import: %w", err)
	}
	return res, nil
}

// FetchHistory returns the invoice's processing timeline, newest first.
func (c *Client) FetchHistory(ctx context.Context, supplier, invoiceID string, limit int) ([]HistoryEntry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := fmt.Sprintf("/suppliers/%s/invoices/%s/history",
		url.PathEscape(supplier), url.PathEscape(invoiceID))
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	h, err := getJSON[historyPayload](ctx, c, path)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return h.Items, nil
}

func getJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	return sendJSON[T](ctx, c, http.MethodGet, path, nil)
}

func sendJSON[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var zero T

	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logx.Debugf("hub: %s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("hub request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, errorFrom(resp)
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

func errorFrom(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := string(bytes.TrimSpace(raw))
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
		msg = detail.Detail
	}
	return &HubError{Status: resp.StatusCode, Body: msg}
}

func childMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func ensureMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	child := map[string]any{}
	m[key] = child
	return child
}
