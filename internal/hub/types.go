package hub

import "github.com/jask/reconsole/internal/grid"

// Invoice is one entry of a supplier's invoice index.
type Invoice struct {
	ID              string `json:"invoice_id"`
	Number          string `json:"number"`
	IssueDate       string `json:"issue_date"`
	Status          string `json:"status"`
	HistoryCount    int    `json:"history_count"`
	LastProcessedAt string `json:"last_processed_at"`
}

type invoiceIndex struct {
	Supplier string    `json:"supplier"`
	Count    int       `json:"count"`
	Invoices []Invoice `json:"invoices"`
}

// DatasetRequest selects which reconciliation dataset to fetch. Detail on
// the updates tab asks the hub for the pre-joined preview; everything else
// reads the tab's output CSV as-is.
type DatasetRequest struct {
	Supplier  string
	InvoiceID string
	Shop      string
	Tab       grid.Tab
	Detail    bool
	Offset    int
	Limit     int
}

type previewPayload struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type csvOutput struct {
	Relpath string   `json:"relpath"`
	Headers []string `json:"headers"`
	Rows    int      `json:"rows"`
}

type csvOutputs struct {
	Invoice   string     `json:"invoice"`
	Updates   *csvOutput `json:"updates"`
	New       *csvOutput `json:"new"`
	Unmatched *csvOutput `json:"unmatched"`
}

func (o csvOutputs) entry(tab grid.Tab) *csvOutput {
	switch tab {
	case grid.TabUpdates:
		return o.Updates
	case grid.TabNew:
		return o.New
	case grid.TabUnmatched:
		return o.Unmatched
	}
	return nil
}

// ApplyRequest commits a selection of rows, plus any cell edits, for one
// invoice and tab. The hub filters its output CSV down to the selected
// product codes and writes the result as a new selected file.
type ApplyRequest struct {
	InvoiceID     string                       `json:"invoice_id"`
	Shop          string                       `json:"shop"`
	Tab           string                       `json:"tab"`
	SelectedCodes []string                     `json:"selected_product_codes"`
	Edits         map[string]map[string]string `json:"edits"`
}

type ApplyResult struct {
	SelectedFiles map[string]string `json:"selected_files"`
	HistoryEntry  string            `json:"history_entry"`
	Sent          bool              `json:"sent"`
}

// SendModeUpgatesCSV is the only transfer mode the hub implements today.
const SendModeUpgatesCSV = "upgates-csv"

type SendRequest struct {
	InvoiceID     string   `json:"invoice_id"`
	Tab           string   `json:"tab"`
	SelectedFiles []string `json:"selected_files"`
	Mode          string   `json:"mode"`
}

type SentRecord struct {
	HistoryEntry string `json:"history_entry"`
	SentFile     string `json:"sent_file"`
}

type SendResult struct {
	Status string       `json:"status"`
	Sent   []SentRecord `json:"sent"`
}

// HistoryEntry is one item of an invoice's processing timeline. Apply and
// send records carry different file fields; absent ones stay empty.
type HistoryEntry struct {
	Type          string `json:"type"`
	Timestamp     string `json:"timestamp"`
	Tab           string `json:"tab"`
	Shop          string `json:"shop"`
	InvoiceNo     string `json:"invoice_no"`
	OutputFile    string `json:"output_file"`
	SentFile      string `json:"sent_file"`
	SelectedCount int    `json:"selected_count"`
}

type historyPayload struct {
	Invoice string         `json:"invoice"`
	Items   []HistoryEntry `json:"items"`
}
