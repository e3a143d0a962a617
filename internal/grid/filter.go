package grid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// RowFilter narrows the visible rows to those matching an operator
// expression over resolved cell values, e.g. STOCK_DELTA > 0 &&
// INVOICE_QTY >= 2. Normalized column names are the identifiers; names
// containing spaces use the bracket form: [PRICE_WITH_VAT Predvolené].
type RowFilter struct {
	expr *govaluate.EvaluableExpression
	raw  string
}

// NewRowFilter compiles an expression. Blank input yields a nil filter,
// which matches everything. A malformed expression fails here so the
// caller can surface it without touching the current window.
func NewRowFilter(input string) (*RowFilter, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	expr, err := govaluate.NewEvaluableExpression(input)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", input, err)
	}
	return &RowFilter{expr: expr, raw: input}, nil
}

// String returns the source expression, "" for a nil filter.
func (f *RowFilter) String() string {
	if f == nil {
		return ""
	}
	return f.raw
}

// Match evaluates the filter for one row. Cells bind as numbers when
// they parse (currency decoration tolerated) and as strings otherwise.
// Edits are visible to the filter because values come from the resolver.
// A row that errors during evaluation (e.g. a mistyped column name) is
// excluded rather than failing the whole view.
func (f *RowFilter) Match(r Resolver, identity string, row []string) bool {
	if f == nil || f.expr == nil {
		return true
	}
	params := make(map[string]any, len(r.Data.Columns)+1)
	for _, col := range r.Data.Columns {
		params[Normalize(col)] = cellParam(r.Display(identity, row, col))
	}
	for name := range computedFields {
		if _, ok := params[name]; !ok {
			params[name] = cellParam(r.Compute(identity, row, name))
		}
	}
	out, err := f.expr.Evaluate(params)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// Filter returns the rows of rows matching f, in order. A nil filter
// returns rows unchanged.
func (f *RowFilter) Filter(r Resolver, rows [][]string) [][]string {
	if f == nil || f.expr == nil {
		return rows
	}
	idx := r.Data.IdentityColumn()
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if f.Match(r, r.Data.identityAt(idx, row), row) {
			out = append(out, row)
		}
	}
	return out
}

// cellParam offers a cell to the expression engine: numeric when it
// cleans to a parseable number, the display string otherwise.
func cellParam(v string) any {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	cleaned := strings.ToUpper(numberCleaner.Replace(s))
	for _, tok := range currencyTokens {
		cleaned = strings.ReplaceAll(cleaned, tok, "")
	}
	if n, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return n
	}
	return v
}
