package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Derived field names. Their values are always calculated from other
// resolved cells and never read from the dataset or overlay.
const (
	FieldBuyDelta   = "BUY_DELTA_EUR"
	FieldPriceDelta = "PRICE_DELTA_EUR"
	FieldProfitEUR  = "PROFIT_VS_INVOICE_EUR"
	FieldProfitPct  = "PROFIT_VS_INVOICE_PCT"
	FieldStockDelta = "STOCK_DELTA"
	FieldStockAfter = "STOCK_AFTER"
)

var computedFields = map[string]bool{
	FieldBuyDelta:   true,
	FieldPriceDelta: true,
	FieldProfitEUR:  true,
	FieldProfitPct:  true,
	FieldStockDelta: true,
	FieldStockAfter: true,
}

// Input column candidates per formula operand, in priority order. The
// first candidate that resolves to a non-blank cell wins, mirroring how
// the upstream exports name these columns across shops and suppliers.
var (
	invoiceUnitColumns = []string{"INVOICE_UNIT_PRICE_EUR", "UNIT_PRICE_INC_EUR"}
	shopRetailColumns  = []string{"PRICE_WITH_VAT „Predvolené“"}
	shopBuyColumns     = []string{"PRICE_BUY", "BUY_PRICE", "CENA_NAKUP"}
	shopStockColumns   = []string{"SHOP_STOCK_CURRENT", "STOCK"}
	invoiceQtyColumns  = []string{"INVOICE_QTY", "QTY"}
)

var numberCleaner = strings.NewReplacer(" ", "", " ", "", ",", ".")

// currency tokens tolerated in numeric cells, compared uppercased.
var currencyTokens = []string{"€", "EUR", "KČ", "CZK"}

// ParseNumber reads an export- or operator-formatted numeric cell:
// whitespace (including NBSP) is stripped, a decimal comma becomes a
// point and currency tokens are dropped. Anything unparseable is 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ToUpper(numberCleaner.Replace(s))
	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Compute renders one derived field for a row, reading every input
// through Resolve so unsaved edits feed the formulas immediately. Fields
// outside the derived set pass through to plain resolution.
func (r Resolver) Compute(identity string, row []string, field string) string {
	switch Normalize(field) {
	case FieldBuyDelta:
		inv := r.number(identity, row, invoiceUnitColumns)
		buy := r.number(identity, row, shopBuyColumns)
		return formatDelta(inv-buy, inv != 0 || buy != 0)
	case FieldPriceDelta:
		inv := r.number(identity, row, invoiceUnitColumns)
		retail := r.number(identity, row, shopRetailColumns)
		return formatDelta(inv-retail, inv != 0 || retail != 0)
	case FieldProfitEUR:
		inv := r.number(identity, row, invoiceUnitColumns)
		retail := r.number(identity, row, shopRetailColumns)
		profit := profitEUR(inv, retail)
		if profit == 0 && inv == 0 {
			return ""
		}
		return fmt.Sprintf("%.2f €", profit)
	case FieldProfitPct:
		inv := r.number(identity, row, invoiceUnitColumns)
		retail := r.number(identity, row, shopRetailColumns)
		if retail == 0 {
			return ""
		}
		return fmt.Sprintf("%.1f %%", profitEUR(inv, retail)/retail*100)
	case FieldStockDelta:
		return formatQty(r.number(identity, row, invoiceQtyColumns))
	case FieldStockAfter:
		stock := r.number(identity, row, shopStockColumns)
		qty := r.number(identity, row, invoiceQtyColumns)
		return formatQty(stock + qty)
	}
	return r.Resolve(identity, row, field)
}

// Display renders a cell the way the grid shows it: computed columns go
// through the calculator, everything else resolves overlay-first.
func (r Resolver) Display(identity string, row []string, column string) string {
	if RoleOf(r.Tab, column) == RoleComputed {
		return r.Compute(identity, row, column)
	}
	return r.Resolve(identity, row, column)
}

// profitEUR floors at zero and needs both prices: margin against a
// missing price is meaningless, not infinite.
func profitEUR(inv, retail float64) float64 {
	if inv == 0 || retail == 0 {
		return 0
	}
	return math.Max(retail-inv, 0)
}

// number resolves the first non-blank candidate cell and parses it.
func (r Resolver) number(identity string, row []string, candidates []string) float64 {
	for _, c := range candidates {
		if v := strings.TrimSpace(r.Resolve(identity, row, c)); v != "" {
			return ParseNumber(v)
		}
	}
	return 0
}

// formatDelta renders a signed currency difference, blank when neither
// input carried a value. Positive deltas get an explicit plus so a price
// increase is unmistakable in the grid.
func formatDelta(v float64, present bool) string {
	if !present {
		return ""
	}
	if v > 0 {
		return fmt.Sprintf("+%.2f €", v)
	}
	return fmt.Sprintf("%.2f €", v)
}

// formatQty renders stock counts the way the shop exports do: bare
// integer when whole, two decimals otherwise.
func formatQty(v float64) string {
	if v == math.Trunc(v) {
		return strconv.Itoa(int(v))
	}
	return fmt.Sprintf("%.2f", v)
}
