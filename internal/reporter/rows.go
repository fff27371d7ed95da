package reporter

import (
	"strings"

	"github.com/shopspring/decimal"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/internal/reconciler"
)

// InvoiceRow is the flat view of one transaction set.
type InvoiceRow struct {
	Source         string                `json:"source"`
	SenderID       string                `json:"sender_id"`
	GroupControl   string                `json:"group_control"`
	SetControl     string                `json:"set_control"`
	InvoiceNumber  string                `json:"invoice_number"`
	InvoiceDate    string                `json:"invoice_date"`
	PurchaseOrder  string                `json:"purchase_order,omitempty"`
	Vendor         string                `json:"vendor,omitempty"`
	Buyer          string                `json:"buyer,omitempty"`
	Currency       string                `json:"currency"`
	Interpretation models.Interpretation `json:"interpretation"`
	Status         models.AckStatus      `json:"status"`
	Lines          int                   `json:"lines"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	Allowances     decimal.Decimal       `json:"allowances"`
	Charges        decimal.Decimal       `json:"charges"`
	Taxes          decimal.Decimal       `json:"taxes"`
	NetAmount      decimal.Decimal       `json:"net_amount"`
	DeclaredTotal  string                `json:"declared_total"`
	GLAccount      string                `json:"gl_account,omitempty"`
	Flags          string                `json:"flags,omitempty"`
	Discrepancies  int                   `json:"discrepancies"`
}

// LineItemRow is the flat view of one IT1 loop.
type LineItemRow struct {
	Source        string          `json:"source"`
	SetControl    string          `json:"set_control"`
	InvoiceNumber string          `json:"invoice_number"`
	LineNumber    string          `json:"line_number"`
	ProductCode   string          `json:"product_code,omitempty"`
	Description   string          `json:"description,omitempty"`
	Quantity      string          `json:"quantity"`
	UnitOfMeasure string          `json:"unit_of_measure,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Allowances    decimal.Decimal `json:"allowances"`
	Charges       decimal.Decimal `json:"charges"`
	Taxes         decimal.Decimal `json:"taxes"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	GLAccount     string          `json:"gl_account,omitempty"`
}

// BuildRows flattens every transaction set of the successful results.
// Amounts are read under each set's chosen interpretation.
func BuildRows(results []*reconciler.Result) ([]InvoiceRow, []LineItemRow) {
	var invoices []InvoiceRow
	var lines []LineItemRow

	for _, r := range results {
		if r == nil || r.Interchange == nil {
			continue
		}
		ic := r.Interchange
		for gi, g := range ic.Groups {
			for si, ts := range g.TransactionSets {
				inv, items := flatten(r.Source, ts)
				inv.SenderID = strings.TrimSpace(ic.SenderID)
				inv.GroupControl = g.ControlNumber
				inv.Status = setStatus(r.Ack, gi, si)
				invoices = append(invoices, inv)
				lines = append(lines, items...)
			}
		}
	}
	return invoices, lines
}

func flatten(source string, ts *models.TransactionSet) (InvoiceRow, []LineItemRow) {
	h := ts.Header
	interp := ts.Interpretation

	inv := InvoiceRow{
		Source:         source,
		SetControl:     ts.ControlNumber,
		InvoiceNumber:  h.InvoiceNumber,
		InvoiceDate:    h.InvoiceDateRaw,
		PurchaseOrder:  h.PurchaseOrderNumber,
		Currency:       h.Currency,
		Interpretation: interp,
		Lines:          len(ts.LineItems),
		GLAccount:      h.GLAccount,
		Flags:          strings.Join(ts.Flags.Names(), ";"),
		Discrepancies:  ts.Discrepancies.Len(),
	}
	if v, ok := h.Vendor(); ok {
		inv.Vendor = v.Name
	}
	if b, ok := h.Buyer(); ok {
		inv.Buyer = b.Name
	}
	if h.DeclaredTotal.Usable() {
		inv.DeclaredTotal = h.DeclaredTotal.Under(interp).StringFixed(2)
	}

	items := make([]LineItemRow, 0, len(ts.LineItems))
	for _, li := range ts.LineItems {
		row := LineItemRow{
			Source:        source,
			SetControl:    ts.ControlNumber,
			InvoiceNumber: h.InvoiceNumber,
			LineNumber:    li.LineNumber,
			ProductCode:   li.ProductCode,
			Description:   li.Description,
			Quantity:      li.QuantityRaw,
			UnitOfMeasure: li.UnitOfMeasure,
			UnitPrice:     li.UnitPrice.Under(interp),
			Currency:      h.Currency,
			Subtotal:      li.Extended(interp),
			GLAccount:     li.GLAccount,
		}
		if row.GLAccount == "" {
			row.GLAccount = h.GLAccount
		}
		row.Allowances, row.Charges = adjustments(li.Adjustments, interp)
		row.Taxes = taxes(li.Taxes, interp)
		row.NetAmount = row.Subtotal.Add(row.Allowances).Add(row.Charges).Add(row.Taxes)
		items = append(items, row)

		inv.Subtotal = inv.Subtotal.Add(row.Subtotal)
		inv.Allowances = inv.Allowances.Add(row.Allowances)
		inv.Charges = inv.Charges.Add(row.Charges)
		inv.Taxes = inv.Taxes.Add(row.Taxes)
	}

	a, c := adjustments(h.Adjustments, interp)
	inv.Allowances = inv.Allowances.Add(a)
	inv.Charges = inv.Charges.Add(c)
	inv.Taxes = inv.Taxes.Add(taxes(h.Taxes, interp))
	inv.NetAmount = inv.Subtotal.Add(inv.Allowances).Add(inv.Charges).Add(inv.Taxes)

	return inv, items
}

// adjustments splits SAC amounts into allowances (negative) and charges.
func adjustments(adjs []models.Adjustment, interp models.Interpretation) (decimal.Decimal, decimal.Decimal) {
	allowances, charges := decimal.Zero, decimal.Zero
	for _, a := range adjs {
		if a.IsAllowance() {
			allowances = allowances.Add(a.Signed(interp))
		} else {
			charges = charges.Add(a.Signed(interp))
		}
	}
	return allowances, charges
}

func taxes(txs []models.Tax, interp models.Interpretation) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount.Under(interp))
	}
	return total
}

func setStatus(ack *models.AcknowledgmentRecord, gi, si int) models.AckStatus {
	if ack == nil || gi >= len(ack.Groups) || si >= len(ack.Groups[gi].Sets) {
		return ""
	}
	return ack.Groups[gi].Sets[si].Status
}
