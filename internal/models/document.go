package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Interchange is the ISA/IEA envelope and everything assembled inside it.
type Interchange struct {
	AuthQualifier      string `json:"auth_qualifier,omitempty"`
	AuthInfo           string `json:"auth_info,omitempty"`
	SecurityQualifier  string `json:"security_qualifier,omitempty"`
	SecurityInfo       string `json:"security_info,omitempty"`
	SenderQualifier    string `json:"sender_qualifier"`
	SenderID           string `json:"sender_id"`
	ReceiverQualifier  string `json:"receiver_qualifier"`
	ReceiverID         string `json:"receiver_id"`
	Date               string `json:"date"`
	Time               string `json:"time"`
	StandardsID        string `json:"standards_id,omitempty"`
	Version            string `json:"version"`
	ControlNumber      string `json:"control_number"`
	AckRequested       string `json:"ack_requested,omitempty"`
	UsageIndicator     string `json:"usage_indicator"`
	ComponentSeparator string `json:"component_separator,omitempty"`

	Delimiters Delimiters         `json:"-"`
	Groups     []*FunctionalGroup `json:"groups"`

	TrailerPresent       bool   `json:"trailer_present"`
	TrailerGroupCount    string `json:"trailer_group_count,omitempty"`
	TrailerControlNumber string `json:"trailer_control_number,omitempty"`

	Flags       Flags        `json:"flags"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Annotate appends an envelope-level annotation.
func (ic *Interchange) Annotate(sev Severity, seg Segment, msg string) {
	ic.Annotations = append(ic.Annotations, Annotation{
		Severity:     sev,
		SegmentIndex: seg.Index,
		SegmentID:    seg.ID,
		Message:      msg,
	})
}

// TransactionSets returns every set in document order.
func (ic *Interchange) TransactionSets() []*TransactionSet {
	var sets []*TransactionSet
	for _, g := range ic.Groups {
		sets = append(sets, g.TransactionSets...)
	}
	return sets
}

// AggregateFlags combines envelope flags with those of every set.
func (ic *Interchange) AggregateFlags() Flags {
	f := ic.Flags
	for _, g := range ic.Groups {
		if len(g.SyntaxErrors) > 0 {
			f.StructurallySuspect = true
		}
		for _, ts := range g.TransactionSets {
			f = f.Merge(ts.Flags)
		}
	}
	return f
}

// FunctionalGroup is one GS/GE group.
type FunctionalGroup struct {
	FunctionalIDCode string `json:"functional_id_code"`
	SenderCode       string `json:"sender_code"`
	ReceiverCode     string `json:"receiver_code"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	ControlNumber    string `json:"control_number"`
	Agency           string `json:"agency,omitempty"`
	Version          string `json:"version"`
	StartIndex       int    `json:"start_index"`

	TransactionSets []*TransactionSet `json:"transaction_sets"`

	TrailerPresent       bool          `json:"trailer_present"`
	TrailerSetCount      string        `json:"trailer_set_count,omitempty"`
	TrailerControlNumber string        `json:"trailer_control_number,omitempty"`
	SyntaxErrors         []SyntaxError `json:"syntax_errors,omitempty"`
}

// TransactionSet is one ST/SE set holding a single invoice.
type TransactionSet struct {
	IdentifierCode string `json:"identifier_code"`
	ControlNumber  string `json:"control_number"`
	StartIndex     int    `json:"start_index"`

	Header    InvoiceHeader `json:"header"`
	LineItems []*LineItem   `json:"line_items"`

	TrailerPresent       bool   `json:"trailer_present"`
	DeclaredSegmentCount string `json:"declared_segment_count,omitempty"`
	TrailerControlNumber string `json:"trailer_control_number,omitempty"`
	SegmentCount         int    `json:"segment_count"`

	Interpretation Interpretation    `json:"interpretation"`
	Resolution     Resolution        `json:"resolution"`
	Flags          Flags             `json:"flags"`
	SyntaxErrors   []SyntaxError     `json:"syntax_errors,omitempty"`
	Annotations    []Annotation      `json:"annotations,omitempty"`
	Discrepancies  DiscrepancyReport `json:"discrepancies"`
}

// NewTransactionSet starts a set from its ST header.
func NewTransactionSet(st Segment) *TransactionSet {
	return &TransactionSet{
		IdentifierCode: st.Value(1),
		ControlNumber:  st.Value(2),
		StartIndex:     st.Index,
		SegmentCount:   1,
		Interpretation: InterpretationAmbiguous,
		Header: InvoiceHeader{
			Currency: "USD",
			Parties:  make(map[string]Party),
		},
	}
}

// Annotate appends a set-level annotation.
func (ts *TransactionSet) Annotate(sev Severity, seg Segment, msg string) {
	ts.Annotations = append(ts.Annotations, Annotation{
		Severity:     sev,
		SegmentIndex: seg.Index,
		SegmentID:    seg.ID,
		Message:      msg,
	})
}

// Reject records a structural defect and flags the set.
func (ts *TransactionSet) Reject(code string, seg Segment, msg string) {
	ts.SyntaxErrors = append(ts.SyntaxErrors, SyntaxError{
		Code:         code,
		SegmentID:    seg.ID,
		SegmentIndex: seg.Index,
		Message:      msg,
	})
	ts.Flags.StructurallySuspect = true
}

// Rejected reports whether any structural defect was recorded.
func (ts *TransactionSet) Rejected() bool {
	return len(ts.SyntaxErrors) > 0
}

// Position converts an interchange segment index into a 1-based
// position within this set, where ST is position 1.
func (ts *TransactionSet) Position(index int) int {
	return index - ts.StartIndex + 1
}

// Amounts returns pointers to every monetary field in document order.
func (ts *TransactionSet) Amounts() []*AmountField {
	fields := []*AmountField{&ts.Header.DeclaredTotal}
	for i := range ts.Header.Adjustments {
		fields = append(fields, &ts.Header.Adjustments[i].Amount)
	}
	for i := range ts.Header.Taxes {
		fields = append(fields, &ts.Header.Taxes[i].Amount)
	}
	for _, li := range ts.LineItems {
		fields = append(fields, &li.UnitPrice, &li.StatedTotal)
		for i := range li.Adjustments {
			fields = append(fields, &li.Adjustments[i].Amount)
		}
		for i := range li.Taxes {
			fields = append(fields, &li.Taxes[i].Amount)
		}
	}
	return fields
}

// InvoiceHeader carries the BIG data and invoice-level segments.
type InvoiceHeader struct {
	InvoiceNumber       string    `json:"invoice_number"`
	InvoiceDateRaw      string    `json:"invoice_date_raw,omitempty"`
	InvoiceDate         time.Time `json:"invoice_date,omitempty"`
	PurchaseOrderNumber string    `json:"purchase_order_number,omitempty"`
	PurchaseOrderDate   string    `json:"purchase_order_date,omitempty"`
	Currency            string    `json:"currency"`

	DeclaredTotal         AmountField `json:"declared_total"`
	DeclaredTotalPosition int         `json:"-"`

	Parties     map[string]Party `json:"parties,omitempty"`
	Adjustments []Adjustment     `json:"adjustments,omitempty"`
	Taxes       []Tax            `json:"taxes,omitempty"`
	GLAccount   string           `json:"gl_account,omitempty"`

	DeclaredLineCount string `json:"declared_line_count,omitempty"`
	LineCountPosition int    `json:"-"`
}

// Vendor returns the selling party (N1*SE, falling back to N1*VN).
func (h InvoiceHeader) Vendor() (Party, bool) {
	if p, ok := h.Parties["SE"]; ok {
		return p, true
	}
	p, ok := h.Parties["VN"]
	return p, ok
}

// Buyer returns the N1*BY party.
func (h InvoiceHeader) Buyer() (Party, bool) {
	p, ok := h.Parties["BY"]
	return p, ok
}

// Party is an N1 loop entry.
type Party struct {
	Qualifier   string   `json:"qualifier"`
	Name        string   `json:"name,omitempty"`
	IDQualifier string   `json:"id_qualifier,omitempty"`
	IDCode      string   `json:"id_code,omitempty"`
	Address     []string `json:"address,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	PostalCode  string   `json:"postal_code,omitempty"`
	Country     string   `json:"country,omitempty"`
}

// LineItem is one IT1 loop.
type LineItem struct {
	LineNumber         string          `json:"line_number"`
	Position           int             `json:"position"`
	QuantityRaw        string          `json:"quantity_raw"`
	Quantity           decimal.Decimal `json:"quantity"`
	QuantityValid      bool            `json:"quantity_valid"`
	UnitOfMeasure      string          `json:"unit_of_measure,omitempty"`
	UnitPrice          AmountField     `json:"unit_price"`
	UnitPricePosition  int             `json:"-"`
	ProductIDQualifier string          `json:"product_id_qualifier,omitempty"`
	ProductCode        string          `json:"product_code,omitempty"`
	Description        string          `json:"description,omitempty"`

	StatedTotal         AmountField `json:"stated_total"`
	StatedTotalPosition int         `json:"-"`

	Adjustments []Adjustment `json:"adjustments,omitempty"`
	Taxes       []Tax        `json:"taxes,omitempty"`
	GLAccount   string       `json:"gl_account,omitempty"`
}

// Extended returns quantity × unit price under interpretation i.
func (li *LineItem) Extended(i Interpretation) decimal.Decimal {
	if !li.QuantityValid {
		return decimal.Zero
	}
	return li.Quantity.Mul(li.UnitPrice.Under(i))
}

// AdjustmentTotal sums line-level allowances, charges and taxes under i.
func (li *LineItem) AdjustmentTotal(i Interpretation) decimal.Decimal {
	return sumAdjustments(li.Adjustments, li.Taxes, i)
}

// Adjustment is a SAC allowance or charge.
type Adjustment struct {
	Indicator   string      `json:"indicator"`
	Code        string      `json:"code,omitempty"`
	Amount      AmountField `json:"amount"`
	Description string      `json:"description,omitempty"`
	Position    int         `json:"position"`
}

// IsAllowance reports whether the adjustment reduces the invoice.
func (a Adjustment) IsAllowance() bool {
	return a.Indicator == "A"
}

// Signed returns the amount under i, negated for allowances.
func (a Adjustment) Signed(i Interpretation) decimal.Decimal {
	v := a.Amount.Under(i)
	if a.IsAllowance() {
		return v.Neg()
	}
	return v
}

// Tax is a TXI entry or a SAC sales tax charge.
type Tax struct {
	TypeCode    string      `json:"type_code"`
	Amount      AmountField `json:"amount"`
	Description string      `json:"description,omitempty"`
	Position    int         `json:"position"`
}

func sumAdjustments(adjs []Adjustment, taxes []Tax, i Interpretation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range adjs {
		total = total.Add(a.Signed(i))
	}
	for _, t := range taxes {
		total = total.Add(t.Amount.Under(i))
	}
	return total
}

// ComputedTotal is the invoice total implied by the lines and adjustments under i.
func (ts *TransactionSet) ComputedTotal(i Interpretation) decimal.Decimal {
	total := decimal.Zero
	for _, li := range ts.LineItems {
		total = total.Add(li.Extended(i)).Add(li.AdjustmentTotal(i))
	}
	return total.Add(sumAdjustments(ts.Header.Adjustments, ts.Header.Taxes, i))
}

// CentsApplicable reports whether every usable amount in the set could be
// an integer count of minor units.
func (ts *TransactionSet) CentsApplicable() bool {
	for _, a := range ts.Amounts() {
		if a.HasPoint() {
			return false
		}
	}
	return true
}

// ResolutionOutcome describes how the interpretation was chosen.
type ResolutionOutcome string

const (
	OutcomeUnresolved           ResolutionOutcome = ""
	OutcomeReconciled           ResolutionOutcome = "reconciled"
	OutcomeAmbiguousButResolved ResolutionOutcome = "ambiguous_but_resolved"
	OutcomeUnreconciled         ResolutionOutcome = "unreconciled"
)

// Resolution records both hypotheses for a set.
type Resolution struct {
	Outcome           ResolutionOutcome `json:"outcome"`
	DeclaredDollars   decimal.Decimal   `json:"declared_dollars"`
	DeclaredCents     decimal.Decimal   `json:"declared_cents"`
	DollarsTotal      decimal.Decimal   `json:"dollars_total"`
	CentsTotal        decimal.Decimal   `json:"cents_total"`
	DollarsReconciles bool              `json:"dollars_reconciles"`
	CentsReconciles   bool              `json:"cents_reconciles"`
	CentsApplicable   bool              `json:"cents_applicable"`
	Note              string            `json:"note,omitempty"`
}
