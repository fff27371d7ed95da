package parsers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
)

type state int

const (
	stateExpectISA state = iota
	stateExpectGS
	stateExpectST
	stateInSet
	stateDone
)

func (s state) String() string {
	switch s {
	case stateExpectISA:
		return "expect_isa"
	case stateExpectGS:
		return "expect_gs"
	case stateExpectST:
		return "expect_st"
	case stateInSet:
		return "in_transaction_set"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// Assembler builds interchanges from tokenized segments. It holds no
// per-document state and may be shared between goroutines.
type Assembler struct {
	config *ParseConfig
	logger logger.Logger
}

// NewAssembler creates an assembler; nil arguments select defaults.
func NewAssembler(config *ParseConfig, log logger.Logger) *Assembler {
	if config == nil {
		config = DefaultParseConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Assembler{config: config, logger: log.WithComponent("assembler")}
}

// assembly is the cursor and open containers for a single Assemble call.
type assembly struct {
	config *ParseConfig
	logger logger.Logger

	segments []models.Segment
	pos      int
	state    state

	ic    *models.Interchange
	group *models.FunctionalGroup
	set   *models.TransactionSet
	line  *models.LineItem

	party       string
	lineCounter int
	sawPID      bool
	sawBIG      bool
	skipped     []models.Segment
	trailing    int
}

// Assemble walks segments through the envelope grammar. It returns
// MalformedDocument only when the interchange header is unusable or no
// functional group was found; every other defect is recorded on the result.
func (a *Assembler) Assemble(segments []models.Segment, delims models.Delimiters) (*models.Interchange, error) {
	if len(segments) == 0 {
		return nil, errors.MalformedDocument(0, "", "no segments to assemble")
	}

	asm := &assembly{
		config:   a.config,
		logger:   a.logger,
		segments: segments,
		state:    stateExpectISA,
	}

	for asm.pos < len(segments) {
		seg := segments[asm.pos]
		consumed, err := asm.step(seg, delims)
		if err != nil {
			return nil, err
		}
		if consumed {
			asm.pos++
		}
	}
	asm.finish()

	if asm.ic == nil {
		return nil, errors.MalformedDocument(0, segments[0].ID, "no ISA segment found")
	}
	if len(asm.ic.Groups) == 0 {
		last := segments[len(segments)-1]
		return nil, errors.MalformedDocument(last.Index, last.ID, "interchange contains no functional group")
	}

	return asm.ic, nil
}

func (asm *assembly) step(seg models.Segment, delims models.Delimiters) (bool, error) {
	switch asm.state {
	case stateExpectISA:
		if seg.ID != SegISA {
			asm.skipped = append(asm.skipped, seg)
			return true, nil
		}
		if seg.Count() < isaControlNumber {
			return false, errors.MalformedDocument(seg.Index, seg.ID,
				fmt.Sprintf("interchange header has %d elements", seg.Count()))
		}
		asm.openInterchange(seg, delims)
		asm.state = stateExpectGS

	case stateExpectGS:
		switch seg.ID {
		case SegGS:
			asm.openGroup(seg)
			asm.state = stateExpectST
		case SegIEA:
			asm.closeInterchange(seg)
			asm.state = stateDone
		case SegISA:
			asm.interchangeSuspect(seg, "IEA trailer missing before next interchange")
			asm.state = stateDone
			return false, nil
		default:
			asm.unexpected(seg)
		}

	case stateExpectST:
		switch seg.ID {
		case SegST:
			asm.openSet(seg)
			asm.state = stateInSet
		case SegGE:
			asm.closeGroup(seg)
			asm.state = stateExpectGS
		case SegGS, SegIEA, SegISA:
			asm.groupError(models.GroupTrailerMissing, seg, "GE trailer missing")
			asm.group = nil
			asm.state = stateExpectGS
			return false, nil
		default:
			asm.unexpected(seg)
		}

	case stateInSet:
		switch seg.ID {
		case SegSE:
			asm.closeSet(seg)
			asm.state = stateExpectST
		case SegST, SegGE, SegGS, SegIEA, SegISA:
			asm.set.Reject(models.SetTrailerMissing, seg, "SE trailer missing")
			asm.endSet(seg)
			asm.state = stateExpectST
			return false, nil
		default:
			asm.set.SegmentCount++
			asm.body(seg)
		}

	case stateDone:
		asm.trailing++
	}

	return true, nil
}

// finish closes whatever is still open when the input runs out.
func (asm *assembly) finish() {
	end := models.Segment{Index: len(asm.segments)}

	if asm.state == stateInSet {
		asm.set.Reject(models.SetTrailerMissing, end, "SE trailer missing at end of input")
		asm.endSet(end)
		asm.state = stateExpectST
	}
	if asm.state == stateExpectST {
		asm.groupError(models.GroupTrailerMissing, end, "GE trailer missing at end of input")
		asm.group = nil
		asm.state = stateExpectGS
	}
	if asm.state == stateExpectGS {
		asm.interchangeSuspect(end, "IEA trailer missing at end of input")
	}

	if asm.ic == nil {
		return
	}
	for _, seg := range asm.skipped {
		asm.ic.Annotate(models.SeverityWarning, seg, fmt.Sprintf("segment %s before ISA ignored", seg.ID))
	}
	if asm.trailing > 0 {
		asm.ic.Annotate(models.SeverityWarning, end,
			fmt.Sprintf("%d segments after the interchange trailer ignored", asm.trailing))
	}
}

func (asm *assembly) unexpected(seg models.Segment) {
	asm.ic.Annotate(models.SeverityWarning, seg,
		fmt.Sprintf("unexpected segment %s in state %s skipped", seg.ID, asm.state))
}

func (asm *assembly) openInterchange(seg models.Segment, delims models.Delimiters) {
	asm.ic = &models.Interchange{
		AuthQualifier:      seg.Value(isaAuthQualifier),
		AuthInfo:           seg.Value(isaAuthInfo),
		SecurityQualifier:  seg.Value(isaSecurityQualifier),
		SecurityInfo:       seg.Value(isaSecurityInfo),
		SenderQualifier:    seg.Value(isaSenderQualifier),
		SenderID:           seg.Value(isaSenderID),
		ReceiverQualifier:  seg.Value(isaReceiverQualifier),
		ReceiverID:         seg.Value(isaReceiverID),
		Date:               seg.Value(isaDate),
		Time:               seg.Value(isaTime),
		StandardsID:        seg.Value(isaStandardsID),
		Version:            seg.Value(isaVersion),
		ControlNumber:      seg.Value(isaControlNumber),
		AckRequested:       seg.Value(isaAckRequested),
		UsageIndicator:     seg.Value(isaUsageIndicator),
		ComponentSeparator: seg.Element(isaComponentSeparator),
		Delimiters:         delims,
	}
	if seg.Malformed {
		asm.ic.Annotate(models.SeverityWarning, seg,
			fmt.Sprintf("ISA has %d elements, expected %d", seg.Count(), ISAElementCount))
	}
}

func (asm *assembly) closeInterchange(seg models.Segment) {
	ic := asm.ic
	ic.TrailerPresent = true
	ic.TrailerGroupCount = seg.Value(trailerCount)
	ic.TrailerControlNumber = seg.Value(trailerControlNumber)

	if n, err := strconv.Atoi(ic.TrailerGroupCount); err != nil || n != len(ic.Groups) {
		asm.interchangeSuspect(seg, fmt.Sprintf("IEA declares %q groups, found %d", ic.TrailerGroupCount, len(ic.Groups)))
	}
	if ic.TrailerControlNumber != ic.ControlNumber {
		asm.interchangeSuspect(seg, fmt.Sprintf("IEA control number %q does not match ISA %q",
			ic.TrailerControlNumber, ic.ControlNumber))
	}
}

func (asm *assembly) interchangeSuspect(seg models.Segment, msg string) {
	asm.ic.Flags.StructurallySuspect = true
	asm.ic.Annotate(models.SeverityWarning, seg, msg)
	asm.logger.WithFields(logger.Fields{
		"interchange": asm.ic.ControlNumber,
		"segment":     seg.Index,
	}).Warn(msg)
}

func (asm *assembly) openGroup(seg models.Segment) {
	g := &models.FunctionalGroup{
		FunctionalIDCode: seg.Value(gsFunctionalID),
		SenderCode:       seg.Value(gsSenderCode),
		ReceiverCode:     seg.Value(gsReceiverCode),
		Date:             seg.Value(gsDate),
		Time:             seg.Value(gsTime),
		ControlNumber:    seg.Value(gsControlNumber),
		Agency:           seg.Value(gsAgency),
		Version:          seg.Value(gsVersion),
		StartIndex:       seg.Index,
	}
	if g.FunctionalIDCode != "IN" {
		asm.ic.Annotate(models.SeverityWarning, seg,
			fmt.Sprintf("functional group %q is not an invoice group", g.FunctionalIDCode))
	}
	asm.ic.Groups = append(asm.ic.Groups, g)
	asm.group = g
}

func (asm *assembly) closeGroup(seg models.Segment) {
	g := asm.group
	g.TrailerPresent = true
	g.TrailerSetCount = seg.Value(trailerCount)
	g.TrailerControlNumber = seg.Value(trailerControlNumber)

	if n, err := strconv.Atoi(g.TrailerSetCount); err != nil || n != len(g.TransactionSets) {
		asm.groupError(models.GroupSetCountMismatch, seg,
			fmt.Sprintf("GE declares %q transaction sets, found %d", g.TrailerSetCount, len(g.TransactionSets)))
	}
	if g.TrailerControlNumber != g.ControlNumber {
		asm.groupError(models.GroupControlNumberMismatch, seg,
			fmt.Sprintf("GE control number %q does not match GS %q", g.TrailerControlNumber, g.ControlNumber))
	}
	asm.group = nil
}

func (asm *assembly) groupError(code string, seg models.Segment, msg string) {
	asm.group.SyntaxErrors = append(asm.group.SyntaxErrors, models.SyntaxError{
		Code:         code,
		SegmentID:    seg.ID,
		SegmentIndex: seg.Index,
		Message:      msg,
	})
	asm.logger.WithFields(logger.Fields{
		"group":   asm.group.ControlNumber,
		"segment": seg.Index,
	}).Warn(msg)
}

func (asm *assembly) openSet(seg models.Segment) {
	ts := models.NewTransactionSet(seg)
	ts.Header.Currency = asm.config.DefaultCurrency

	switch {
	case ts.IdentifierCode == "":
		ts.Reject(models.SetMissingIdentifier, seg, "ST01 transaction set identifier missing")
	case ts.IdentifierCode != "810":
		ts.Reject(models.SetNotSupported, seg, fmt.Sprintf("transaction set %s is not supported", ts.IdentifierCode))
	}
	if ts.ControlNumber == "" {
		ts.Reject(models.SetMissingControlNumber, seg, "ST02 control number missing")
	} else {
		for _, other := range asm.group.TransactionSets {
			if other.ControlNumber == ts.ControlNumber {
				ts.Reject(models.SetControlNumberNotUnique, seg,
					fmt.Sprintf("control number %s repeated within group", ts.ControlNumber))
				break
			}
		}
	}
	if seg.Malformed {
		ts.Annotate(models.SeverityWarning, seg, fmt.Sprintf("ST has %d elements", seg.Count()))
	}

	asm.group.TransactionSets = append(asm.group.TransactionSets, ts)
	asm.set = ts
	asm.line = nil
	asm.party = ""
	asm.lineCounter = 0
	asm.sawBIG = false
}

func (asm *assembly) closeSet(seg models.Segment) {
	ts := asm.set
	ts.SegmentCount++
	ts.TrailerPresent = true
	ts.DeclaredSegmentCount = seg.Value(trailerCount)
	ts.TrailerControlNumber = seg.Value(trailerControlNumber)

	if n, err := strconv.Atoi(ts.DeclaredSegmentCount); err != nil || n != ts.SegmentCount {
		ts.Reject(models.SetSegmentCountMismatch, seg,
			fmt.Sprintf("SE declares %q segments, counted %d", ts.DeclaredSegmentCount, ts.SegmentCount))
	}
	if ts.TrailerControlNumber != ts.ControlNumber {
		ts.Reject(models.SetControlNumberMismatch, seg,
			fmt.Sprintf("SE control number %q does not match ST %q", ts.TrailerControlNumber, ts.ControlNumber))
	}
	asm.endSet(seg)
}

func (asm *assembly) endSet(seg models.Segment) {
	ts := asm.set
	if ts.IdentifierCode == "810" && !asm.sawBIG {
		ts.Reject(models.SetSegmentsInError, seg, "mandatory BIG segment missing")
	}
	if ts.IdentifierCode == "810" && !ts.Header.DeclaredTotal.Present {
		ts.Annotate(models.SeverityWarning, seg, "no TDS total amount present")
	}

	l := asm.logger.WithFields(logger.Fields{
		"control_number": ts.ControlNumber,
		"segments":       ts.SegmentCount,
		"lines":          len(ts.LineItems),
	})
	if ts.Rejected() {
		l.Warnf("transaction set assembled with %d structural errors", len(ts.SyntaxErrors))
	} else {
		l.Debug("transaction set assembled")
	}

	asm.set = nil
	asm.line = nil
}

// body handles the segments between ST and SE.
func (asm *assembly) body(seg models.Segment) {
	ts := asm.set
	if seg.Known && seg.Malformed {
		ts.Annotate(models.SeverityWarning, seg,
			fmt.Sprintf("%s has %d elements, outside the expected range", seg.ID, seg.Count()))
	}

	switch seg.ID {
	case SegBIG:
		asm.sawBIG = true
		h := &ts.Header
		h.InvoiceDateRaw = seg.Value(bigInvoiceDate)
		h.InvoiceNumber = seg.Value(bigInvoiceNumber)
		h.PurchaseOrderDate = seg.Value(bigPODate)
		h.PurchaseOrderNumber = seg.Value(bigPONumber)
		h.InvoiceDate = asm.parseDate(seg, h.InvoiceDateRaw)
		if h.InvoiceNumber == "" {
			ts.Annotate(models.SeverityWarning, seg, "BIG02 invoice number missing")
		}

	case SegCUR:
		if code := seg.Value(curCode); code != "" {
			ts.Header.Currency = strings.ToUpper(code)
		}

	case SegREF:
		if seg.Value(refQualifier) != "CR" {
			return
		}
		if asm.line != nil {
			asm.line.GLAccount = seg.Value(refValue)
		} else {
			ts.Header.GLAccount = seg.Value(refValue)
		}

	case SegN1:
		q := seg.Value(n1Qualifier)
		if q == "" {
			ts.Annotate(models.SeverityWarning, seg, "N1 without entity qualifier skipped")
			asm.party = ""
			return
		}
		ts.Header.Parties[q] = models.Party{
			Qualifier:   q,
			Name:        seg.Value(n1Name),
			IDQualifier: seg.Value(n1IDQualifier),
			IDCode:      seg.Value(n1IDCode),
		}
		asm.party = q

	case SegN3, SegN4:
		p, ok := ts.Header.Parties[asm.party]
		if !ok {
			ts.Annotate(models.SeverityWarning, seg, fmt.Sprintf("%s outside an N1 loop skipped", seg.ID))
			return
		}
		if seg.ID == SegN3 {
			for _, v := range seg.Elements[1:] {
				if v = strings.TrimSpace(v); v != "" {
					p.Address = append(p.Address, v)
				}
			}
		} else {
			p.City = seg.Value(n4City)
			p.State = seg.Value(n4State)
			p.PostalCode = seg.Value(n4PostalCode)
			p.Country = seg.Value(n4Country)
		}
		ts.Header.Parties[asm.party] = p

	case SegIT1:
		asm.lineItem(seg)

	case SegPID:
		if asm.line == nil {
			ts.Annotate(models.SeverityWarning, seg, "PID outside an IT1 loop skipped")
			return
		}
		if desc := seg.Value(pidDescription); desc != "" {
			if !asm.sawPID {
				asm.line.Description = ""
				asm.sawPID = true
			}
			if asm.line.Description != "" {
				asm.line.Description += "; "
			}
			asm.line.Description += desc
		}

	case SegAMT:
		if asm.line == nil || seg.Value(amtQualifier) != "1" {
			return
		}
		asm.line.StatedTotal = models.NewAmountField(seg.Element(amtAmount), models.ExplicitDecimal)
		asm.line.StatedTotalPosition = ts.Position(seg.Index)
		asm.checkAmount(seg, asm.line.StatedTotal)

	case SegSAC:
		indicator := seg.Value(sacIndicator)
		if indicator != "A" && indicator != "C" {
			return
		}
		if indicator == "C" && seg.Value(sacCode) == sacSalesTax {
			tax := models.Tax{
				TypeCode:    sacSalesTax,
				Amount:      models.NewAmountField(seg.Element(sacAmount), models.ImpliedDecimal),
				Description: "SALES TAX",
				Position:    ts.Position(seg.Index),
			}
			asm.checkAmount(seg, tax.Amount)
			asm.addTax(tax)
			return
		}
		adj := models.Adjustment{
			Indicator:   indicator,
			Code:        seg.Value(sacCode),
			Amount:      models.NewAmountField(seg.Element(sacAmount), models.ImpliedDecimal),
			Description: seg.Value(sacDescription),
			Position:    ts.Position(seg.Index),
		}
		asm.checkAmount(seg, adj.Amount)
		if asm.line != nil {
			asm.line.Adjustments = append(asm.line.Adjustments, adj)
		} else {
			ts.Header.Adjustments = append(ts.Header.Adjustments, adj)
		}

	case SegTXI:
		tax := models.Tax{
			TypeCode: seg.Value(txiType),
			Amount:   models.NewAmountField(seg.Element(txiAmount), models.ExplicitDecimal),
			Position: ts.Position(seg.Index),
		}
		asm.checkAmount(seg, tax.Amount)
		asm.addTax(tax)

	case SegTDS:
		if ts.Header.DeclaredTotal.Present {
			ts.Annotate(models.SeverityWarning, seg, "repeated TDS segment replaces the earlier total")
		}
		ts.Header.DeclaredTotal = models.NewAmountField(seg.Element(tdsAmount), models.ImpliedDecimal)
		ts.Header.DeclaredTotalPosition = ts.Position(seg.Index)
		asm.checkAmount(seg, ts.Header.DeclaredTotal)
		asm.line = nil

	case SegCTT:
		ts.Header.DeclaredLineCount = seg.Value(cttCount)
		ts.Header.LineCountPosition = ts.Position(seg.Index)
		asm.line = nil

	default:
		if !ignorableSegments[seg.ID] {
			ts.Annotate(models.SeverityWarning, seg, fmt.Sprintf("unexpected segment %s skipped", seg.ID))
		}
	}
}

func (asm *assembly) lineItem(seg models.Segment) {
	ts := asm.set
	asm.lineCounter++

	li := &models.LineItem{
		LineNumber:         seg.Value(it1LineNumber),
		Position:           ts.Position(seg.Index),
		QuantityRaw:        seg.Element(it1Quantity),
		UnitOfMeasure:      seg.Value(it1UOM),
		UnitPrice:          models.NewAmountField(seg.Element(it1UnitPrice), models.ExplicitDecimal),
		UnitPricePosition:  ts.Position(seg.Index),
		ProductIDQualifier: seg.Value(it1IDQualifier),
		ProductCode:        seg.Value(it1ProductCode),
		Description:        seg.Value(it1Description),
	}
	if li.LineNumber == "" {
		li.LineNumber = strconv.Itoa(asm.lineCounter)
	}

	if q := strings.TrimSpace(li.QuantityRaw); q != "" {
		if qty, err := decimal.NewFromString(q); err == nil {
			li.Quantity = qty
			li.QuantityValid = true
		}
	}
	if !li.QuantityValid {
		ts.Annotate(models.SeverityWarning, seg, fmt.Sprintf("IT1 line %s has unusable quantity %q", li.LineNumber, li.QuantityRaw))
	}
	asm.checkAmount(seg, li.UnitPrice)

	ts.LineItems = append(ts.LineItems, li)
	asm.line = li
	asm.sawPID = false
}

// addTax files tax under the open IT1 loop, or the header outside one.
func (asm *assembly) addTax(tax models.Tax) {
	if asm.line != nil {
		asm.line.Taxes = append(asm.line.Taxes, tax)
		return
	}
	asm.set.Header.Taxes = append(asm.set.Header.Taxes, tax)
}

func (asm *assembly) checkAmount(seg models.Segment, a models.AmountField) {
	if a.Present && !a.Valid {
		asm.set.Annotate(models.SeverityWarning, seg, fmt.Sprintf("%s amount %q is not numeric", seg.ID, a.Raw))
	}
}

func (asm *assembly) parseDate(seg models.Segment, raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range asm.config.InvoiceDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	asm.set.Annotate(models.SeverityWarning, seg, fmt.Sprintf("invoice date %q not recognized", raw))
	return time.Time{}
}
