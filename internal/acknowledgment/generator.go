package acknowledgment

import (
	"strconv"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/pkg/logger"
)

// segmentHasDataElementErrors is the AK304 code for a segment whose
// elements failed reconciliation.
const segmentHasDataElementErrors = "8"

// Generator turns processed interchanges into acknowledgment records.
type Generator struct {
	config *Config
	logger logger.Logger
}

// NewGenerator creates a generator; nil arguments select defaults.
func NewGenerator(config *Config, log logger.Logger) *Generator {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Generator{config: config, logger: log.WithComponent("acknowledgment")}
}

// Generate builds the 997 record for ic. Each set must already be resolved
// and validated; the interchange itself is not modified.
func (g *Generator) Generate(ic *models.Interchange) *models.AcknowledgmentRecord {
	rec := &models.AcknowledgmentRecord{
		Interchange: models.InterchangeRef{
			AuthQualifier:      ic.AuthQualifier,
			AuthInfo:           ic.AuthInfo,
			SecurityQualifier:  ic.SecurityQualifier,
			SecurityInfo:       ic.SecurityInfo,
			SenderQualifier:    ic.SenderQualifier,
			SenderID:           ic.SenderID,
			ReceiverQualifier:  ic.ReceiverQualifier,
			ReceiverID:         ic.ReceiverID,
			StandardsID:        ic.StandardsID,
			Version:            ic.Version,
			ControlNumber:      ic.ControlNumber,
			UsageIndicator:     ic.UsageIndicator,
			ComponentSeparator: ic.ComponentSeparator,
		},
		GeneratedAt: g.config.now(),
		Delimiters:  ic.Delimiters,
	}

	for _, fg := range ic.Groups {
		ga := g.group(fg)
		rec.Groups = append(rec.Groups, ga)

		g.logger.WithFields(logger.Fields{
			"interchange": ic.ControlNumber,
			"group":       fg.ControlNumber,
			"status":      ga.Status.String(),
			"received":    ga.Received,
			"accepted":    ga.Accepted,
		}).Debug("group acknowledged")
	}

	return rec
}

func (g *Generator) group(fg *models.FunctionalGroup) models.GroupAck {
	ga := models.GroupAck{
		FunctionalIDCode: fg.FunctionalIDCode,
		ControlNumber:    fg.ControlNumber,
		SenderCode:       fg.SenderCode,
		ReceiverCode:     fg.ReceiverCode,
		Version:          fg.Version,
		Received:         len(fg.TransactionSets),
		Included:         len(fg.TransactionSets),
	}
	if n, err := strconv.Atoi(fg.TrailerSetCount); err == nil && fg.TrailerPresent {
		ga.Included = n
	}

	for _, e := range fg.SyntaxErrors {
		ga.SyntaxErrorCodes = appendUnique(ga.SyntaxErrorCodes, e.Code)
	}

	withErrors := false
	for _, ts := range fg.TransactionSets {
		sa := g.set(ts)
		switch sa.Status {
		case models.AckRejected:
			ga.Rejected++
		case models.AckAcceptedWithErrors:
			withErrors = true
			ga.Accepted++
		default:
			ga.Accepted++
		}
		ga.Sets = append(ga.Sets, sa)
	}

	switch {
	case ga.Received > 0 && ga.Rejected == ga.Received:
		ga.Status = models.AckRejected
	case ga.Rejected > 0:
		ga.Status = models.AckPartiallyAccepted
	case withErrors || len(ga.SyntaxErrorCodes) > 0:
		ga.Status = models.AckAcceptedWithErrors
	default:
		ga.Status = models.AckAccepted
	}
	return ga
}

func (g *Generator) set(ts *models.TransactionSet) models.TransactionSetAck {
	sa := models.TransactionSetAck{
		IdentifierCode: ts.IdentifierCode,
		ControlNumber:  ts.ControlNumber,
	}

	if ts.Rejected() {
		sa.Status = models.AckRejected
		for _, e := range ts.SyntaxErrors {
			sa.SyntaxErrorCodes = appendUnique(sa.SyntaxErrorCodes, e.Code)
		}
		return sa
	}

	if ts.Discrepancies.Empty() {
		sa.Status = models.AckAccepted
		return sa
	}

	sa.Status = models.AckAcceptedWithErrors
	sa.SegmentNotes = g.notes(ts.Discrepancies)
	return sa
}

// notes groups discrepancies by the segment they point at, keeping the
// order in which segments were first reported.
func (g *Generator) notes(report models.DiscrepancyReport) []models.SegmentNote {
	var notes []models.SegmentNote
	index := make(map[int]int)

	for _, d := range report.Entries {
		elem := models.ElementNote{
			Position:  d.ElementPosition,
			ErrorCode: g.config.DiscrepancyElementCode,
			BadValue:  d.BadValue,
		}
		if i, ok := index[d.SegmentPosition]; ok {
			notes[i].Elements = append(notes[i].Elements, elem)
			continue
		}
		index[d.SegmentPosition] = len(notes)
		notes = append(notes, models.SegmentNote{
			SegmentID: d.SegmentID,
			Position:  d.SegmentPosition,
			ErrorCode: segmentHasDataElementErrors,
			Elements:  []models.ElementNote{elem},
		})
	}
	return notes
}

func appendUnique(codes []string, code string) []string {
	for _, c := range codes {
		if c == code {
			return codes
		}
	}
	return append(codes, code)
}
