package models

// Severity classifies an annotation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Annotation records a non-fatal condition found while processing a document.
type Annotation struct {
	Severity     Severity `json:"severity"`
	SegmentIndex int      `json:"segment_index"`
	SegmentID    string   `json:"segment_id,omitempty"`
	Message      string   `json:"message"`
}

// Flags are the informational outcomes attached to a document.
type Flags struct {
	StructurallySuspect  bool `json:"structurally_suspect,omitempty"`
	Unreconciled         bool `json:"unreconciled,omitempty"`
	AmbiguousButResolved bool `json:"ambiguous_but_resolved,omitempty"`
}

// Merge returns the union of both flag sets.
func (f Flags) Merge(o Flags) Flags {
	return Flags{
		StructurallySuspect:  f.StructurallySuspect || o.StructurallySuspect,
		Unreconciled:         f.Unreconciled || o.Unreconciled,
		AmbiguousButResolved: f.AmbiguousButResolved || o.AmbiguousButResolved,
	}
}

// Names lists the raised flags in a stable order.
func (f Flags) Names() []string {
	var names []string
	if f.StructurallySuspect {
		names = append(names, "structurally_suspect")
	}
	if f.Unreconciled {
		names = append(names, "unreconciled")
	}
	if f.AmbiguousButResolved {
		names = append(names, "ambiguous_but_resolved")
	}
	return names
}

// Transaction set syntax error codes, as reported in AK502.
const (
	SetNotSupported           = "1"
	SetTrailerMissing         = "2"
	SetControlNumberMismatch  = "3"
	SetSegmentCountMismatch   = "4"
	SetSegmentsInError        = "5"
	SetMissingIdentifier      = "6"
	SetMissingControlNumber   = "7"
	SetControlNumberNotUnique = "23"
)

// Functional group syntax error codes, as reported in AK905.
const (
	GroupTrailerMissing        = "3"
	GroupControlNumberMismatch = "4"
	GroupSetCountMismatch      = "5"
)

// SyntaxError is a structural defect that causes rejection of its owner.
type SyntaxError struct {
	Code         string `json:"code"`
	SegmentID    string `json:"segment_id,omitempty"`
	SegmentIndex int    `json:"segment_index"`
	Message      string `json:"message"`
}
