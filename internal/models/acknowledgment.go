package models

import "time"

// AckStatus is the acceptance code used in AK5 and AK9.
type AckStatus string

const (
	AckAccepted           AckStatus = "A"
	AckAcceptedWithErrors AckStatus = "E"
	AckPartiallyAccepted  AckStatus = "P"
	AckRejected           AckStatus = "R"
)

// String returns a readable name for the status.
func (s AckStatus) String() string {
	switch s {
	case AckAccepted:
		return "accepted"
	case AckAcceptedWithErrors:
		return "accepted_with_errors"
	case AckPartiallyAccepted:
		return "partially_accepted"
	case AckRejected:
		return "rejected"
	}
	return string(s)
}

// AcknowledgmentRecord is the 997 for one interchange. Every field is a
// copy so the record outlives the source document.
type AcknowledgmentRecord struct {
	Interchange InterchangeRef `json:"interchange"`
	Groups      []GroupAck     `json:"groups"`
	GeneratedAt time.Time      `json:"generated_at"`
	Delimiters  Delimiters     `json:"-"`
}

// InterchangeRef copies the source ISA values needed to answer it.
type InterchangeRef struct {
	AuthQualifier      string `json:"auth_qualifier"`
	AuthInfo           string `json:"auth_info"`
	SecurityQualifier  string `json:"security_qualifier"`
	SecurityInfo       string `json:"security_info"`
	SenderQualifier    string `json:"sender_qualifier"`
	SenderID           string `json:"sender_id"`
	ReceiverQualifier  string `json:"receiver_qualifier"`
	ReceiverID         string `json:"receiver_id"`
	StandardsID        string `json:"standards_id"`
	Version            string `json:"version"`
	ControlNumber      string `json:"control_number"`
	UsageIndicator     string `json:"usage_indicator"`
	ComponentSeparator string `json:"component_separator"`
}

// GroupAck is one AK1..AK9 block.
type GroupAck struct {
	FunctionalIDCode string              `json:"functional_id_code"`
	ControlNumber    string              `json:"control_number"`
	SenderCode       string              `json:"sender_code"`
	ReceiverCode     string              `json:"receiver_code"`
	Version          string              `json:"version"`
	Status           AckStatus           `json:"status"`
	Included         int                 `json:"included"`
	Received         int                 `json:"received"`
	Accepted         int                 `json:"accepted"`
	Rejected         int                 `json:"rejected"`
	SyntaxErrorCodes []string            `json:"syntax_error_codes,omitempty"`
	Sets             []TransactionSetAck `json:"sets"`
}

// TransactionSetAck is one AK2/AK5 pair with its AK3/AK4 notes.
type TransactionSetAck struct {
	IdentifierCode   string        `json:"identifier_code"`
	ControlNumber    string        `json:"control_number"`
	Status           AckStatus     `json:"status"`
	SyntaxErrorCodes []string      `json:"syntax_error_codes,omitempty"`
	SegmentNotes     []SegmentNote `json:"segment_notes,omitempty"`
}

// SegmentNote points at a segment within the set (AK3).
type SegmentNote struct {
	SegmentID string        `json:"segment_id"`
	Position  int           `json:"position"`
	LoopID    string        `json:"loop_id,omitempty"`
	ErrorCode string        `json:"error_code"`
	Elements  []ElementNote `json:"elements,omitempty"`
}

// ElementNote points at an element within a noted segment (AK4).
type ElementNote struct {
	Position  int    `json:"position"`
	ErrorCode string `json:"error_code"`
	BadValue  string `json:"bad_value,omitempty"`
}

// SetStatus returns the status recorded for the given set control number.
func (r *AcknowledgmentRecord) SetStatus(controlNumber string) (AckStatus, bool) {
	for _, g := range r.Groups {
		for _, s := range g.Sets {
			if s.ControlNumber == controlNumber {
				return s.Status, true
			}
		}
	}
	return "", false
}
