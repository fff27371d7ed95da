package acknowledgment

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang-edi-invoice-service/internal/models"
)

// Renderer writes acknowledgment records as X12 997 text.
type Renderer struct {
	config *Config
}

// NewRenderer creates a renderer; a nil config selects defaults.
func NewRenderer(config *Config) *Renderer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Renderer{config: config}
}

// Bytes renders rec into memory.
func (r *Renderer) Bytes(rec *models.AcknowledgmentRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render writes one interchange containing a single FA group with one 997
// set per acknowledged source group.
func (r *Renderer) Render(w io.Writer, rec *models.AcknowledgmentRecord) error {
	if rec == nil {
		return fmt.Errorf("nil acknowledgment record")
	}

	out := r.newWriter(rec)
	src := rec.Interchange
	at := rec.GeneratedAt

	isaControl := src.ControlNumber
	if isaControl == "" {
		isaControl = "1"
	}
	if _, err := strconv.Atoi(isaControl); err == nil && len(isaControl) < 9 {
		isaControl = strings.Repeat("0", 9-len(isaControl)) + isaControl
	}
	version := src.Version
	if version == "" {
		version = r.config.Version
	}

	// ISA is fixed width; every element is written even when empty.
	out.fixed("ISA",
		orDefault(src.AuthQualifier, "00"), pad(src.AuthInfo, 10),
		orDefault(src.SecurityQualifier, "00"), pad(src.SecurityInfo, 10),
		orDefault(src.ReceiverQualifier, "ZZ"), pad(src.ReceiverID, 15),
		orDefault(src.SenderQualifier, "ZZ"), pad(src.SenderID, 15),
		at.Format("060102"), at.Format("1504"),
		orDefault(src.StandardsID, "U"), version, isaControl, "0",
		orDefault(src.UsageIndicator, "P"), out.component,
	)

	gsControl := "1"
	gsSender, gsReceiver := src.ReceiverID, src.SenderID
	if len(rec.Groups) > 0 {
		first := rec.Groups[0]
		gsControl = orDefault(first.ControlNumber, gsControl)
		gsSender = orDefault(first.ReceiverCode, gsSender)
		gsReceiver = orDefault(first.SenderCode, gsReceiver)
	}
	out.segment("GS", "FA", gsSender, gsReceiver,
		at.Format("20060102"), at.Format("1504"), gsControl, "X", r.config.GroupVersion)

	for i, ga := range rec.Groups {
		r.renderSet(out, ga, r.config.StartingControlNumber+i)
	}

	out.segment("GE", strconv.Itoa(len(rec.Groups)), gsControl)
	out.segment("IEA", "1", isaControl)

	_, err := w.Write(out.buf.Bytes())
	return err
}

func (r *Renderer) renderSet(out *writer, ga models.GroupAck, control int) {
	stControl := fmt.Sprintf("%04d", control)
	start := out.count

	out.segment("ST", "997", stControl)
	out.segment("AK1", ga.FunctionalIDCode, ga.ControlNumber)

	for _, sa := range ga.Sets {
		out.segment("AK2", sa.IdentifierCode, sa.ControlNumber)
		for _, note := range sa.SegmentNotes {
			out.segment("AK3", note.SegmentID, strconv.Itoa(note.Position), note.LoopID, note.ErrorCode)
			for _, el := range note.Elements {
				out.segment("AK4", strconv.Itoa(el.Position), "", el.ErrorCode, el.BadValue)
			}
		}
		out.segment("AK5", append([]string{string(sa.Status)}, limit(sa.SyntaxErrorCodes, 5)...)...)
	}

	out.segment("AK9", append([]string{
		string(ga.Status),
		strconv.Itoa(ga.Included),
		strconv.Itoa(ga.Received),
		strconv.Itoa(ga.Accepted),
	}, limit(ga.SyntaxErrorCodes, 5)...)...)

	// SE counts itself.
	out.segment("SE", strconv.Itoa(out.count-start+1), stControl)
}

type writer struct {
	buf        bytes.Buffer
	element    string
	terminator string
	component  string
	lineEnding string
	count      int
}

func (r *Renderer) newWriter(rec *models.AcknowledgmentRecord) *writer {
	w := &writer{
		element:    r.config.ElementSeparator,
		terminator: r.config.SegmentTerminator,
		component:  r.config.ComponentSeparator,
		lineEnding: r.config.LineEnding,
	}
	d := rec.Delimiters
	if r.config.MirrorDelimiters && d.Element != 0 && d.Segment != 0 {
		w.element = string(d.Element)
		w.terminator = string(d.Segment)
		if d.Component != 0 {
			w.component = string(d.Component)
		}
		if d.Segment == '\n' {
			w.lineEnding = ""
		}
	}
	if c := rec.Interchange.ComponentSeparator; len(c) == 1 {
		w.component = c
	}
	return w
}

func (w *writer) fixed(id string, elements ...string) {
	w.write(id + w.element + strings.Join(elements, w.element))
}

// segment drops trailing empty elements.
func (w *writer) segment(id string, elements ...string) {
	end := len(elements)
	for end > 0 && elements[end-1] == "" {
		end--
	}
	s := id
	if end > 0 {
		s += w.element + strings.Join(elements[:end], w.element)
	}
	w.write(s)
}

func (w *writer) write(s string) {
	w.buf.WriteString(s)
	w.buf.WriteString(w.terminator)
	w.buf.WriteString(w.lineEnding)
	w.count++
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func limit(codes []string, n int) []string {
	if len(codes) > n {
		return codes[:n]
	}
	return codes
}
