package parsers

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Preprocessed is a raw interchange split into segments.
type Preprocessed struct {
	Segments   []string
	Delimiters models.Delimiters
	Encoding   string
	Notes      []models.Annotation
}

func (p *Preprocessed) note(sev models.Severity, format string, args ...interface{}) {
	p.Notes = append(p.Notes, models.Annotation{
		Severity:     sev,
		SegmentIndex: -1,
		Message:      fmt.Sprintf(format, args...),
	})
}

// Preprocess discovers the delimiters declared by the ISA header and splits
// raw into segment strings. It fails only when no ISA header can be found.
func Preprocess(source string, raw []byte, config *ParseConfig) (*Preprocessed, error) {
	if config == nil {
		config = DefaultParseConfig()
	}

	out := &Preprocessed{Encoding: "utf-8", Delimiters: config.defaults()}

	if bytes.HasPrefix(raw, utf8BOM) {
		raw = raw[len(utf8BOM):]
		out.note(models.SeverityInfo, "UTF-8 byte order mark removed")
	}

	text, err := decode(raw, config, out)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInput, errors.CodeEncodingError,
			fmt.Sprintf("cannot decode %s", source))
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	start := findISA(text)
	if start < 0 {
		return nil, errors.MalformedInput(source, "no ISA interchange header found", nil)
	}
	if strings.TrimSpace(text[:start]) != "" {
		out.note(models.SeverityWarning, "%d bytes before the ISA header ignored", start)
	}
	text = text[start:]

	discoverDelimiters(text, out)

	for _, piece := range strings.Split(text, string(out.Delimiters.Segment)) {
		piece = strings.Trim(piece, "\n")
		piece = strings.TrimLeft(piece, " \t")
		if strings.TrimSpace(piece) == "" {
			continue
		}
		out.Segments = append(out.Segments, piece)
	}

	return out, nil
}

func decode(raw []byte, config *ParseConfig, out *Preprocessed) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	if strings.EqualFold(config.FallbackEncoding, "windows-1252") {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return "", err
		}
		out.Encoding = "windows-1252"
		out.note(models.SeverityWarning, "input is not valid UTF-8, decoded as Windows-1252")
		return string(decoded), nil
	}

	out.note(models.SeverityWarning, "input is not valid UTF-8, invalid bytes replaced")
	return strings.ToValidUTF8(string(raw), "\uFFFD"), nil
}

// findISA returns the offset of the first "ISA" that is followed by a
// delimiter rather than more identifier characters.
func findISA(text string) int {
	offset := 0
	for {
		i := strings.Index(text[offset:], SegISA)
		if i < 0 {
			return -1
		}
		pos := offset + i
		next, _ := utf8.DecodeRuneInString(text[pos+len(SegISA):])
		if next != utf8.RuneError && isDelimiterRune(next) {
			return pos
		}
		offset = pos + len(SegISA)
	}
}

// discoverDelimiters reads the element separator at ISA position 3 and the
// segment terminator that follows the ISA16 component separator.
func discoverDelimiters(text string, out *Preprocessed) {
	runes := []rune(text)
	if len(runes) > len(SegISA) {
		out.Delimiters.Element = runes[len(SegISA)]
	}

	seen := 0
	for i := len(SegISA); i < len(runes); i++ {
		if runes[i] != out.Delimiters.Element {
			continue
		}
		seen++
		if seen < ISAElementCount {
			continue
		}
		if i+1 < len(runes) {
			out.Delimiters.Component = runes[i+1]
		}
		if i+2 < len(runes) {
			term := runes[i+2]
			switch {
			case term == '\n':
				out.Delimiters.Segment = term
			case isDelimiterRune(term) && term != out.Delimiters.Element:
				out.Delimiters.Segment = term
			default:
				out.note(models.SeverityWarning, "unrecognized segment terminator %q, using %q", term, out.Delimiters.Segment)
			}
			return
		}
		break
	}

	out.note(models.SeverityWarning, "ISA header truncated, using segment terminator %q", out.Delimiters.Segment)
}
