package parsers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/pkg/logger"
)

const testDataDir = "../../testdata/examples"

func readExample(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(testDataDir, name))
	require.NoError(t, err)
	return data
}

// isaHeader builds a fixed-width ISA segment using sep between elements.
func isaHeader(sep, control string) string {
	return strings.Join([]string{
		"ISA", "00", "          ", "00", "          ",
		"ZZ", "SENDERID       ", "ZZ", "RECEIVERID     ",
		"240102", "1200", "U", "00401", control, "0", "P", ">",
	}, sep)
}

// interchange joins segments with "~\n" behind a standard ISA header.
func interchange(segments ...string) string {
	all := append([]string{isaHeader("*", "000000101")}, segments...)
	return strings.Join(all, "~\n") + "~\n"
}

func assemble(t *testing.T, text string) (*models.Interchange, error) {
	t.Helper()
	pre, err := Preprocess("test.edi", []byte(text), nil)
	require.NoError(t, err)
	segs := Tokenize(pre.Segments, pre.Delimiters)
	return NewAssembler(nil, logger.Discard()).Assemble(segs, pre.Delimiters)
}

func mustAssemble(t *testing.T, text string) *models.Interchange {
	t.Helper()
	ic, err := assemble(t, text)
	require.NoError(t, err)
	require.NotNil(t, ic)
	return ic
}

func syntaxCodes(errs []models.SyntaxError) []string {
	codes := make([]string, 0, len(errs))
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	return codes
}

func hasAnnotation(notes []models.Annotation, fragment string) bool {
	for _, n := range notes {
		if strings.Contains(n.Message, fragment) {
			return true
		}
	}
	return false
}
