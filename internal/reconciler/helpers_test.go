package reconciler

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"golang-edi-invoice-service/internal/models"
	"golang-edi-invoice-service/internal/parsers"
	"golang-edi-invoice-service/internal/resolver"
	"golang-edi-invoice-service/pkg/logger"
)

const testDataDir = "../../testdata/examples"

var ackTime = time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)

func readExample(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(testDataDir, name))
	require.NoError(t, err)
	return data
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrentFiles = 2
	cfg.Ack.Clock = func() time.Time { return ackTime }
	return cfg
}

func newTestService(t *testing.T, policies PolicySource) *Service {
	t.Helper()
	svc, err := NewService(testConfig(), policies, logger.Discard())
	require.NoError(t, err)
	return svc
}

// invoice wraps 810 body segments (everything between ST and SE) in a
// complete interchange with a correct SE count.
func invoice(sender string, body ...string) string {
	isa := strings.Join([]string{
		"ISA", "00", "          ", "00", "          ",
		"ZZ", padRight(sender, 15), "ZZ", "RECEIVERID     ",
		"240102", "1200", "U", "00401", "000000901", "0", "P", ">",
	}, "*")

	segs := []string{isa, "GS*IN*" + sender + "*RECEIVERID*20240102*1200*901*X*004010", "ST*810*0001"}
	segs = append(segs, body...)
	segs = append(segs,
		"SE*"+strconv.Itoa(len(body)+2)+"*0001",
		"GE*1*901",
		"IEA*1*000000901",
	)
	return strings.Join(segs, "~\n") + "~\n"
}

// resolvedSet assembles a single-set invoice and resolves it with the
// default policy, leaving validation to the caller.
func resolvedSet(t *testing.T, body ...string) *models.TransactionSet {
	t.Helper()
	pre, err := parsers.Preprocess("test.edi", []byte(invoice("SENDERID", body...)), nil)
	require.NoError(t, err)
	ic, err := parsers.NewAssembler(nil, logger.Discard()).
		Assemble(parsers.Tokenize(pre.Segments, pre.Delimiters), pre.Delimiters)
	require.NoError(t, err)

	sets := ic.TransactionSets()
	require.Len(t, sets, 1)
	resolver.New(nil, logger.Discard()).Resolve(sets[0])
	return sets[0]
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
