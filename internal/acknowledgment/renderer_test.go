package acknowledgment

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-edi-invoice-service/internal/models"
)

func mixedRecord() *models.AcknowledgmentRecord {
	return &models.AcknowledgmentRecord{
		Interchange: models.InterchangeRef{
			SenderQualifier:    "ZZ",
			SenderID:           "ACME",
			ReceiverQualifier:  "01",
			ReceiverID:         "BUYERCO",
			StandardsID:        "U",
			Version:            "00401",
			ControlNumber:      "000000042",
			UsageIndicator:     "T",
			ComponentSeparator: ">",
		},
		GeneratedAt: fixedTime,
		Groups: []models.GroupAck{{
			FunctionalIDCode: "IN",
			ControlNumber:    "42",
			SenderCode:       "ACME",
			ReceiverCode:     "BUYERCO",
			Status:           models.AckPartiallyAccepted,
			Included:         3,
			Received:         2,
			Accepted:         1,
			Rejected:         1,
			SyntaxErrorCodes: []string{"5"},
			Sets: []models.TransactionSetAck{
				{
					IdentifierCode: "810",
					ControlNumber:  "0001",
					Status:         models.AckAcceptedWithErrors,
					SegmentNotes: []models.SegmentNote{
						{SegmentID: "TDS", Position: 7, ErrorCode: "8",
							Elements: []models.ElementNote{{Position: 1, ErrorCode: "7", BadValue: "10000"}}},
						{SegmentID: "AMT", Position: 5, ErrorCode: "8",
							Elements: []models.ElementNote{{Position: 2, ErrorCode: "7", BadValue: "19.00"}}},
					},
				},
				{
					IdentifierCode:   "810",
					ControlNumber:    "0002",
					Status:           models.AckRejected,
					SyntaxErrorCodes: []string{"2", "4"},
				},
			},
		}},
	}
}

func segments(t *testing.T, out []byte) []string {
	t.Helper()
	text := strings.TrimSuffix(string(out), "~\n")
	return strings.Split(text, "~\n")
}

func TestRenderGolden(t *testing.T) {
	out, err := NewRenderer(testConfig()).Bytes(mixedRecord())
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "mixed_status_997", out)
}

func TestRenderEnvelope(t *testing.T) {
	out, err := NewRenderer(testConfig()).Bytes(mixedRecord())
	require.NoError(t, err)
	segs := segments(t, out)

	isa := strings.Split(segs[0], "*")
	require.Len(t, isa, 17)
	assert.Equal(t, "01", isa[5])
	assert.Equal(t, "BUYERCO        ", isa[6])
	assert.Equal(t, "ZZ", isa[7])
	assert.Equal(t, "ACME           ", isa[8])
	assert.Equal(t, "240305", isa[9])
	assert.Equal(t, "0907", isa[10])
	assert.Equal(t, "000000042", isa[13])
	assert.Equal(t, "T", isa[15])
	assert.Equal(t, ">", isa[16])

	assert.Equal(t, "GS*FA*BUYERCO*ACME*20240305*0907*42*X*004010", segs[1])
	assert.Equal(t, "GE*1*42", segs[len(segs)-2])
	assert.Equal(t, "IEA*1*000000042", segs[len(segs)-1])
}

func TestRenderSetBody(t *testing.T) {
	out, err := NewRenderer(testConfig()).Bytes(mixedRecord())
	require.NoError(t, err)
	segs := segments(t, out)

	body := segs[2 : len(segs)-2]
	assert.Equal(t, []string{
		"ST*997*1001",
		"AK1*IN*42",
		"AK2*810*0001",
		"AK3*TDS*7**8",
		"AK4*1**7*10000",
		"AK3*AMT*5**8",
		"AK4*2**7*19.00",
		"AK5*E",
		"AK2*810*0002",
		"AK5*R*2*4",
		"AK9*P*3*2*1*5",
		"SE*12*1001",
	}, body)
}

func TestRenderOneSetPerGroup(t *testing.T) {
	rec := mixedRecord()
	second := rec.Groups[0]
	second.ControlNumber = "43"
	second.Sets = second.Sets[:1]
	rec.Groups = append(rec.Groups, second)

	out, err := NewRenderer(testConfig()).Bytes(rec)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "ST*997*1001~")
	assert.Contains(t, text, "ST*997*1002~")
	assert.Contains(t, text, "AK1*IN*43~")
	assert.Contains(t, text, "GE*2*42~")
}

func TestRenderMirrorsSourceDelimiters(t *testing.T) {
	rec := mixedRecord()
	rec.Delimiters = models.Delimiters{Element: '|', Segment: '\n', Component: '^'}
	rec.Interchange.ComponentSeparator = "^"

	out, err := NewRenderer(testConfig()).Bytes(rec)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "ISA|00|"))
	assert.True(t, strings.HasSuffix(lines[0], "|T|^"))
	assert.Equal(t, "GS|FA|BUYERCO|ACME|20240305|0907|42|X|004010", lines[1])
	assert.Equal(t, "IEA|1|000000042", lines[len(lines)-1])
}

func TestRenderWithoutMirroring(t *testing.T) {
	cfg := testConfig()
	cfg.MirrorDelimiters = false
	cfg.LineEnding = ""
	rec := mixedRecord()
	rec.Delimiters = models.Delimiters{Element: '|', Segment: '\n', Component: '^'}

	out, err := NewRenderer(cfg).Bytes(rec)
	require.NoError(t, err)

	assert.False(t, bytes.Contains(out, []byte("\n")))
	assert.True(t, bytes.HasPrefix(out, []byte("ISA*00*")))
	assert.True(t, bytes.HasSuffix(out, []byte("IEA*1*000000042~")))
}

func TestRenderEmptyRecord(t *testing.T) {
	rec := &models.AcknowledgmentRecord{GeneratedAt: fixedTime}

	out, err := NewRenderer(testConfig()).Bytes(rec)
	require.NoError(t, err)
	segs := segments(t, out)

	require.Len(t, segs, 4)
	assert.Contains(t, segs[0], "*000000001*0*P*>")
	assert.Equal(t, "GE*0*1", segs[2])
	assert.Equal(t, "IEA*1*000000001", segs[3])
}

func TestRenderNilRecord(t *testing.T) {
	_, err := NewRenderer(nil).Bytes(nil)
	assert.Error(t, err)
}
