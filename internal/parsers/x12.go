// Package parsers turns raw X12 810 interchanges into assembled documents.
//
// Processing happens in three stages, each a pure function of its input:
//
//   - Preprocess discovers delimiters from the ISA header, repairs encoding
//     and line endings, and splits the stream into raw segments.
//   - Tokenize splits raw segments into elements and checks their arity.
//   - Assembler walks the segments with an explicit state machine and builds
//     the interchange, functional groups and invoice transaction sets.
//
// None of the stages abort on recoverable defects. They record annotations
// and flags on the output instead, and only input that cannot be recognized
// as an X12 interchange produces an error.
package parsers

// Segment identifiers handled by the assembler.
const (
	SegISA = "ISA"
	SegIEA = "IEA"
	SegGS  = "GS"
	SegGE  = "GE"
	SegST  = "ST"
	SegSE  = "SE"
	SegBIG = "BIG"
	SegCUR = "CUR"
	SegREF = "REF"
	SegN1  = "N1"
	SegN3  = "N3"
	SegN4  = "N4"
	SegIT1 = "IT1"
	SegPID = "PID"
	SegAMT = "AMT"
	SegSAC = "SAC"
	SegTXI = "TXI"
	SegTDS = "TDS"
	SegCTT = "CTT"
)

// ISA element positions.
const (
	isaAuthQualifier      = 1
	isaAuthInfo           = 2
	isaSecurityQualifier  = 3
	isaSecurityInfo       = 4
	isaSenderQualifier    = 5
	isaSenderID           = 6
	isaReceiverQualifier  = 7
	isaReceiverID         = 8
	isaDate               = 9
	isaTime               = 10
	isaStandardsID        = 11
	isaVersion            = 12
	isaControlNumber      = 13
	isaAckRequested       = 14
	isaUsageIndicator     = 15
	isaComponentSeparator = 16
)

// GS element positions.
const (
	gsFunctionalID  = 1
	gsSenderCode    = 2
	gsReceiverCode  = 3
	gsDate          = 4
	gsTime          = 5
	gsControlNumber = 6
	gsAgency        = 7
	gsVersion       = 8
)

// Trailer element positions shared by SE, GE and IEA.
const (
	trailerCount         = 1
	trailerControlNumber = 2
)

// 810 detail element positions.
const (
	bigInvoiceDate   = 1
	bigInvoiceNumber = 2
	bigPODate        = 3
	bigPONumber      = 4

	n1Qualifier   = 1
	n1Name        = 2
	n1IDQualifier = 3
	n1IDCode      = 4

	n4City       = 1
	n4State      = 2
	n4PostalCode = 3
	n4Country    = 4

	it1LineNumber  = 1
	it1Quantity    = 2
	it1UOM         = 3
	it1UnitPrice   = 4
	it1IDQualifier = 6
	it1ProductCode = 7
	it1Description = 9

	pidDescription = 5

	amtQualifier = 1
	amtAmount    = 2

	sacIndicator   = 1
	sacCode        = 2
	sacAmount      = 5
	sacDescription = 15

	sacSalesTax = "H850"

	txiType   = 1
	txiAmount = 2

	refQualifier = 1
	refValue     = 2

	tdsAmount = 1
	curCode   = 2
	cttCount  = 1
)

// ISAElementCount is the fixed number of data elements in an ISA header.
const ISAElementCount = 16

// arity bounds the number of data elements (excluding the identifier).
type arity struct {
	min, max int
}

// segmentArity lists the X12 segments this parser recognizes.
var segmentArity = map[string]arity{
	SegISA: {16, 16},
	SegIEA: {2, 2},
	SegGS:  {8, 8},
	SegGE:  {2, 2},
	SegST:  {2, 3},
	SegSE:  {2, 2},
	SegBIG: {2, 10},
	SegCUR: {2, 21},
	SegREF: {2, 4},
	SegN1:  {1, 6},
	SegN2:  {1, 2},
	SegN3:  {1, 2},
	SegN4:  {1, 7},
	SegIT1: {1, 25},
	SegPID: {1, 9},
	SegAMT: {2, 3},
	SegSAC: {1, 16},
	SegTXI: {1, 10},
	SegTDS: {1, 4},
	SegCTT: {1, 7},
	SegDTM: {1, 6},
	SegITD: {1, 15},
	SegFOB: {1, 9},
	SegCAD: {1, 10},
	SegPER: {1, 9},
	SegISS: {1, 6},
	SegTD5: {1, 15},
	SegNTE: {1, 2},
	SegPKG: {1, 9},
	SegMSG: {1, 3},
}

// Segments that may appear in an 810 but carry nothing this parser extracts.
const (
	SegN2  = "N2"
	SegDTM = "DTM"
	SegITD = "ITD"
	SegFOB = "FOB"
	SegCAD = "CAD"
	SegPER = "PER"
	SegISS = "ISS"
	SegTD5 = "TD5"
	SegNTE = "NTE"
	SegPKG = "PKG"
	SegMSG = "MSG"
)

var ignorableSegments = map[string]bool{
	SegN2: true, SegDTM: true, SegITD: true, SegFOB: true, SegCAD: true, SegPER: true,
	SegISS: true, SegTD5: true, SegNTE: true, SegPKG: true, SegMSG: true,
}
