package astm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Canonical delimiters. The header declares them but decoding always uses
// these.
const (
	FieldDelimiter     = "|"
	ComponentDelimiter = "^"
	RepeatDelimiter    = `\`
	EscapeCharacter    = "&"
)

// Result status codes.
const (
	StatusNormal   = "N"
	StatusAbnormal = "A"
	StatusCritical = "C"
)

// Termination codes.
const (
	TerminationNormal = "N"
	TerminationLast   = "L"
)

type Header struct {
	FieldDelimiter     string `json:"fieldDelimiter"`
	ComponentDelimiter string `json:"componentDelimiter"`
	RepeatDelimiter    string `json:"repeatDelimiter"`
	EscapeCharacter    string `json:"escapeCharacter"`

	ManufacturerID  string `json:"manufacturerId"`
	Manufacturer    string `json:"manufacturer"`
	VersionID       string `json:"versionId"`
	SoftwareVersion string `json:"softwareVersion"`
	SerialNumber    string `json:"serialNumber"`
	BatchNumber     string `json:"batchNumber"`

	MessageType   string `json:"messageType"`
	ProcessingID  string `json:"processingId"`
	VersionNumber string `json:"versionNumber"`
	Timestamp     string `json:"timestamp"`
}

func (h Header) String() string {
	return fmt.Sprintf("Equipment: %s %s | Version: %s | Type: %s | Time: %s",
		h.Manufacturer, h.ManufacturerID, h.SoftwareVersion, h.MessageType, h.Timestamp)
}

type Patient struct {
	Sequence    int    `json:"sequence"`
	PatientID   string `json:"patientId"`
	PatientName string `json:"patientName"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	Age         string `json:"age"`
}

func (p Patient) String() string {
	return fmt.Sprintf("Patient: %s (ID: %s)", p.PatientName, p.PatientID)
}

type Order struct {
	Sequence          int    `json:"sequence"`
	SpecimenID        string `json:"specimenId"`
	TypeOfSample      string `json:"typeOfSample"`
	Priority          string `json:"priority"`
	RequestedDateTime string `json:"requestedDateTime"`
	ReportDateTime    string `json:"reportDateTime"`
	ReportType        string `json:"reportType"`
}

func (o Order) String() string {
	return fmt.Sprintf("Order: %s | Sample: %s | Priority: %s", o.SpecimenID, o.TypeOfSample, o.Priority)
}

type Query struct {
	Sequence    int    `json:"sequence"`
	SpecimenID  string `json:"specimenId"`
	PatientID   string `json:"patientId"`
	QueryRange  string `json:"queryRange"`
	SampleType  string `json:"sampleType"`
	RequestInfo string `json:"requestInfo"`
}

func (q Query) String() string {
	return fmt.Sprintf("Query - Specimen: %s, Range: %s", q.SpecimenID, q.QueryRange)
}

type Result struct {
	Sequence            int    `json:"sequence"`
	TestCode            string `json:"testCode"`
	TestName            string `json:"testName"`
	Value               string `json:"value"`
	Units               string `json:"units"`
	ReferenceRange      string `json:"referenceRange"`
	Status              string `json:"status"`
	NormalizationFactor string `json:"normalizationFactor"`
	ControlID           string `json:"controlId"`
	Timestamp           string `json:"timestamp"`
	Operator            string `json:"operator"`
}

func (r Result) IsNormal() bool {
	return r.Status == StatusNormal
}

func (r Result) IsCritical() bool {
	return r.Status == StatusCritical
}

func (r Result) String() string {
	return fmt.Sprintf("Test #%d: %s (%s) = %s %s [%s]", r.Sequence, r.TestName, r.TestCode, r.Value, r.Units, r.Status)
}

type Comment struct {
	Sequence int    `json:"sequence"`
	Type     string `json:"type"`
	Text     string `json:"text"`
	QCCode   string `json:"qcCode"`
}

func (c Comment) String() string {
	return fmt.Sprintf("Comment [%s]: %s", c.Type, c.Text)
}

type Terminator struct {
	Sequence int    `json:"sequence"`
	Code     string `json:"code"`
}

func (t Terminator) String() string {
	return fmt.Sprintf("End of message [%s]", t.Code)
}

// fields is one record split on the field delimiter. Index 0 is the
// segment tag.
type fields []string

func splitFields(line string) fields {
	return strings.Split(line, FieldDelimiter)
}

// at returns field i or "" past the end.
func (f fields) at(i int) string {
	if i < len(f) {
		return f[i]
	}
	return ""
}

// or returns field i, or def when the record is too short to hold it. A
// present but empty field stays empty.
func (f fields) or(i int, def string) string {
	if i < len(f) {
		return f[i]
	}
	return def
}

func (f fields) trimmed(i int) string {
	return strings.TrimSpace(f.at(i))
}

func (f fields) components(i int) fields {
	if i >= len(f) {
		return nil
	}
	return strings.Split(f[i], ComponentDelimiter)
}

// sequence parses field i as an integer, zero when absent or malformed.
func (f fields) sequence(i int) int {
	n, err := strconv.Atoi(strings.TrimSpace(f.at(i)))
	if err != nil {
		return 0
	}
	return n
}

func decodeHeader(line string) Header {
	f := splitFields(line)
	equipment := f.components(3)
	messageType := f.components(10)
	return Header{
		FieldDelimiter:     FieldDelimiter,
		ComponentDelimiter: ComponentDelimiter,
		RepeatDelimiter:    RepeatDelimiter,
		EscapeCharacter:    EscapeCharacter,

		ManufacturerID:  equipment.at(0),
		Manufacturer:    equipment.at(1),
		VersionID:       equipment.at(2),
		SoftwareVersion: equipment.at(3),
		SerialNumber:    equipment.at(4),
		BatchNumber:     equipment.at(5),

		MessageType:   messageType.at(0),
		ProcessingID:  f.at(11),
		VersionNumber: f.at(12),
		Timestamp:     f.at(13),
	}
}

func decodePatient(line string) Patient {
	f := splitFields(line)
	return Patient{
		Sequence:    f.sequence(1),
		PatientID:   f.at(2),
		PatientName: f.at(5),
		DateOfBirth: f.at(7),
		Gender:      f.at(8),
		Age:         f.at(10),
	}
}

func decodeOrder(line string) Order {
	f := splitFields(line)
	return Order{
		Sequence:     f.sequence(1),
		SpecimenID:   f.at(2),
		TypeOfSample: f.at(5),
		Priority:     f.or(6, "R"),
		// The c 111 sends the requested time in the priority position.
		RequestedDateTime: f.at(6),
		ReportDateTime:    f.at(11),
		ReportType:        f.at(14),
	}
}

func decodeQuery(line string) Query {
	f := splitFields(line)
	return Query{
		Sequence:    f.sequence(1),
		SpecimenID:  f.components(2).trimmed(1),
		PatientID:   f.trimmed(3),
		QueryRange:  f.trimmed(4),
		SampleType:  f.trimmed(5),
		RequestInfo: f.trimmed(6),
	}
}

func decodeResult(line string, catalog *Catalog) Result {
	f := splitFields(line)
	code := testCode(f.components(2))
	return Result{
		Sequence:            f.sequence(1),
		TestCode:            code,
		TestName:            catalog.Lookup(code),
		Value:               f.trimmed(3),
		Units:               f.trimmed(4),
		ReferenceRange:      f.trimmed(5),
		Status:              strings.TrimSpace(f.or(6, StatusNormal)),
		NormalizationFactor: f.trimmed(7),
		ControlID:           f.trimmed(9),
		Timestamp:           f.trimmed(11),
		Operator:            f.trimmed(13),
	}
}

// testCode extracts the numeric code from the fourth component of the
// universal test id. Stray control characters around the digits are
// common, so everything but digits is removed.
func testCode(id fields) string {
	if len(id) <= 3 {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, strings.TrimFunc(id[3], unicode.IsSpace))
}

func decodeComment(line string) Comment {
	f := splitFields(line)
	return Comment{
		Sequence: f.sequence(1),
		Type:     f.or(2, "I"),
		Text:     f.at(3),
		QCCode:   f.at(4),
	}
}

func decodeTerminator(line string) Terminator {
	f := splitFields(line)
	return Terminator{
		Sequence: f.sequence(1),
		Code:     f.or(2, TerminationNormal),
	}
}
