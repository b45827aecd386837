package astm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHostQuery = "H|\\^&||c111^Roche^c111^4.2.2.1730^1^12345|||||||TSREQ^REAL|P|1|20210930123346\r\n" +
	"Q|1|^84509300023||ALL||||||||O\r\n" +
	"L|1|N\r\n"

func TestParseResults(t *testing.T) {
	p := NewParser(nil)
	msg := p.Parse(sampleResults)

	require.True(t, msg.Valid, msg.ValidationError)
	assert.Empty(t, msg.ValidationError)
	assert.Equal(t, CategoryResults, msg.Category)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, sampleResults, msg.Raw)

	require.NotNil(t, msg.Header)
	assert.Equal(t, "c111", msg.Header.ManufacturerID)
	assert.Equal(t, "Roche", msg.Header.Manufacturer)
	assert.Equal(t, "4.2.2.1730", msg.Header.SoftwareVersion)
	assert.Equal(t, "12345", msg.Header.BatchNumber)
	assert.Equal(t, "RSUPL", msg.Header.MessageType)
	assert.Equal(t, "P", msg.Header.ProcessingID)
	assert.Equal(t, "1", msg.Header.VersionNumber)
	assert.Equal(t, "20210930102739", msg.Header.Timestamp)

	require.NotNil(t, msg.Patient)
	assert.Equal(t, 1, msg.Patient.Sequence)

	require.NotNil(t, msg.Order)
	assert.Equal(t, "84509300023", msg.Order.SpecimenID)
	assert.Equal(t, "84509300023", msg.OrderID())

	require.Len(t, msg.Results, 2)
	assert.Equal(t, Result{
		Sequence:       1,
		TestCode:       "767",
		TestName:       "Glucosa",
		Value:          "95.4",
		Units:          "mg/dL",
		ReferenceRange: "70-110",
		Status:         "N",
		ControlID:      "cobas",
		Timestamp:      "20210930102739",
		Operator:       "tech1",
	}, msg.Results[0])
	assert.Equal(t, "687", msg.Results[1].TestCode)
	assert.Equal(t, "ALT (SGPT)", msg.Results[1].TestName)
	assert.False(t, msg.Results[1].IsNormal())

	require.Len(t, msg.Comments, 1)
	assert.Equal(t, "Sample OK", msg.Comments[0].Text)

	require.NotNil(t, msg.Terminator)
	assert.Equal(t, TerminationNormal, msg.Terminator.Code)
	assert.Nil(t, msg.Query)
}

func TestParseHostQuery(t *testing.T) {
	msg := NewParser(nil).Parse(sampleHostQuery)

	require.True(t, msg.Valid, msg.ValidationError)
	assert.Equal(t, CategoryHostQuery, msg.Category)
	require.NotNil(t, msg.Query)
	assert.Equal(t, "84509300023", msg.Query.SpecimenID)
	assert.Equal(t, "ALL", msg.Query.QueryRange)
	assert.Equal(t, "84509300023", msg.OrderID())
	assert.Empty(t, msg.Results)
}

func TestParseHeaderAndTerminatorOnly(t *testing.T) {
	msg := NewParser(nil).Parse("H|\\^&|||||||||TSREQ^REAL\rL|1|N\r")
	assert.True(t, msg.Valid)
	assert.Equal(t, CategoryHostQuery, msg.Category)
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		reason error
	}{
		{"terminator only", "L|1|N\r", ErrMissingHeader},
		{"header only", "H|\\^&\r", ErrMissingTerminator},
		{"neither", "R|1|^^^767|1\rC|1\r", ErrMissingHeader},
		{"empty", "", ErrEmptyFrame},
		{"blank lines", "\r\n\r\n  \n", ErrEmptyFrame},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewParser(nil).Parse(tc.text)
			assert.False(t, msg.Valid)
			assert.Equal(t, tc.reason.Error(), msg.ValidationError)
		})
	}
}

func TestParseInvalidKeepsSegments(t *testing.T) {
	msg := NewParser(nil).Parse("R|1|^^^767|95.4\rL|1|N\r")
	assert.False(t, msg.Valid)
	assert.Len(t, msg.Results, 1)
	assert.NotNil(t, msg.Terminator)
}

func TestParseLineEndings(t *testing.T) {
	for _, sep := range []string{"\r", "\n", "\r\n"} {
		msg := NewParser(nil).Parse("H|\\^&" + sep + "R|1|^^^767|1" + sep + sep + "L|1|N" + sep)
		assert.True(t, msg.Valid, "separator %q", sep)
		assert.Len(t, msg.Results, 1, "separator %q", sep)
	}
}

func TestParseUnknownTagsIgnored(t *testing.T) {
	msg := NewParser(nil).Parse("H|\\^&\rX|junk\r M|leading space\rL|1\r")
	assert.True(t, msg.Valid)
}

func TestParseDuplicateSegmentsLastWins(t *testing.T) {
	msg := NewParser(nil).Parse("H|\\^&|||||||||TSREQ\rL|1|N\rH|\\^&|||||||||RSUPL\rL|2|L\r")
	require.True(t, msg.Valid)
	assert.Equal(t, CategoryResults, msg.Category)
	assert.Equal(t, 2, msg.Terminator.Sequence)
	assert.Equal(t, TerminationLast, msg.Terminator.Code)
}

func TestParseIDsIncrease(t *testing.T) {
	p := NewParser(nil)
	inputs := []string{sampleResults, "", "L|1\r", sampleHostQuery, "garbage"}
	var last int64
	for _, in := range inputs {
		msg := p.Parse(in)
		assert.Equal(t, last+1, msg.ID)
		last = msg.ID
	}

	// Separate parsers number independently.
	assert.Equal(t, int64(1), NewParser(nil).Parse(sampleResults).ID)
}

func TestParseIDsConcurrent(t *testing.T) {
	p := NewParser(nil)
	const n = 200
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- p.Parse(sampleResults).ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing id %d", i)
	}
}

func TestParseReceivedTimestamp(t *testing.T) {
	p := NewParser(nil)
	ts := time.Date(2021, 9, 30, 10, 27, 39, 0, time.Local)
	p.now = func() time.Time { return ts }
	msg := p.Parse(sampleHostQuery)
	assert.Equal(t, ts, msg.Received)
	assert.Equal(t, "ASTM [HOST_QUERY] - Order: 84509300023 | 2021-09-30 10:27:39", msg.String())

	msg = p.Parse(sampleResults)
	assert.Equal(t, "ASTM [RESULTS] - 2 results | 2021-09-30 10:27:39", msg.String())
}

func TestMessageEvents(t *testing.T) {
	p := NewParser(nil)

	events := p.Parse("L|1\r").Events()
	require.Len(t, events, 1)
	assert.Equal(t, LevelError, events[0].Level)
	assert.Equal(t, "invalid frame: missing header segment", events[0].Text)

	events = p.Parse("H|\\^&\rR|1|^^^790|9.1|mg/dL||C\rL|1\r").Events()
	require.Len(t, events, 3)
	assert.Equal(t, LevelSuccess, events[0].Level)
	assert.Equal(t, "RESULTS - 1 results", events[0].Text)
	assert.Equal(t, LevelInfo, events[1].Level)
	assert.Equal(t, "Test #1: Creatinina (790) = 9.1 mg/dL [C]", events[1].Text)
	assert.Equal(t, LevelWarning, events[2].Level)

	events = p.Parse(sampleHostQuery).Events()
	require.Len(t, events, 2)
	assert.Equal(t, "host query for order 84509300023", events[1].Text)
	assert.Equal(t, EventCategory, events[1].Category)
}
