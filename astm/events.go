package astm

import "fmt"

type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelSuccess
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// EventCategory is the category of events derived from messages.
const EventCategory = "ASTM"

// Event is a human readable log line about a processed frame.
type Event struct {
	Level    Level
	Category string
	Text     string
}

// Events describes the message as log lines for an operator.
func (m *Message) Events() []Event {
	if !m.Valid {
		return []Event{{LevelError, EventCategory, "invalid frame: " + m.ValidationError}}
	}

	events := []Event{{LevelSuccess, EventCategory, fmt.Sprintf("%s - %d results", m.Category, len(m.Results))}}
	if m.Category == CategoryHostQuery && m.Query != nil {
		events = append(events, Event{LevelInfo, EventCategory, "host query for order " + m.OrderID()})
	}
	for _, r := range m.Results {
		events = append(events, Event{LevelInfo, EventCategory, r.String()})
		if r.IsCritical() {
			events = append(events, Event{LevelWarning, EventCategory, fmt.Sprintf("critical result for %s: %s %s", r.TestName, r.Value, r.Units)})
		}
	}
	return events
}
