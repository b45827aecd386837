package astm

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryHostQuery Category = "HOST_QUERY"
	CategoryResults   Category = "RESULTS"
)

// hostQueryToken marks a header message type as a host query.
const hostQueryToken = "TSREQ"

func categoryOf(h *Header) Category {
	if h != nil && strings.Contains(h.MessageType, hostQueryToken) {
		return CategoryHostQuery
	}
	return CategoryResults
}

// Message is one decoded frame. Messages are not modified after Parse
// returns them.
type Message struct {
	ID              int64     `json:"id"`
	Raw             string    `json:"raw"`
	Received        time.Time `json:"received"`
	Valid           bool      `json:"valid"`
	ValidationError string    `json:"validationError,omitempty"`
	Category        Category  `json:"category"`

	Header     *Header     `json:"header,omitempty"`
	Patient    *Patient    `json:"patient,omitempty"`
	Order      *Order      `json:"order,omitempty"`
	Query      *Query      `json:"query,omitempty"`
	Results    []Result    `json:"results"`
	Comments   []Comment   `json:"comments"`
	Terminator *Terminator `json:"terminator,omitempty"`
}

// OrderID returns the specimen the message refers to: the queried
// specimen for host queries, the order specimen otherwise.
func (m *Message) OrderID() string {
	if m.Category == CategoryHostQuery && m.Query != nil {
		return strings.TrimLeft(m.Query.SpecimenID, ComponentDelimiter)
	}
	if m.Order != nil {
		return m.Order.SpecimenID
	}
	return ""
}

func (m *Message) String() string {
	ts := m.Received.Format(time.DateTime)
	if m.Category == CategoryHostQuery && m.Query != nil {
		id := m.OrderID()
		if id == "" {
			id = "N/A"
		}
		return fmt.Sprintf("ASTM [%s] - Order: %s | %s", m.Category, id, ts)
	}
	return fmt.Sprintf("ASTM [%s] - %d results | %s", m.Category, len(m.Results), ts)
}
