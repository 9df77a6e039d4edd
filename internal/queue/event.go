package queue

import (
	"fmt"
	"strconv"
)

// EventType names a ticket lifecycle event on the stream.
type EventType string

const (
	EventTicketSubmitted EventType = "ticket.submitted"
	EventTicketRetriaged EventType = "ticket.retriaged"
	EventTicketDeleted   EventType = "ticket.deleted"
)

func (t EventType) valid() bool {
	switch t {
	case EventTicketSubmitted, EventTicketRetriaged, EventTicketDeleted:
		return true
	}
	return false
}

// Event is one ticket lifecycle notification.
type Event struct {
	ID       string // stream entry id, set when read back
	Type     EventType
	TicketID string
	Urgency  *float64 // absent for deletions
	Previous *float64 // urgency before a re-triage
	Attempt  int
	TraceID  string
}

func eventValues(e Event) map[string]any {
	attempt := e.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	values := map[string]any{
		"event_type": string(e.Type),
		"ticket_id":  e.TicketID,
		"attempt":    attempt,
	}
	if e.Urgency != nil {
		values["urgency"] = formatFloat(*e.Urgency)
	}
	if e.Previous != nil {
		values["previous_urgency"] = formatFloat(*e.Previous)
	}
	if e.TraceID != "" {
		values["trace_id"] = e.TraceID
	}
	return values
}

// ParseEvent decodes stream entry values written by the producer.
func ParseEvent(id string, values map[string]any) (Event, error) {
	eventType, err := parseString(values, "event_type")
	if err != nil {
		return Event{}, err
	}
	if !EventType(eventType).valid() {
		return Event{}, fmt.Errorf("unknown event_type %q", eventType)
	}

	ticketID, err := parseString(values, "ticket_id")
	if err != nil {
		return Event{}, err
	}
	if ticketID == "" {
		return Event{}, fmt.Errorf("missing ticket_id")
	}

	urgency, err := parseOptionalFloat(values, "urgency")
	if err != nil {
		return Event{}, err
	}
	previous, err := parseOptionalFloat(values, "previous_urgency")
	if err != nil {
		return Event{}, err
	}
	attempt, err := parseOptionalInt(values, "attempt")
	if err != nil {
		return Event{}, err
	}
	if attempt == 0 {
		attempt = 1
	}
	traceID, err := parseOptionalString(values, "trace_id")
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:       id,
		Type:     EventType(eventType),
		TicketID: ticketID,
		Urgency:  urgency,
		Previous: previous,
		Attempt:  attempt,
		TraceID:  traceID,
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalFloat(values map[string]any, key string) (*float64, error) {
	raw, ok := values[key]
	if !ok {
		return nil, nil
	}
	num, err := strconv.ParseFloat(fmt.Sprint(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	return &num, nil
}
