package queue

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("eventValues", func() {
	It("encodes urgencies as decimal strings and defaults the attempt", func() {
		urgency, previous := 0.75, 0.5
		values := eventValues(Event{
			Type:     EventTicketRetriaged,
			TicketID: "42",
			Urgency:  &urgency,
			Previous: &previous,
			TraceID:  "abc",
		})

		Expect(values).To(Equal(map[string]any{
			"event_type":       "ticket.retriaged",
			"ticket_id":        "42",
			"attempt":          1,
			"urgency":          "0.75",
			"previous_urgency": "0.5",
			"trace_id":         "abc",
		}))
	})

	It("omits optional fields", func() {
		values := eventValues(Event{Type: EventTicketDeleted, TicketID: "42", Attempt: 3})
		Expect(values).To(Equal(map[string]any{
			"event_type": "ticket.deleted",
			"ticket_id":  "42",
			"attempt":    3,
		}))
	})
})

var _ = Describe("ParseEvent", func() {
	It("reads back what the producer writes", func() {
		// Redis hands every field back as a string.
		event, err := ParseEvent("1-0", map[string]any{
			"event_type": "ticket.submitted",
			"ticket_id":  "42",
			"urgency":    "0.57",
			"attempt":    "1",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(event.ID).To(Equal("1-0"))
		Expect(event.Type).To(Equal(EventTicketSubmitted))
		Expect(event.TicketID).To(Equal("42"))
		Expect(*event.Urgency).To(Equal(0.57))
		Expect(event.Previous).To(BeNil())
		Expect(event.Attempt).To(Equal(1))
	})

	DescribeTable("rejects malformed entries",
		func(values map[string]any, msg string) {
			_, err := ParseEvent("1-0", values)
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("missing type", map[string]any{"ticket_id": "1"}, "missing event_type"),
		Entry("unknown type", map[string]any{"event_type": "ticket.exploded", "ticket_id": "1"}, "unknown event_type"),
		Entry("missing ticket", map[string]any{"event_type": "ticket.deleted"}, "missing ticket_id"),
		Entry("bad urgency", map[string]any{"event_type": "ticket.submitted", "ticket_id": "1", "urgency": "high"}, "parsing urgency"),
		Entry("bad attempt", map[string]any{"event_type": "ticket.submitted", "ticket_id": "1", "attempt": "x"}, "parsing attempt"),
	)
})

var _ = Describe("noopProducer", func() {
	It("accepts and drops events", func() {
		p := NewNoopProducer()
		Expect(p.Publish(context.Background(), Event{Type: EventTicketSubmitted, TicketID: "1"})).To(Succeed())
		Expect(p.Close()).To(Succeed())
	})
})
