package worker_test

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/triage/core/kv"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/scoring"
	"basegraph.app/triage/internal/store"
	"basegraph.app/triage/internal/worker"
)

var _ = Describe("Scheduler", func() {
	var (
		ctx     context.Context
		clock   *clockwork.FakeClock
		engine  *scoring.Engine
		tickets *failingStore
		events  *recordingProducer
		deps    worker.SchedulerDeps
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
		engine = scoring.NewEngine(clock, nil)
		tickets = &failingStore{TicketStore: store.NewTicketStore(kv.NewMemory(), clock)}
		events = &recordingProducer{}
		deps = worker.SchedulerDeps{Store: tickets, Scorer: engine, Events: events, Clock: clock}
	})

	// submit scores and stores a pending ticket the way the service does.
	submit := func(id string, deadline time.Time) {
		t := &model.Ticket{ID: id, Type: "vendor payment", Status: model.StatusPending, Deadline: &deadline}
		engine.Score(ctx, t).ApplyTo(t)
		_, err := tickets.Store(ctx, t)
		Expect(err).NotTo(HaveOccurred())
	}

	get := func(id string) *model.Ticket {
		t, err := tickets.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	Describe("Tick", func() {
		It("rewrites a ticket whose deadline has passed", func() {
			submit("1", clock.Now().Add(20*24*time.Hour))
			before := get("1")
			Expect(before.UrgencyBreakdown.Factors.Deadline).To(Equal(0.3))

			clock.Advance(21 * 24 * time.Hour)
			result := worker.NewScheduler(deps, worker.SchedulerConfig{}).Tick(ctx)

			Expect(result).To(Equal(worker.TickResult{Checked: 1, Updated: 1}))
			after := get("1")
			Expect(after.UrgencyBreakdown.Factors.Deadline).To(Equal(1.0))
			Expect(after.Urgency - before.Urgency).To(BeNumerically(">", 0.1))
			Expect(after.LastUpdated).NotTo(BeNil())
			Expect(*after.LastUpdated).To(BeTemporally("==", clock.Now()))
			Expect(after.CreatedAt).To(Equal(before.CreatedAt))
			Expect(after.Tags).To(ContainElement("urgent-deadline"))
		})

		It("leaves tickets alone when the change is within the threshold", func() {
			submit("1", clock.Now().Add(60*24*time.Hour))

			clock.Advance(time.Hour)
			result := worker.NewScheduler(deps, worker.SchedulerConfig{}).Tick(ctx)

			Expect(result).To(Equal(worker.TickResult{Checked: 1}))
			Expect(get("1").LastUpdated).To(BeNil())
			Expect(events.Events()).To(BeEmpty())
		})

		It("treats a change equal to the threshold as no change", func() {
			_, err := tickets.Store(ctx, &model.Ticket{ID: "1", Status: model.StatusPending, Urgency: 0.5})
			Expect(err).NotTo(HaveOccurred())
			deps.Scorer = &mockScorer{scoreFn: func(context.Context, *model.Ticket) scoring.Result {
				return scoring.Result{Score: 0.75}
			}}

			result := worker.NewScheduler(deps, worker.SchedulerConfig{Threshold: 0.25}).Tick(ctx)
			Expect(result).To(Equal(worker.TickResult{Checked: 1}))
		})

		It("moves the ticket between urgency index buckets", func() {
			submit("1", clock.Now().Add(20*24*time.Hour))
			clock.Advance(21 * 24 * time.Hour)
			worker.NewScheduler(deps, worker.SchedulerConfig{}).Tick(ctx)

			urgency := get("1").Urgency
			above, err := tickets.Search(ctx, store.Query{MinUrgency: &urgency})
			Expect(err).NotTo(HaveOccurred())
			Expect(above).To(HaveLen(1))
		})

		It("publishes a retriage event", func() {
			submit("1", clock.Now().Add(20*24*time.Hour))
			previous := get("1").Urgency
			clock.Advance(21 * 24 * time.Hour)

			worker.NewScheduler(deps, worker.SchedulerConfig{}).Tick(ctx)

			Expect(events.Events()).To(HaveLen(1))
			event := events.Events()[0]
			Expect(event.Type).To(Equal(queue.EventTicketRetriaged))
			Expect(event.TicketID).To(Equal("1"))
			Expect(*event.Previous).To(Equal(previous))
			Expect(*event.Urgency).To(Equal(get("1").Urgency))
		})

		It("keeps going when one ticket fails to store", func() {
			submit("bad", clock.Now().Add(20*24*time.Hour))
			submit("good", clock.Now().Add(20*24*time.Hour))
			tickets.updateFn = func(_ context.Context, t *model.Ticket) error {
				if t.ID == "bad" {
					return errors.New("disk full")
				}
				return nil
			}
			clock.Advance(21 * 24 * time.Hour)

			result := worker.NewScheduler(deps, worker.SchedulerConfig{}).Tick(ctx)

			Expect(result).To(Equal(worker.TickResult{Checked: 2, Updated: 1, Failed: 1}))
			Expect(get("good").LastUpdated).NotTo(BeNil())
			Expect(get("bad").LastUpdated).To(BeNil())
		})

		It("recovers from a panicking scorer", func() {
			submit("boom", clock.Now().Add(20*24*time.Hour))
			submit("fine", clock.Now().Add(20*24*time.Hour))
			deps.Scorer = &mockScorer{scoreFn: func(ctx context.Context, t *model.Ticket) scoring.Result {
				if t.ID == "boom" {
					panic("scorer exploded")
				}
				return engine.Score(ctx, t)
			}}
			clock.Advance(21 * 24 * time.Hour)

			result := worker.NewScheduler(deps, worker.SchedulerConfig{}).Tick(ctx)
			Expect(result).To(Equal(worker.TickResult{Checked: 2, Updated: 1, Failed: 1}))
		})

		It("does not bring back a ticket deleted while it was being scored", func() {
			submit("1", clock.Now().Add(20*24*time.Hour))
			deps.Scorer = &mockScorer{scoreFn: func(ctx context.Context, t *model.Ticket) scoring.Result {
				deleted, err := tickets.Delete(ctx, t.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(deleted).To(BeTrue())
				return scoring.Result{Score: 1}
			}}

			result := worker.NewScheduler(deps, worker.SchedulerConfig{}).Tick(ctx)

			Expect(result).To(Equal(worker.TickResult{Checked: 1}))
			_, err := tickets.Get(ctx, "1")
			Expect(err).To(MatchError(store.ErrNotFound))
			Expect(events.Events()).To(BeEmpty())

			all, err := tickets.Search(ctx, store.Query{Limit: store.Unlimited})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
			pending, err := tickets.Pending(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("completes when loading pending tickets panics", func() {
			tickets.pendingFn = func(context.Context) ([]*model.Ticket, error) {
				panic("index corrupted")
			}

			var result worker.TickResult
			Expect(func() {
				result = worker.NewScheduler(deps, worker.SchedulerConfig{}).Tick(ctx)
			}).NotTo(Panic())
			Expect(result).To(Equal(worker.TickResult{}))
		})

		It("completes when pending tickets cannot be loaded", func() {
			tickets.pendingFn = func(context.Context) ([]*model.Ticket, error) {
				return nil, errors.New("backend down")
			}

			var result worker.TickResult
			Expect(func() {
				result = worker.NewScheduler(deps, worker.SchedulerConfig{}).Tick(ctx)
			}).NotTo(Panic())
			Expect(result).To(Equal(worker.TickResult{}))
		})
	})

	Describe("StartScheduler", func() {
		It("ticks on the interval until stopped", func() {
			submit("1", clock.Now().Add(20*24*time.Hour))

			s := worker.StartScheduler(ctx, deps, worker.SchedulerConfig{Interval: time.Minute})
			Expect(clock.BlockUntilContext(ctx, 1)).To(Succeed())

			clock.Advance(21 * 24 * time.Hour)
			Eventually(func() *time.Time {
				return get("1").LastUpdated
			}).ShouldNot(BeNil())

			s.Stop()
			s.Stop()
		})

		It("stops cleanly before the first tick", func() {
			s := worker.StartScheduler(ctx, deps, worker.SchedulerConfig{})
			Expect(clock.BlockUntilContext(ctx, 1)).To(Succeed())

			done := make(chan struct{})
			go func() {
				s.Stop()
				close(done)
			}()
			Eventually(done).Should(BeClosed())
		})

		It("exits when its context is cancelled", func() {
			runCtx, cancel := context.WithCancel(ctx)
			s := worker.StartScheduler(runCtx, deps, worker.SchedulerConfig{})
			Expect(clock.BlockUntilContext(ctx, 1)).To(Succeed())

			cancel()
			done := make(chan struct{})
			go func() {
				s.Stop()
				close(done)
			}()
			Eventually(done).Should(BeClosed())
		})
	})

	It("can be driven by hand without starting", func() {
		s := worker.NewScheduler(deps, worker.SchedulerConfig{})
		Expect(s.Tick(ctx)).To(Equal(worker.TickResult{}))
		s.Stop()
	})
})
