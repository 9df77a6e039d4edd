package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/triage/internal/http/handler"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/service"
	"basegraph.app/triage/internal/store"
)

var _ = Describe("TicketHandler", func() {
	var (
		router *gin.Engine
		svc    *mockTicketService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockTicketService{}
		h := handler.NewTicketHandler(svc)
		router.POST("/tickets", h.Submit)
		router.GET("/tickets", h.Search)
		router.GET("/tickets/:id", h.Get)
		router.DELETE("/tickets/:id", h.Delete)
		router.GET("/triage/pending", h.Pending)
		router.GET("/triage/due", h.Due)
		router.GET("/triage/stats", h.Stats)
	})

	serve := func(method, path string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBuffer(body))
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) map[string]any {
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	Describe("Submit", func() {
		It("returns 201 with the triage result", func() {
			var got service.SubmitParams
			svc.submitFn = func(_ context.Context, params service.SubmitParams) (*service.SubmitResult, error) {
				got = params
				return &service.SubmitResult{ID: "99", Urgency: 0.82, Summary: "High value transfer", Tags: []string{"high-value"}}, nil
			}

			body, _ := json.Marshal(map[string]any{
				"type":               "treasury transfer",
				"value":              150000,
				"currency":           "USDC",
				"deadline":           "2025-06-02T00:00:00Z",
				"required_approvals": 3,
				"recipient":          map[string]any{"address": "0xabc", "verified": true},
			})
			w := serve(http.MethodPost, "/tickets", body)

			Expect(w.Code).To(Equal(http.StatusCreated))
			resp := decode(w)
			Expect(resp["id"]).To(Equal("99"))
			Expect(resp["urgency"]).To(Equal(0.82))
			Expect(resp["tags"]).To(ConsistOf("high-value"))

			Expect(got.Type).To(Equal("treasury transfer"))
			Expect(*got.Value).To(Equal(150000.0))
			Expect(got.RequiredApprovals).To(Equal(3))
			Expect(got.Recipient.Verified).To(BeTrue())
			Expect(*got.Deadline).To(BeTemporally("==", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
		})

		It("returns 400 on malformed JSON", func() {
			w := serve(http.MethodPost, "/tickets", []byte(`{`))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 when the service rejects the ticket", func() {
			svc.submitFn = func(context.Context, service.SubmitParams) (*service.SubmitResult, error) {
				return nil, fmt.Errorf("%w: type or description is required", service.ErrInvalidTicket)
			}
			w := serve(http.MethodPost, "/tickets", []byte(`{}`))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)["error"]).To(ContainSubstring("type or description"))
		})

		It("returns 409 when the id is already taken", func() {
			svc.submitFn = func(context.Context, service.SubmitParams) (*service.SubmitResult, error) {
				return nil, service.ErrTicketExists
			}
			w := serve(http.MethodPost, "/tickets", []byte(`{"id":"x","type":"test demo"}`))

			Expect(w.Code).To(Equal(http.StatusConflict))
			Expect(decode(w)["error"]).To(Equal("ticket already exists"))
		})

		It("returns 500 when the service fails", func() {
			svc.submitFn = func(context.Context, service.SubmitParams) (*service.SubmitResult, error) {
				return nil, errors.New("boom")
			}
			w := serve(http.MethodPost, "/tickets", []byte(`{"type":"x"}`))

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode(w)["error"]).To(Equal("failed to submit ticket"))
		})
	})

	Describe("Get", func() {
		It("returns the stored ticket", func() {
			svc.getFn = func(_ context.Context, id string) (*model.Ticket, error) {
				return &model.Ticket{ID: id, Status: model.StatusPending, Urgency: 0.4}, nil
			}
			w := serve(http.MethodGet, "/tickets/7", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["id"]).To(Equal("7"))
			Expect(resp["status"]).To(Equal("pending"))
		})

		It("returns 404 for unknown tickets", func() {
			w := serve(http.MethodGet, "/tickets/7", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Search", func() {
		It("maps query parameters onto search params", func() {
			var got service.SearchParams
			svc.searchFn = func(_ context.Context, params service.SearchParams) (*service.SearchResult, error) {
				got = params
				return &service.SearchResult{Tickets: []*model.Ticket{{ID: "1"}}, Count: 1}, nil
			}

			w := serve(http.MethodGet, "/tickets?status=pending&min_urgency=0.6&start=2025-01-01T00:00:00Z&limit=-1", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["count"]).To(Equal(1.0))
			Expect(*got.Status).To(Equal(model.StatusPending))
			Expect(*got.MinUrgency).To(Equal(0.6))
			Expect(*got.Start).To(BeTemporally("==", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
			Expect(got.End).To(BeNil())
			Expect(got.Limit).To(Equal(store.Unlimited))
		})

		It("returns an empty list rather than null", func() {
			w := serve(http.MethodGet, "/tickets", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["tickets"]).To(BeEmpty())
		})

		DescribeTable("rejects bad query parameters",
			func(query string) {
				w := serve(http.MethodGet, "/tickets?"+query, nil)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
			},
			Entry("urgency above one", "min_urgency=1.5"),
			Entry("urgency not a number", "min_urgency=high"),
			Entry("start not RFC3339", "start=yesterday"),
			Entry("end not RFC3339", "end=2025-01-01"),
			Entry("limit below -1", "limit=-5"),
		)
	})

	Describe("Delete", func() {
		It("returns 204 when a ticket was removed", func() {
			svc.deleteFn = func(context.Context, string) (bool, error) { return true, nil }
			w := serve(http.MethodDelete, "/tickets/7", nil)
			Expect(w.Code).To(Equal(http.StatusNoContent))
		})

		It("returns 404 when nothing was removed", func() {
			w := serve(http.MethodDelete, "/tickets/7", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("triage views", func() {
		It("lists pending tickets", func() {
			svc.pendingFn = func(context.Context) ([]*model.Ticket, error) {
				return []*model.Ticket{{ID: "1"}, {ID: "2"}}, nil
			}
			w := serve(http.MethodGet, "/triage/pending", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["count"]).To(Equal(2.0))
		})

		It("requires a due threshold", func() {
			w := serve(http.MethodGet, "/triage/due", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("passes the due threshold through", func() {
			var got time.Time
			svc.dueBeforeFn = func(_ context.Context, threshold time.Time) ([]*model.Ticket, error) {
				got = threshold
				return nil, nil
			}
			w := serve(http.MethodGet, "/triage/due?before=2025-06-01T12:00:00Z", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got).To(BeTemporally("==", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
		})

		It("returns stats", func() {
			svc.statsFn = func(context.Context) (*model.TicketStats, error) {
				return &model.TicketStats{Total: 3, ByStatus: map[string]int{"pending": 3}}, nil
			}
			w := serve(http.MethodGet, "/triage/stats", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["total"]).To(Equal(3.0))
		})

		It("returns 500 when stats fail", func() {
			svc.statsFn = func(context.Context) (*model.TicketStats, error) {
				return nil, errors.New("scan failed")
			}
			w := serve(http.MethodGet, "/triage/stats", nil)
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})
})
