package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/triage/internal/http/dto"
	"basegraph.app/triage/internal/service"
)

type TicketHandler struct {
	tickets service.TicketService
}

func NewTicketHandler(tickets service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

func (h *TicketHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SubmitTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.tickets.Submit(ctx, req.ToParams())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTicket):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case errors.Is(err, service.ErrTicketExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to submit ticket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit ticket"})
		return
	}

	c.JSON(http.StatusCreated, dto.ToSubmitTicketResponse(result))
}

func (h *TicketHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	ticket, err := h.tickets.Get(ctx, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTicketNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		case errors.Is(err, service.ErrMissingTicketID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to get ticket", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get ticket"})
		}
		return
	}

	c.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()

	var query dto.SearchTicketsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, err := query.ToParams()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.tickets.Search(ctx, params)
	if err != nil {
		slog.ErrorContext(ctx, "failed to search tickets", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search tickets"})
		return
	}

	c.JSON(http.StatusOK, dto.ToTicketListResponse(result.Tickets))
}

func (h *TicketHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	deleted, err := h.tickets.Delete(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrMissingTicketID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to delete ticket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete ticket"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TicketHandler) Pending(c *gin.Context) {
	ctx := c.Request.Context()

	tickets, err := h.tickets.Pending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list pending tickets", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pending tickets"})
		return
	}

	c.JSON(http.StatusOK, dto.ToTicketListResponse(tickets))
}

func (h *TicketHandler) Due(c *gin.Context) {
	ctx := c.Request.Context()

	before, err := dto.ParseBefore(c.Query("before"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tickets, err := h.tickets.DueBefore(ctx, before)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list due tickets", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list due tickets"})
		return
	}

	c.JSON(http.StatusOK, dto.ToTicketListResponse(tickets))
}

func (h *TicketHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.tickets.Stats(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to compute ticket stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute ticket stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
