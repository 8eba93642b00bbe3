package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nortonjulian/chatforia-signal/internal/store"
)

// CallsHandlers serves read-only call history.
type CallsHandlers struct {
	calls store.CallStore
	log   *zerolog.Logger
}

// NewCallsHandlers creates a new calls handlers instance.
func NewCallsHandlers(calls store.CallStore, logger *zerolog.Logger) *CallsHandlers {
	return &CallsHandlers{calls: calls, log: logger}
}

// CallResponse represents a call in API responses.
type CallResponse struct {
	ID         string  `json:"id"`
	CallerID   int64   `json:"callerId"`
	CalleeID   int64   `json:"calleeId"`
	ChatID     *int64  `json:"chatId,omitempty"`
	Mode       string  `json:"mode"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"createdAt"`
	AcceptedAt *string `json:"acceptedAt,omitempty"`
	EndedAt    *string `json:"endedAt,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func callToResponse(c *store.Call) CallResponse {
	return CallResponse{
		ID:         c.ID,
		CallerID:   c.CallerID,
		CalleeID:   c.CalleeID,
		ChatID:     c.ChatID,
		Mode:       string(c.Mode),
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		AcceptedAt: formatTime(c.AcceptedAt),
		EndedAt:    formatTime(c.EndedAt),
	}
}

// GetCall returns one call to one of its participants.
// GET /api/calls/:id
func (h *CallsHandlers) GetCall(c *gin.Context) {
	uid, ok := userIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	callID := c.Param("id")
	call, err := h.calls.GetCall(c.Request.Context(), callID)
	if err != nil {
		if errors.Is(err, store.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "call not found"})
			return
		}
		h.log.Error().Err(err).Str("call_id", callID).Msg("failed to get call")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	// Strangers see the same answer as for a missing call.
	if !call.IsParticipant(uid) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "call not found"})
		return
	}

	c.JSON(http.StatusOK, callToResponse(call))
}

// ListActiveCalls returns the user's INITIATED and ANSWERED calls, newest first.
// GET /api/calls/active
func (h *CallsHandlers) ListActiveCalls(c *gin.Context) {
	uid, ok := userIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	calls, err := h.calls.ListActiveCalls(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list active calls")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]CallResponse, 0, len(calls))
	for _, call := range calls {
		resp = append(resp, callToResponse(call))
	}
	c.JSON(http.StatusOK, gin.H{"calls": resp})
}
