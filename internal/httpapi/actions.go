package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/harmonlabs/learnd/internal/outcome"
)

// TrackActionRequest is the request body for POST /api/v1/actions.
type TrackActionRequest struct {
	ActionType     string `json:"action_type"`
	ActionID       string `json:"action_id"`
	OriginalValue  string `json:"original_value"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

// AcceptedResponse acknowledges a fire-and-forget request.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// handleTrackAction records that an action was taken. Tracking is
// best-effort by contract, so the response is always 202 once the
// request parses.
func (s *Server) handleTrackAction(c echo.Context) error {
	var req TrackActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ActionType == "" || req.ActionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "action_type and action_id are required")
	}

	s.tracker.TrackAction(c.Request().Context(), req.ActionType, req.ActionID, req.OriginalValue, req.ConversationID, req.MessageID)
	return c.JSON(http.StatusAccepted, AcceptedResponse{Status: "tracked"})
}

// RecordOutcomeRequest is the request body for POST /api/v1/actions/:id/outcome.
type RecordOutcomeRequest struct {
	Outcome       string `json:"outcome"`
	ModifiedValue string `json:"modified_value,omitempty"`
}

func (s *Server) handleRecordOutcome(c echo.Context) error {
	var req RecordOutcomeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !outcome.ValidType(outcome.Type(req.Outcome)) {
		return echo.NewHTTPError(http.StatusBadRequest, "outcome must be confirmed, modified, or deleted")
	}

	s.tracker.RecordOutcome(c.Request().Context(), c.Param("id"), outcome.Type(req.Outcome), req.ModifiedValue)
	return c.JSON(http.StatusAccepted, AcceptedResponse{Status: "recorded"})
}

// FeedbackRequest is the request body for POST /api/v1/actions/:id/feedback.
type FeedbackRequest struct {
	IsPositive bool `json:"is_positive"`
}

func (s *Server) handleRecordFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	s.tracker.RecordExplicitFeedback(c.Request().Context(), c.Param("id"), req.IsPositive)
	return c.JSON(http.StatusAccepted, AcceptedResponse{Status: "recorded"})
}
