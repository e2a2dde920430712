package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/harmonlabs/learnd/internal/correction"
)

// DetectRequest is the request body for POST /api/v1/corrections/detect.
type DetectRequest struct {
	Message string `json:"message"`
}

// handleDetectQuick runs keyword-only detection. No model call, safe to
// invoke speculatively on every message.
func (s *Server) handleDetectQuick(c echo.Context) error {
	var req DetectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	return c.JSON(http.StatusOK, correction.DetectQuick(req.Message))
}

// ProcessCorrectionRequest is the request body for POST /api/v1/corrections/process.
type ProcessCorrectionRequest struct {
	ConversationID           string `json:"conversation_id"`
	UserMessage              string `json:"user_message"`
	PreviousAssistantMessage string `json:"previous_assistant_message,omitempty"`
	TriggerMessageID         string `json:"trigger_message_id,omitempty"`
	CorrectionMessageID      string `json:"correction_message_id,omitempty"`
}

// ProcessCorrectionResponse is the response body for POST /api/v1/corrections/process.
type ProcessCorrectionResponse struct {
	Detected bool              `json:"detected"`
	Event    *correction.Event `json:"event,omitempty"`
}

func (s *Server) handleProcessCorrection(c echo.Context) error {
	var req ProcessCorrectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	event, err := s.detector.ProcessCorrectionEvent(c.Request().Context(), correction.ProcessInput{
		ConversationID:           req.ConversationID,
		UserMessage:              req.UserMessage,
		PreviousAssistantMessage: req.PreviousAssistantMessage,
		TriggerMessageID:         req.TriggerMessageID,
		CorrectionMessageID:      req.CorrectionMessageID,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, ProcessCorrectionResponse{
		Detected: event != nil,
		Event:    event,
	})
}
