package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/harmonlabs/learnd/internal/expectation"
)

// CreateExpectationRequest is the request body for POST /api/v1/expectations.
type CreateExpectationRequest struct {
	Subject  string               `json:"subject"`
	Expected expectation.Expected `json:"expected"`
	Because  expectation.Because  `json:"because"`
	Context  map[string]string    `json:"context,omitempty"`
	DueBy    time.Time            `json:"due_by"`
}

func (s *Server) handleCreateExpectation(c echo.Context) error {
	var req CreateExpectationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DueBy.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "due_by is required")
	}

	e, err := s.calibrator.Create(c.Request().Context(),
		expectation.Subject(req.Subject), req.Expected, req.Because, req.Context, req.DueBy)
	if err != nil {
		switch {
		case errors.Is(err, expectation.ErrInvalidSubject),
			errors.Is(err, expectation.ErrInvalidComparator),
			errors.Is(err, expectation.ErrInvalidWindow):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create expectation")
	}
	return c.JSON(http.StatusCreated, e)
}

// EvaluateExpectationRequest is the request body for
// POST /api/v1/expectations/:id/evaluate.
type EvaluateExpectationRequest struct {
	ObservedValue float64  `json:"observed_value"`
	SignalIDs     []string `json:"signal_ids,omitempty"`
}

func (s *Server) handleEvaluateExpectation(c echo.Context) error {
	var req EvaluateExpectationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	e, err := s.calibrator.Evaluate(c.Request().Context(), c.Param("id"), req.ObservedValue, req.SignalIDs)
	if err != nil {
		switch {
		case errors.Is(err, expectation.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "expectation not found")
		case errors.Is(err, expectation.ErrNotPending):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to evaluate expectation")
	}
	return c.JSON(http.StatusOK, e)
}

// ExpectationsResponse is the response body for expectation list endpoints.
type ExpectationsResponse struct {
	Expectations []*expectation.Expectation `json:"expectations"`
}

func (s *Server) handlePendingExpectations(c echo.Context) error {
	rows, err := s.calibrator.GetPending(c.Request().Context(), expectation.Subject(c.QueryParam("subject")))
	if err != nil {
		if errors.Is(err, expectation.ErrInvalidSubject) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list pending expectations")
	}
	if rows == nil {
		rows = []*expectation.Expectation{}
	}
	return c.JSON(http.StatusOK, ExpectationsResponse{Expectations: rows})
}

func (s *Server) handleOverdueExpectations(c echo.Context) error {
	rows, err := s.calibrator.GetOverdue(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list overdue expectations")
	}
	if rows == nil {
		rows = []*expectation.Expectation{}
	}
	return c.JSON(http.StatusOK, ExpectationsResponse{Expectations: rows})
}

// ExpireRequest is the request body for POST /api/v1/expectations/expire.
type ExpireRequest struct {
	Hours int `json:"hours,omitempty"`
}

// ExpireResponse reports how many expectations the sweep expired.
type ExpireResponse struct {
	Expired int `json:"expired"`
}

func (s *Server) handleExpireExpectations(c echo.Context) error {
	var req ExpireRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Hours < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "hours cannot be negative")
	}

	count, err := s.calibrator.ExpireOld(c.Request().Context(), time.Duration(req.Hours)*time.Hour)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to expire expectations")
	}
	return c.JSON(http.StatusOK, ExpireResponse{Expired: count})
}

func (s *Server) handleCalibration(c echo.Context) error {
	score, err := s.calibrator.Score(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute calibration score")
	}
	return c.JSON(http.StatusOK, score)
}
