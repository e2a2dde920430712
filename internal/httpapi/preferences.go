package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/harmonlabs/learnd/internal/preference"
)

// PreferencesResponse is the response body for preference list endpoints.
type PreferencesResponse struct {
	Preferences []*preference.LearnedPreference `json:"preferences"`
}

// handleListPreferences serves GET /api/v1/preferences.
//
// Query parameters: categories (comma-separated, optional) and
// min_confidence (optional, default 0).
func (s *Server) handleListPreferences(c echo.Context) error {
	categories := parseCategories(c.QueryParam("categories"))

	minConfidence, err := parseConfidence(c.QueryParam("min_confidence"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "min_confidence must be a number in [0, 1]")
	}

	prefs, err := s.learner.GetForContext(c.Request().Context(), categories, minConfidence)
	if err != nil {
		if errors.Is(err, preference.ErrInvalidCategory) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list preferences")
	}
	if prefs == nil {
		prefs = []*preference.LearnedPreference{}
	}
	return c.JSON(http.StatusOK, PreferencesResponse{Preferences: prefs})
}

func (s *Server) handleGetPreference(c echo.Context) error {
	minConfidence, err := parseConfidence(c.QueryParam("min_confidence"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "min_confidence must be a number in [0, 1]")
	}

	p, err := s.learner.GetValue(c.Request().Context(),
		preference.Category(c.Param("category")), c.Param("key"), minConfidence)
	if err != nil {
		switch {
		case errors.Is(err, preference.ErrPreferenceNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "preference not found")
		case errors.Is(err, preference.ErrInvalidCategory):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load preference")
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handlePreferenceHistory(c echo.Context) error {
	rows, err := s.learner.History(c.Request().Context(),
		preference.Category(c.Param("category")), c.Param("key"))
	if err != nil {
		if errors.Is(err, preference.ErrInvalidCategory) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load preference history")
	}
	if rows == nil {
		rows = []*preference.LearnedPreference{}
	}
	return c.JSON(http.StatusOK, PreferencesResponse{Preferences: rows})
}

// PromptResponse is the response body for GET /api/v1/preferences/prompt.
type PromptResponse struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handlePreferencesPrompt(c echo.Context) error {
	categories := parseCategories(c.QueryParam("categories"))

	prompt, err := s.learner.FormatForPrompt(c.Request().Context(), categories, s.minPromptConfidence)
	if err != nil {
		if errors.Is(err, preference.ErrInvalidCategory) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to format preferences")
	}
	return c.JSON(http.StatusOK, PromptResponse{Prompt: prompt})
}

func parseCategories(raw string) []preference.Category {
	if raw == "" {
		return nil
	}
	var categories []preference.Category
	for _, part := range strings.Split(raw, ",") {
		categories = append(categories, preference.Category(strings.TrimSpace(part)))
	}
	return categories
}

func parseConfidence(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, errors.New("confidence out of range")
	}
	return v, nil
}
