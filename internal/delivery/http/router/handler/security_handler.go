package handler

import (
	"log/slog"
	"net/http"
	"time"

	"nutriauth/internal/delivery/http/response"
	"nutriauth/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// SecurityHandler holds dependencies for the security event export handlers.
type SecurityHandler struct {
	uc     usecase.SecurityUsecase
	logger *slog.Logger
}

// NewSecurityHandler is the constructor for SecurityHandler, injected by Fx.
func NewSecurityHandler(uc usecase.SecurityUsecase, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		uc:     uc,
		logger: logger,
	}
}

// ExportEvents serves the security event report. Query parameters: from and
// to (RFC 3339 or date-only), format (json, the default, or csv).
func (h *SecurityHandler) ExportEvents(c echo.Context) error {
	from, to, err := parseRange(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return response.BadRequest(c, "INVALID_TIME_RANGE", err.Error())
	}

	input := usecase.ExportEventsInput{From: from, To: to}

	if c.QueryParam("format") == "csv" {
		export, err := h.uc.ExportEventsCSV(c.Request().Context(), input)
		if err != nil {
			return errors.WithStack(err)
		}

		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.Filename+`"`)

		return c.Blob(http.StatusOK, "text/csv", export.Data)
	}

	report, err := h.uc.ExportEvents(c.Request().Context(), input)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, report)
}

// parseRange interprets the from/to query parameters. A missing range
// defaults to the trailing seven days; a date-only value covers the whole day.
func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	now := time.Now().UTC()

	to := now
	if toRaw != "" {
		parsed, err := parseTimestamp(toRaw, true)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrap(err, "invalid 'to' parameter")
		}
		to = parsed
	}

	from := to.Add(-7 * 24 * time.Hour)
	if fromRaw != "" {
		parsed, err := parseTimestamp(fromRaw, false)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrap(err, "invalid 'from' parameter")
		}
		from = parsed
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("'from' must precede 'to'")
	}

	return from, to, nil
}

func parseTimestamp(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errors.New("timestamp must be RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}

	return t, nil
}
