// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, date ranges and history periods from the query string.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"parcelas/internal/core"
)

const maxBodyBytes = 1 << 20

// badRequestError marks input that could not be decoded at all, as opposed
// to decoded input that fails validation.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return badRequest("request body too large")
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		default:
			return badRequest("invalid JSON body: %v", err)
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// parseRange reads the inclusive from/to order-date range. A missing bound
// defaults to the first or last day of now's month.
func parseRange(query url.Values, now time.Time) (core.Date, core.Date, error) {
	first := core.NewDate(now.Year(), int(now.Month()), 1)
	from, err := parseOptionalDate(query, "from", first)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	to, err := parseOptionalDate(query, "to", first.FirstOfMonthAfter(1).AddDays(-1))
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return from, to, nil
}

func parseOptionalDate(query url.Values, key string, fallback core.Date) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return fallback, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest("%s must be a YYYY-MM-DD date", key)
	}
	return d, nil
}

// parsePeriod extracts timeframe, year and month for history queries, using
// the current year and month as defaults. Range checks are left to the
// aggregation engine so they surface as validation errors.
func parsePeriod(query url.Values, now time.Time) (core.Timeframe, core.Period, error) {
	raw := strings.TrimSpace(query.Get("timeframe"))
	if raw == "" {
		raw = string(core.TimeframeYear)
	}
	tf, err := core.ParseTimeframe(raw)
	if err != nil {
		return "", core.Period{}, err
	}

	p := core.Period{Year: now.Year(), Month: int(now.Month())}
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return "", core.Period{}, badRequest("year must be an integer")
		}
		p.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return "", core.Period{}, badRequest("month must be an integer")
		}
		p.Month = m
	}
	return tf, p, nil
}

// parseOwner reads the caller's id from header; empty means unauthenticated.
func parseOwner(r *http.Request, header string) (string, error) {
	owner := sanitizeInput(r.Header.Get(header))
	if owner == "" {
		return "", fmt.Errorf("missing %s header", header)
	}
	if len(owner) > 128 {
		return "", fmt.Errorf("%s header too long", header)
	}
	return owner, nil
}
