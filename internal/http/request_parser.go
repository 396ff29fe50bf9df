// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON objects or form-encoded; the dashboard forms post
// form-encoded bodies and API clients usually send JSON.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"keuangan/internal/core"
)

const maxBodyBytes = 64 << 10

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
	// Set is false when neither parameter was given.
	Set bool
}

// ParseMonthParams extracts year and month from query parameters. Both must
// be given together; a missing pair leaves Set false.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	ys := strings.TrimSpace(query.Get("year"))
	ms := strings.TrimSpace(query.Get("month"))
	if ys == "" && ms == "" {
		return MonthParams{}, nil
	}
	if ys == "" || ms == "" {
		return MonthParams{}, fmt.Errorf("year and month must be given together")
	}
	y, err := strconv.Atoi(ys)
	if err != nil || y < 1 || y > 9999 {
		return MonthParams{}, fmt.Errorf("invalid year %q", ys)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 1 || m > 12 {
		return MonthParams{}, fmt.Errorf("invalid month %q", ms)
	}
	return MonthParams{Year: y, Month: m, Set: true}, nil
}

// RequestBodyParser reads a request body once and serves field lookups from
// either a JSON object or form data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request. The body is
// capped at 64 KiB.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.Contains(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// entryFields are the fields shared by income and expense requests.
type entryFields struct {
	Date   core.Date
	Amount core.Money
}

// parseEntry reads "date" (YYYY-MM-DD, defaulting to today) and "amount".
// Failures wrap core.ErrInvalidInput so they map to 422.
func parseEntry(p *RequestBodyParser, today core.Date) (entryFields, error) {
	var f entryFields

	f.Date = today
	if ds := p.Get("date"); ds != "" {
		d, err := core.ParseDate(ds)
		if err != nil {
			return f, fmt.Errorf("%w: date %q must be YYYY-MM-DD", core.ErrInvalidInput, ds)
		}
		f.Date = d
	}

	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return f, core.ErrInvalidAmount
	}
	f.Amount = core.Money{Cents: cents}
	return f, nil
}

// parsePosition reads the {pos} path value.
func parsePosition(r *http.Request) (int, error) {
	raw := r.PathValue("pos")
	pos, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", raw)
	}
	return pos, nil
}
