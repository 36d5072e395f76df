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

	"qcdash/internal/core"
	"qcdash/internal/table"
)

const maxBodyBytes = 1 << 20

// ErrBadYear is returned for a year filter that is neither a number nor All.
var ErrBadYear = errors.New("year must be a number or All")

// ParseFilter reads year, month, inspector and status from query values.
// Missing values and All disable the dimension.
func ParseFilter(query url.Values) (core.FilterSpec, error) {
	var f core.FilterSpec
	if v := sanitizeInput(query.Get("year")); v != "" && v != core.All {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.FilterSpec{}, fmt.Errorf("%q: %w", v, ErrBadYear)
		}
		f.Year = &y
	}
	f.Month = sanitizeInput(query.Get("month"))
	f.Inspector = sanitizeInput(query.Get("inspector"))
	f.Status = sanitizeInput(query.Get("status"))
	return f, nil
}

// TableParams holds the search and paging parameters of the table view.
type TableParams struct {
	Query   string
	Page    int
	PerPage int
}

// ParseTableParams reads q, page and per_page. Unparseable numbers fall
// back to the first page and the default page size; clamping is left to
// table.Paginate.
func ParseTableParams(query url.Values) TableParams {
	p := TableParams{
		Query:   sanitizeInput(query.Get("q")),
		Page:    1,
		PerPage: table.DefaultPerPage,
	}
	if v := strings.TrimSpace(query.Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Page = n
		}
	}
	if v := strings.TrimSpace(query.Get("per_page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.PerPage = n
		}
	}
	return p
}

// decodeInspection reads a JSON inspection record from the request body.
func decodeInspection(w http.ResponseWriter, r *http.Request) (core.InspectionRecord, error) {
	var rec core.InspectionRecord
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return rec, fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return rec, errors.New("empty request body")
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, fmt.Errorf("decode inspection: %w", err)
	}
	return rec, nil
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s))
}
