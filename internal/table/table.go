// Package table prepares inspection records for the paginated data table.
package table

import (
	"strings"

	"qcdash/internal/core"
)

// DefaultPerPage is the page size when none is requested.
const DefaultPerPage = 10

// MaxPerPage bounds client-requested page sizes.
const MaxPerPage = 500

// Columns returns the displayed columns in schema order. The record
// identifier is hidden.
func Columns() []string {
	cols := make([]string, 0, len(core.Columns))
	for _, c := range core.Columns {
		if c == core.KeyID {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// Search keeps records where any column's display value contains term,
// ignoring case. An empty term keeps every record.
func Search(records []core.InspectionRecord, term string) []core.InspectionRecord {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return records
	}
	out := make([]core.InspectionRecord, 0, len(records))
	for _, r := range records {
		if matches(r, term) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r core.InspectionRecord, term string) bool {
	for _, c := range core.Columns {
		if strings.Contains(strings.ToLower(r.Value(c)), term) {
			return true
		}
	}
	return false
}

// Pagination locates one page within n rows.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalRows  int `json:"totalRows"`
	TotalPages int `json:"totalPages"`
	Start      int `json:"-"`
	End        int `json:"-"`
}

// Paginate clamps page into [1, TotalPages]. There is always at least one
// page, possibly empty.
func Paginate(n, page, perPage int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if n < 0 {
		n = 0
	}
	totalPages := (n + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)

	start := (page - 1) * perPage
	end := min(start+perPage, n)
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalRows:  n,
		TotalPages: totalPages,
		Start:      start,
		End:        end,
	}
}

// Row is a record rendered as display strings keyed by column.
type Row struct {
	ID     string            `json:"_id,omitempty"`
	Values map[string]string `json:"values"`
}

// Page is one page of table rows plus its position.
type Page struct {
	Columns    []string   `json:"columns"`
	Rows       []Row      `json:"rows"`
	Query      string     `json:"query,omitempty"`
	Pagination Pagination `json:"pagination"`
}

// Build searches records, then cuts out the requested page.
func Build(records []core.InspectionRecord, query string, page, perPage int) Page {
	found := Search(records, query)
	p := Paginate(len(found), page, perPage)

	cols := Columns()
	rows := make([]Row, 0, p.End-p.Start)
	for _, r := range found[p.Start:p.End] {
		values := make(map[string]string, len(cols))
		for _, c := range cols {
			values[c] = r.Value(c)
		}
		rows = append(rows, Row{ID: r.ID, Values: values})
	}
	return Page{Columns: cols, Rows: rows, Query: strings.TrimSpace(query), Pagination: p}
}
