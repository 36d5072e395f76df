package table

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"qcdash/internal/core"
)

func TestColumnsHideIdentifier(t *testing.T) {
	cols := Columns()
	for _, c := range cols {
		if c == core.KeyID {
			t.Fatalf("identifier column exposed")
		}
	}
	if cols[0] != "serialNo" || len(cols) != len(core.Columns) {
		t.Fatalf("columns = %v", cols)
	}
}

func sample() []core.InspectionRecord {
	a := core.InspectionRecord{ID: "1", InspectionID: "INS-100", Month: "January", InspectorName: "Sara Khan",
		InspectionDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)}
	b := core.InspectionRecord{ID: "2", InspectionID: "INS-200", Month: "February", InspectorName: "Omar"}
	b.Set(core.FieldMajor, 42)
	c := core.InspectionRecord{ID: "3", InspectionID: "INS-300", Month: "March", InspectorName: "sara ali"}
	return []core.InspectionRecord{a, b, c}
}

func ids(records []core.InspectionRecord) []string {
	out := []string{}
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestSearch(t *testing.T) {
	tests := []struct {
		term string
		want []string
	}{
		{"", []string{"1", "2", "3"}},
		{"   ", []string{"1", "2", "3"}},
		{"SARA", []string{"1", "3"}},
		{"feb", []string{"2"}},
		{"42", []string{"2"}},
		{"2024-01", []string{"1"}},
		{"nobody", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ids(Search(sample(), tt.term))); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tt.term, diff)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name                string
		n, page, perPage    int
		wantPage, wantPages int
		wantStart, wantEnd  int
		wantPerPage         int
	}{
		{"default size", 25, 1, 0, 1, 3, 0, 10, 10},
		{"last partial page", 25, 3, 10, 3, 3, 20, 25, 10},
		{"page past end clamps", 25, 9, 10, 3, 3, 20, 25, 10},
		{"page below one clamps", 25, -4, 10, 1, 3, 0, 10, 10},
		{"empty has one page", 0, 5, 10, 1, 1, 0, 0, 10},
		{"exact fit", 20, 2, 10, 2, 2, 10, 20, 10},
		{"oversized page size capped", 1000, 1, 10000, 1, 2, 0, MaxPerPage, MaxPerPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(tt.n, tt.page, tt.perPage)
			if p.Page != tt.wantPage || p.TotalPages != tt.wantPages || p.Start != tt.wantStart ||
				p.End != tt.wantEnd || p.PerPage != tt.wantPerPage || p.TotalRows != tt.n {
				t.Errorf("Paginate(%d, %d, %d) = %+v", tt.n, tt.page, tt.perPage, p)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	page := Build(sample(), " sara ", 2, 1)
	if page.Pagination.TotalRows != 2 || page.Pagination.Page != 2 || len(page.Rows) != 1 {
		t.Fatalf("page = %+v", page.Pagination)
	}
	row := page.Rows[0]
	if row.ID != "3" || row.Values["inspectorName"] != "sara ali" || row.Values["major"] != "0" {
		t.Fatalf("row = %+v", row)
	}
	if page.Query != "sara" {
		t.Fatalf("query = %q", page.Query)
	}

	empty := Build(nil, "", 3, 10)
	if empty.Rows == nil || len(empty.Rows) != 0 || empty.Pagination.TotalPages != 1 {
		t.Fatalf("empty page = %+v", empty)
	}
}
