package core

import (
	"strconv"
	"strings"
)

// All is the filter value that disables a dimension.
const All = "All"

// FilterSpec restricts a record set by equality on up to four dimensions.
// A nil Year and empty or All strings leave that dimension unrestricted.
type FilterSpec struct {
	Year      *int
	Month     string
	Inspector string
	Status    string
}

// YearFilter returns a filter restricted to a single year.
func YearFilter(year int) FilterSpec {
	return FilterSpec{Year: &year}
}

// Matches reports whether the record satisfies every active predicate.
// Categorical fields are compared after applying the SelfSet default.
func (f FilterSpec) Matches(r InspectionRecord) bool {
	if f.Year != nil && r.Year != *f.Year {
		return false
	}
	if active(f.Month) && r.MonthKey() != f.Month {
		return false
	}
	if active(f.Inspector) && r.InspectorKey() != f.Inspector {
		return false
	}
	if active(f.Status) && r.StatusKey() != f.Status {
		return false
	}
	return true
}

// IsAll reports whether no dimension is restricted.
func (f FilterSpec) IsAll() bool {
	return f.Year == nil && !active(f.Month) && !active(f.Inspector) && !active(f.Status)
}

// Key is a stable string form used for cache keys.
func (f FilterSpec) Key() string {
	year := All
	if f.Year != nil {
		year = strconv.Itoa(*f.Year)
	}
	return strings.Join([]string{year, orAll(f.Month), orAll(f.Inspector), orAll(f.Status)}, "|")
}

func active(v string) bool {
	return v != "" && v != All
}

func orAll(v string) string {
	if !active(v) {
		return All
	}
	return v
}
