// Package aggregate turns a flat inspection record list into the KPI totals
// and chart series shown on the dashboard.
//
// Every function is pure: inputs are never modified and no state is kept
// between calls. Absent or unparsable numbers are already 0 on the record, so
// sums need no special casing.
package aggregate

import (
	"math"
	"slices"
	"strconv"

	"qcdash/internal/core"
)

// Rate is a percentage rounded to one decimal. It encodes as a string with
// exactly one decimal, e.g. "50.0".
type Rate float64

// MarshalJSON implements json.Marshaler.
func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(r.String())), nil
}

func (r Rate) String() string {
	return strconv.FormatFloat(float64(r), 'f', 1, 64)
}

// percent returns part/whole*100 rounded to one decimal, or 0 when whole is 0.
func percent(part, whole float64) Rate {
	if whole == 0 {
		return 0
	}
	return Rate(math.Round(part/whole*100*10) / 10)
}

// KeyFunc extracts the grouping key of a record.
type KeyFunc func(core.InspectionRecord) string

// ByMonth groups by month name, SelfSet when absent.
func ByMonth(r core.InspectionRecord) string { return r.MonthKey() }

// ByInspector groups by inspector name, SelfSet when absent.
func ByInspector(r core.InspectionRecord) string { return r.InspectorKey() }

// ByStatus groups by inspection status, SelfSet when absent.
func ByStatus(r core.InspectionRecord) string { return r.StatusKey() }

// ByYear groups by the decimal year.
func ByYear(r core.InspectionRecord) string { return strconv.Itoa(r.Year) }

// ApplyFilters returns the records matching every active predicate of f,
// preserving input order.
func ApplyFilters(records []core.InspectionRecord, f core.FilterSpec) []core.InspectionRecord {
	out := make([]core.InspectionRecord, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Sum adds one field across records.
func Sum(records []core.InspectionRecord, f core.Field) float64 {
	var total float64
	for _, r := range records {
		total += r.Get(f)
	}
	return total
}

// Group is one partition produced by GroupBy. Sums is aligned with the
// metrics passed to GroupBy.
type Group struct {
	Key   string
	Count int
	Sums  []float64
}

// GroupBy partitions records by key and sums each metric per partition.
// Groups come back in the order their key was first seen.
func GroupBy(records []core.InspectionRecord, key KeyFunc, metrics ...core.Field) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k, Sums: make([]float64, len(metrics))})
		}
		g := &groups[i]
		g.Count++
		for m, f := range metrics {
			g.Sums[m] += r.Get(f)
		}
	}
	return groups
}

// DistinctValues lists the distinct keys of records prefixed with core.All,
// in first-seen order.
func DistinctValues(records []core.InspectionRecord, key KeyFunc) []string {
	seen := map[string]struct{}{core.All: {}}
	out := []string{core.All}
	for _, r := range records {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// FilterOptions holds the dropdown choices for each filter dimension.
type FilterOptions struct {
	Years      []string `json:"years"`
	Months     []string `json:"months"`
	Inspectors []string `json:"inspectors"`
	Statuses   []string `json:"statuses"`
}

// Options computes filter choices over the full, unfiltered record set.
// Records with no known year offer no year choice.
func Options(records []core.InspectionRecord) FilterOptions {
	unknownYear := ByYear(core.InspectionRecord{})
	return FilterOptions{
		Years: slices.DeleteFunc(DistinctValues(records, ByYear),
			func(y string) bool { return y == unknownYear }),
		Months:     DistinctValues(records, ByMonth),
		Inspectors: DistinctValues(records, ByInspector),
		Statuses:   DistinctValues(records, ByStatus),
	}
}
