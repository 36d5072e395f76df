package aggregate

import "qcdash/internal/core"

// KPI summarises outcomes over a record set. Total is the number of records,
// not the sum of outcome flags.
type KPI struct {
	Total        int     `json:"total"`
	TotalPass    float64 `json:"totalPass"`
	TotalFail    float64 `json:"totalFail"`
	TotalAbort   float64 `json:"totalAbort"`
	TotalPending float64 `json:"totalPending"`
	PassRate     Rate    `json:"passRate"`
}

// ComputeKPIs sums the outcome flags and derives the pass rate.
func ComputeKPIs(records []core.InspectionRecord) KPI {
	k := KPI{
		Total:        len(records),
		TotalPass:    Sum(records, core.FieldPass),
		TotalFail:    Sum(records, core.FieldFail),
		TotalAbort:   Sum(records, core.FieldAbort),
		TotalPending: Sum(records, core.FieldPending),
	}
	k.PassRate = percent(k.TotalPass, k.TotalPass+k.TotalFail+k.TotalAbort+k.TotalPending)
	return k
}

type MonthlyStatus struct {
	Month   string  `json:"month"`
	Pass    float64 `json:"pass"`
	Fail    float64 `json:"fail"`
	Abort   float64 `json:"abort"`
	Pending float64 `json:"pending"`
}

// MonthlyStatusSummary sums the outcome flags per month.
func MonthlyStatusSummary(records []core.InspectionRecord) []MonthlyStatus {
	groups := GroupBy(records, ByMonth, core.FieldPass, core.FieldFail, core.FieldAbort, core.FieldPending)
	out := make([]MonthlyStatus, len(groups))
	for i, g := range groups {
		out[i] = MonthlyStatus{Month: g.Key, Pass: g.Sums[0], Fail: g.Sums[1], Abort: g.Sums[2], Pending: g.Sums[3]}
	}
	return out
}

type InspectorPassFail struct {
	InspectorName string  `json:"inspectorName"`
	Pass          float64 `json:"pass"`
	Fail          float64 `json:"fail"`
}

// InspectorSummary sums passes and fails per inspector.
func InspectorSummary(records []core.InspectionRecord) []InspectorPassFail {
	groups := GroupBy(records, ByInspector, core.FieldPass, core.FieldFail)
	out := make([]InspectorPassFail, len(groups))
	for i, g := range groups {
		out[i] = InspectorPassFail{InspectorName: g.Key, Pass: g.Sums[0], Fail: g.Sums[1]}
	}
	return out
}

type InspectorEfficiency struct {
	InspectorName string  `json:"inspectorName"`
	Pass          float64 `json:"pass"`
	Fail          float64 `json:"fail"`
	Total         float64 `json:"total"`
	PassRate      Rate    `json:"passRate"`
}

// InspectorEfficiencySummary derives each inspector's pass rate over all
// four outcomes.
func InspectorEfficiencySummary(records []core.InspectionRecord) []InspectorEfficiency {
	groups := GroupBy(records, ByInspector, core.FieldPass, core.FieldFail, core.FieldAbort, core.FieldPending)
	out := make([]InspectorEfficiency, len(groups))
	for i, g := range groups {
		total := g.Sums[0] + g.Sums[1] + g.Sums[2] + g.Sums[3]
		out[i] = InspectorEfficiency{
			InspectorName: g.Key,
			Pass:          g.Sums[0],
			Fail:          g.Sums[1],
			Total:         total,
			PassRate:      percent(g.Sums[0], total),
		}
	}
	return out
}

type InspectorDefects struct {
	InspectorName string  `json:"inspectorName"`
	Major         float64 `json:"major"`
	Minor         float64 `json:"minor"`
	Critical      float64 `json:"critical"`
}

// DefectsByInspector sums severity counts per inspector.
func DefectsByInspector(records []core.InspectionRecord) []InspectorDefects {
	groups := GroupBy(records, ByInspector, core.FieldMajor, core.FieldMinor, core.FieldCritical)
	out := make([]InspectorDefects, len(groups))
	for i, g := range groups {
		out[i] = InspectorDefects{InspectorName: g.Key, Major: g.Sums[0], Minor: g.Sums[1], Critical: g.Sums[2]}
	}
	return out
}

type CriticalPoint struct {
	Month    string  `json:"month"`
	Critical float64 `json:"critical"`
}

// CriticalTrend sums critical defects per month.
func CriticalTrend(records []core.InspectionRecord) []CriticalPoint {
	groups := GroupBy(records, ByMonth, core.FieldCritical)
	out := make([]CriticalPoint, len(groups))
	for i, g := range groups {
		out[i] = CriticalPoint{Month: g.Key, Critical: g.Sums[0]}
	}
	return out
}

type DefectRatio struct {
	Month string  `json:"month"`
	Major float64 `json:"Major"`
	Minor float64 `json:"Minor"`
}

// DefectsRatio sums major and minor defects per month.
func DefectsRatio(records []core.InspectionRecord) []DefectRatio {
	groups := GroupBy(records, ByMonth, core.FieldMajor, core.FieldMinor)
	out := make([]DefectRatio, len(groups))
	for i, g := range groups {
		out[i] = DefectRatio{Month: g.Key, Major: g.Sums[0], Minor: g.Sums[1]}
	}
	return out
}

type StatusTrendPoint struct {
	Month   string  `json:"month"`
	Abort   float64 `json:"abort"`
	Pending float64 `json:"pending"`
}

// StatusTrend sums aborted and pending inspections per month.
func StatusTrend(records []core.InspectionRecord) []StatusTrendPoint {
	groups := GroupBy(records, ByMonth, core.FieldAbort, core.FieldPending)
	out := make([]StatusTrendPoint, len(groups))
	for i, g := range groups {
		out[i] = StatusTrendPoint{Month: g.Key, Abort: g.Sums[0], Pending: g.Sums[1]}
	}
	return out
}

type RadarPoint struct {
	Type  string  `json:"type"`
	Count float64 `json:"count"`
}

var radarAxes = []struct {
	label string
	field core.Field
}{
	{"Major", core.FieldMajor},
	{"Minor", core.FieldMinor},
	{"Critical", core.FieldCritical},
	{"Actual Major", core.FieldActualMajor},
	{"Actual Minor", core.FieldActualMinor},
	{"Actual OQL", core.FieldActualOql},
}

// DefectRadar totals the six severity categories in a fixed order.
func DefectRadar(records []core.InspectionRecord) []RadarPoint {
	out := make([]RadarPoint, len(radarAxes))
	for i, axis := range radarAxes {
		out[i] = RadarPoint{Type: axis.label, Count: Sum(records, axis.field)}
	}
	return out
}

// Defect categories.
const (
	CategoryMajor = "Major"
	CategoryMinor = "Minor"
)

type DefectTotal struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// DefectsDistribution totals each named defect, majors first then minors,
// keeping only positive totals.
func DefectsDistribution(records []core.InspectionRecord) []DefectTotal {
	out := []DefectTotal{}
	collect := func(fields []core.Field, category string) {
		for _, f := range fields {
			if total := Sum(records, f); total > 0 {
				out = append(out, DefectTotal{Name: f.String(), Category: category, Total: total})
			}
		}
	}
	collect(core.MajorDefectFields, CategoryMajor)
	collect(core.MinorDefectFields, CategoryMinor)
	return out
}

type PieSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// StatusPie splits the KPI outcome totals for the status ratio chart.
func StatusPie(k KPI) []PieSlice {
	return []PieSlice{
		{Name: "Pass", Value: k.TotalPass},
		{Name: "Fail", Value: k.TotalFail},
		{Name: "Abort", Value: k.TotalAbort},
		{Name: "Pending", Value: k.TotalPending},
	}
}
