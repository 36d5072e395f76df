package aggregate

import "qcdash/internal/core"

// ChartTotals are the small per-card totals displayed above each chart.
type ChartTotals struct {
	DistributionMajor float64 `json:"distributionMajor"`
	DistributionMinor float64 `json:"distributionMinor"`
	Critical          float64 `json:"critical"`
	RatioMajor        float64 `json:"ratioMajor"`
	RatioMinor        float64 `json:"ratioMinor"`
}

// Dashboard is every dataset the dashboard renders for one filter.
type Dashboard struct {
	Filter              string                `json:"filter"`
	Count               int                   `json:"count"`
	KPI                 KPI                   `json:"kpi"`
	MonthlyStatus       []MonthlyStatus       `json:"monthlyStatus"`
	DefectRadar         []RadarPoint          `json:"defectRadar"`
	DefectsDistribution []DefectTotal         `json:"defectsDistribution"`
	StatusPie           []PieSlice            `json:"statusPie"`
	InspectorStats      []InspectorPassFail   `json:"inspectorStats"`
	CriticalTrend       []CriticalPoint       `json:"criticalTrend"`
	DefectsRatio        []DefectRatio         `json:"defectsRatio"`
	InspectorEfficiency []InspectorEfficiency `json:"inspectorEfficiency"`
	DefectsByInspector  []InspectorDefects    `json:"defectsByInspector"`
	StatusTrend         []StatusTrendPoint    `json:"statusTrend"`
	Totals              ChartTotals           `json:"totals"`
}

// Build filters records and computes every dashboard dataset.
func Build(records []core.InspectionRecord, f core.FilterSpec) Dashboard {
	filtered := ApplyFilters(records, f)
	kpi := ComputeKPIs(filtered)

	d := Dashboard{
		Filter:              f.Key(),
		Count:               len(filtered),
		KPI:                 kpi,
		MonthlyStatus:       MonthlyStatusSummary(filtered),
		DefectRadar:         DefectRadar(filtered),
		DefectsDistribution: DefectsDistribution(filtered),
		StatusPie:           StatusPie(kpi),
		InspectorStats:      InspectorSummary(filtered),
		CriticalTrend:       CriticalTrend(filtered),
		DefectsRatio:        DefectsRatio(filtered),
		InspectorEfficiency: InspectorEfficiencySummary(filtered),
		DefectsByInspector:  DefectsByInspector(filtered),
		StatusTrend:         StatusTrend(filtered),
	}

	for _, t := range d.DefectsDistribution {
		switch t.Category {
		case CategoryMajor:
			d.Totals.DistributionMajor += t.Total
		case CategoryMinor:
			d.Totals.DistributionMinor += t.Total
		}
	}
	for _, p := range d.CriticalTrend {
		d.Totals.Critical += p.Critical
	}
	for _, p := range d.DefectsRatio {
		d.Totals.RatioMajor += p.Major
		d.Totals.RatioMinor += p.Minor
	}
	return d
}
