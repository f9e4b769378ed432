package report

import "tracker/internal/core"

// Chart colors.
const (
	ColorGreen  = "#81C784"
	ColorYellow = "#FFF176"
	ColorRed    = "#E57373"
	ColorOther  = "#90CAF9"
	ColorTrend  = "#5C6BC0"
)

// pairedPalette is the 12-color qualitative "Paired" palette.
var pairedPalette = []string{
	"#a6cee3", "#1f78b4", "#b2df8a", "#33a02c", "#fb9a99", "#e31a1c",
	"#fdbf6f", "#ff7f00", "#cab2d6", "#6a3d9a", "#ffff99", "#b15928",
}

var healthColors = map[string]string{
	"Green":  ColorGreen,
	"Yellow": ColorYellow,
	"Red":    ColorRed,
}

// HealthColor maps a health value to its bar color.
func HealthColor(level string) string {
	if c, ok := healthColors[level]; ok {
		return c
	}
	return ColorOther
}

// Series is one chart as consumed by the browser.
type Series struct {
	Kind   string    `json:"kind"`
	Title  string    `json:"title"`
	XLabel string    `json:"x_label,omitempty"`
	YLabel string    `json:"y_label,omitempty"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors"`
}

// Charts bundles the four dashboard charts.
type Charts struct {
	Managers  Series `json:"managers"`
	Divisions Series `json:"divisions"`
	Health    Series `json:"health"`
	Trend     Series `json:"trend"`
}

// BuildCharts computes every chart of the dashboard from the filtered table.
func BuildCharts(t core.Table) Charts {
	managers := ManagerShares(ManagerCounts(t))
	pie := Series{Kind: "pie", Title: "Projects by Manager", Labels: []string{}, Values: []float64{}, Colors: []string{}}
	for i, s := range managers {
		pie.Labels = append(pie.Labels, s.Label)
		pie.Values = append(pie.Values, float64(s.Value))
		pie.Colors = append(pie.Colors, pairedPalette[i%len(pairedPalette)])
	}

	div := countSeries("bar", "Projects by Division", "Division", DivisionCounts(t))
	for i := range div.Labels {
		div.Colors = append(div.Colors, pairedPalette[i%len(pairedPalette)])
	}

	health := countSeries("bar", "Health Status Distribution", "Health Status", HealthCounts(t))
	for _, l := range health.Labels {
		health.Colors = append(health.Colors, HealthColor(l))
	}

	trend := Series{
		Kind:   "line",
		Title:  "Daily Task Volume",
		XLabel: "Date",
		YLabel: "Total Tasks",
		Labels: []string{},
		Values: []float64{},
		Colors: []string{ColorTrend},
	}
	for _, p := range TaskTrend(t) {
		trend.Labels = append(trend.Labels, p.Label())
		trend.Values = append(trend.Values, p.Tasks)
	}

	return Charts{Managers: pie, Divisions: div, Health: health, Trend: trend}
}

func countSeries(kind, title, xLabel string, counts []Count) Series {
	s := Series{
		Kind:   kind,
		Title:  title,
		XLabel: xLabel,
		YLabel: "Projects",
		Labels: make([]string, 0, len(counts)),
		Values: make([]float64, 0, len(counts)),
		Colors: make([]string, 0, len(counts)),
	}
	for _, c := range counts {
		s.Labels = append(s.Labels, c.Label)
		s.Values = append(s.Values, float64(c.Value))
	}
	return s
}
