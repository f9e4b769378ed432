package report

import (
	"sort"

	"github.com/montanaflynn/stats"

	"tracker/internal/core"
)

// TrendPoint is the task volume of one start date.
type TrendPoint struct {
	Date  core.Date
	Tasks float64
}

// Label renders the point date as DD Mon YYYY.
func (p TrendPoint) Label() string {
	return p.Date.Display()
}

// TaskTrend sums Tasks grouped by Start Date, oldest first. Rows with a
// missing date or non-numeric Tasks are ignored.
func TaskTrend(t core.Table) []TrendPoint {
	sums := make(map[core.Date]float64)
	for _, r := range t.Rows {
		if r.Start.IsMissing() {
			continue
		}
		c, ok := r.Get(core.ColTasks)
		if !ok {
			continue
		}
		n, ok := c.Float()
		if !ok {
			continue
		}
		sums[r.Start] += n
	}
	points := make([]TrendPoint, 0, len(sums))
	for d, n := range sums {
		points = append(points, TrendPoint{Date: d, Tasks: n})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date.Time)
	})
	return points
}

// Summary holds the headline figures shown above the table.
type Summary struct {
	Projects     int     `json:"projects"`
	Managers     int     `json:"managers"`
	Sheets       int     `json:"sheets"`
	TotalTasks   float64 `json:"total_tasks"`
	MeanTasks    float64 `json:"mean_tasks"`
	MedianTasks  float64 `json:"median_tasks"`
	WithoutStart int     `json:"without_start"`
}

// Summarize computes the headline figures of t.
func Summarize(t core.Table) Summary {
	s := Summary{
		Projects: t.Len(),
		Managers: len(ValueCounts(t, core.ColManager)),
	}
	sheets := make(map[string]struct{})
	var tasks []float64
	for _, r := range t.Rows {
		sheets[r.Sheet] = struct{}{}
		if r.Start.IsMissing() {
			s.WithoutStart++
		}
		if c, ok := r.Get(core.ColTasks); ok {
			if n, ok := c.Float(); ok {
				tasks = append(tasks, n)
			}
		}
	}
	s.Sheets = len(sheets)
	if len(tasks) == 0 {
		return s
	}
	s.TotalTasks, _ = stats.Sum(tasks)
	s.MeanTasks, _ = stats.Mean(tasks)
	s.MedianTasks, _ = stats.Median(tasks)
	if r, err := stats.Round(s.MeanTasks, 2); err == nil {
		s.MeanTasks = r
	}
	return s
}
