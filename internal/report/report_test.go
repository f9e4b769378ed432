package report

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/core"
	"tracker/internal/pipeline"
)

func projectRow(sheet, status, health, pm, division string, start core.Date, tasks core.Cell) core.Row {
	return core.Row{
		Sheet: sheet,
		Start: start,
		Values: map[string]core.Cell{
			core.ColStatus:   core.TextCell(status),
			core.ColHealth:   core.TextCell(health),
			core.ColManager:  core.TextCell(pm),
			core.ColDivision: core.TextCell(division),
			core.ColTasks:    tasks,
		},
	}
}

func fixture() core.Table {
	return core.Table{
		Columns: []string{core.ColStatus, core.ColHealth, core.ColManager, core.ColDivision, core.ColStartDate, core.ColTasks, core.ColSheet},
		Rows: []core.Row{
			projectRow("June", "Closed", "Red", "B", "Ops", core.NewDate(2025, 6, 1), core.NumberCell(5)),
			projectRow("May", "Active", "Green", "A", "Eng", core.NewDate(2025, 5, 1), core.NumberCell(3)),
			projectRow("May", "Active", "Amber", "C", "Eng", core.NewDate(2025, 5, 1), core.TextCell("2")),
			projectRow("May", "Active", "", "A", "", core.MissingDate, core.NumberCell(7)),
			projectRow("May", "On Hold", "Green", "", "Ops", core.NewDate(2025, 5, 2), core.TextCell("n/a")),
		},
	}
}

func TestValueCounts(t *testing.T) {
	got := ValueCounts(fixture(), core.ColManager)
	assert.Equal(t, []Count{{"A", 2}, {"B", 1}, {"C", 1}}, got)

	assert.Empty(t, ValueCounts(fixture(), "Missing"))
}

func TestManagerShares(t *testing.T) {
	shares := ManagerShares([]Count{{"A", 2}, {"B", 1}})
	require.Len(t, shares, 2)
	assert.Equal(t, "66.7%", shares[0].PercentLabel())
	assert.Equal(t, "33.3%", shares[1].PercentLabel())

	assert.Empty(t, ManagerShares(nil))
}

func TestHealthCounts(t *testing.T) {
	got := HealthCounts(fixture())
	assert.Equal(t, []Count{{"Green", 2}, {"Yellow", 0}, {"Red", 1}, {"Amber", 1}}, got)

	empty := HealthCounts(core.Table{})
	assert.Equal(t, []Count{{"Green", 0}, {"Yellow", 0}, {"Red", 0}}, empty)
}

func TestHealthColor(t *testing.T) {
	assert.Equal(t, "#81C784", HealthColor("Green"))
	assert.Equal(t, "#FFF176", HealthColor("Yellow"))
	assert.Equal(t, "#E57373", HealthColor("Red"))
	assert.Equal(t, "#90CAF9", HealthColor("Amber"))
}

func TestTaskTrend(t *testing.T) {
	got := TaskTrend(fixture())
	require.Len(t, got, 2)
	assert.Equal(t, "01 May 2025", got[0].Label())
	assert.Equal(t, 5.0, got[0].Tasks)
	assert.Equal(t, "01 Jun 2025", got[1].Label())
	assert.Equal(t, 5.0, got[1].Tasks)
}

func TestTaskTrendTwoSheetScenario(t *testing.T) {
	wb := core.NewMemoryWorkbook()
	wb.AddSheet("May", core.TextRows([][]string{
		{"Status", "Health", "Project Manager", "Start Date", "Tasks"},
		{"Active", "Green", "A", "2025-05-01", "3"},
	}))
	wb.AddSheet("June", core.TextRows([][]string{
		{"Status", "Health", "Project Manager", "Start Date", "Tasks"},
		{"Closed", "Red", "B", "2025-06-01", "5"},
	}))
	res := pipeline.Build(wb, wb.SheetNames())
	filtered, _ := pipeline.Filter(res.Table, pipeline.DefaultSelection(res.Table))

	trend := TaskTrend(filtered)
	require.Len(t, trend, 2)
	assert.Equal(t, TrendPoint{Date: core.NewDate(2025, 5, 1), Tasks: 3}, trend[0])
	assert.Equal(t, TrendPoint{Date: core.NewDate(2025, 6, 1), Tasks: 5}, trend[1])
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixture())
	assert.Equal(t, 5, s.Projects)
	assert.Equal(t, 3, s.Managers)
	assert.Equal(t, 2, s.Sheets)
	assert.Equal(t, 1, s.WithoutStart)
	assert.Equal(t, 17.0, s.TotalTasks)
	assert.Equal(t, 4.25, s.MeanTasks)
	assert.Equal(t, 4.0, s.MedianTasks)

	assert.Equal(t, Summary{}, Summarize(core.Table{}))
}

func TestBuildCharts(t *testing.T) {
	c := BuildCharts(fixture())

	assert.Equal(t, []string{"A", "B", "C"}, c.Managers.Labels)
	assert.Equal(t, []float64{2, 1, 1}, c.Managers.Values)
	assert.Len(t, c.Managers.Colors, 3)

	assert.Equal(t, []string{"Ops", "Eng"}, c.Divisions.Labels)
	assert.Equal(t, []string{"#a6cee3", "#1f78b4"}, c.Divisions.Colors)

	assert.Equal(t, []string{"Green", "Yellow", "Red", "Amber"}, c.Health.Labels)
	assert.Equal(t, []string{ColorGreen, ColorYellow, ColorRed, ColorOther}, c.Health.Colors)

	assert.Equal(t, "line", c.Trend.Kind)
	assert.Equal(t, []string{"01 May 2025", "01 Jun 2025"}, c.Trend.Labels)

	empty := BuildCharts(core.Table{})
	assert.NotNil(t, empty.Trend.Labels)
	assert.NotNil(t, empty.Managers.Values)
}

func TestMissingColumns(t *testing.T) {
	tbl := core.Table{
		Columns: []string{core.ColStatus, core.ColManager, core.ColSheet},
		Rows:    []core.Row{{Sheet: "S"}},
	}
	w := MissingColumns(tbl)
	require.Len(t, w, 3)
	assert.Equal(t, core.ColDivision, w[0].Column)

	assert.Empty(t, MissingColumns(core.Table{Columns: tbl.Columns}))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	tbl := fixture()
	filtered, _ := pipeline.Filter(tbl, pipeline.Selection{Status: []string{"Active"}})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, filtered))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, filtered.Len()+1)
	assert.Equal(t, filtered.Columns, records[0])

	assert.Equal(t, []string{"Active", "Green", "A", "Eng", "01 May 2025", "3", "May"}, records[1])
	assert.Equal(t, []string{"Active", "", "A", "", "", "7", "May"}, records[3])
}

func TestWriteCSVQuoting(t *testing.T) {
	tbl := core.Table{
		Columns: []string{"Name", core.ColSheet},
		Rows: []core.Row{
			{Sheet: "May", Values: map[string]core.Cell{"Name": core.TextCell(`Alpha, "beta"`)}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "Name,Sheet\n\"Alpha, \"\"beta\"\"\",May\n", buf.String())
}
