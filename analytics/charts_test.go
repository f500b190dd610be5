package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfolta/subwatch/models"
)

func TestHourlyChartAllZeros(t *testing.T) {
	d := HourlyChart(make([]int, 24))

	assert.True(t, d.NoData)
	assert.Equal(t, "No hourly data available", d.Message)
	assert.Empty(t, d.Series)
}

func TestHourlyChartPadsShortInput(t *testing.T) {
	d := HourlyChart([]int{0, 3})

	assert.False(t, d.NoData)
	assert.Len(t, d.Series, 24)
	assert.Equal(t, 3.0, d.Series[1])
	assert.Equal(t, "0h", d.Labels[0])
	assert.Equal(t, "23h", d.Labels[23])
}

func TestTypeChart(t *testing.T) {
	p := models.EmptyAnalytics()
	d := TypeChart(p)
	assert.True(t, d.NoData)
	assert.Equal(t, "No data available", d.Message)

	p.TotalPosts = 6
	p.PaidPosts, p.FreePosts, p.OtherPosts = 1, 4, 1
	d = TypeChart(p)
	assert.False(t, d.NoData)
	assert.Equal(t, []string{"Paid", "Free", "Other"}, d.Labels)
	assert.Equal(t, []float64{1, 4, 1}, d.Series)
}

func TestWeeklyChartOrderAndNoData(t *testing.T) {
	d := WeeklyChart(map[string]int{})
	assert.True(t, d.NoData)
	assert.Equal(t, "No weekly data available", d.Message)

	d = WeeklyChart(map[string]int{"Saturday": 5, "Monday": 2})
	assert.False(t, d.NoData)
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, d.Labels)
	assert.Equal(t, 2.0, d.Series[0])
	assert.Equal(t, 5.0, d.Series[5])
}

func TestTrendChart(t *testing.T) {
	d := TrendChart(nil)
	assert.True(t, d.NoData)
	assert.Equal(t, "No trend data available", d.Message)

	d = TrendChart([]models.TrendPoint{
		{Date: "2025-08-15", Posts: 12},
		{Date: "2025-08-16", Posts: 8},
	})
	assert.Equal(t, []string{"2025-08-15", "2025-08-16"}, d.Labels)
	assert.Equal(t, []float64{12, 8}, d.Series)
}

func TestBuildChartsIndependence(t *testing.T) {
	// a payload with only trend data: three charts show placeholders,
	// the trend chart renders
	p := models.EmptyAnalytics()
	p.PostingTrends = []models.TrendPoint{{Date: "2025-08-15", Posts: 2}}

	set := BuildCharts(p)
	assert.True(t, set.Hourly.NoData)
	assert.True(t, set.Types.NoData)
	assert.True(t, set.Weekly.NoData)
	assert.False(t, set.Trends.NoData)
}

func TestErrorDataset(t *testing.T) {
	d := ErrorDataset("Chart library failed to load")
	assert.True(t, d.NoData)
	assert.Equal(t, "Chart library failed to load", d.Message)
}
