package analytics

import (
	"fmt"

	"github.com/mfolta/subwatch/models"
)

// Dataset is one chart's worth of render-ready data. When NoData is set
// the consumer draws the Message placeholder instead of the series; a
// degenerate series must never reach the drawing code.
type Dataset struct {
	Labels  []string  `json:"labels"`
	Series  []float64 `json:"series"`
	NoData  bool      `json:"no_data"`
	Message string    `json:"message,omitempty"`
}

// ErrorDataset marks a chart as failed. Each chart fails on its own; one
// bad chart never takes down the rest of the dashboard.
func ErrorDataset(message string) Dataset {
	return Dataset{NoData: true, Message: message}
}

// HourlyChart builds the 24-bar hour-of-day histogram.
func HourlyChart(hourly []int) Dataset {
	// tolerate short or missing input by padding to 24 hours
	data := make([]int, 24)
	copy(data, hourly)

	total := 0
	labels := make([]string, 24)
	series := make([]float64, 24)
	for hour, count := range data {
		labels[hour] = fmt.Sprintf("%dh", hour)
		series[hour] = float64(count)
		total += count
	}

	if total == 0 {
		return Dataset{NoData: true, Message: "No hourly data available"}
	}
	return Dataset{Labels: labels, Series: series}
}

// TypeChart builds the paid/free/other breakdown pie.
func TypeChart(p models.AnalyticsPayload) Dataset {
	if p.TotalPosts == 0 {
		return Dataset{NoData: true, Message: "No data available"}
	}
	return Dataset{
		Labels: []string{"Paid", "Free", "Other"},
		Series: []float64{float64(p.PaidPosts), float64(p.FreePosts), float64(p.OtherPosts)},
	}
}

// WeeklyChart builds the day-of-week histogram, Monday first.
func WeeklyChart(weekday map[string]int) Dataset {
	labels := make([]string, 0, 7)
	series := make([]float64, 0, 7)
	total := 0
	for _, day := range Weekdays {
		labels = append(labels, day[:3])
		series = append(series, float64(weekday[day]))
		total += weekday[day]
	}

	if total == 0 {
		return Dataset{NoData: true, Message: "No weekly data available"}
	}
	return Dataset{Labels: labels, Series: series}
}

// TrendChart builds the posts-per-day trend line.
func TrendChart(trends []models.TrendPoint) Dataset {
	if len(trends) == 0 {
		return Dataset{NoData: true, Message: "No trend data available"}
	}

	labels := make([]string, 0, len(trends))
	series := make([]float64, 0, len(trends))
	for _, point := range trends {
		labels = append(labels, point.Date)
		series = append(series, float64(point.Posts))
	}
	return Dataset{Labels: labels, Series: series}
}

// ChartSet bundles the four dashboard charts. Datasets are rebuilt from
// scratch on every analytics refresh; nothing is patched incrementally.
type ChartSet struct {
	Hourly Dataset `json:"hourly"`
	Types  Dataset `json:"types"`
	Weekly Dataset `json:"weekly"`
	Trends Dataset `json:"trends"`
}

// BuildCharts builds all four chart datasets from a payload.
func BuildCharts(p models.AnalyticsPayload) ChartSet {
	return ChartSet{
		Hourly: HourlyChart(p.HourlyDistribution),
		Types:  TypeChart(p),
		Weekly: WeeklyChart(p.WeekdayDistribution),
		Trends: TrendChart(p.PostingTrends),
	}
}
