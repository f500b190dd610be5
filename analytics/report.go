package analytics

import (
	"fmt"

	"github.com/mfolta/subwatch/models"
)

// Report is the display-side view of an analytics payload: every field
// the dashboard overview shows, precomputed with its documented fallback
// so no display path ever divides by zero.
type Report struct {
	TotalPosts     int     `json:"total_posts"`
	DistinctDays   int     `json:"distinct_days"`
	AvgPostsPerDay float64 `json:"avg_posts_per_day"`

	BusiestHour       int    `json:"busiest_hour"`
	BusiestHourCount  int    `json:"busiest_hour_count"`
	QuietestHour      int    `json:"quietest_hour"`
	QuietestHourCount int    `json:"quietest_hour_count"`
	BusiestDay        string `json:"busiest_day"`
	BusiestDayCount   int    `json:"busiest_day_count"`

	PaidPosts  int `json:"paid_posts"`
	FreePosts  int `json:"free_posts"`
	OtherPosts int `json:"other_posts"`

	PaidPercentage float64 `json:"paid_percentage"`
	FreePercentage float64 `json:"free_percentage"`
	// OtherPercentage is 100 - paid% - free%, not computed from the other
	// count. Rounding can push it slightly off, or even negative; the
	// drift is preserved deliberately because downstream expectations on
	// the subtraction form are unknown.
	OtherPercentage float64 `json:"other_percentage"`

	RequestRatio string `json:"request_ratio"`

	AvgTitleLength       float64 `json:"avg_title_length"`
	AvgDescriptionLength float64 `json:"avg_description_length"`

	AvgUpvotes           float64 `json:"avg_upvotes"`
	PaidAvgUpvotes       float64 `json:"paid_avg_upvotes"`
	FreeAvgUpvotes       float64 `json:"free_avg_upvotes"`
	EngagementComparison string  `json:"engagement_comparison"`

	WeekendPosts       int     `json:"weekend_posts"`
	WeekdayPosts       int     `json:"weekday_posts"`
	PrimeTimePosts     int     `json:"prime_time_posts"`
	PrimeTimePercent   float64 `json:"prime_time_percent"`
	ActivityComparison string  `json:"activity_comparison"`

	TopAuthors []string `json:"top_authors"`
}

// Prime time covers the evening hours 18:00 through 22:59.
const (
	primeTimeStart = 18
	primeTimeEnd   = 22
)

var weekendDays = []string{"Saturday", "Sunday"}
var workDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// BuildReport derives the overview report from an analytics payload.
func BuildReport(p models.AnalyticsPayload) Report {
	r := Report{
		TotalPosts:           p.TotalPosts,
		DistinctDays:         len(p.DailyPosts),
		PaidPosts:            p.PaidPosts,
		FreePosts:            p.FreePosts,
		OtherPosts:           p.OtherPosts,
		PaidPercentage:       p.PaidPercentage,
		FreePercentage:       p.FreePercentage,
		OtherPercentage:      100 - p.PaidPercentage - p.FreePercentage,
		AvgTitleLength:       p.AvgTitleLength,
		AvgDescriptionLength: p.AvgDescriptionLength,
		AvgUpvotes:           p.Engagement.AvgUpvotes,
		PaidAvgUpvotes:       p.Engagement.PaidAvgUpvotes,
		FreeAvgUpvotes:       p.Engagement.FreeAvgUpvotes,
		BusiestDay:           "Unknown",
	}

	if p.TotalPosts == 0 {
		// the subtraction form above would report 100% "other" for an
		// empty payload; everything renders as zero instead
		r.OtherPercentage = 0
	}

	if r.DistinctDays > 0 {
		r.AvgPostsPerDay = round1(float64(p.TotalPosts) / float64(r.DistinctDays))
	}

	r.BusiestHour, r.BusiestHourCount, r.QuietestHour, r.QuietestHourCount = scanHours(p.HourlyDistribution)

	for _, day := range Weekdays {
		if p.WeekdayDistribution[day] > r.BusiestDayCount {
			r.BusiestDayCount = p.WeekdayDistribution[day]
			r.BusiestDay = day
		}
	}

	r.RequestRatio = fmt.Sprintf("%d:%d", p.PaidPosts, p.FreePosts)

	if r.PaidAvgUpvotes > r.FreeAvgUpvotes {
		r.EngagementComparison = fmt.Sprintf("Paid: %g > Free: %g", r.PaidAvgUpvotes, r.FreeAvgUpvotes)
	} else {
		r.EngagementComparison = fmt.Sprintf("Free: %g > Paid: %g", r.FreeAvgUpvotes, r.PaidAvgUpvotes)
	}

	for _, day := range weekendDays {
		r.WeekendPosts += p.WeekdayDistribution[day]
	}
	for _, day := range workDays {
		r.WeekdayPosts += p.WeekdayDistribution[day]
	}
	r.ActivityComparison = fmt.Sprintf("%d weekend vs %d weekday", r.WeekendPosts, r.WeekdayPosts)

	for hour := primeTimeStart; hour <= primeTimeEnd && hour < len(p.HourlyDistribution); hour++ {
		r.PrimeTimePosts += p.HourlyDistribution[hour]
	}
	if p.TotalPosts > 0 {
		r.PrimeTimePercent = round1(float64(r.PrimeTimePosts) / float64(p.TotalPosts) * 100)
	}

	r.TopAuthors = FormatTopAuthors(p.TopAuthors)

	return r
}

// scanHours finds the busiest and quietest hour with first-seen-wins tie
// breaking over the 24-slot hourly distribution.
func scanHours(hourly []int) (peakHour, peakCount, quietHour, quietCount int) {
	if len(hourly) == 0 {
		return 0, 0, 0, 0
	}

	quietCount = hourly[0]
	for hour, count := range hourly {
		if count > peakCount {
			peakCount = count
			peakHour = hour
		}
		if count < quietCount {
			quietCount = count
			quietHour = hour
		}
	}
	return peakHour, peakCount, quietHour, quietCount
}

// FormatTopAuthors renders the first 5 author ranking rows; an empty
// ranking yields a single placeholder row.
func FormatTopAuthors(ranked []models.AuthorCount) []string {
	if len(ranked) == 0 {
		return []string{"No data available"}
	}
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	rows := make([]string, 0, len(ranked))
	for _, a := range ranked {
		rows = append(rows, fmt.Sprintf("u/%s: %d posts", a.Author, a.Posts))
	}
	return rows
}
