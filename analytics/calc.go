package analytics

import (
	"math"
	"sort"

	"github.com/mfolta/subwatch/models"
)

const topAuthorsLimit = 10

// Calculate aggregates recorded post entries into the analytics payload
// served to the dashboard. An empty input yields a fully zeroed payload.
func Calculate(entries []models.PostEntry) models.AnalyticsPayload {
	if len(entries) == 0 {
		return models.EmptyAnalytics()
	}

	payload := models.EmptyAnalytics()
	payload.TotalPosts = len(entries)

	hourCounts := map[int]int{}
	authorCounts := map[string]int{}
	var totalUpvotes, paidUpvotes, freeUpvotes int
	var titleChars, descriptionChars int
	dailyPaid := map[string]int{}
	dailyFree := map[string]int{}

	for _, e := range entries {
		switch e.PostType {
		case models.FlairPaid:
			payload.PaidPosts++
			paidUpvotes += e.Upvotes
		case models.FlairFree:
			payload.FreePosts++
			freeUpvotes += e.Upvotes
		default:
			payload.OtherPosts++
		}

		hour := e.PostCreated.Hour()
		payload.HourlyDistribution[hour]++
		hourCounts[hour]++

		weekday := e.PostCreated.Weekday().String()
		payload.WeekdayDistribution[weekday]++

		date := e.PostCreated.Format("2006-01-02")
		payload.DailyPosts[date]++
		if e.PostType == models.FlairPaid {
			dailyPaid[date]++
		} else if e.PostType == models.FlairFree {
			dailyFree[date]++
		}

		authorCounts[e.Author]++
		totalUpvotes += e.Upvotes
		titleChars += e.TitleLength
		descriptionChars += e.DescriptionLength
	}

	total := float64(payload.TotalPosts)
	payload.PaidPercentage = round1(float64(payload.PaidPosts) / total * 100)
	payload.FreePercentage = round1(float64(payload.FreePosts) / total * 100)
	payload.AvgTitleLength = round1(float64(titleChars) / total)
	payload.AvgDescriptionLength = round1(float64(descriptionChars) / total)

	payload.Engagement = models.EngagementMetrics{
		AvgUpvotes:     round1(float64(totalUpvotes) / total),
		PaidAvgUpvotes: safeAvg(paidUpvotes, payload.PaidPosts),
		FreeAvgUpvotes: safeAvg(freeUpvotes, payload.FreePosts),
	}

	// first-seen wins on ties: scan hours in order
	best := 0
	for hour := 0; hour < 24; hour++ {
		if hourCounts[hour] > best {
			best = hourCounts[hour]
			payload.MostActiveHour = hour
		}
	}

	bestDay := 0
	for _, day := range Weekdays {
		if payload.WeekdayDistribution[day] > bestDay {
			bestDay = payload.WeekdayDistribution[day]
			payload.MostActiveDay = day
		}
	}

	payload.TopAuthors = rankAuthors(authorCounts, topAuthorsLimit)

	dates := make([]string, 0, len(payload.DailyPosts))
	for date := range payload.DailyPosts {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		payload.PostingTrends = append(payload.PostingTrends, models.TrendPoint{
			Date:  date,
			Posts: payload.DailyPosts[date],
			Paid:  dailyPaid[date],
			Free:  dailyFree[date],
		})
	}

	return payload
}

// Weekdays in display order, Monday first.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func rankAuthors(counts map[string]int, limit int) []models.AuthorCount {
	ranked := make([]models.AuthorCount, 0, len(counts))
	for author, n := range counts {
		ranked = append(ranked, models.AuthorCount{Author: author, Posts: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Posts != ranked[j].Posts {
			return ranked[i].Posts > ranked[j].Posts
		}
		return ranked[i].Author < ranked[j].Author
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func safeAvg(sum, count int) float64 {
	if count == 0 {
		return 0
	}
	return round1(float64(sum) / float64(count))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
