package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultDescription is shown for posts submitted without body text.
const DefaultDescription = "No description provided."

// Load types reported by GetRecentPosts.
const (
	LoadTypeFirstLaunch = "FIRST_LAUNCH"
	LoadTypeIncremental = "INCREMENTAL_UPDATE"
)

// FlairClass is the request category derived from a post's flair text.
type FlairClass string

const (
	FlairPaid  FlairClass = "paid"
	FlairFree  FlairClass = "free"
	FlairOther FlairClass = "other"
)

// ClassifyFlair maps free-text flair to a FlairClass by case-insensitive
// substring match. "paid" wins over "free" when a flair contains both.
func ClassifyFlair(flair string) FlairClass {
	lower := strings.ToLower(flair)
	if strings.Contains(lower, "paid") {
		return FlairPaid
	}
	if strings.Contains(lower, "free") {
		return FlairFree
	}
	return FlairOther
}

// Post represents one tracked subreddit submission
type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Flair       string     `json:"flair"`
	FlairClass  FlairClass `json:"flair_class"`
	CreatedAt   time.Time  `json:"created_at"`
	Upvotes     int        `json:"upvotes"`
	Completed   bool       `json:"completed"`

	// InsertionTimestamp is CreatedAt in epoch milliseconds; it is the
	// sort key used by the feed pipeline.
	InsertionTimestamp int64 `json:"insertion_timestamp"`
}

// PostEntry is one recorded detection, the raw material for analytics.
// One entry is written per post the first time it is seen.
type PostEntry struct {
	Timestamp         time.Time  `json:"timestamp"`
	DetectionType     string     `json:"detection_type"`
	PostID            string     `json:"post_id"`
	Subreddit         string     `json:"subreddit"`
	Author            string     `json:"author"`
	PostCreated       time.Time  `json:"post_created"`
	PostType          FlairClass `json:"post_type"`
	FlairRaw          string     `json:"flair_raw"`
	TitleLength       int        `json:"title_length"`
	DescriptionLength int        `json:"description_length"`
	Upvotes           int        `json:"upvotes"`
	Title             string     `json:"title"`
}

// NewPostEntry derives an analytics entry from a detected post. Title
// and description lengths count characters, not bytes.
func NewPostEntry(post Post, subreddit, detectionType string) PostEntry {
	title := post.Title
	if runes := []rune(title); len(runes) > 100 {
		title = string(runes[:100]) + "..."
	}

	return PostEntry{
		Timestamp:         time.Now(),
		DetectionType:     detectionType,
		PostID:            post.ID,
		Subreddit:         subreddit,
		Author:            post.Author,
		PostCreated:       post.CreatedAt,
		PostType:          ClassifyFlair(post.Flair),
		FlairRaw:          post.Flair,
		TitleLength:       utf8.RuneCountInString(post.Title),
		DescriptionLength: utf8.RuneCountInString(post.Description),
		Upvotes:           post.Upvotes,
		Title:             title,
	}
}

// AuthorCount pairs an author with their post count. Author rankings are
// carried as an ordered slice because the descending-count order is part
// of the payload contract.
type AuthorCount struct {
	Author string `json:"author"`
	Posts  int    `json:"posts"`
}

// TrendPoint is one day in the posting trend series.
type TrendPoint struct {
	Date  string `json:"date"`
	Posts int    `json:"posts"`
	Paid  int    `json:"paid"`
	Free  int    `json:"free"`
}

// EngagementMetrics holds average upvote figures overall and per type.
type EngagementMetrics struct {
	AvgUpvotes     float64 `json:"avg_upvotes"`
	PaidAvgUpvotes float64 `json:"paid_avg_upvotes"`
	FreeAvgUpvotes float64 `json:"free_avg_upvotes"`
}

// AnalyticsPayload is the aggregate snapshot computed over all recorded
// post entries. The display layer consumes it read-only.
type AnalyticsPayload struct {
	TotalPosts           int               `json:"total_posts"`
	PaidPosts            int               `json:"paid_posts"`
	FreePosts            int               `json:"free_posts"`
	OtherPosts           int               `json:"other_posts"`
	PaidPercentage       float64           `json:"paid_percentage"`
	FreePercentage       float64           `json:"free_percentage"`
	HourlyDistribution   []int             `json:"hourly_distribution"`
	WeekdayDistribution  map[string]int    `json:"weekday_distribution"`
	DailyPosts           map[string]int    `json:"daily_posts"`
	AvgTitleLength       float64           `json:"avg_title_length"`
	AvgDescriptionLength float64           `json:"avg_description_length"`
	MostActiveHour       int               `json:"most_active_hour"`
	MostActiveDay        string            `json:"most_active_day"`
	TopAuthors           []AuthorCount     `json:"top_authors"`
	PostingTrends        []TrendPoint      `json:"posting_trends"`
	Engagement           EngagementMetrics `json:"engagement_metrics"`
}

// EmptyAnalytics returns a fully zeroed payload. Every display field has
// a defined fallback, so a dashboard opened before any post was recorded
// renders zeros instead of erroring.
func EmptyAnalytics() AnalyticsPayload {
	return AnalyticsPayload{
		HourlyDistribution:  make([]int, 24),
		WeekdayDistribution: map[string]int{},
		DailyPosts:          map[string]int{},
		MostActiveDay:       "Unknown",
		TopAuthors:          []AuthorCount{},
		PostingTrends:       []TrendPoint{},
	}
}
