package feed

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mfolta/subwatch/models"
)

// SortMethod selects the feed ordering.
type SortMethod string

const (
	SortNewest       SortMethod = "newest"
	SortOldest       SortMethod = "oldest"
	SortMostUpvoted  SortMethod = "most_upvoted"
	SortLeastUpvoted SortMethod = "least_upvoted"
	SortPaidFirst    SortMethod = "paid_first"
	SortFreeFirst    SortMethod = "free_first"
)

// LimitAll shows every post regardless of count.
const LimitAll = 0

// ParseSortMethod validates a sort method string, falling back to newest.
func ParseSortMethod(s string) SortMethod {
	switch SortMethod(s) {
	case SortOldest, SortMostUpvoted, SortLeastUpvoted, SortPaidFirst, SortFreeFirst:
		return SortMethod(s)
	default:
		return SortNewest
	}
}

// ParseLimit parses a display limit. "all", empty and non-positive values
// mean unlimited.
func ParseLimit(s string) int {
	if s == "" || s == "all" {
		return LimitAll
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return LimitAll
	}
	return n
}

// Visible returns the ordered subset of posts to render. Sorting happens
// first; the limit is applied to the sorted sequence, so a limited view
// shows the highest-ranked posts under the active sort, not the most
// recently ingested ones.
func Visible(posts []models.Post, method SortMethod, limit int) []models.Post {
	sorted := make([]models.Post, len(posts))
	copy(sorted, posts)
	sortPosts(sorted, method)

	if limit > LimitAll && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

func sortPosts(posts []models.Post, method SortMethod) {
	switch method {
	case SortOldest:
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].InsertionTimestamp < posts[j].InsertionTimestamp
		})
	case SortMostUpvoted:
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].Upvotes > posts[j].Upvotes
		})
	case SortLeastUpvoted:
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].Upvotes < posts[j].Upvotes
		})
	case SortPaidFirst:
		sort.SliceStable(posts, func(i, j int) bool {
			iPaid := posts[i].FlairClass == models.FlairPaid
			jPaid := posts[j].FlairClass == models.FlairPaid
			if iPaid != jPaid {
				return iPaid
			}
			return posts[i].InsertionTimestamp > posts[j].InsertionTimestamp
		})
	case SortFreeFirst:
		sort.SliceStable(posts, func(i, j int) bool {
			iFree := posts[i].FlairClass == models.FlairFree
			jFree := posts[j].FlairClass == models.FlairFree
			if iFree != jFree {
				return iFree
			}
			return posts[i].InsertionTimestamp > posts[j].InsertionTimestamp
		})
	default: // newest
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].InsertionTimestamp > posts[j].InsertionTimestamp
		})
	}
}

// CounterText builds the human-readable feed counter. Three states:
// empty store, unlimited (or limit covering everything) and limited view
// naming the active sort criterion.
func CounterText(showing, total int, method SortMethod, limit int) string {
	if total == 0 {
		return "No posts yet"
	}
	if limit == LimitAll || total <= limit {
		return fmt.Sprintf("Showing all %d posts", total)
	}
	return fmt.Sprintf("Showing %d %s of %d total", showing, sortDescription(method), total)
}

func sortDescription(method SortMethod) string {
	switch method {
	case SortNewest:
		return "newest posts"
	case SortOldest:
		return "oldest posts"
	case SortMostUpvoted:
		return "most upvoted posts"
	case SortLeastUpvoted:
		return "least upvoted posts"
	case SortPaidFirst:
		return "posts (paid first)"
	case SortFreeFirst:
		return "posts (free first)"
	default:
		return "posts"
	}
}

// SortLabel returns the human-facing name of a sort method, matching
// the dropdown the dashboard renders.
func SortLabel(method SortMethod) string {
	switch method {
	case SortOldest:
		return "Oldest First"
	case SortMostUpvoted:
		return "Most Upvoted"
	case SortLeastUpvoted:
		return "Least Upvoted"
	case SortPaidFirst:
		return "Paid First"
	case SortFreeFirst:
		return "Free First"
	default:
		return "Newest First"
	}
}

// TimeAgo formats a post age relative to now. Purely presentational.
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("1/2/2006 3:04 PM")
	}
}
