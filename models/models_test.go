package models

import (
	"strings"
	"testing"
	"time"
)

func TestClassifyFlair(t *testing.T) {
	tests := []struct {
		name     string
		flair    string
		expected FlairClass
	}{
		{
			name:     "Paid flair",
			flair:    "Paid request",
			expected: FlairPaid,
		},
		{
			name:     "Free flair",
			flair:    "Free help",
			expected: FlairFree,
		},
		{
			name:     "Both tokens, paid takes priority",
			flair:    "Paid/Free mix",
			expected: FlairPaid,
		},
		{
			name:     "Unrelated flair",
			flair:    "Meta",
			expected: FlairOther,
		},
		{
			name:     "Empty flair",
			flair:    "",
			expected: FlairOther,
		},
		{
			name:     "Case insensitive",
			flair:    "PAID - will tip",
			expected: FlairPaid,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := ClassifyFlair(tc.flair)
			if result != tc.expected {
				t.Errorf("ClassifyFlair(%q) = %q; want %q", tc.flair, result, tc.expected)
			}
		})
	}
}

func TestNewPostEntryTruncatesTitle(t *testing.T) {
	longTitle := strings.Repeat("a", 150)
	post := Post{
		ID:        "abc123",
		Title:     longTitle,
		Author:    "user123",
		Flair:     "Paid",
		CreatedAt: time.Now(),
		Upvotes:   5,
	}

	entry := NewPostEntry(post, "PhotoshopRequest", LoadTypeFirstLaunch)

	if entry.TitleLength != 150 {
		t.Errorf("TitleLength = %d; want 150", entry.TitleLength)
	}
	if entry.Title != strings.Repeat("a", 100)+"..." {
		t.Errorf("Title was not truncated to 100 chars with ellipsis")
	}
	if entry.PostType != FlairPaid {
		t.Errorf("PostType = %q; want %q", entry.PostType, FlairPaid)
	}
}

func TestNewPostEntryCountsCharacters(t *testing.T) {
	// 60 characters, 120 bytes
	post := Post{
		ID:          "uni1",
		Title:       strings.Repeat("é", 60),
		Description: strings.Repeat("ü", 30),
	}

	entry := NewPostEntry(post, "PhotoshopRequest", LoadTypeFirstLaunch)

	if entry.TitleLength != 60 {
		t.Errorf("TitleLength = %d; want 60", entry.TitleLength)
	}
	if entry.DescriptionLength != 30 {
		t.Errorf("DescriptionLength = %d; want 30", entry.DescriptionLength)
	}
	// untruncated, 60 runes is under the cap
	if entry.Title != post.Title {
		t.Errorf("Title was modified for a 60-character title")
	}

	long := Post{ID: "uni2", Title: strings.Repeat("é", 150)}
	entry = NewPostEntry(long, "PhotoshopRequest", LoadTypeFirstLaunch)
	if entry.Title != strings.Repeat("é", 100)+"..." {
		t.Errorf("truncation split the title at a byte offset")
	}
}

func TestEmptyAnalytics(t *testing.T) {
	a := EmptyAnalytics()

	if len(a.HourlyDistribution) != 24 {
		t.Errorf("HourlyDistribution length = %d; want 24", len(a.HourlyDistribution))
	}
	if a.TotalPosts != 0 || a.PaidPercentage != 0 {
		t.Errorf("expected zeroed counters, got total=%d paid%%=%f", a.TotalPosts, a.PaidPercentage)
	}
	if a.MostActiveDay != "Unknown" {
		t.Errorf("MostActiveDay = %q; want Unknown", a.MostActiveDay)
	}
}
