package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestImageFileName(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "Direct jpg url",
			url:      "https://i.redd.it/abc123.jpg",
			expected: "abc123.jpg",
		},
		{
			name:     "Query parameters stripped",
			url:      "https://preview.redd.it/xyz789.png?width=640&format=png",
			expected: "xyz789.png",
		},
		{
			name:     "Missing extension defaults to jpg",
			url:      "https://i.redd.it/abc123",
			expected: "abc123.jpg",
		},
		{
			name:     "Uppercase extension recognized",
			url:      "https://i.redd.it/photo.GIF",
			expected: "photo.GIF",
		},
		{
			name:     "Query only name defaults to jpg",
			url:      "https://i.redd.it/abc?format=pjpg",
			expected: "abc.jpg",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := imageFileName(tc.url)
			if result != tc.expected {
				t.Errorf("imageFileName(%q) = %q; want %q", tc.url, result, tc.expected)
			}
		})
	}
}

func TestHasImageExtension(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{name: "jpg", url: "https://i.redd.it/a.jpg", expected: true},
		{name: "jpeg", url: "https://i.redd.it/a.jpeg", expected: true},
		{name: "png", url: "https://i.redd.it/a.png", expected: true},
		{name: "gif", url: "https://i.redd.it/a.gif", expected: true},
		{name: "gallery link", url: "https://www.reddit.com/gallery/abc", expected: false},
		{name: "video", url: "https://v.redd.it/a.mp4", expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasImageExtension(tc.url); got != tc.expected {
				t.Errorf("hasImageExtension(%q) = %v; want %v", tc.url, got, tc.expected)
			}
		})
	}
}

func TestTokenBucketTake(t *testing.T) {
	// One token to start, essentially no refill during the test.
	tb := NewTokenBucket(1, 0.0001, time.Second)

	if !tb.Take() {
		t.Error("Take() = false on fresh bucket; want true")
	}
	if tb.Take() {
		t.Error("Take() = true on drained bucket; want false")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	// 100 tokens per second refills within a short wait.
	tb := NewTokenBucket(1, 100, time.Second)

	if !tb.Take() {
		t.Fatal("Take() = false on fresh bucket; want true")
	}

	time.Sleep(50 * time.Millisecond)

	if !tb.Take() {
		t.Error("Take() = false after refill window; want true")
	}
}

func TestTokenBucketTakeWithTimeout(t *testing.T) {
	tb := NewTokenBucket(1, 50, 2*time.Second)

	if !tb.TakeWithTimeout() {
		t.Fatal("TakeWithTimeout() = false on fresh bucket; want true")
	}

	// Drained; with 50 tokens/sec the wait is about 20ms.
	if !tb.TakeWithTimeout() {
		t.Error("TakeWithTimeout() = false; want true after waiting for refill")
	}
}

// pagedListingServer serves an oauth token plus listing pages of 100
// posts each and counts the listing requests it receives.
func pagedListingServer(t *testing.T, pages int, requests *int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			fmt.Fprint(w, `{"access_token":"tok","expires_in":3600,"token_type":"bearer"}`)
			return
		}

		*requests++
		page := *requests

		var l listing
		for i := 0; i < 100; i++ {
			var child listingChild
			child.Data.ID = fmt.Sprintf("p%d-%d", page, i)
			child.Data.Title = "post"
			child.Data.Author = "author"
			l.Data.Children = append(l.Data.Children, child)
		}
		if page < pages {
			l.Data.After = fmt.Sprintf("t3_page%d", page)
		}

		if err := json.NewEncoder(w).Encode(l); err != nil {
			t.Errorf("encode listing: %v", err)
		}
	}))
}

func newPagedTestClient(serverURL string) *Client {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	c := NewClient("id", "secret", "test-agent", 60000, log)
	c.baseURL = serverURL
	c.authURL = serverURL + "/api/v1/access_token"
	return c
}

func TestFetchNewPagedStopsAtMarker(t *testing.T) {
	requests := 0
	server := pagedListingServer(t, 5, &requests)
	defer server.Close()

	c := newPagedTestClient(server.URL)

	// marker sits in the first page, so one request must be enough
	posts, err := c.FetchNewPaged(context.Background(), "test", 500, "p1-50")
	if err != nil {
		t.Fatalf("FetchNewPaged() error = %v", err)
	}
	if requests != 1 {
		t.Errorf("listing requests = %d; want 1 when the marker is on the first page", requests)
	}
	if len(posts) != 100 {
		t.Errorf("len(posts) = %d; want 100", len(posts))
	}
}

func TestFetchNewPagedFollowsPagesWithoutMarker(t *testing.T) {
	requests := 0
	server := pagedListingServer(t, 3, &requests)
	defer server.Close()

	c := newPagedTestClient(server.URL)

	posts, err := c.FetchNewPaged(context.Background(), "test", 500, "")
	if err != nil {
		t.Fatalf("FetchNewPaged() error = %v", err)
	}
	// three pages exist, the third carries no after token
	if requests != 3 {
		t.Errorf("listing requests = %d; want 3", requests)
	}
	if len(posts) != 300 {
		t.Errorf("len(posts) = %d; want 300", len(posts))
	}
	if posts[0].ID != "p1-0" || posts[299].ID != "p3-99" {
		t.Errorf("page order broken: first %q last %q", posts[0].ID, posts[299].ID)
	}
}

func TestFetchNewPagedStopsAtMarkerOnLaterPage(t *testing.T) {
	requests := 0
	server := pagedListingServer(t, 5, &requests)
	defer server.Close()

	c := newPagedTestClient(server.URL)

	posts, err := c.FetchNewPaged(context.Background(), "test", 500, "p2-10")
	if err != nil {
		t.Fatalf("FetchNewPaged() error = %v", err)
	}
	if requests != 2 {
		t.Errorf("listing requests = %d; want 2 when the marker is on the second page", requests)
	}
	if len(posts) != 200 {
		t.Errorf("len(posts) = %d; want 200", len(posts))
	}
}
