package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/mfolta/subwatch/bridge"
	"github.com/mfolta/subwatch/models"
	"github.com/mfolta/subwatch/monitor"
)

// fakeBridge records calls and returns canned results.
type fakeBridge struct {
	sink          monitor.Sink
	posts         []models.Post
	loadType      string
	logs          []string
	completed     []string
	savedLogs     [][]string
	downloadCalls int
	monitoring    bool
}

func (f *fakeBridge) AttachSink(sink monitor.Sink) { f.sink = sink }

func (f *fakeBridge) TestConnection(ctx context.Context) bridge.Result {
	return bridge.Result{Status: bridge.StatusSuccess, Message: "Reddit API connected successfully"}
}

func (f *fakeBridge) StartMonitoring(ctx context.Context, subreddit string) bridge.Result {
	if f.monitoring {
		return bridge.Result{Status: bridge.StatusError, Message: "Already monitoring"}
	}
	f.monitoring = true
	return bridge.Result{Status: bridge.StatusSuccess, Message: "Started monitoring r/" + subreddit}
}

func (f *fakeBridge) StopMonitoring() bridge.Result {
	f.monitoring = false
	return bridge.Result{Status: bridge.StatusSuccess, Message: "Monitoring stopped"}
}

func (f *fakeBridge) GetRecentPosts(ctx context.Context, subreddit string) bridge.PostsResult {
	loadType := f.loadType
	if loadType == "" {
		loadType = models.LoadTypeFirstLaunch
	}
	return bridge.PostsResult{
		Result:   bridge.Result{Status: bridge.StatusSuccess},
		LoadType: loadType,
		NewPosts: len(f.posts),
		Posts:    f.posts,
	}
}

func (f *fakeBridge) DownloadFromURL(ctx context.Context, postURL, saveDirectory string) bridge.DownloadResult {
	f.downloadCalls++
	return bridge.DownloadResult{
		Result: bridge.Result{Status: bridge.StatusSuccess, Message: "Downloaded 3 images"},
		Count:  3,
	}
}

func (f *fakeBridge) GetPostsAnalytics(ctx context.Context) bridge.AnalyticsResult {
	return bridge.AnalyticsResult{
		Result:    bridge.Result{Status: bridge.StatusSuccess},
		Analytics: models.EmptyAnalytics(),
	}
}

func (f *fakeBridge) SelectDownloadFolder() bridge.FolderResult {
	return bridge.FolderResult{Result: bridge.Result{Status: bridge.StatusSuccess}, Folder: "/tmp/photos"}
}

func (f *fakeBridge) SaveLogs(lines []string) error {
	f.savedLogs = append(f.savedLogs, lines)
	return nil
}

func (f *fakeBridge) LoadLogs() ([]string, error) { return f.logs, nil }

func (f *fakeBridge) SaveCompletedPosts(ids []string) error {
	f.completed = ids
	return nil
}

func (f *fakeBridge) LoadCompletedPosts() ([]string, error) { return f.completed, nil }

func testSession() (*Session, *fakeBridge) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := NewSession("PhotoshopRequest", log)
	b := &fakeBridge{}
	s.AttachBridge(b)
	return s, b
}

func post(id, title, flair string, upvotes int, age time.Duration) models.Post {
	return models.Post{
		ID:        id,
		Title:     title,
		Author:    "tester",
		URL:       "https://reddit.com/r/PhotoshopRequest/comments/" + id,
		Flair:     flair,
		CreatedAt: time.Now().Add(-age),
		Upvotes:   upvotes,
	}
}

func TestInitLoadsPersistedStateAndPosts(t *testing.T) {
	s, b := testSession()
	b.logs = []string{"[8/17/2025, 2:15:09 PM] Started monitoring r/PhotoshopRequest"}
	b.completed = []string{"a1"}
	b.posts = []models.Post{
		post("a1", "First", "Paid", 10, time.Hour),
		post("b2", "Second", "Free", 5, 2*time.Hour),
	}

	s.Init(context.Background())

	view := s.Feed()
	assert.Equal(t, 2, view.TotalPosts)
	assert.Equal(t, 1, view.PaidPosts)
	assert.Equal(t, 1, view.FreePosts)

	// The persisted completion flag landed on the ingested post.
	loaded, ok := s.Get("a1")
	assert.True(t, ok)
	assert.True(t, loaded.Completed)

	// Restored logs plus the restart marker and load messages.
	entries := s.Logs()
	assert.NotEmpty(t, entries)
	assert.Contains(t, entries[0].Message, "Started monitoring")
}

func TestToggleCompletionBothViews(t *testing.T) {
	s, b := testSession()
	b.posts = []models.Post{post("a1", "First", "Paid", 10, time.Hour)}
	s.Init(context.Background())

	detail, ok := s.OpenDetail("a1")
	assert.True(t, ok)
	assert.False(t, detail.Completed)

	completed, err := s.ToggleCompletion("a1")
	assert.NoError(t, err)
	assert.True(t, completed)

	// Feed view reflects the flag.
	view := s.Feed()
	assert.True(t, view.Posts[0].Completed)

	// Detail re-read reflects the flag too.
	again, ok := s.Get("a1")
	assert.True(t, ok)
	assert.True(t, again.Completed)

	// The set was persisted through the bridge.
	assert.Equal(t, []string{"a1"}, b.completed)

	completed, err = s.ToggleCompletion("a1")
	assert.NoError(t, err)
	assert.False(t, completed)
	assert.Empty(t, b.completed)
}

func TestDownloadValidation(t *testing.T) {
	s, b := testSession()

	result := s.Download(context.Background(), "", "")
	assert.False(t, result.OK())
	assert.Equal(t, "Please enter a Reddit post URL", result.Message)

	result = s.Download(context.Background(), "https://example.com/not-reddit", "")
	assert.False(t, result.OK())
	assert.Equal(t, "Please enter a valid Reddit URL", result.Message)

	// Invalid input never reaches the bridge.
	assert.Equal(t, 0, b.downloadCalls)

	result = s.Download(context.Background(), "https://reddit.com/r/PhotoshopRequest/comments/abc", "")
	assert.True(t, result.OK())
	assert.Equal(t, 1, b.downloadCalls)
	assert.Equal(t, 3, s.Feed().Downloads)
}

func TestStartMonitoringValidation(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := NewSession("", log)
	b := &fakeBridge{}
	s.AttachBridge(b)

	result := s.StartMonitoring(context.Background(), "  ")
	assert.False(t, result.OK())
	assert.Equal(t, "Please enter a subreddit name", result.Message)
	assert.False(t, s.Monitoring())

	result = s.StartMonitoring(context.Background(), "PhotoshopRequest")
	assert.True(t, result.OK())
	assert.True(t, s.Monitoring())

	result = s.StartMonitoring(context.Background(), "PhotoshopRequest")
	assert.False(t, result.OK())
	assert.Equal(t, "Already monitoring", result.Message)

	result = s.StopMonitoring()
	assert.True(t, result.OK())
	assert.False(t, s.Monitoring())
}

func TestSinkPushIngestsAndLogs(t *testing.T) {
	s, b := testSession()

	b.sink.NewPostDetected(post("z9", "Pushed", "", 3, time.Minute))

	view := s.Feed()
	assert.Equal(t, 1, view.TotalPosts)
	assert.Equal(t, "Pushed", view.Posts[0].Title)
	// Missing flair defaults to Free for classification.
	assert.Equal(t, 1, view.FreePosts)

	entries := s.Logs()
	last := entries[len(entries)-1]
	assert.Contains(t, last.Message, `"Pushed"`)
	assert.Contains(t, last.Message, "[No flair]")

	// Duplicate push is dropped silently.
	before := len(s.Logs())
	b.sink.NewPostDetected(post("z9", "Pushed", "", 3, time.Minute))
	assert.Equal(t, 1, s.Feed().TotalPosts)
	assert.Equal(t, before, len(s.Logs()))
}

func TestRefreshKeepsCompletion(t *testing.T) {
	s, b := testSession()
	b.posts = []models.Post{post("a1", "First", "Paid", 10, time.Hour)}
	s.Init(context.Background())

	_, err := s.ToggleCompletion("a1")
	assert.NoError(t, err)

	s.Refresh(context.Background())

	loaded, ok := s.Get("a1")
	assert.True(t, ok)
	assert.True(t, loaded.Completed)
}

func TestSortAndLimitChangesAreLogged(t *testing.T) {
	s, _ := testSession()

	s.SetSort("most_upvoted")
	s.SetLimit("25")

	var sawSort, sawLimit bool
	for _, entry := range s.Logs() {
		if entry.Message == "Posts sorted by: Most Upvoted" {
			sawSort = true
		}
		if entry.Message == "Post display limit set to: last 25 posts" {
			sawLimit = true
		}
	}
	assert.True(t, sawSort)
	assert.True(t, sawLimit)

	// Re-applying the same setting logs nothing new.
	before := len(s.Logs())
	s.SetSort("most_upvoted")
	assert.Equal(t, before, len(s.Logs()))
}

func TestAnalyticsViewFromEmptyPayload(t *testing.T) {
	s, _ := testSession()

	view, err := s.Analytics(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, view.Analytics.TotalPosts)
	assert.True(t, view.Charts.Hourly.NoData)
	assert.Equal(t, []string{"No data available"}, view.Report.TopAuthors)
}

func TestClearLogsLeavesMarker(t *testing.T) {
	s, _ := testSession()

	s.LogMessage("something happened", "info")
	s.ClearLogs()

	entries := s.Logs()
	assert.Len(t, entries, 1)
	assert.Equal(t, "Logs cleared.", entries[0].Message)
}
