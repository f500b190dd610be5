package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfolta/subwatch/analytics"
	"github.com/mfolta/subwatch/db"
	"github.com/mfolta/subwatch/models"
	"github.com/mfolta/subwatch/monitor"
)

const (
	// firstLaunchLimit is the backfill depth on the very first run;
	// incrementalLimit bounds how far back a later run will scan before
	// giving up on finding the last seen post.
	firstLaunchLimit = 1000
	incrementalLimit = 500
)

// Reddit is the production bridge: a rate-limited Reddit API client in
// front, SQLite persistence behind.
type Reddit struct {
	client          *Client
	database        *db.Database
	downloadDir     string
	pollingInterval time.Duration
	runner          *monitor.Runner
	log             *logrus.Logger

	mutex sync.Mutex
	sink  monitor.Sink
	seen  map[string]struct{}
}

// NewReddit creates the production bridge.
func NewReddit(client *Client, database *db.Database, downloadDir string, pollingInterval time.Duration, log *logrus.Logger) *Reddit {
	return &Reddit{
		client:          client,
		database:        database,
		downloadDir:     downloadDir,
		pollingInterval: pollingInterval,
		runner:          monitor.NewRunner(pollingInterval, log),
		log:             log,
		seen:            make(map[string]struct{}),
	}
}

// AttachSink wires the event receiver for monitoring and load events.
func (r *Reddit) AttachSink(sink monitor.Sink) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sink = sink
}

func (r *Reddit) events() monitor.Sink {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.sink == nil {
		return nopSink{}
	}
	return r.sink
}

func (r *Reddit) markSeen(id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = struct{}{}
	return true
}

// TestConnection verifies the Reddit credentials work at all.
func (r *Reddit) TestConnection(ctx context.Context) Result {
	if err := r.client.About(ctx, "test"); err != nil {
		return errorf("Reddit API connection failed: %v", err)
	}
	return success("Reddit API connected successfully")
}

// StartMonitoring begins polling the subreddit for its newest post.
// Detected posts are pushed into the attached sink.
func (r *Reddit) StartMonitoring(ctx context.Context, subreddit string) Result {
	err := r.runner.Start(ctx, func(pollCtx context.Context) error {
		return r.pollNewest(pollCtx, subreddit)
	})
	if err != nil {
		return errorf("Already monitoring")
	}
	return success(fmt.Sprintf("Started monitoring r/%s", subreddit))
}

// StopMonitoring halts the polling loop.
func (r *Reddit) StopMonitoring() Result {
	r.runner.Stop()
	return success("Monitoring stopped")
}

// pollNewest fetches the single newest post and pushes it to the sink
// when it has not been seen before.
func (r *Reddit) pollNewest(ctx context.Context, subreddit string) error {
	posts, _, err := r.client.FetchNew(ctx, subreddit, 1, "")
	if err != nil {
		r.events().LogMessage(fmt.Sprintf("Error monitoring: %v", err), "error")
		return err
	}
	if len(posts) == 0 {
		return nil
	}

	post := posts[0]
	if !r.markSeen(post.ID) {
		return nil
	}

	r.recordEntry(post, subreddit, "MONITORING")
	r.saveLastPost(post, subreddit)
	r.events().NewPostDetected(post)

	return nil
}

// GetRecentPosts loads recent posts with the launch-aware strategy: a
// deep backfill the first time, then only posts newer than the last one
// seen on a previous run.
func (r *Reddit) GetRecentPosts(ctx context.Context, subreddit string) PostsResult {
	lastPost, err := r.database.LoadLastPost()
	if err != nil {
		r.log.WithError(err).Error("Failed to load last post marker")
		lastPost = nil
	}

	events := r.events()

	var loadType string
	var limit int
	if lastPost == nil {
		loadType = models.LoadTypeFirstLaunch
		limit = firstLaunchLimit
		events.LogMessage(fmt.Sprintf("First launch detected - loading last %d posts for analysis", limit), "info")
	} else {
		loadType = models.LoadTypeIncremental
		limit = incrementalLimit
		hoursSince := time.Since(lastPost.Timestamp).Hours()
		events.LogMessage(fmt.Sprintf("Loading posts since last launch (%.1f hours ago)", hoursSince), "info")
	}

	stopID := ""
	if lastPost != nil {
		stopID = lastPost.PostID
	}

	fetched, err := r.client.FetchNewPaged(ctx, subreddit, limit, stopID)
	if err != nil {
		return PostsResult{Result: errorf("Failed to get recent posts: %v", err)}
	}

	posts := make([]models.Post, 0, len(fetched))
	var newest *models.Post

	for i := range fetched {
		post := fetched[i]

		if loadType == models.LoadTypeIncremental && lastPost != nil && post.ID == lastPost.PostID {
			events.LogMessage(fmt.Sprintf("Reached last seen post '%s' - stopping incremental load", post.ID), "info")
			break
		}

		if !r.markSeen(post.ID) {
			continue
		}

		r.recordEntry(post, subreddit, loadType)
		posts = append(posts, post)

		// The listing is newest first, so the first accepted post is
		// the marker for the next launch.
		if newest == nil {
			newest = &fetched[i]
		}
	}

	if newest != nil {
		r.saveLastPost(*newest, subreddit)
	}

	if loadType == models.LoadTypeFirstLaunch {
		events.LogMessage(fmt.Sprintf("First launch complete: loaded %d posts for analysis", len(posts)), "success")
	} else if len(posts) > 0 {
		events.LogMessage(fmt.Sprintf("Found %d new posts since last launch", len(posts)), "success")
	} else {
		events.LogMessage("No new posts since last launch", "info")
	}

	return PostsResult{
		Result:   success(""),
		LoadType: loadType,
		NewPosts: len(posts),
		Posts:    posts,
	}
}

// DownloadFromURL downloads the images of a post: the post URL itself
// when it points directly at an image, otherwise every gallery item.
func (r *Reddit) DownloadFromURL(ctx context.Context, postURL, saveDirectory string) DownloadResult {
	if saveDirectory == "" {
		saveDirectory = r.downloadDir
	}
	if err := os.MkdirAll(saveDirectory, 0o755); err != nil {
		return DownloadResult{Result: errorf("Download failed: %v", err)}
	}

	submission, err := r.client.Submission(ctx, postURL)
	if err != nil {
		return DownloadResult{Result: errorf("Download failed: %v", err)}
	}

	downloaded := 0

	switch {
	case hasImageExtension(submission.URL):
		if r.downloadImage(ctx, submission.URL, saveDirectory) {
			downloaded = 1
		}
	case submission.GalleryData != nil:
		for _, item := range submission.GalleryData.Items {
			meta, ok := submission.MediaMetadata[item.MediaID]
			if !ok {
				continue
			}
			// Reddit HTML-escapes media URLs in some responses.
			imageURL := strings.ReplaceAll(meta.S.U, "&amp;", "&")
			if r.downloadImage(ctx, imageURL, saveDirectory) {
				downloaded++
			}
		}
	}

	return DownloadResult{
		Result: success(fmt.Sprintf("Downloaded %d images", downloaded)),
		Count:  downloaded,
	}
}

// downloadImage fetches one image and writes it into the directory.
// Failures are reported to the sink and skipped.
func (r *Reddit) downloadImage(ctx context.Context, imageURL, saveDirectory string) bool {
	data, err := r.client.Download(ctx, imageURL)
	if err != nil {
		r.events().LogMessage(fmt.Sprintf("Failed to download %s: %v", imageURL, err), "error")
		return false
	}

	path := filepath.Join(saveDirectory, imageFileName(imageURL))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.events().LogMessage(fmt.Sprintf("Failed to download %s: %v", imageURL, err), "error")
		return false
	}
	return true
}

// GetPostsAnalytics aggregates every recorded post entry.
func (r *Reddit) GetPostsAnalytics(ctx context.Context) AnalyticsResult {
	entries, err := r.database.LoadEntries()
	if err != nil {
		return AnalyticsResult{Result: errorf("Failed to get analytics: %v", err)}
	}
	return AnalyticsResult{
		Result:    success(""),
		Analytics: analytics.Calculate(entries),
	}
}

// SelectDownloadFolder returns the configured download directory,
// creating it if needed.
func (r *Reddit) SelectDownloadFolder() FolderResult {
	if r.downloadDir == "" {
		return FolderResult{Result: Result{Status: StatusCancelled, Message: "Folder selection cancelled"}}
	}
	if err := os.MkdirAll(r.downloadDir, 0o755); err != nil {
		return FolderResult{Result: errorf("Failed to select folder: %v", err)}
	}
	return FolderResult{Result: success(""), Folder: r.downloadDir}
}

// SaveLogs persists the activity log.
func (r *Reddit) SaveLogs(lines []string) error {
	return r.database.ReplaceLogs(lines)
}

// LoadLogs returns the persisted activity log.
func (r *Reddit) LoadLogs() ([]string, error) {
	return r.database.LoadLogs()
}

// SaveCompletedPosts persists the completed-post id set.
func (r *Reddit) SaveCompletedPosts(ids []string) error {
	return r.database.ReplaceCompleted(ids)
}

// LoadCompletedPosts returns the persisted completed-post id set.
func (r *Reddit) LoadCompletedPosts() ([]string, error) {
	return r.database.LoadCompleted()
}

func (r *Reddit) recordEntry(post models.Post, subreddit, detectionType string) {
	entry := models.NewPostEntry(post, subreddit, detectionType)
	if err := r.database.SaveEntry(&entry); err != nil {
		r.log.WithError(err).WithField("post_id", post.ID).Error("Failed to record analytics entry")
	}
}

func (r *Reddit) saveLastPost(post models.Post, subreddit string) {
	lp := &db.LastPost{
		PostID:      post.ID,
		Timestamp:   time.Now(),
		PostCreated: post.CreatedAt,
		Subreddit:   subreddit,
	}
	if err := r.database.SaveLastPost(lp); err != nil {
		r.log.WithError(err).Error("Failed to save last post marker")
	}
}

// nopSink swallows events until a real sink is attached.
type nopSink struct{}

func (nopSink) NewPostDetected(models.Post) {}
func (nopSink) LogMessage(string, string)   {}
func (nopSink) UpdateMonitoringStatus(bool) {}
