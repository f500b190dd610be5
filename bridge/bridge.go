// Package bridge provides the host-side operations the dashboard calls
// into. Two implementations exist: Reddit talks to the real Reddit API
// and persists through SQLite, Demo fabricates everything in memory.
// One of them is selected at startup and injected into the session.
package bridge

import (
	"context"
	"fmt"

	"github.com/mfolta/subwatch/models"
	"github.com/mfolta/subwatch/monitor"
)

const (
	// StatusSuccess and friends are the status values every bridge
	// operation reports alongside its payload.
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Result is the common outcome shape of a bridge operation.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

func success(message string) Result {
	return Result{Status: StatusSuccess, Message: message}
}

func errorf(format string, args ...interface{}) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// PostsResult is the outcome of a recent-posts load.
type PostsResult struct {
	Result
	LoadType string        `json:"load_type,omitempty"`
	NewPosts int           `json:"new_posts"`
	Posts    []models.Post `json:"posts,omitempty"`
}

// DownloadResult is the outcome of an image download.
type DownloadResult struct {
	Result
	Count int `json:"count"`
}

// AnalyticsResult is the outcome of an analytics aggregation.
type AnalyticsResult struct {
	Result
	Analytics models.AnalyticsPayload `json:"analytics"`
}

// FolderResult is the outcome of a download-folder selection.
type FolderResult struct {
	Result
	Folder string `json:"folder,omitempty"`
}

// Bridge is the capability surface of the host process. Operations
// never panic; failures come back as error-status results so a broken
// network or database degrades the dashboard instead of killing it.
type Bridge interface {
	// AttachSink wires the event receiver that monitoring and loading
	// operations push into. Must be called before StartMonitoring.
	AttachSink(sink monitor.Sink)

	TestConnection(ctx context.Context) Result
	StartMonitoring(ctx context.Context, subreddit string) Result
	StopMonitoring() Result
	GetRecentPosts(ctx context.Context, subreddit string) PostsResult
	DownloadFromURL(ctx context.Context, postURL, saveDirectory string) DownloadResult
	GetPostsAnalytics(ctx context.Context) AnalyticsResult
	SelectDownloadFolder() FolderResult

	SaveLogs(lines []string) error
	LoadLogs() ([]string, error)
	SaveCompletedPosts(ids []string) error
	LoadCompletedPosts() ([]string, error)
}
