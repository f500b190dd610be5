// Package dashboard holds the session object behind the HTTP API: one
// owned instance of all feed, log and monitoring state, guarded for
// concurrent handlers.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfolta/subwatch/analytics"
	"github.com/mfolta/subwatch/bridge"
	"github.com/mfolta/subwatch/feed"
	"github.com/mfolta/subwatch/logpanel"
	"github.com/mfolta/subwatch/models"
	"github.com/mfolta/subwatch/monitor"
	"github.com/mfolta/subwatch/store"
)

// Session owns all dashboard state: the post store, the view settings,
// the activity log and the bridge handle. It implements monitor.Sink so
// monitoring loops can push events into it.
type Session struct {
	log   *logrus.Logger
	store *store.Store
	panel *logpanel.Panel

	mutex           sync.Mutex
	bridge          bridge.Bridge
	subreddit       string
	sortMethod      feed.SortMethod
	displayLimit    int
	monitoring      bool
	downloadPending bool
	detailPostID    string
	totalDownloads  int
	lastUpdate      time.Time
}

// PostView is a feed post with its display-side fields resolved.
type PostView struct {
	models.Post
	Age string `json:"age"`
}

// FeedView is everything the feed panel shows in one shot.
type FeedView struct {
	Posts      []PostView `json:"posts"`
	Counter    string     `json:"counter"`
	TotalPosts int        `json:"total_posts"`
	PaidPosts  int        `json:"paid_posts"`
	FreePosts  int        `json:"free_posts"`
	Monitoring bool       `json:"monitoring"`
	Subreddit  string     `json:"subreddit"`
	Downloads  int        `json:"total_downloads"`
	LastUpdate string     `json:"last_update,omitempty"`
}

// AnalyticsView bundles the raw payload, the derived report and the
// chart datasets the analytics modal renders.
type AnalyticsView struct {
	Analytics models.AnalyticsPayload `json:"analytics"`
	Report    analytics.Report        `json:"report"`
	Charts    analytics.ChartSet      `json:"charts"`
}

// NewSession creates a session for the given subreddit with default
// view settings (newest first, last 10 posts).
func NewSession(subreddit string, log *logrus.Logger) *Session {
	s := &Session{
		log:          log,
		store:        store.NewStore(log),
		subreddit:    subreddit,
		sortMethod:   feed.SortNewest,
		displayLimit: 10,
	}
	s.panel = logpanel.NewPanel(nil, log)
	return s
}

// AttachBridge wires the bridge in both directions: the session calls
// bridge operations, the bridge pushes events back through the sink and
// persists the activity log.
func (s *Session) AttachBridge(b bridge.Bridge) {
	s.mutex.Lock()
	s.bridge = b
	s.mutex.Unlock()

	b.AttachSink(s)
	s.panel.SetSaver(b)
}

func (s *Session) currentBridge() bridge.Bridge {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.bridge
}

// Init restores persisted state and performs the initial load: previous
// session logs, completed post ids, a connection test and the
// launch-aware recent-posts fetch.
func (s *Session) Init(ctx context.Context) {
	b := s.currentBridge()
	if b == nil {
		return
	}

	if lines, err := b.LoadLogs(); err != nil {
		s.log.WithError(err).Error("Failed to load activity logs")
	} else if len(lines) > 0 {
		s.panel.Restore(lines)
		s.panel.Log("Application restarted. Previous session logs restored.", logpanel.KindInfo)
	} else {
		s.panel.Log("Application ready. Configure settings and start monitoring.", logpanel.KindSuccess)
	}

	if ids, err := b.LoadCompletedPosts(); err != nil {
		s.log.WithError(err).Error("Failed to load completed posts")
	} else {
		s.store.LoadCompleted(ids)
		s.log.WithField("count", len(ids)).Info("Loaded completed posts")
	}

	if result := b.TestConnection(ctx); result.OK() {
		s.panel.Log("Reddit API connection verified", logpanel.KindSuccess)
		s.loadRecent(ctx, false)
	} else {
		s.panel.Log(result.Message, logpanel.KindError)
	}
}

// loadRecent runs a recent-posts fetch and ingests the result. With
// reset set the store is cleared first, which is what Refresh wants.
func (s *Session) loadRecent(ctx context.Context, reset bool) {
	b := s.currentBridge()
	if b == nil {
		return
	}

	s.mutex.Lock()
	subreddit := s.subreddit
	s.mutex.Unlock()

	s.panel.Log(fmt.Sprintf("Checking for posts in r/%s...", subreddit), logpanel.KindInfo)

	result := b.GetRecentPosts(ctx, subreddit)
	if !result.OK() {
		s.panel.Log(fmt.Sprintf("Failed to load recent posts: %s", result.Message), logpanel.KindError)
		return
	}

	if reset {
		s.store.Reset()
	}
	for _, post := range result.Posts {
		s.store.Ingest(post)
	}

	switch {
	case result.LoadType == models.LoadTypeFirstLaunch:
		s.panel.Log(fmt.Sprintf("First launch: Loaded %d posts for comprehensive analysis", len(result.Posts)), logpanel.KindSuccess)
	case result.NewPosts > 0:
		s.panel.Log(fmt.Sprintf("Found %d new posts since last launch", result.NewPosts), logpanel.KindSuccess)
	default:
		s.panel.Log("No new posts since last launch - you're up to date!", logpanel.KindInfo)
	}

	s.touch()
}

// Refresh clears the feed and reloads from scratch. Completion status
// survives the reset.
func (s *Session) Refresh(ctx context.Context) {
	s.panel.Log("Refreshing posts from Reddit...", logpanel.KindInfo)
	s.loadRecent(ctx, true)
}

// Feed renders the current feed view with the session's sort and limit.
func (s *Session) Feed() FeedView {
	s.mutex.Lock()
	method := s.sortMethod
	limit := s.displayLimit
	monitoring := s.monitoring
	subreddit := s.subreddit
	downloads := s.totalDownloads
	lastUpdate := s.lastUpdate
	s.mutex.Unlock()

	posts := s.store.Posts()
	visible := feed.Visible(posts, method, limit)

	now := time.Now()
	views := make([]PostView, 0, len(visible))
	for _, post := range visible {
		views = append(views, PostView{Post: post, Age: feed.TimeAgo(post.CreatedAt, now)})
	}

	total, paid, free := s.store.Counts()

	view := FeedView{
		Posts:      views,
		Counter:    feed.CounterText(len(visible), total, method, limit),
		TotalPosts: total,
		PaidPosts:  paid,
		FreePosts:  free,
		Monitoring: monitoring,
		Subreddit:  subreddit,
		Downloads:  downloads,
	}
	if !lastUpdate.IsZero() {
		view.LastUpdate = lastUpdate.Format("3:04:05 PM")
	}
	return view
}

// SetSort changes the sort method and logs the change.
func (s *Session) SetSort(raw string) {
	method := feed.ParseSortMethod(raw)

	s.mutex.Lock()
	changed := s.sortMethod != method
	s.sortMethod = method
	s.mutex.Unlock()

	if changed {
		s.panel.Log(fmt.Sprintf("Posts sorted by: %s", feed.SortLabel(method)), logpanel.KindInfo)
	}
}

// SetLimit changes the display limit and logs the change.
func (s *Session) SetLimit(raw string) {
	limit := feed.ParseLimit(raw)

	s.mutex.Lock()
	changed := s.displayLimit != limit
	s.displayLimit = limit
	s.mutex.Unlock()

	if changed {
		limitText := "all"
		if limit != feed.LimitAll {
			limitText = fmt.Sprintf("last %d", limit)
		}
		s.panel.Log(fmt.Sprintf("Post display limit set to: %s posts", limitText), logpanel.KindInfo)
	}
}

// Get returns one loaded post by id.
func (s *Session) Get(id string) (models.Post, bool) {
	return s.store.Get(id)
}

// ToggleCompletion flips a post's completed flag, persists the set and
// mirrors the change into an open detail view. The new state comes back.
func (s *Session) ToggleCompletion(id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("post id is required")
	}

	completed := !s.store.IsCompleted(id)
	s.store.SetCompleted(id, completed)

	if b := s.currentBridge(); b != nil {
		if err := b.SaveCompletedPosts(s.store.CompletedIDs()); err != nil {
			s.log.WithError(err).Error("Failed to persist completed posts")
		}
	}

	return completed, nil
}

// OpenDetail marks a post as the one shown in the detail view.
func (s *Session) OpenDetail(id string) (models.Post, bool) {
	post, ok := s.store.Get(id)
	if !ok {
		return models.Post{}, false
	}

	s.mutex.Lock()
	s.detailPostID = id
	s.mutex.Unlock()
	return post, true
}

// CloseDetail clears the detail view.
func (s *Session) CloseDetail() {
	s.mutex.Lock()
	s.detailPostID = ""
	s.mutex.Unlock()
}

// DetailPostID returns the id of the post open in the detail view.
func (s *Session) DetailPostID() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.detailPostID
}

// StartMonitoring validates the subreddit and starts the bridge's
// monitoring loop.
func (s *Session) StartMonitoring(ctx context.Context, subreddit string) bridge.Result {
	subreddit = strings.TrimSpace(subreddit)
	if subreddit == "" {
		s.mutex.Lock()
		subreddit = s.subreddit
		s.mutex.Unlock()
	}
	if subreddit == "" {
		s.panel.Log("Please enter a subreddit name", logpanel.KindError)
		return bridge.Result{Status: bridge.StatusError, Message: "Please enter a subreddit name"}
	}

	b := s.currentBridge()
	if b == nil {
		return bridge.Result{Status: bridge.StatusError, Message: "No bridge attached"}
	}

	result := b.StartMonitoring(ctx, subreddit)
	if result.OK() {
		s.mutex.Lock()
		s.subreddit = subreddit
		s.mutex.Unlock()
		s.UpdateMonitoringStatus(true)
		s.panel.Log(result.Message, logpanel.KindSuccess)
	} else {
		s.panel.Log(result.Message, logpanel.KindError)
	}
	return result
}

// StopMonitoring halts the bridge's monitoring loop.
func (s *Session) StopMonitoring() bridge.Result {
	b := s.currentBridge()
	if b == nil {
		return bridge.Result{Status: bridge.StatusError, Message: "No bridge attached"}
	}

	result := b.StopMonitoring()
	s.UpdateMonitoringStatus(false)
	s.panel.Log(result.Message, logpanel.KindInfo)
	return result
}

// Monitoring reports whether the session believes monitoring is active.
func (s *Session) Monitoring() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.monitoring
}

// Download validates the URL and runs an image download through the
// bridge. A second download cannot start while one is pending.
func (s *Session) Download(ctx context.Context, url, saveDirectory string) bridge.DownloadResult {
	url = strings.TrimSpace(url)
	if url == "" {
		s.panel.Log("Please enter a Reddit post URL", logpanel.KindError)
		return bridge.DownloadResult{Result: bridge.Result{Status: bridge.StatusError, Message: "Please enter a Reddit post URL"}}
	}
	if !strings.Contains(url, "reddit.com") {
		s.panel.Log("Please enter a valid Reddit URL", logpanel.KindError)
		return bridge.DownloadResult{Result: bridge.Result{Status: bridge.StatusError, Message: "Please enter a valid Reddit URL"}}
	}

	s.mutex.Lock()
	if s.downloadPending {
		s.mutex.Unlock()
		return bridge.DownloadResult{Result: bridge.Result{Status: bridge.StatusError, Message: "Download already in progress"}}
	}
	s.downloadPending = true
	b := s.bridge
	s.mutex.Unlock()

	defer func() {
		s.mutex.Lock()
		s.downloadPending = false
		s.mutex.Unlock()
	}()

	if b == nil {
		return bridge.DownloadResult{Result: bridge.Result{Status: bridge.StatusError, Message: "No bridge attached"}}
	}

	result := b.DownloadFromURL(ctx, url, saveDirectory)
	if result.OK() {
		s.mutex.Lock()
		s.totalDownloads += result.Count
		s.mutex.Unlock()
		s.panel.Log(result.Message, logpanel.KindSuccess)
	} else {
		s.panel.Log(result.Message, logpanel.KindError)
	}
	return result
}

// SelectFolder resolves the download folder through the bridge.
func (s *Session) SelectFolder() bridge.FolderResult {
	b := s.currentBridge()
	if b == nil {
		return bridge.FolderResult{Result: bridge.Result{Status: bridge.StatusError, Message: "No bridge attached"}}
	}
	return b.SelectDownloadFolder()
}

// Analytics aggregates the recorded entries into the payload, report
// and chart datasets.
func (s *Session) Analytics(ctx context.Context) (AnalyticsView, error) {
	b := s.currentBridge()
	if b == nil {
		return AnalyticsView{}, fmt.Errorf("no bridge attached")
	}

	result := b.GetPostsAnalytics(ctx)
	if !result.OK() {
		return AnalyticsView{}, fmt.Errorf("%s", result.Message)
	}

	return AnalyticsView{
		Analytics: result.Analytics,
		Report:    analytics.BuildReport(result.Analytics),
		Charts:    analytics.BuildCharts(result.Analytics),
	}, nil
}

// Logs returns the activity log entries, oldest first.
func (s *Session) Logs() []logpanel.Entry {
	return s.panel.Entries()
}

// ClearLogs wipes the activity log down to its cleared marker.
func (s *Session) ClearLogs() {
	s.panel.Clear()
}

func (s *Session) touch() {
	s.mutex.Lock()
	s.lastUpdate = time.Now()
	s.mutex.Unlock()
}

// NewPostDetected ingests a pushed post and logs the detection. Part of
// the monitor.Sink implementation.
func (s *Session) NewPostDetected(post models.Post) {
	flairLabel := post.Flair
	if flairLabel == "" {
		flairLabel = "No flair"
	}
	if post.Flair == "" {
		post.Flair = "Free"
	}

	if s.store.Ingest(post) {
		s.panel.Log(fmt.Sprintf("New post: %q by u/%s [%s]", post.Title, post.Author, flairLabel), logpanel.KindSuccess)
		s.touch()
	}
}

// LogMessage appends a pushed message to the activity log. Part of the
// monitor.Sink implementation.
func (s *Session) LogMessage(message, kind string) {
	s.panel.Log(message, logpanel.Kind(kind))
}

// UpdateMonitoringStatus records the monitoring flag pushed by the
// bridge. Part of the monitor.Sink implementation.
func (s *Session) UpdateMonitoringStatus(active bool) {
	s.mutex.Lock()
	s.monitoring = active
	s.mutex.Unlock()
}

var _ monitor.Sink = (*Session)(nil)
