package bridge

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfolta/subwatch/analytics"
	"github.com/mfolta/subwatch/models"
	"github.com/mfolta/subwatch/monitor"
)

var demoTitles = []string{
	"Can someone remove the background from this photo?",
	"Please make this image look more professional",
	"Help me fix the lighting in this picture",
	"Can you add a sunset background to this?",
	"Remove the person in the background please",
	"Make this photo black and white with color accent",
	"Need help with color correction on this portrait",
	"Can someone fix the exposure on this landscape?",
	"Help me remove wrinkles from this old photo",
	"Please enhance the colors in this sunset photo",
	"Can you add snow effect to this winter scene?",
	"Need professional headshot editing",
	"Help me remove objects from this family photo",
	"Can someone restore this vintage photograph?",
	"Please add dramatic lighting to this portrait",
}

var demoDescriptions = []string{
	"Hi everyone! I need help removing the background from this photo for my LinkedIn profile. I'd really appreciate any help with this. Thanks in advance!",
	"Looking to make this image more professional for my portfolio. Any editing help would be amazing!",
	"The lighting in this photo is really bad. Can someone help fix it? Willing to tip for good work!",
	"I love this photo but the background is boring. Could someone add a beautiful sunset? Will pay $10 for good quality work.",
	"There's someone photobombing in the background. Can anyone remove them please?",
	"I want to keep only the red roses in color and make everything else black and white. Thanks!",
	"This portrait needs some color correction work. Can anyone help? Budget is $15.",
	"Took this landscape photo but the exposure is off. Any help would be appreciated!",
	"Found this old family photo with some damage. Can someone help restore it?",
	"The colors in this sunset photo are a bit flat. Can someone enhance them?",
	"Would love to add some falling snow to this winter landscape. Paying $20 for quality work.",
	"Need this headshot professionally edited for my business website. Budget flexible.",
	"Family reunion photo has some unwanted objects. Can someone clean it up?",
	"This vintage photo has some wear and tear. Looking for restoration help.",
	"Want to add some dramatic studio lighting effects to this portrait. Will tip well!",
}

var demoAuthors = []string{
	"user123", "photohelp", "designlover", "artfan99", "photoreq",
	"editpro", "visualarts", "pixelmaster", "imagegeek", "photoshopnewbie",
	"creativemind", "digitalartist", "portfoliobuild", "businessman42", "weddingplanner",
}

// The flair pool is an even Free/Paid mix; repeated values keep random
// picks balanced the way the pool is written.
var demoFlairs = []string{"Free", "Paid", "Free", "Paid", "Free", "Paid"}

// downloadPhase mimics the stages of a real image download so the UI
// has something to show between request and result.
type downloadPhase struct {
	name     string
	duration time.Duration
}

var demoDownloadPhases = []downloadPhase{
	{name: "Analyzing post...", duration: 500 * time.Millisecond},
	{name: "Finding images...", duration: 800 * time.Millisecond},
	{name: "Downloading images...", duration: 2 * time.Second},
	{name: "Processing...", duration: 300 * time.Millisecond},
}

const demoInitialPosts = 8

// Demo is a bridge that fabricates posts, downloads and analytics so
// the dashboard can be exercised without Reddit credentials or network.
type Demo struct {
	pollingInterval time.Duration
	runner          *monitor.Runner
	log             *logrus.Logger

	mutex     sync.Mutex
	rng       *rand.Rand
	sink      monitor.Sink
	seen      map[string]struct{}
	entries   []models.PostEntry
	logs      []string
	completed []string
	launched  bool
}

// NewDemo creates the demo bridge.
func NewDemo(pollingInterval time.Duration, log *logrus.Logger) *Demo {
	return &Demo{
		pollingInterval: pollingInterval,
		runner:          monitor.NewRunner(pollingInterval, log),
		log:             log,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		seen:            make(map[string]struct{}),
	}
}

// AttachSink wires the event receiver for monitoring and load events.
func (d *Demo) AttachSink(sink monitor.Sink) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.sink = sink
}

func (d *Demo) events() monitor.Sink {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.sink == nil {
		return nopSink{}
	}
	return d.sink
}

// TestConnection always succeeds; there is nothing to connect to.
func (d *Demo) TestConnection(ctx context.Context) Result {
	return success("Reddit API connected successfully")
}

// StartMonitoring fabricates one new post per polling interval.
func (d *Demo) StartMonitoring(ctx context.Context, subreddit string) Result {
	err := d.runner.Start(ctx, func(pollCtx context.Context) error {
		post := d.makePost(subreddit)
		d.recordEntry(post, subreddit, "MONITORING")
		d.events().NewPostDetected(post)
		return nil
	})
	if err != nil {
		return errorf("Already monitoring")
	}
	return success(fmt.Sprintf("Started monitoring r/%s", subreddit))
}

// StopMonitoring halts the fabrication loop.
func (d *Demo) StopMonitoring() Result {
	d.runner.Stop()
	return success("Monitoring stopped")
}

// GetRecentPosts fabricates an initial batch on the first call and a
// small trickle of new posts on later calls.
func (d *Demo) GetRecentPosts(ctx context.Context, subreddit string) PostsResult {
	d.mutex.Lock()
	firstLaunch := !d.launched
	d.launched = true
	count := demoInitialPosts
	if !firstLaunch {
		count = d.rng.Intn(4) // 0 to 3 new posts per refresh
	}
	d.mutex.Unlock()

	events := d.events()

	var loadType string
	if firstLaunch {
		loadType = models.LoadTypeFirstLaunch
		events.LogMessage(fmt.Sprintf("First launch detected - loading last %d posts for analysis", firstLaunchLimit), "info")
	} else {
		loadType = models.LoadTypeIncremental
	}

	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		post := d.makePost(subreddit)
		d.recordEntry(post, subreddit, loadType)
		posts = append(posts, post)
	}

	// Newest first, like the real listing.
	for i := 0; i < len(posts)/2; i++ {
		posts[i], posts[len(posts)-1-i] = posts[len(posts)-1-i], posts[i]
	}

	if firstLaunch {
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

// DownloadFromURL walks the simulated download phases with their
// real-time delays and reports one to five downloaded images.
func (d *Demo) DownloadFromURL(ctx context.Context, postURL, saveDirectory string) DownloadResult {
	events := d.events()

	for _, phase := range demoDownloadPhases {
		events.LogMessage(phase.name, "info")
		select {
		case <-ctx.Done():
			return DownloadResult{Result: errorf("Download failed: %v", ctx.Err())}
		case <-time.After(phase.duration):
		}
	}

	d.mutex.Lock()
	count := d.rng.Intn(5) + 1
	d.mutex.Unlock()

	return DownloadResult{
		Result: success(fmt.Sprintf("Downloaded %d images", count)),
		Count:  count,
	}
}

// GetPostsAnalytics aggregates the entries fabricated so far.
func (d *Demo) GetPostsAnalytics(ctx context.Context) AnalyticsResult {
	d.mutex.Lock()
	entries := make([]models.PostEntry, len(d.entries))
	copy(entries, d.entries)
	d.mutex.Unlock()

	return AnalyticsResult{
		Result:    success(""),
		Analytics: analytics.Calculate(entries),
	}
}

// SelectDownloadFolder returns a plausible throwaway folder path.
func (d *Demo) SelectDownloadFolder() FolderResult {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	folder := filepath.Join(home, "Downloads", fmt.Sprintf("reddit_photos_%d", time.Now().Unix()))
	return FolderResult{Result: success(""), Folder: folder}
}

// SaveLogs keeps the activity log in memory.
func (d *Demo) SaveLogs(lines []string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.logs = make([]string, len(lines))
	copy(d.logs, lines)
	return nil
}

// LoadLogs returns the in-memory activity log.
func (d *Demo) LoadLogs() ([]string, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	lines := make([]string, len(d.logs))
	copy(lines, d.logs)
	return lines, nil
}

// SaveCompletedPosts keeps the completed-post ids in memory.
func (d *Demo) SaveCompletedPosts(ids []string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.completed = make([]string, len(ids))
	copy(d.completed, ids)
	return nil
}

// LoadCompletedPosts returns the in-memory completed-post ids.
func (d *Demo) LoadCompletedPosts() ([]string, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	ids := make([]string, len(d.completed))
	copy(ids, d.completed)
	return ids, nil
}

// makePost fabricates one post from the pools with a random age inside
// the last 24 hours.
func (d *Demo) makePost(subreddit string) models.Post {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	id := d.randomID()
	for {
		if _, ok := d.seen[id]; !ok {
			break
		}
		id = d.randomID()
	}
	d.seen[id] = struct{}{}

	hoursAgo := d.rng.Float64() * 24
	created := time.Now().Add(-time.Duration(hoursAgo * float64(time.Hour)))

	return models.Post{
		ID:          id,
		Title:       demoTitles[d.rng.Intn(len(demoTitles))],
		Author:      demoAuthors[d.rng.Intn(len(demoAuthors))],
		URL:         fmt.Sprintf("https://reddit.com/r/%s/comments/%s", subreddit, id),
		Description: demoDescriptions[d.rng.Intn(len(demoDescriptions))],
		Flair:       demoFlairs[d.rng.Intn(len(demoFlairs))],
		CreatedAt:   created,
		Upvotes:     d.rng.Intn(50),
	}
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func (d *Demo) randomID() string {
	id := make([]byte, 9)
	for i := range id {
		id[i] = idAlphabet[d.rng.Intn(len(idAlphabet))]
	}
	return string(id)
}

func (d *Demo) recordEntry(post models.Post, subreddit, detectionType string) {
	entry := models.NewPostEntry(post, subreddit, detectionType)
	d.mutex.Lock()
	d.entries = append(d.entries, entry)
	d.mutex.Unlock()
}
