package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfolta/subwatch/models"
)

const (
	defaultBaseURL = "https://oauth.reddit.com"
	defaultAuthURL = "https://www.reddit.com/api/v1/access_token"
	defaultLimit   = 100 // max number of posts per request
)

// TokenBucket implements a rate limiter using the token bucket algorithm
type TokenBucket struct {
	mutex       sync.Mutex
	capacity    int           // maximum tokens the bucket can hold
	tokens      float64       // current number of tokens
	fillRate    float64       // rate at which tokens are added (tokens per second)
	lastRefill  time.Time     // time of last token refill
	waitTimeout time.Duration // max time to wait for a token
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, fillRate float64, waitTimeout time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:    capacity,
		tokens:      1, // start with just 1 token to avoid an initial burst
		fillRate:    fillRate,
		lastRefill:  time.Now(),
		waitTimeout: waitTimeout,
	}
}

// Take attempts to take a token from the bucket
// Returns true if successful, false if no token is available
func (tb *TokenBucket) Take() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.lastRefill = now

	newTokens := elapsed * tb.fillRate
	if newTokens > 0 {
		tb.tokens = tb.tokens + newTokens
		if tb.tokens > float64(tb.capacity) {
			tb.tokens = float64(tb.capacity)
		}
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}

	return false
}

// TakeWithTimeout attempts to take a token from the bucket, waiting up to waitTimeout
func (tb *TokenBucket) TakeWithTimeout() bool {
	if tb.Take() {
		return true
	}

	tb.mutex.Lock()
	tokensNeeded := 1 - tb.tokens
	timeToWait := time.Duration(tokensNeeded / tb.fillRate * float64(time.Second))
	if timeToWait > tb.waitTimeout {
		timeToWait = tb.waitTimeout
	}
	tb.mutex.Unlock()

	time.Sleep(timeToWait)
	return tb.Take()
}

// Client is an application-only Reddit API client. It authenticates
// with client credentials and rate limits itself against Reddit's
// 1000-requests-per-600-seconds allocation.
type Client struct {
	clientID     string
	clientSecret string
	userAgent    string
	httpClient   *http.Client
	accessToken  string
	tokenExpiry  time.Time
	mutex        sync.RWMutex
	log          *logrus.Logger
	rateLimiter  *TokenBucket
	baseURL      string
	authURL      string
}

// listingChild is the Reddit API wire structure for one post in a listing.
type listingChild struct {
	Kind string `json:"kind"`
	Data struct {
		ID            string  `json:"id"`
		Title         string  `json:"title"`
		Author        string  `json:"author"`
		URL           string  `json:"url"`
		CreatedUTC    float64 `json:"created_utc"`
		LinkFlairText string  `json:"link_flair_text"`
		SelfText      string  `json:"selftext"`
		Score         int     `json:"score"`
	} `json:"data"`
}

// listing is the Reddit API wire structure for a listing response.
type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string         `json:"after"`
		Children []listingChild `json:"children"`
	} `json:"data"`
}

// submissionData is the wire structure of a single submission, carrying
// the gallery fields the listing shape omits.
type submissionData struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	GalleryData *struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
	MediaMetadata map[string]struct {
		S struct {
			U string `json:"u"`
		} `json:"s"`
	} `json:"media_metadata"`
}

// NewClient creates a new Reddit API client
func NewClient(clientID, clientSecret, userAgent string, maxRequestsPerMinute int, log *logrus.Logger) *Client {
	// default to 100 requests per minute (real Reddit limit)
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 100
	}

	// our 10 minute allocation
	totalAllocation := maxRequestsPerMinute * 10

	standardRate := float64(totalAllocation) / 600.0
	targetRate := standardRate * 0.95

	// capacity 1 means no burst; wait up to 30 seconds for a token
	rateLimiter := NewTokenBucket(1, targetRate, 30*time.Second)

	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log,
		rateLimiter:  rateLimiter,
		baseURL:      defaultBaseURL,
		authURL:      defaultAuthURL,
	}
}

// authenticate authenticates with the Reddit API
func (c *Client) authenticate(ctx context.Context) error {
	c.mutex.RLock()
	token := c.accessToken
	expiry := c.tokenExpiry
	c.mutex.RUnlock()

	if token != "" && time.Now().Before(expiry) {
		return nil
	}

	c.log.Info("Authenticating with Reddit API")

	if !c.rateLimiter.TakeWithTimeout() {
		return fmt.Errorf("rate limit exceeded during authentication attempt")
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}

	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("auth request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var authResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}

	c.mutex.Lock()
	c.accessToken = authResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn) * time.Second)
	c.mutex.Unlock()

	c.log.Info("Successfully authenticated with Reddit API")
	return nil
}

// doJSON performs an authenticated GET against the given endpoint and
// decodes the response body into out.
func (c *Client) doJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.authenticate(ctx); err != nil {
		return err
	}

	if !c.rateLimiter.TakeWithTimeout() {
		return fmt.Errorf("rate limit exceeded")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.mutex.RLock()
	token := c.accessToken
	c.mutex.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.log.WithFields(logrus.Fields{
			"endpoint":      endpoint,
			"response_body": string(body),
			"status_code":   resp.StatusCode,
		}).Error("Reddit API error response")
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// FetchNew fetches the newest posts from a subreddit, newest first.
func (c *Client) FetchNew(ctx context.Context, subreddit string, limit int, after string) ([]models.Post, string, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}

	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%d&raw_json=1", c.baseURL, subreddit, limit)
	if after != "" {
		endpoint += "&after=" + after
	}

	c.log.WithFields(logrus.Fields{
		"subreddit": subreddit,
		"after":     after,
		"limit":     limit,
	}).Debug("Fetching posts from Reddit API")

	var resp listing
	if err := c.doJSON(ctx, endpoint, &resp); err != nil {
		return nil, "", err
	}

	posts := make([]models.Post, 0, len(resp.Data.Children))
	for _, child := range resp.Data.Children {
		posts = append(posts, models.Post{
			ID:          child.Data.ID,
			Title:       child.Data.Title,
			Author:      child.Data.Author,
			URL:         child.Data.URL,
			Description: child.Data.SelfText,
			Flair:       child.Data.LinkFlairText,
			CreatedAt:   time.Unix(int64(child.Data.CreatedUTC), 0),
			Upvotes:     child.Data.Score,
		})
	}

	c.log.WithFields(logrus.Fields{
		"post_count": len(posts),
		"subreddit":  subreddit,
	}).Debug("Fetched posts from Reddit")

	return posts, resp.Data.After, nil
}

// FetchNewPaged fetches up to limit newest posts, following pagination
// tokens across requests since a single listing request caps at 100.
// A non-empty stopID halts paging once that post appears, so an
// incremental load stays at one request in the common case.
func (c *Client) FetchNewPaged(ctx context.Context, subreddit string, limit int, stopID string) ([]models.Post, error) {
	posts := make([]models.Post, 0, limit)
	after := ""

	for len(posts) < limit {
		remaining := limit - len(posts)
		if remaining > defaultLimit {
			remaining = defaultLimit
		}

		page, nextAfter, err := c.FetchNew(ctx, subreddit, remaining, after)
		if err != nil {
			return nil, err
		}
		posts = append(posts, page...)

		// Stop paging once the caller's marker shows up; later pages
		// can only hold posts it has already seen.
		if stopID != "" && pageContains(page, stopID) {
			break
		}

		if nextAfter == "" || len(page) == 0 {
			break
		}
		after = nextAfter
	}

	return posts, nil
}

func pageContains(page []models.Post, id string) bool {
	for _, post := range page {
		if post.ID == id {
			return true
		}
	}
	return false
}

// About verifies credentials by resolving a subreddit's display name.
func (c *Client) About(ctx context.Context, subreddit string) error {
	endpoint := fmt.Sprintf("%s/r/%s/about.json", c.baseURL, subreddit)

	var resp struct {
		Data struct {
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, endpoint, &resp); err != nil {
		return err
	}
	if resp.Data.DisplayName == "" {
		return fmt.Errorf("subreddit %s returned no display name", subreddit)
	}
	return nil
}

// Submission resolves a full post, including gallery metadata, from its
// public permalink URL.
func (c *Client) Submission(ctx context.Context, postURL string) (*submissionData, error) {
	parsed, err := url.Parse(postURL)
	if err != nil {
		return nil, fmt.Errorf("invalid post url: %w", err)
	}

	endpoint := fmt.Sprintf("%s%s.json?raw_json=1", c.baseURL, strings.TrimSuffix(parsed.Path, "/"))

	// A comments-page request returns two listings: the post, then the
	// comment tree. Only the first matters here.
	var resp []struct {
		Data struct {
			Children []struct {
				Data submissionData `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if len(resp) == 0 || len(resp[0].Data.Children) == 0 {
		return nil, fmt.Errorf("post not found at %s", postURL)
	}

	submission := resp[0].Data.Children[0].Data
	return &submission, nil
}

// Download fetches the raw bytes at a direct media URL.
func (c *Client) Download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}
	return data, nil
}

// imageFileName derives a local file name from a media URL, stripping
// query parameters and defaulting the extension to .jpg.
func imageFileName(mediaURL string) string {
	name := mediaURL
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	if name == "" {
		name = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	if !hasImageExtension(name) {
		name += ".jpg"
	}
	return name
}

func hasImageExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
