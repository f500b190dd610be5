package store

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfolta/subwatch/models"
)

// Store is the in-memory post store behind the feed. It owns the ordered
// post sequence, the seen-id set used for de-duplication and the
// completed-id set. Mutations go through Ingest, Reset and SetCompleted.
type Store struct {
	mutex     sync.RWMutex
	log       *logrus.Logger
	posts     []models.Post
	seen      map[string]struct{}
	completed map[string]struct{}
	paidPosts int
	freePosts int
}

// NewStore creates an empty post store.
func NewStore(log *logrus.Logger) *Store {
	return &Store{
		log:       log,
		posts:     make([]models.Post, 0),
		seen:      make(map[string]struct{}),
		completed: make(map[string]struct{}),
	}
}

// Ingest adds a post to the store. Posts whose id is already in the seen
// set are dropped and false is returned; posts without an id are always
// accepted (no de-duplication is possible for them).
func (s *Store) Ingest(post models.Post) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if post.ID != "" {
		if _, exists := s.seen[post.ID]; exists {
			return false
		}
		s.seen[post.ID] = struct{}{}
	}

	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.InsertionTimestamp = post.CreatedAt.UnixMilli()

	if post.Description == "" {
		post.Description = models.DefaultDescription
	}

	post.FlairClass = models.ClassifyFlair(post.Flair)
	switch post.FlairClass {
	case models.FlairPaid:
		s.paidPosts++
	case models.FlairFree:
		s.freePosts++
	}

	_, post.Completed = s.completed[post.ID]

	// newest first
	s.posts = append([]models.Post{post}, s.posts...)

	return true
}

// Reset clears the ordered sequence, the seen-id set and the counters.
// The completed-id set survives: completion status is durable across
// refreshes.
func (s *Store) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.posts = s.posts[:0]
	s.seen = make(map[string]struct{})
	s.paidPosts = 0
	s.freePosts = 0
}

// SetCompleted idempotently marks or unmarks an id as completed and
// updates any matching in-memory post. Unknown ids are fine; the detail
// view may toggle completion for a post that is not currently loaded.
func (s *Store) SetCompleted(id string, completed bool) {
	if id == "" {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if completed {
		s.completed[id] = struct{}{}
	} else {
		delete(s.completed, id)
	}

	for i := range s.posts {
		if s.posts[i].ID == id {
			s.posts[i].Completed = completed
		}
	}
}

// IsCompleted reports whether an id is in the completed set.
func (s *Store) IsCompleted(id string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.completed[id]
	return ok
}

// LoadCompleted replaces the completed set with persisted ids and resyncs
// the completed flag on loaded posts.
func (s *Store) LoadCompleted(ids []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.completed = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			s.completed[id] = struct{}{}
		}
	}

	for i := range s.posts {
		_, s.posts[i].Completed = s.completed[s.posts[i].ID]
	}
}

// CompletedIDs returns the completed set as a slice for persistence.
func (s *Store) CompletedIDs() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.completed))
	for id := range s.completed {
		ids = append(ids, id)
	}
	return ids
}

// Posts returns a copy of the ordered post sequence, newest first.
func (s *Store) Posts() []models.Post {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	posts := make([]models.Post, len(s.posts))
	copy(posts, s.posts)
	return posts
}

// Get returns the post with the given id, if loaded.
func (s *Store) Get(id string) (models.Post, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, post := range s.posts {
		if post.ID == id && id != "" {
			return post, true
		}
	}
	return models.Post{}, false
}

// Counts returns the total, paid and free post counters.
func (s *Store) Counts() (total, paid, free int) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.posts), s.paidPosts, s.freePosts
}
