package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/mfolta/subwatch/models"
)

// Database stores everything the dashboard persists between runs:
// per-post analytics entries, the activity log, completed post ids and
// the last seen post marker.
type Database struct {
	db    *sql.DB
	mutex sync.RWMutex
	log   *logrus.Logger
}

// LastPost marks the most recent post seen in a previous run; it drives
// the first-launch vs incremental loading strategy.
type LastPost struct {
	PostID      string
	Timestamp   time.Time
	PostCreated time.Time
	Subreddit   string
}

// NewDatabase opens (and initializes) the SQLite database.
func NewDatabase(dbPath string, log *logrus.Logger) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:  db,
		log: log,
	}

	if err := database.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.db.Close()
}

// initTables creates the necessary tables if they don't exist
func (d *Database) initTables() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// note: in an ideal world, this would be a migration run once per environment
	query := `
	CREATE TABLE IF NOT EXISTS post_entries (
		post_id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		detection_type TEXT NOT NULL,
		subreddit TEXT NOT NULL,
		author TEXT NOT NULL,
		post_created TIMESTAMP NOT NULL,
		post_type TEXT NOT NULL,
		flair_raw TEXT,
		title_length INTEGER NOT NULL,
		description_length INTEGER NOT NULL,
		upvotes INTEGER NOT NULL,
		title TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_author ON post_entries(author);
	CREATE INDEX IF NOT EXISTS idx_entries_created ON post_entries(post_created);

	CREATE TABLE IF NOT EXISTS activity_logs (
		position INTEGER PRIMARY KEY,
		line TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS completed_posts (
		post_id TEXT PRIMARY KEY,
		completed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS last_post (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		post_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		post_created TIMESTAMP NOT NULL,
		subreddit TEXT NOT NULL
	);
	`

	_, err := d.db.Exec(query)
	return err
}

// SaveEntry records one analytics entry. Entries are keyed by post id;
// re-detecting a post across sessions does not double-count it.
func (d *Database) SaveEntry(entry *models.PostEntry) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := `
	INSERT OR IGNORE INTO post_entries (
		post_id, timestamp, detection_type, subreddit, author,
		post_created, post_type, flair_raw, title_length,
		description_length, upvotes, title
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(
		query,
		entry.PostID, entry.Timestamp.Format(time.RFC3339), entry.DetectionType, entry.Subreddit,
		entry.Author, entry.PostCreated.Format(time.RFC3339), string(entry.PostType), entry.FlairRaw,
		entry.TitleLength, entry.DescriptionLength, entry.Upvotes, entry.Title,
	)

	if err != nil {
		return fmt.Errorf("failed to save post entry: %w", err)
	}

	return nil
}

// LoadEntries returns all recorded analytics entries, oldest first.
func (d *Database) LoadEntries() ([]models.PostEntry, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	query := `
	SELECT post_id, timestamp, detection_type, subreddit, author,
		post_created, post_type, flair_raw, title_length,
		description_length, upvotes, title
	FROM post_entries
	ORDER BY post_created ASC
	`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query post entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.PostEntry, 0)
	for rows.Next() {
		var entry models.PostEntry
		var timestamp, postCreated, postType string

		err := rows.Scan(
			&entry.PostID, &timestamp, &entry.DetectionType, &entry.Subreddit,
			&entry.Author, &postCreated, &postType, &entry.FlairRaw,
			&entry.TitleLength, &entry.DescriptionLength, &entry.Upvotes, &entry.Title,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post entry: %w", err)
		}

		entry.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		entry.PostCreated, _ = time.Parse(time.RFC3339, postCreated)
		entry.PostType = models.FlairClass(postType)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// ReplaceLogs overwrites the persisted activity log with the given lines.
func (d *Database) ReplaceLogs(lines []string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM activity_logs"); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear activity logs: %w", err)
	}

	for i, line := range lines {
		if _, err := tx.Exec("INSERT INTO activity_logs (position, line) VALUES (?, ?)", i, line); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert log line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activity logs: %w", err)
	}

	return nil
}

// LoadLogs returns the persisted activity log lines in order.
func (d *Database) LoadLogs() ([]string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	rows, err := d.db.Query("SELECT line FROM activity_logs ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	lines := make([]string, 0)
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan log line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lines, nil
}

// ReplaceCompleted overwrites the persisted completed-post id set.
func (d *Database) ReplaceCompleted(ids []string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM completed_posts"); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear completed posts: %w", err)
	}

	now := time.Now()
	for _, id := range ids {
		if _, err := tx.Exec("INSERT INTO completed_posts (post_id, completed_at) VALUES (?, ?)", id, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert completed post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit completed posts: %w", err)
	}

	return nil
}

// LoadCompleted returns all persisted completed-post ids.
func (d *Database) LoadCompleted() ([]string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	rows, err := d.db.Query("SELECT post_id FROM completed_posts")
	if err != nil {
		return nil, fmt.Errorf("failed to query completed posts: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completed post: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// SaveLastPost records the most recent post seen so the next launch can
// load incrementally.
func (d *Database) SaveLastPost(lp *LastPost) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := `
	INSERT OR REPLACE INTO last_post (id, post_id, timestamp, post_created, subreddit)
	VALUES (1, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(query, lp.PostID, lp.Timestamp.Format(time.RFC3339), lp.PostCreated.Format(time.RFC3339), lp.Subreddit)
	if err != nil {
		return fmt.Errorf("failed to save last post: %w", err)
	}

	return nil
}

// LoadLastPost returns the last seen post marker, or nil when this is
// the first launch.
func (d *Database) LoadLastPost() (*LastPost, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var lp LastPost
	var timestamp, postCreated string

	err := d.db.QueryRow("SELECT post_id, timestamp, post_created, subreddit FROM last_post WHERE id = 1").
		Scan(&lp.PostID, &timestamp, &postCreated, &lp.Subreddit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last post: %w", err)
	}

	lp.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
	lp.PostCreated, _ = time.Parse(time.RFC3339, postCreated)

	return &lp, nil
}
