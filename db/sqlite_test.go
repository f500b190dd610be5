package db

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/mfolta/subwatch/models"
)

func testDatabase(t *testing.T) *Database {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	database, err := NewDatabase(":memory:", log)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSaveEntryIgnoresDuplicates(t *testing.T) {
	database := testDatabase(t)

	entry := models.PostEntry{
		Timestamp:         time.Now().UTC(),
		DetectionType:     "initial_load",
		PostID:            "abc123",
		Subreddit:         "PhotoshopRequest",
		Author:            "tester",
		PostCreated:       time.Now().UTC().Add(-time.Hour),
		PostType:          models.FlairPaid,
		FlairRaw:          "Paid",
		TitleLength:       20,
		DescriptionLength: 80,
		Upvotes:           12,
		Title:             "Please remove the background",
	}

	assert.NoError(t, database.SaveEntry(&entry))
	assert.NoError(t, database.SaveEntry(&entry))

	entries, err := database.LoadEntries()
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "abc123", entries[0].PostID)
	assert.Equal(t, models.FlairPaid, entries[0].PostType)
	assert.Equal(t, 12, entries[0].Upvotes)
}

func TestLoadEntriesOrderedByPostCreated(t *testing.T) {
	database := testDatabase(t)
	now := time.Now().UTC()

	for i, id := range []string{"newer", "older"} {
		entry := models.PostEntry{
			Timestamp:     now,
			DetectionType: "initial_load",
			PostID:        id,
			Subreddit:     "PhotoshopRequest",
			Author:        "tester",
			PostCreated:   now.Add(-time.Duration(i) * time.Hour),
			PostType:      models.FlairFree,
			Title:         id,
		}
		if err := database.SaveEntry(&entry); err != nil {
			t.Fatalf("failed to save entry: %v", err)
		}
	}

	entries, err := database.LoadEntries()
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "older", entries[0].PostID)
	assert.Equal(t, "newer", entries[1].PostID)
}

func TestReplaceLogsRoundTrip(t *testing.T) {
	database := testDatabase(t)

	lines := []string{
		"[8/17/2025, 2:15:09 PM] Started monitoring r/PhotoshopRequest",
		"[8/17/2025, 2:16:42 PM] New post detected",
	}
	assert.NoError(t, database.ReplaceLogs(lines))

	loaded, err := database.LoadLogs()
	assert.NoError(t, err)
	assert.Equal(t, lines, loaded)

	// A later save fully replaces the previous contents.
	assert.NoError(t, database.ReplaceLogs([]string{"[8/17/2025, 3:00:00 PM] Logs cleared."}))
	loaded, err = database.LoadLogs()
	assert.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestReplaceCompletedRoundTrip(t *testing.T) {
	database := testDatabase(t)

	assert.NoError(t, database.ReplaceCompleted([]string{"a1", "b2", "c3"}))
	ids, err := database.LoadCompleted()
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "b2", "c3"}, ids)

	assert.NoError(t, database.ReplaceCompleted([]string{"b2"}))
	ids, err = database.LoadCompleted()
	assert.NoError(t, err)
	assert.Equal(t, []string{"b2"}, ids)
}

func TestLastPostRoundTrip(t *testing.T) {
	database := testDatabase(t)

	lp, err := database.LoadLastPost()
	assert.NoError(t, err)
	assert.Nil(t, lp)

	saved := &LastPost{
		PostID:      "zz99",
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		PostCreated: time.Now().UTC().Add(-time.Minute).Truncate(time.Second),
		Subreddit:   "PhotoshopRequest",
	}
	assert.NoError(t, database.SaveLastPost(saved))

	lp, err = database.LoadLastPost()
	assert.NoError(t, err)
	if assert.NotNil(t, lp) {
		assert.Equal(t, "zz99", lp.PostID)
		assert.Equal(t, "PhotoshopRequest", lp.Subreddit)
		assert.True(t, saved.Timestamp.Equal(lp.Timestamp))
	}

	// Only one marker row is ever kept.
	saved.PostID = "aa00"
	assert.NoError(t, database.SaveLastPost(saved))
	lp, err = database.LoadLastPost()
	assert.NoError(t, err)
	assert.Equal(t, "aa00", lp.PostID)
}
