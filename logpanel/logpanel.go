package logpanel

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind is the severity of a panel entry.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// defaultMaxEntries caps the retained log length; oldest entries are
// evicted first.
const defaultMaxEntries = 1000

// timestampFormat mirrors the locale-style timestamps the activity log
// has always used on disk.
const timestampFormat = "1/2/2006, 3:04:05 PM"

// Saver persists log lines. Persistence is fire-and-forget: a failed
// save is logged at debug level and otherwise ignored.
type Saver interface {
	SaveLogs(lines []string) error
}

// Entry is one timestamped activity log line.
type Entry struct {
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
}

// Line renders the persisted form: "[<timestamp>] <message>". The kind
// is not stored; it is re-derived on reload.
func (e Entry) Line() string {
	return fmt.Sprintf("[%s] %s", e.Time.Format(timestampFormat), e.Message)
}

// Panel is the append-only, capped activity log shown on the dashboard.
type Panel struct {
	mutex   sync.Mutex
	entries []Entry
	max     int
	saver   Saver
	log     *logrus.Logger
}

// NewPanel creates an empty panel persisting through the given saver.
// A nil saver disables persistence.
func NewPanel(saver Saver, log *logrus.Logger) *Panel {
	return &Panel{
		entries: make([]Entry, 0),
		max:     defaultMaxEntries,
		saver:   saver,
		log:     log,
	}
}

// SetSaver replaces the persistence target. Existing entries are kept
// and persisted on the next mutation.
func (p *Panel) SetSaver(saver Saver) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.saver = saver
}

// Log appends a timestamped entry, evicts past the cap and persists
// immediately.
func (p *Panel) Log(message string, kind Kind) {
	switch kind {
	case KindSuccess, KindError:
	default:
		kind = KindInfo
	}

	p.mutex.Lock()
	p.entries = append(p.entries, Entry{Time: time.Now(), Kind: kind, Message: message})
	if over := len(p.entries) - p.max; over > 0 {
		p.entries = p.entries[over:]
	}
	lines := p.linesLocked()
	p.mutex.Unlock()

	p.persist(lines)
}

// Clear replaces all entries with a single cleared marker and persists
// that state.
func (p *Panel) Clear() {
	p.mutex.Lock()
	p.entries = []Entry{{Time: time.Now(), Kind: KindInfo, Message: "Logs cleared."}}
	lines := p.linesLocked()
	p.mutex.Unlock()

	p.persist(lines)
}

// Entries returns a copy of the current entries, oldest first.
func (p *Panel) Entries() []Entry {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	entries := make([]Entry, len(p.entries))
	copy(entries, p.entries)
	return entries
}

// Len returns the number of retained entries.
func (p *Panel) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.entries)
}

// Lines returns the persisted representation of all entries.
func (p *Panel) Lines() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.linesLocked()
}

func (p *Panel) linesLocked() []string {
	lines := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		lines = append(lines, e.Line())
	}
	return lines
}

// Restore replaces the panel content with persisted lines. The on-disk
// format carries no severity, so each line's kind is re-classified from
// its message text.
func (p *Panel) Restore(lines []string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.entries = p.entries[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		entry := Entry{Time: time.Now(), Message: line, Kind: KindInfo}
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				if ts, err := time.Parse(timestampFormat, line[1:end]); err == nil {
					entry.Time = ts
				}
				entry.Message = strings.TrimSpace(line[end+1:])
			}
		}
		entry.Kind = ClassifyMessage(entry.Message)
		p.entries = append(p.entries, entry)
	}

	if over := len(p.entries) - p.max; over > 0 {
		p.entries = p.entries[over:]
	}
}

// ClassifyMessage guesses the severity of a reloaded log line by the
// same substring heuristics the dashboard has always used.
func ClassifyMessage(message string) Kind {
	switch {
	case strings.Contains(message, "success"),
		strings.Contains(message, "complete"),
		strings.Contains(message, "Started monitoring"),
		strings.Contains(message, "Downloaded"):
		return KindSuccess
	case strings.Contains(message, "error"),
		strings.Contains(message, "failed"),
		strings.Contains(message, "Failed"):
		return KindError
	default:
		return KindInfo
	}
}

func (p *Panel) persist(lines []string) {
	p.mutex.Lock()
	saver := p.saver
	p.mutex.Unlock()

	if saver == nil {
		return
	}
	if err := saver.SaveLogs(lines); err != nil && p.log != nil {
		p.log.WithError(err).Debug("Failed to persist activity logs")
	}
}
