package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/event"
)

const (
	storeFileName = "events.json"
	storeVersion  = 1
)

// fileState is the on-disk layout of the file backend.
type fileState struct {
	Version   int             `json:"version"`
	UpdatedAt string          `json:"updated_at"`
	NextID    int64           `json:"next_id"`
	NextLogID int64           `json:"next_log_id"`
	Events    []*event.Record `json:"events"`
	Logs      []*ScrapeLog    `json:"scraping_logs"`
}

// FileBackend keeps every record in a single JSON document, rewritten
// atomically after each change. It suits one process on one machine.
type FileBackend struct {
	dataDir string

	mu         sync.Mutex
	state      *fileState
	byID       map[int64]*event.Record
	byIdentity map[string]*event.Record
}

// NewFile opens (or creates) the store in dataDir.
func NewFile(dataDir string) (*FileBackend, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	b := &FileBackend{dataDir: dataDir}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *FileBackend) path() string {
	return filepath.Join(b.dataDir, storeFileName)
}

func (b *FileBackend) load() error {
	state := &fileState{Version: storeVersion, NextID: 1, NextLogID: 1}

	data, err := os.ReadFile(b.path())
	switch {
	case os.IsNotExist(err):
		// First run, start empty
	case err != nil:
		return fmt.Errorf("reading store: %w", err)
	default:
		if err := json.Unmarshal(data, state); err != nil {
			return fmt.Errorf("parsing store: %w", err)
		}
	}

	b.state = state
	b.byID = make(map[int64]*event.Record, len(state.Events))
	b.byIdentity = make(map[string]*event.Record, len(state.Events))
	for _, rec := range state.Events {
		b.byID[rec.ID] = rec
		b.byIdentity[rec.Identity().Key()] = rec
		if rec.ID >= state.NextID {
			state.NextID = rec.ID + 1
		}
	}
	return nil
}

// save writes the state to a temp file and renames it over the store.
func (b *FileBackend) save() error {
	b.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(b.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	tmp, err := os.CreateTemp(b.dataDir, storeFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing store: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path()); err != nil {
		return fmt.Errorf("replacing store: %w", err)
	}
	return nil
}

// Ping checks that the data directory is still usable.
func (b *FileBackend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(b.dataDir)
	if err != nil {
		return fmt.Errorf("checking data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", b.dataDir)
	}
	return nil
}

func (b *FileBackend) FindByIdentity(ctx context.Context, id event.Identity) (*event.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.byIdentity[id.Key()]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (b *FileBackend) FindCandidates(ctx context.Context, q CandidateQuery) ([]*event.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*event.Record
	for _, rec := range b.state.Events {
		if q.Matches(rec) {
			out = append(out, copyRecord(rec))
		}
	}
	return out, nil
}

func (b *FileBackend) Insert(ctx context.Context, rec *event.Record) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byIdentity[rec.Identity().Key()]; exists {
		return 0, ErrConflict
	}
	return b.insertLocked(rec)
}

func (b *FileBackend) insertLocked(rec *event.Record) (int64, error) {
	stored := copyRecord(rec)
	stored.ID = b.state.NextID
	if stored.ScrapedAt.IsZero() {
		stored.ScrapedAt = time.Now().UTC()
	}

	b.state.NextID++
	b.state.Events = append(b.state.Events, stored)
	b.byID[stored.ID] = stored
	b.byIdentity[stored.Identity().Key()] = stored

	if err := b.save(); err != nil {
		b.removeLocked(stored.ID)
		return 0, err
	}
	return stored.ID, nil
}

func (b *FileBackend) Upsert(ctx context.Context, rec *event.Record) (int64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.byIdentity[rec.Identity().Key()]
	if !ok {
		id, err := b.insertLocked(rec)
		return id, err == nil, err
	}

	previous := *existing
	refresh(existing, rec)
	if existing.ScrapedAt.IsZero() {
		existing.ScrapedAt = time.Now().UTC()
	}
	if err := b.save(); err != nil {
		*existing = previous
		return 0, false, err
	}
	return existing.ID, false, nil
}

func (b *FileBackend) Get(ctx context.Context, id int64) (*event.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

// WeekEvents returns the week's records ordered by start time.
func (b *FileBackend) WeekEvents(ctx context.Context, week string) ([]*event.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*event.Record
	for _, rec := range b.state.Events {
		if rec.WeekIdentifier == week {
			out = append(out, copyRecord(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (b *FileBackend) UpdateEnrichment(ctx context.Context, id int64, en event.Enrichment) (*event.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	previous := rec.Enrichment
	rec.Enrichment = rec.Enrichment.Merge(en)
	if err := b.save(); err != nil {
		rec.Enrichment = previous
		return nil, err
	}
	return copyRecord(rec), nil
}

func (b *FileBackend) Delete(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.byID[id]
	if !ok {
		return ErrNotFound
	}

	removed := *rec
	b.removeLocked(id)
	if err := b.save(); err != nil {
		restored := &removed
		b.state.Events = append(b.state.Events, restored)
		b.byID[id] = restored
		b.byIdentity[restored.Identity().Key()] = restored
		return err
	}
	return nil
}

func (b *FileBackend) removeLocked(id int64) {
	rec, ok := b.byID[id]
	if !ok {
		return
	}
	delete(b.byID, id)
	delete(b.byIdentity, rec.Identity().Key())

	events := b.state.Events[:0]
	for _, r := range b.state.Events {
		if r.ID != id {
			events = append(events, r)
		}
	}
	b.state.Events = events
}

func (b *FileBackend) LogScrapingResult(ctx context.Context, entry *ScrapeLog) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := *entry
	stored.ID = b.state.NextLogID
	if stored.ScrapedAt.IsZero() {
		stored.ScrapedAt = time.Now().UTC()
	}

	b.state.NextLogID++
	b.state.Logs = append(b.state.Logs, &stored)
	if err := b.save(); err != nil {
		b.state.Logs = b.state.Logs[:len(b.state.Logs)-1]
		b.state.NextLogID--
		return err
	}
	entry.ID = stored.ID
	return nil
}

// ScrapeLogs returns matching logs, newest first.
func (b *FileBackend) ScrapeLogs(ctx context.Context, q ScrapeLogQuery) ([]*ScrapeLog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*ScrapeLog
	for i := len(b.state.Logs) - 1; i >= 0; i-- {
		l := b.state.Logs[i]
		if q.Source != "" && l.Source != q.Source {
			continue
		}
		if q.Week != "" && l.Week != q.Week {
			continue
		}
		entry := *l
		out = append(out, &entry)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (b *FileBackend) Close() error {
	return nil
}

func copyRecord(rec *event.Record) *event.Record {
	c := *rec
	return &c
}
