package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/quanhday/internal/geo"
	"github.com/hyperjump/quanhday/internal/keyword"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
)

// KeywordIndex receives the text of every imported record.
type KeywordIndex interface {
	Put(ctx context.Context, id string, entry *keyword.Entry) error
}

// Stats counts what an import wrote.
type Stats struct {
	Files     int `json:"files"`
	Locations int `json:"locations"`
	Events    int `json:"events"`
	Skipped   int `json:"skipped"`
	Rejected  int `json:"rejected"`
}

// Add accumulates o into s. A nil o is ignored.
func (s *Stats) Add(o *Stats) {
	if o == nil {
		return
	}
	s.Files += o.Files
	s.Locations += o.Locations
	s.Events += o.Events
	s.Skipped += o.Skipped
	s.Rejected += o.Rejected
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Importer writes catalog records to the store. It is the only writer of geohash and createdAt.
type Importer struct {
	store  storage.Store
	index  KeywordIndex
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]fileState
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// WithKeywordIndex makes the importer add every written record to idx.
func WithKeywordIndex(idx KeywordIndex) Option {
	return func(im *Importer) { im.index = idx }
}

// WithClock overrides the createdAt clock.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

// NewImporter returns an importer writing to store.
func NewImporter(store storage.Store, opts ...Option) *Importer {
	im := &Importer{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		seen:   make(map[string]fileState),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile imports one catalog file. A file whose size and modification time match the
// last successful import is skipped. Invalid records are rejected and reported in the
// returned error (wrapping models.ErrInvalidArgument) while the valid ones are still written.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Stats, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", models.ErrInvalidArgument, absPath)
	}
	state := fileState{modTime: info.ModTime(), size: info.Size()}
	if im.unchanged(absPath, state) {
		im.logger.Debug("catalog skipping unchanged file", zap.String("path", absPath))
		return &Stats{Skipped: 1}, nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	f, err := Parse(absPath, data)
	if err != nil {
		return nil, err
	}
	stats, err := im.Import(ctx, f)
	stats.Files = 1
	if err != nil && !errors.Is(err, models.ErrInvalidArgument) {
		return stats, err
	}
	im.mu.Lock()
	im.seen[absPath] = state
	im.mu.Unlock()
	im.logger.Info("catalog file imported",
		zap.String("path", absPath),
		zap.Int("locations", stats.Locations),
		zap.Int("events", stats.Events),
		zap.Int("rejected", stats.Rejected))
	return stats, err
}

func (im *Importer) unchanged(path string, state fileState) bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	prev, ok := im.seen[path]
	return ok && prev.size == state.size && prev.modTime.Equal(state.modTime)
}

// Forget drops the remembered state of path so the next ImportFile reads it again.
// Stored records are kept; the store has no delete operation.
func (im *Importer) Forget(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	im.mu.Lock()
	delete(im.seen, absPath)
	im.mu.Unlock()
	im.logger.Info("catalog file removed, stored records kept", zap.String("path", absPath))
}

// ImportDirectory imports every file under dir whose extension is in exts (all files when exts is empty).
// Subdirectories are walked only when recursive is set.
func (im *Importer) ImportDirectory(ctx context.Context, dir string, exts []string, recursive bool) (*Stats, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", models.ErrInvalidArgument, absDir)
	}
	total := &Stats{}
	var rejected []error
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !ExtensionAllowed(path, exts) {
			return nil
		}
		stats, err := im.ImportFile(ctx, path)
		total.Add(stats)
		if errors.Is(err, models.ErrInvalidArgument) {
			rejected = append(rejected, err)
			return nil
		}
		return err
	})
	if err != nil {
		return total, err
	}
	return total, errors.Join(rejected...)
}

// recordNamespace seeds the ids derived for catalog records written without one.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperjump/quanhday/catalog"))

// recordID derives a stable id from the identifying fields of a record, so a record
// without an explicit id maps to the same document on every import.
func recordID(collection string, parts ...string) string {
	key := collection + "\x00" + strings.Join(parts, "\x00")
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

// Import writes the records of f. Every record is upserted, keeping the createdAt of the
// stored copy. Records without an ID get one derived from their name (or title and start
// time) and geohash.
func (im *Importer) Import(ctx context.Context, f *File) (*Stats, error) {
	stats := &Stats{}
	var rejected []error
	for i := range f.Locations {
		l, err := f.Locations[i].toModel()
		if err != nil {
			stats.Rejected++
			rejected = append(rejected, err)
			continue
		}
		if err := im.writeLocation(ctx, l); err != nil {
			return stats, err
		}
		stats.Locations++
	}
	for i := range f.Events {
		e, err := f.Events[i].toModel()
		if err != nil {
			stats.Rejected++
			rejected = append(rejected, err)
			continue
		}
		if err := im.writeEvent(ctx, e); err != nil {
			return stats, err
		}
		stats.Events++
	}
	return stats, errors.Join(rejected...)
}

func (im *Importer) writeLocation(ctx context.Context, l *models.Location) error {
	l.Geohash = geo.Encode(l.Location)
	if l.ID == "" {
		l.ID = recordID(models.CollectionLocations, l.Name, l.Geohash)
	}
	createdAt, err := im.createdAt(ctx, models.CollectionLocations, l.ID)
	if err != nil {
		return err
	}
	l.CreatedAt = createdAt
	if err := im.write(ctx, models.CollectionLocations, l.ID, storage.Document(l.Fields())); err != nil {
		return err
	}
	if im.index != nil {
		if err := im.index.Put(ctx, l.ID, keyword.LocationEntry(l)); err != nil {
			return fmt.Errorf("keyword index: %w", err)
		}
	}
	return nil
}

func (im *Importer) writeEvent(ctx context.Context, e *models.Event) error {
	e.Geohash = geo.Encode(e.Location)
	if e.ID == "" {
		e.ID = recordID(models.CollectionEvents, e.Title, e.StartAt.UTC().Format(time.RFC3339), e.Geohash)
	}
	createdAt, err := im.createdAt(ctx, models.CollectionEvents, e.ID)
	if err != nil {
		return err
	}
	e.CreatedAt = createdAt
	if err := im.write(ctx, models.CollectionEvents, e.ID, storage.Document(e.Fields())); err != nil {
		return err
	}
	if im.index != nil {
		if err := im.index.Put(ctx, e.ID, keyword.EventEntry(e)); err != nil {
			return fmt.Errorf("keyword index: %w", err)
		}
	}
	return nil
}

func (im *Importer) write(ctx context.Context, collection, id string, doc storage.Document) error {
	if err := im.store.Put(ctx, collection, id, doc); err != nil {
		return err
	}
	im.logger.Debug("catalog record upserted", zap.String("collection", collection), zap.String("id", id))
	return nil
}

func (im *Importer) createdAt(ctx context.Context, collection, id string) (time.Time, error) {
	now := im.now()
	snap, found, err := im.store.GetByID(ctx, collection, id)
	if err != nil {
		return time.Time{}, err
	}
	if !found {
		return now, nil
	}
	var existing struct {
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := snap.DataTo(&existing); err != nil || existing.CreatedAt.IsZero() {
		return now, nil
	}
	return existing.CreatedAt, nil
}

// ExtensionAllowed reports whether path has one of exts, ignoring case and the leading dot.
// An empty list allows everything.
func ExtensionAllowed(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, a := range exts {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}
