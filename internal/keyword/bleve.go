package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/storage"
)

var textFields = []string{"name", "category", "description", "address", "organizer"}

// BleveIndex is a Bleve index of Entry documents.
type BleveIndex struct {
	index  bleve.Index
	logger *zap.Logger

	termsMu sync.Mutex
	terms   map[string]int // term -> doc frequency, rebuilt lazily
}

// Option configures a BleveIndex.
type Option func(*BleveIndex)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *BleveIndex) {
		b.logger = l
	}
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// standard analyzer keeps Vietnamese words intact; no English stemming
	text.Analyzer = standard.Name
	for _, f := range textFields {
		docMapping.AddFieldMappingsAt(f, text)
	}
	docMapping.AddFieldMappingsAt("collection", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("entry", docMapping)
	im.DefaultType = "entry"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex opens the index at path, creating it if missing. An empty path keeps the index in memory.
// If the mapping changes, remove the index directory to rebuild it.
func NewBleveIndex(path string, opts ...Option) (*BleveIndex, error) {
	b := &BleveIndex{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	var err error
	switch {
	case path == "":
		b.index, err = bleve.NewMemOnly(newMapping())
	default:
		if _, statErr := os.Stat(path); statErr == nil {
			b.index, err = bleve.Open(path)
		} else {
			b.index, err = bleve.New(path, newMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	return b, nil
}

// Put indexes entry under collection/id, replacing any previous version.
func (b *BleveIndex) Put(_ context.Context, id string, entry *Entry) error {
	if err := b.index.Index(docID(entry.Collection, id), entry); err != nil {
		return fmt.Errorf("failed to index %s/%s: %w", entry.Collection, id, err)
	}
	b.invalidateTerms()
	return nil
}

// Delete removes collection/id from the index.
func (b *BleveIndex) Delete(_ context.Context, collection, id string) error {
	if err := b.index.Delete(docID(collection, id)); err != nil {
		return err
	}
	b.invalidateTerms()
	return nil
}

// Search matches query against the text fields, optionally restricted to one collection.
// Exact matching is tried first; when it finds nothing, each term is matched with
// edit distance 1 and a corrected query is suggested.
func (b *BleveIndex) Search(ctx context.Context, query, collection string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	res := &Result{Query: query, Hits: []*Hit{}}
	if strings.TrimSpace(query) == "" {
		return res, nil
	}

	hits, err := b.run(ctx, bleve.NewMatchQuery(query), collection, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		if hits, err = b.run(ctx, fuzzyQuery(query, 1), collection, limit); err != nil {
			return nil, err
		}
		res.Suggestion = b.suggest(query)
	}
	res.Hits = hits
	return res, nil
}

func (b *BleveIndex) run(ctx context.Context, q blevequery.Query, collection string, limit int) ([]*Hit, error) {
	if collection != "" {
		tq := bleve.NewTermQuery(collection)
		tq.SetField("collection")
		q = bleve.NewConjunctionQuery(q, tq)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make([]*Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		coll, id := splitDocID(h.ID)
		hits = append(hits, &Hit{Collection: coll, ID: id, Score: h.Score})
	}
	return hits, nil
}

// tokenize splits query into lowercase terms.
func tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// fuzzyQuery ORs a fuzzy query per term.
func fuzzyQuery(query string, fuzziness int) blevequery.Query {
	terms := tokenize(query)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// suggest replaces each unknown term with the closest indexed term within edit
// distance 2, preferring more frequent terms. Returns "" when nothing changes.
func (b *BleveIndex) suggest(query string) string {
	dict := b.dictionary()
	terms := tokenize(query)
	changed := false
	for i, term := range terms {
		if _, ok := dict[term]; ok {
			continue
		}
		best, bestDist, bestFreq := "", 3, 0
		for candidate, freq := range dict {
			d := LevenshteinDistance(term, candidate)
			if d < bestDist || (d == bestDist && (freq > bestFreq || (freq == bestFreq && candidate < best))) {
				best, bestDist, bestFreq = candidate, d, freq
			}
		}
		if best != "" {
			terms[i] = best
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(terms, " ")
}

func (b *BleveIndex) invalidateTerms() {
	b.termsMu.Lock()
	b.terms = nil
	b.termsMu.Unlock()
}

// dictionary returns the term frequencies of the text fields.
func (b *BleveIndex) dictionary() map[string]int {
	b.termsMu.Lock()
	defer b.termsMu.Unlock()
	if b.terms != nil {
		return b.terms
	}
	terms := make(map[string]int)
	for _, field := range textFields {
		dict, err := b.index.FieldDict(field)
		if err != nil {
			b.logger.Debug("field dictionary unavailable", zap.String("field", field), zap.Error(err))
			continue
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			terms[entry.Term] += int(entry.Count)
		}
		_ = dict.Close()
	}
	b.terms = terms
	return terms
}

// DocCount returns the number of indexed entries.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// Sync indexes every location and every event with a start time found in store.
func (b *BleveIndex) Sync(ctx context.Context, store storage.Store) (int, error) {
	n := 0
	locs, err := store.Query(ctx, models.CollectionLocations, storage.GeohashRange("0", "~"))
	if err != nil {
		return 0, err
	}
	for i := range locs {
		var l models.Location
		if err := locs[i].DataTo(&l); err != nil {
			b.logger.Debug("skipping location", zap.String("id", locs[i].ID), zap.Error(err))
			continue
		}
		if err := b.Put(ctx, locs[i].ID, LocationEntry(&l)); err != nil {
			return n, err
		}
		n++
	}

	events, err := store.Query(ctx, models.CollectionEvents, storage.RangeFilter{Field: storage.FieldStartAt})
	if err != nil {
		return n, err
	}
	for i := range events {
		var e models.Event
		if err := events[i].DataTo(&e); err != nil {
			b.logger.Debug("skipping event", zap.String("id", events[i].ID), zap.Error(err))
			continue
		}
		if err := b.Put(ctx, events[i].ID, EventEntry(&e)); err != nil {
			return n, err
		}
		n++
	}
	b.logger.Info("keyword index synced", zap.Int("entries", n))
	return n, nil
}
