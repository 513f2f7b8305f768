package storage

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const documentsTable = "documents"

// sqlColumn maps an indexed field to its column.
func sqlColumn(field string) string {
	if field == FieldStartAt {
		return "start_at"
	}
	return "geohash"
}

// rangeSelect builds the range query shared by the SQL backends.
// start_at is stored as unix milliseconds in both.
func rangeSelect(ph sq.PlaceholderFormat, collection string, filter RangeFilter) (string, []interface{}, error) {
	col := sqlColumn(filter.Field)
	b := sq.Select("id", "data").
		From(documentsTable).
		Where(sq.Eq{"collection": collection}).
		Where(sq.NotEq{col: nil})

	switch filter.Field {
	case FieldGeohash:
		lo, hi, err := filter.stringBounds()
		if err != nil {
			return "", nil, err
		}
		if lo != nil {
			b = b.Where(sq.GtOrEq{col: *lo})
		}
		if hi != nil {
			b = b.Where(sq.LtOrEq{col: *hi})
		}
	case FieldStartAt:
		lo, hi, err := filter.timeBounds()
		if err != nil {
			return "", nil, err
		}
		if lo != nil {
			b = b.Where(sq.GtOrEq{col: lo.UnixMilli()})
		}
		if hi != nil {
			b = b.Where(sq.LtOrEq{col: hi.UnixMilli()})
		}
	}
	return b.OrderBy(col, "id").PlaceholderFormat(ph).ToSql()
}

// upsert builds an insert that replaces the indexed columns and data of an existing row.
func upsert(ph sq.PlaceholderFormat, collection, id string, doc Document, now time.Time) (string, []interface{}, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode document: %w", err)
	}
	geohash, startAt := indexKeys(doc)
	var gh interface{}
	if geohash != nil {
		gh = *geohash
	}
	return sq.Insert(documentsTable).
		Columns("collection", "id", "geohash", "start_at", "data", "created_at", "updated_at").
		Values(collection, id, gh, unixMillis(startAt), data, now.UnixMilli(), now.UnixMilli()).
		Suffix(`ON CONFLICT (collection, id) DO UPDATE SET
			geohash = excluded.geohash,
			start_at = excluded.start_at,
			data = excluded.data,
			updated_at = excluded.updated_at`).
		PlaceholderFormat(ph).
		ToSql()
}

func getByIDSelect(ph sq.PlaceholderFormat, collection, id string) (string, []interface{}, error) {
	return sq.Select("data").
		From(documentsTable).
		Where(sq.Eq{"collection": collection, "id": id}).
		PlaceholderFormat(ph).
		ToSql()
}

func decodeRow(id string, raw []byte) (Snapshot, error) {
	var data Document
	if err := json.Unmarshal(raw, &data); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return Snapshot{ID: id, Data: data}, nil
}
