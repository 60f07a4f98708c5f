package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultDedupeFields are the job fields compared when looking for
// duplicate documents.
var DefaultDedupeFields = []string{"job.build_id", "job.name"}

// Duplicate is a document whose compared fields equal those of an earlier
// document in the same index.
type Duplicate struct {
	ID       string
	Key      string
	Original string
}

// FindDuplicates scans index and returns every document after the first
// one sharing the values of fields. Fields use dot notation.
func (s *Store) FindDuplicates(ctx context.Context, index string, fields []string) ([]Duplicate, error) {
	if len(fields) == 0 {
		fields = DefaultDedupeFields
	}
	query := map[string]any{
		"_source": fields,
		"query":   map[string]any{"match_all": map[string]any{}},
		"sort":    []any{"_doc"},
	}

	seen := make(map[string]string)
	var dups []Duplicate
	err := s.scan(ctx, []string{index}, query, func(h hit) error {
		var doc map[string]any
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return fmt.Errorf("decode document %s: %w", h.ID, err)
		}
		key := dedupeKey(doc, fields)
		if original, ok := seen[key]; ok {
			dups = append(dups, Duplicate{ID: h.ID, Key: key, Original: original})
			return nil
		}
		seen[key] = h.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find duplicates in %s: %w", index, err)
	}

	s.logger.Info("Scanned index for duplicates",
		zap.String("index", index),
		zap.Int("documents", len(seen)+len(dups)),
		zap.Int("duplicates", len(dups)),
	)
	return dups, nil
}

// DeleteDocuments deletes ids from index and refreshes it.
func (s *Store) DeleteDocuments(ctx context.Context, index string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, id := range ids {
		meta := map[string]any{"delete": map[string]any{"_index": index, "_id": id}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to encode meta: %w", err)
		}
	}

	if err := s.bulk(ctx, &buf); err != nil {
		return fmt.Errorf("bulk delete %s: %w", index, err)
	}
	s.logger.Info("Deleted documents", zap.String("index", index), zap.Int("documents", len(ids)))

	return s.refresh(ctx, index)
}

// dedupeKey joins the values of fields in doc. Missing fields contribute
// an empty value.
func dedupeKey(doc map[string]any, fields []string) string {
	values := make([]string, len(fields))
	for i, field := range fields {
		if v, ok := lookup(doc, field); ok {
			raw, _ := json.Marshal(v)
			values[i] = string(raw)
		}
	}
	return strings.Join(values, "\x1f")
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
