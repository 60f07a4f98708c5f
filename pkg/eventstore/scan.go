package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	scrollKeepAlive = time.Minute
	scrollPageSize  = 1000
)

// hit is a search hit with its raw source.
type hit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []hit `json:"hits"`
	} `json:"hits"`
}

// scan iterates over every document matching query in indices, calling fn
// for each hit. Missing indices are ignored.
func (s *Store) scan(ctx context.Context, indices []string, query map[string]any, fn func(hit) error) error {
	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(indices...),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithScroll(scrollKeepAlive),
		s.client.Search.WithSize(scrollPageSize),
		s.client.Search.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("search %s: %w", strings.Join(indices, ","), err)
	}

	page, err := decodeSearch(res)
	if err != nil {
		return fmt.Errorf("search %s: %w", strings.Join(indices, ","), err)
	}

	scrollID := page.ScrollID
	defer func() {
		if scrollID != "" {
			s.clearScroll(scrollID)
		}
	}()

	for len(page.Hits.Hits) > 0 {
		for _, h := range page.Hits.Hits {
			if err := fn(h); err != nil {
				return err
			}
		}
		if scrollID == "" {
			return nil
		}

		res, err := s.client.Scroll(
			s.client.Scroll.WithContext(ctx),
			s.client.Scroll.WithScrollID(scrollID),
			s.client.Scroll.WithScroll(scrollKeepAlive),
		)
		if err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		page, err = decodeSearch(res)
		if err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}
	return nil
}

func decodeSearch(res *esapi.Response) (*searchResponse, error) {
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, string(body))
	}

	var page searchResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &page, nil
}

func (s *Store) clearScroll(id string) {
	res, err := s.client.ClearScroll(
		s.client.ClearScroll.WithContext(context.Background()),
		s.client.ClearScroll.WithScrollID(id),
	)
	if err != nil {
		return
	}
	_ = res.Body.Close()
}
