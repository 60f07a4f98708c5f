package eventstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// IndexName returns the weekly index of basename containing t, formatted as
// {basename}-{ISO year}.{ISO week}.
func IndexName(basename string, t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%s-%d.%02d", basename, year, week)
}

// weeklyIndex is a family of weekly indices sharing a basename.
type weeklyIndex struct {
	basename string
	schema   []byte
}

func (w weeklyIndex) current(now time.Time) string {
	return IndexName(w.basename, now)
}

func (w weeklyIndex) previous(now time.Time) string {
	return IndexName(w.basename, now.AddDate(0, 0, -7))
}

// pattern matches every weekly index of the family.
func (w weeklyIndex) pattern() string {
	return w.basename + "-*"
}

// ensure creates the index with its schema if it does not exist.
func (s *Store) ensure(ctx context.Context, name string, schema []byte) error {
	res, err := s.client.Indices.Exists([]string{name}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		return nil
	case res.StatusCode != http.StatusNotFound:
		return fmt.Errorf("error checking index existence: %s", res.String())
	}

	created, err := s.client.Indices.Create(name,
		s.client.Indices.Create.WithBody(bytes.NewReader(schema)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	defer created.Body.Close()

	if created.IsError() {
		return fmt.Errorf("error creating index %s: %s", name, created.String())
	}

	s.logger.Info("Created index", zap.String("index", name))
	return nil
}

func (s *Store) refresh(ctx context.Context, name string) error {
	res, err := s.client.Indices.Refresh(
		s.client.Indices.Refresh.WithIndex(name),
		s.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to refresh index %s: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error refreshing index %s: %s", name, res.String())
	}
	return nil
}

// Ping checks that the cluster answers.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("ping elasticsearch: %s", res.Status())
	}
	return nil
}
