package scraper

import (
	"context"

	"github.com/3leaps/prowscope/pkg/event"
	"github.com/3leaps/prowscope/pkg/output"
	"github.com/3leaps/prowscope/pkg/usage"
)

// Scanner reads what the event store already holds.
type Scanner interface {
	ScanBuildIDs(ctx context.Context) (map[string]struct{}, error)
	ScanUsageIdentifiers(ctx context.Context) (map[usage.Identifier]struct{}, error)
}

// DryRunStore is a Store that writes events to an output.Writer instead
// of indexing them. Scans are delegated to the scanner when one is set,
// so a dry run reports exactly what a real run would write.
type DryRunStore struct {
	scanner Scanner
	out     output.Writer
}

// NewDryRunStore creates a DryRunStore. scanner may be nil, in which
// case the store is treated as empty.
func NewDryRunStore(scanner Scanner, out output.Writer) *DryRunStore {
	return &DryRunStore{scanner: scanner, out: out}
}

func (d *DryRunStore) ScanBuildIDs(ctx context.Context) (map[string]struct{}, error) {
	if d.scanner == nil {
		return map[string]struct{}{}, nil
	}
	return d.scanner.ScanBuildIDs(ctx)
}

func (d *DryRunStore) ScanUsageIdentifiers(ctx context.Context) (map[usage.Identifier]struct{}, error) {
	if d.scanner == nil {
		return map[usage.Identifier]struct{}{}, nil
	}
	return d.scanner.ScanUsageIdentifiers(ctx)
}

func (d *DryRunStore) IndexJobs(ctx context.Context, events []event.JobEvent) error {
	for i := range events {
		if err := d.out.WriteJob(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *DryRunStore) IndexSteps(ctx context.Context, events []event.StepEvent) error {
	for i := range events {
		if err := d.out.WriteStep(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *DryRunStore) IndexUsages(ctx context.Context, events []event.UsageEvent) error {
	for i := range events {
		if err := d.out.WriteUsage(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

var _ Store = (*DryRunStore)(nil)
