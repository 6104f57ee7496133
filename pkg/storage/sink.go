package storage

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"igcrawler/pkg/feed"
)

// Sink persists collected items. Write may be called repeatedly during one
// crawl with the items of each round; implementations ignore keys they
// already hold.
type Sink interface {
	Name() string
	Write(ctx context.Context, handle string, items []feed.Item) error
	Close() error
}

// ProfileWriter is implemented by sinks that also keep the account header
type ProfileWriter interface {
	WriteProfile(ctx context.Context, profile feed.Profile) error
}

// MultiSink writes to every sink concurrently
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink fans writes out to sinks
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Name() string { return "multi" }

// Len returns the number of wrapped sinks
func (m *MultiSink) Len() int { return len(m.sinks) }

// Write returns the first sink error; the other sinks still finish their write
func (m *MultiSink) Write(ctx context.Context, handle string, items []feed.Item) error {
	if len(items) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range m.sinks {
		s := s
		g.Go(func() error {
			if err := s.Write(gctx, handle, items); err != nil {
				return fmt.Errorf("%s sink: %w", s.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// WriteProfile passes profile to every sink that keeps profiles
func (m *MultiSink) WriteProfile(ctx context.Context, profile feed.Profile) error {
	var errs []error
	for _, s := range m.sinks {
		pw, ok := s.(ProfileWriter)
		if !ok {
			continue
		}
		if err := pw.WriteProfile(ctx, profile); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
