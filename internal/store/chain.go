package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/debatearena/server/internal/debate"
	"github.com/debatearena/server/internal/metrics"
)

type named struct {
	name string
	rec  debate.Recorder
}

// Recorders fans one finished debate out to several recorders. Every
// recorder runs even when an earlier one fails.
type Recorders struct {
	recs []named
}

func Chain() *Recorders { return &Recorders{} }

// Add appends rec under name, which labels its failures. A nil rec is
// skipped.
func (c *Recorders) Add(name string, rec debate.Recorder) *Recorders {
	if rec != nil {
		c.recs = append(c.recs, named{name: name, rec: rec})
	}
	return c
}

func (c *Recorders) Len() int { return len(c.recs) }

func (c *Recorders) Record(ctx context.Context, snap debate.Snapshot) error {
	var errs []error
	for _, r := range c.recs {
		if err := r.rec.Record(ctx, snap); err != nil {
			metrics.RecorderErrors.WithLabelValues(r.name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
		}
	}
	return errors.Join(errs...)
}
