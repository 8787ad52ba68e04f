package stages

import (
	"context"
	"time"

	"github.com/Sternrassler/crm-proxy/pkg/client"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var stageCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "crm_stage_count",
	Help: "Last observed number of contacts per lifecycle stage",
}, []string{"stage"})

// Count is the number of contacts in one lifecycle stage.
type Count struct {
	Stage string `json:"lifecycleStage"`
	Count int    `json:"count"`
}

// ContactCounter returns the total of contacts matching filter groups.
// *client.Client implements it.
type ContactCounter interface {
	Count(ctx context.Context, object client.ObjectType, filterGroups []client.FilterGroup) (int, error)
}

// Counter issues one count query per stage, sequentially.
type Counter struct {
	counter ContactCounter
	logger  zerolog.Logger
}

// NewCounter creates a stage counter.
func NewCounter(counter ContactCounter) *Counter {
	return &Counter{
		counter: counter,
		logger:  log.With().Str("component", "stage-counter").Logger(),
	}
}

// CountByStage returns one Count per name, in input order. The first
// failure aborts the run and discards the counts gathered so far.
func (c *Counter) CountByStage(ctx context.Context, names []string) ([]Count, error) {
	start := time.Now()
	counts := make([]Count, 0, len(names))

	for _, name := range names {
		total, err := c.counter.Count(ctx, client.ObjectContacts, []client.FilterGroup{{
			Filters: []client.Filter{LifecycleStageFilter(name)},
		}})
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("stage", name).
				Int("counted", len(counts)).
				Msg("Stage count aborted")
			return nil, errors.Wrapf(err, "count stage %q", name)
		}

		stageCount.WithLabelValues(name).Set(float64(total))
		counts = append(counts, Count{Stage: name, Count: total})
	}

	c.logger.Info().
		Int("stages", len(counts)).
		Dur("duration", time.Since(start)).
		Msg("Stage counts complete")

	return counts, nil
}
