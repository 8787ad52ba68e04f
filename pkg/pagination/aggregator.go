package pagination

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Sternrassler/crm-proxy/pkg/client"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 100

var (
	paginationPages = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_pagination_pages",
		Help:    "Pages fetched per successful aggregation",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	}, []string{"object"})

	paginationRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_pagination_records_total",
		Help: "Records returned by successful aggregations",
	}, []string{"object"})

	paginationAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_pagination_aborts_total",
		Help: "Aggregations aborted by an upstream or transport error",
	}, []string{"object"})
)

// PageSearcher fetches a single search page. *client.Client implements it.
type PageSearcher interface {
	Search(ctx context.Context, object client.ObjectType, req client.SearchRequest) (*client.SearchPage, error)
}

// Query describes what to aggregate. Filters form a single AND group.
type Query struct {
	Object     client.ObjectType
	Filters    []client.Filter
	Properties []string
	Sorts      []client.Sort
	PageSize   int
}

// Result is the ordered concatenation of every page's records.
type Result struct {
	Records []json.RawMessage
	Pages   int
}

// Aggregator runs the cursor loop.
type Aggregator struct {
	searcher PageSearcher
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewAggregator creates an aggregator over searcher.
func NewAggregator(searcher PageSearcher) *Aggregator {
	return &Aggregator{
		searcher: searcher,
		logger:   log.With().Str("component", "aggregator").Logger(),
		tracer:   otel.Tracer("crm-proxy/pagination"),
	}
}

// Aggregate fetches pages until the upstream stops returning a cursor.
// Any error aborts the loop and no partial result is returned.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (*Result, error) {
	if q.PageSize <= 0 {
		return nil, errors.Newf("page size must be positive (got %d)", q.PageSize)
	}

	ctx, span := a.tracer.Start(ctx, "crm.aggregate",
		trace.WithAttributes(
			attribute.String("crm.object_type", string(q.Object)),
			attribute.Int("crm.page_size", q.PageSize),
		),
	)
	defer span.End()

	start := time.Now()
	records := make([]json.RawMessage, 0)
	cursor := ""

	for page := 1; ; page++ {
		req := client.SearchRequest{
			FilterGroups: []client.FilterGroup{{Filters: q.Filters}},
			Properties:   q.Properties,
			Sorts:        q.Sorts,
			Limit:        q.PageSize,
		}
		if page > 1 {
			req.After = cursor
		}

		result, err := a.searcher.Search(ctx, q.Object, req)
		if err != nil {
			paginationAbortsTotal.WithLabelValues(string(q.Object)).Inc()
			a.logger.Warn().
				Err(err).
				Str("object_type", string(q.Object)).
				Int("page", page).
				Int("records", len(records)).
				Msg("Aggregation aborted")
			span.RecordError(err)
			span.SetStatus(codes.Error, "page fetch failed")
			return nil, errors.Wrapf(err, "fetch %s page %d", q.Object, page)
		}

		records = append(records, result.Results...)

		next := result.NextCursor()
		a.logger.Debug().
			Str("object_type", string(q.Object)).
			Int("page", page).
			Int("page_records", len(result.Results)).
			Bool("has_next", next != "").
			Msg("Page collected")

		if next == "" {
			paginationPages.WithLabelValues(string(q.Object)).Observe(float64(page))
			paginationRecordsTotal.WithLabelValues(string(q.Object)).Add(float64(len(records)))

			a.logger.Info().
				Str("object_type", string(q.Object)).
				Int("pages", page).
				Int("records", len(records)).
				Dur("duration", time.Since(start)).
				Msg("Aggregation complete")

			span.SetAttributes(
				attribute.Int("crm.pages", page),
				attribute.Int("crm.records", len(records)),
			)
			span.SetStatus(codes.Ok, "")
			return &Result{Records: records, Pages: page}, nil
		}
		cursor = next
	}
}
