package proxy

import (
	"context"
	"time"

	"github.com/Sternrassler/crm-proxy/pkg/client"
	"github.com/Sternrassler/crm-proxy/pkg/metrics"
	"github.com/Sternrassler/crm-proxy/pkg/pagination"
	"github.com/Sternrassler/crm-proxy/pkg/stages"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Route paths.
const (
	RouteStagesByMonths   = "/contacts/lifecyclestages/count/by/months"
	RouteStagesTotalCount = "/contacts/lifecyclestages/total/count/"
	RouteDealsByStage     = "/deals/by/stage"
	RouteContactsByStage  = "/contacts/by/lifecyclestage"
	RouteHealth           = "/health"
	RouteReady            = "/ready"
	RouteMetrics          = "/metrics"
)

// Property lists requested per route.
var (
	DealProperties    = []string{"amount", "montant_devise", "dealstage", "dealname", "createdate", "closedate"}
	ContactProperties = []string{"email", "firstname", "lastname", "createdate", "closedate", "hs_lifecyclestage_lead_date"}
)

// CRM is the upstream surface the handlers need. *client.Client satisfies it.
type CRM interface {
	pagination.PageSearcher
	stages.ContactCounter
	LifecycleStageTimeline(ctx context.Context, from, to string) ([]byte, error)
}

// ReadyCheck reports whether a dependency is usable.
type ReadyCheck func(ctx context.Context) error

// Options configures the HTTP surface.
type Options struct {
	// PageSize is the limit sent on every aggregated search page.
	PageSize int

	// HandlerTimeout bounds one inbound request. Zero disables it.
	HandlerTimeout time.Duration

	// AllowedOrigin is returned as Access-Control-Allow-Origin.
	AllowedOrigin string

	// Ready, when set, backs GET /ready.
	Ready ReadyCheck
}

// DefaultOptions returns the options used by the stock server.
func DefaultOptions() Options {
	return Options{
		PageSize:       pagination.DefaultPageSize,
		HandlerTimeout: 10 * time.Minute,
		AllowedOrigin:  "*",
	}
}

// Server wires the handlers to a CRM client.
type Server struct {
	crm        CRM
	aggregator *pagination.Aggregator
	counter    *stages.Counter
	opts       Options
	logger     zerolog.Logger
}

// NewServer creates a Server. Zero-valued options fall back to DefaultOptions.
func NewServer(crm CRM, opts Options) *Server {
	defaults := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = defaults.PageSize
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = defaults.AllowedOrigin
	}

	return &Server{
		crm:        crm,
		aggregator: pagination.NewAggregator(crm),
		counter:    stages.NewCounter(crm),
		opts:       opts,
		logger:     log.With().Str("component", "proxy").Logger(),
	}
}

// Router builds the gin engine with every route and middleware installed.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(AccessLogMiddleware(s.logger))
	router.Use(CORSMiddleware(s.opts.AllowedOrigin))

	router.GET(RouteStagesByMonths, s.handleStagesByMonths)
	router.GET(RouteStagesTotalCount, s.handleStagesTotalCount)
	router.GET(RouteDealsByStage, s.handleDealsByStage)
	router.GET(RouteContactsByStage, s.handleContactsByStage)

	router.GET(RouteHealth, s.handleHealth)
	router.GET(RouteReady, s.handleReady)
	router.GET(RouteMetrics, gin.WrapH(metrics.Handler()))

	return router
}

// requestContext derives the handler context, applying HandlerTimeout.
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.opts.HandlerTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.opts.HandlerTimeout)
}

// compile-time check
var _ CRM = (*client.Client)(nil)
