package proxy

import (
	"net/http"
	"strings"

	"github.com/Sternrassler/crm-proxy/pkg/client"
	"github.com/Sternrassler/crm-proxy/pkg/pagination"
	"github.com/Sternrassler/crm-proxy/pkg/stages"
	"github.com/gin-gonic/gin"
)

// handleStagesByMonths relays the lifecycle analytics for [from, to].
func (s *Server) handleStagesByMonths(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		respondBadRequest(c, prefixStagesByMonths, "query parameters from and to are required")
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	body, err := s.crm.LifecycleStageTimeline(ctx, from, to)
	if err != nil {
		s.respondError(c, prefixStagesByMonths, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// handleStagesTotalCount counts contacts in each default stage.
func (s *Server) handleStagesTotalCount(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	counts, err := s.counter.CountByStage(ctx, stages.DefaultStages)
	if err != nil {
		s.respondError(c, prefixStagesTotalCount, err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

// handleDealsByStage returns every deal dated within [since, to], optionally
// restricted to one deal stage.
func (s *Server) handleDealsByStage(c *gin.Context) {
	since, to := c.Query("since"), c.Query("to")
	if since == "" || to == "" {
		respondBadRequest(c, prefixDeals, "query parameters since and to are required")
		return
	}
	stage := strings.TrimSpace(c.Query("stage"))

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.aggregator.Aggregate(ctx, pagination.Query{
		Object:     client.ObjectDeals,
		Filters:    stages.DealFilters(since, to, stage),
		Properties: DealProperties,
		Sorts: []client.Sort{{
			PropertyName: stages.PropertyCreateDate,
			Direction:    client.SortAscending,
		}},
		PageSize: s.opts.PageSize,
	})
	if err != nil {
		s.respondError(c, prefixDeals, err)
		return
	}

	c.JSON(http.StatusOK, result.Records)
}

// handleContactsByStage returns every contact currently in a lifecycle stage.
func (s *Server) handleContactsByStage(c *gin.Context) {
	stage := c.DefaultQuery("stage", stages.DefaultContactStage)

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.aggregator.Aggregate(ctx, pagination.Query{
		Object:     client.ObjectContacts,
		Filters:    []client.Filter{stages.LifecycleStageFilter(stage)},
		Properties: ContactProperties,
		PageSize:   s.opts.PageSize,
	})
	if err != nil {
		s.respondError(c, prefixContacts, err)
		return
	}

	c.JSON(http.StatusOK, result.Records)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleReady(c *gin.Context) {
	if s.opts.Ready == nil {
		c.String(http.StatusOK, "OK")
		return
	}
	if err := s.opts.Ready(c.Request.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		c.String(http.StatusServiceUnavailable, "not ready: %v", err)
		return
	}
	c.String(http.StatusOK, "OK")
}
