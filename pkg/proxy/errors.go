package proxy

import (
	"net/http"

	"github.com/Sternrassler/crm-proxy/pkg/client"
	"github.com/gin-gonic/gin"
)

// Per-route prefixes for failure bodies.
const (
	prefixStagesByMonths   = "Proxy can't get lifecycle stages analytics"
	prefixStagesTotalCount = "Proxy can't get lifecycle stages counts"
	prefixDeals            = "Proxy can't get deals"
	prefixContacts         = "Proxy encountered an error"
)

// StatusFor maps a handler error to the response status: the upstream
// status for an upstream rejection, 500 for everything else.
func StatusFor(err error) int {
	if upstream, ok := client.AsUpstreamError(err); ok {
		return upstream.StatusCode
	}
	return http.StatusInternalServerError
}

// detailFor returns the message shown after the route prefix.
func detailFor(err error) string {
	if upstream, ok := client.AsUpstreamError(err); ok {
		return upstream.Message
	}
	return err.Error()
}

// respondError writes "<prefix>: <detail>" as plain text and logs the cause.
func (s *Server) respondError(c *gin.Context, prefix string, err error) {
	status := StatusFor(err)

	s.logger.Error().
		Err(err).
		Str("request_id", c.GetString(requestIDKey)).
		Str("route", c.FullPath()).
		Int("status", status).
		Bool("transport", client.IsTransportError(err)).
		Msg(prefix)

	c.String(status, "%s: %s", prefix, detailFor(err))
}

// respondBadRequest rejects a request before any upstream call.
func respondBadRequest(c *gin.Context, prefix, detail string) {
	c.String(http.StatusBadRequest, "%s: %s", prefix, detail)
}
