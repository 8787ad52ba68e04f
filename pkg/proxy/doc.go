// Package proxy exposes the CRM reporting endpoints over HTTP.
//
// Routes:
//
//	GET /contacts/lifecyclestages/count/by/months?from=&to=  lifecycle analytics passthrough
//	GET /contacts/lifecyclestages/total/count/               contact count per default stage
//	GET /deals/by/stage?since=&to=&stage=                    every deal in the window
//	GET /contacts/by/lifecyclestage?stage=                   every contact in a stage
//	GET /health, /ready, /metrics                            operational endpoints
//
// Successful responses carry the upstream records unchanged. Failures are
// plain text "<route prefix>: <detail>" with the upstream status code, or
// 500 when the upstream could not be reached.
package proxy
