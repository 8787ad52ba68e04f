// Package pagination collects every page of a cursor-paginated CRM search
// into a single ordered result.
//
// The CRM search endpoint returns at most Limit records per call and
// signals more data only through a paging.next.after cursor. The
// Aggregator therefore runs a strictly sequential loop driven by that
// signal alone: there is no page bound and no parallel fan-out.
//
// Example usage:
//
//	agg := pagination.NewAggregator(crmClient)
//	res, err := agg.Aggregate(ctx, pagination.Query{
//		Object:     client.ObjectDeals,
//		Filters:    filters,
//		Properties: []string{"amount", "dealname"},
//		PageSize:   100,
//	})
//
// The aggregator:
//   - omits the cursor on the first request
//   - advances only with the cursor returned by the latest page
//   - appends records in upstream order, page after page
//   - aborts on the first error and discards every record collected so far
//
// Pacing between calls is the client's job (see package ratelimit).
package pagination
