package client

import "encoding/json"

// ObjectType names a CRM object collection that supports search.
type ObjectType string

const (
	ObjectContacts ObjectType = "contacts"
	ObjectDeals    ObjectType = "deals"
)

// Filter operators used by the proxy.
const (
	OperatorEQ      = "EQ"
	OperatorBetween = "BETWEEN"
)

// Sort directions.
const (
	SortAscending  = "ASCENDING"
	SortDescending = "DESCENDING"
)

// Filter is a single condition inside a filter group.
type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value,omitempty"`
	HighValue    string `json:"highValue,omitempty"`
}

// FilterGroup ANDs its filters together.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// Sort orders search results by one property.
type Sort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

// SearchRequest is the body of a CRM search call. After is the opaque
// cursor from the previous page and is omitted on the first page.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties,omitempty"`
	Sorts        []Sort        `json:"sorts,omitempty"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

// NextPage carries the cursor for the following page.
type NextPage struct {
	After string `json:"after"`
	Link  string `json:"link,omitempty"`
}

// Paging is present on a search response only when more pages exist.
type Paging struct {
	Next *NextPage `json:"next,omitempty"`
}

// SearchPage is one page of search results. Records are kept as raw JSON;
// the proxy never interprets them.
type SearchPage struct {
	Total   int               `json:"total"`
	Results []json.RawMessage `json:"results"`
	Paging  *Paging           `json:"paging,omitempty"`
}

// NextCursor returns the continuation token, or "" on the last page.
func (p *SearchPage) NextCursor() string {
	if p == nil || p.Paging == nil || p.Paging.Next == nil {
		return ""
	}
	return p.Paging.Next.After
}
