// Package testutil provides a scripted CRM API server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockResponse is one scripted reply.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// RecordedCall is a request the mock received.
type RecordedCall struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Search decodes the recorded body as a search request.
func (c RecordedCall) Search() (map[string]any, error) {
	var req map[string]any
	if err := json.Unmarshal(c.Body, &req); err != nil {
		return nil, err
	}
	return req, nil
}

// MockCRM replays scripted responses per path, in order. Once a path's
// script is exhausted its last response repeats.
type MockCRM struct {
	server *httptest.Server

	mu        sync.Mutex
	scripts   map[string][]MockResponse
	served    map[string]int
	calls     []RecordedCall
	onRequest func(r *http.Request)
}

// NewMockCRM starts a new mock CRM server.
func NewMockCRM() *MockCRM {
	mock := &MockCRM{
		scripts: make(map[string][]MockResponse),
		served:  make(map[string]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockCRM) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCRM) Close() {
	m.server.Close()
}

// Reset clears scripts and recorded calls.
func (m *MockCRM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = make(map[string][]MockResponse)
	m.served = make(map[string]int)
	m.calls = nil
}

// OnRequest registers a hook run for every incoming request before it is answered.
func (m *MockCRM) OnRequest(fn func(r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRequest = fn
}

// Script sets the ordered responses for a path.
func (m *MockCRM) Script(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[path] = responses
	m.served[path] = 0
}

// ScriptSearch scripts the search endpoint of an object collection.
func (m *MockCRM) ScriptSearch(object string, responses ...MockResponse) {
	m.Script(SearchPath(object), responses...)
}

// Calls returns a copy of every recorded request.
func (m *MockCRM) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of requests received.
func (m *MockCRM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *MockCRM) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.calls = append(m.calls, RecordedCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	hook := m.onRequest

	script := m.scripts[r.URL.Path]
	var resp MockResponse
	found := len(script) > 0
	if found {
		idx := m.served[r.URL.Path]
		if idx >= len(script) {
			idx = len(script) - 1
		}
		resp = script[idx]
		m.served[r.URL.Path]++
	}
	m.mu.Unlock()

	if hook != nil {
		hook(r)
	}

	if !found {
		resp = NewErrorResponse(http.StatusNotFound, "no scripted response for "+r.URL.Path)
	}

	if resp.Headers["Content-Type"] == "" {
		w.Header().Set("Content-Type", "application/json;charset=utf-8")
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// SearchPath returns the upstream search path for an object collection.
func SearchPath(object string) string {
	return fmt.Sprintf("/crm/v3/objects/%s/search", object)
}

// LifecycleStagesPath is the upstream lifecycle-stage analytics path.
const LifecycleStagesPath = "/contacts/search/v1/external/lifecyclestages"

// NewSearchPage builds a 200 search response holding records (raw JSON
// objects). A non-empty after adds a paging.next continuation.
func NewSearchPage(after string, records ...string) MockResponse {
	var b strings.Builder
	fmt.Fprintf(&b, `{"total":%d,"results":[%s]`, len(records), strings.Join(records, ","))
	if after != "" {
		fmt.Fprintf(&b, `,"paging":{"next":{"after":%q,"link":"?after=%s"}}`, after, after)
	}
	b.WriteString("}")

	return MockResponse{StatusCode: http.StatusOK, Body: b.String()}
}

// NewCountResponse builds a 200 limit-0 search response with a total.
func NewCountResponse(total int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"total":%d,"results":[]}`, total),
	}
}

// NewErrorResponse builds a CRM-style JSON error response.
func NewErrorResponse(status int, message string) MockResponse {
	body, _ := json.Marshal(map[string]string{
		"status":   "error",
		"message":  message,
		"category": "VALIDATION_ERROR",
	})
	return MockResponse{StatusCode: status, Body: string(body)}
}

// NewRateLimitResponse builds a 429 response.
func NewRateLimitResponse() MockResponse {
	return NewErrorResponse(http.StatusTooManyRequests, "You have reached your secondly limit.")
}

// Record returns a minimal CRM record with an id and properties.
func Record(id string, props map[string]string) string {
	rec := map[string]any{"id": id, "properties": props}
	b, _ := json.Marshal(rec)
	return string(b)
}
