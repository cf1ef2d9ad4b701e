package platform

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// route is a recorded request of a fake API server.
type route struct {
	Method string
	Path   string
	Body   map[string]any
	Header http.Header
}

// fakeAPI serves canned JSON responses keyed by "METHOD escaped-path" and
// records every request it receives.
type fakeAPI struct {
	t         *testing.T
	server    *httptest.Server
	responses map[string]fakeResponse

	mu       sync.Mutex
	requests []route
}

type fakeResponse struct {
	status int
	body   any
	header http.Header
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, responses: make(map[string]fakeResponse)}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) on(method, path string, status int, body any) {
	f.responses[method+" "+path] = fakeResponse{status: status, body: body}
}

func (f *fakeAPI) onWithHeader(method, path string, status int, body any, header http.Header) {
	f.responses[method+" "+path] = fakeResponse{status: status, body: body, header: header}
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	rec := route{Method: r.Method, Path: r.URL.EscapedPath(), Header: r.Header.Clone()}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	resp, ok := f.responses[r.Method+" "+rec.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
		return
	}
	for k, v := range resp.header {
		w.Header()[k] = v
	}
	if s, ok := resp.body.(string); ok {
		w.WriteHeader(resp.status)
		_, _ = io.WriteString(w, s)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	if resp.body != nil {
		require.NoError(f.t, json.NewEncoder(w).Encode(resp.body))
	}
}

// last returns the most recent request for method and path.
func (f *fakeAPI) last(method, path string) route {
	f.t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Method == method && f.requests[i].Path == path {
			return f.requests[i]
		}
	}
	f.t.Fatalf("no request %s %s; got %v", method, path, f.requests)
	return route{}
}

func (f *fakeAPI) options() Options {
	return Options{
		BaseURL:           f.server.URL,
		Token:             "test-token",
		HTTPClient:        f.server.Client(),
		Retries:           -1,
		RequestsPerSecond: 1000,
	}
}
