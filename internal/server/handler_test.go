package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"payload-log/internal/cache"
	"payload-log/internal/config"
	"payload-log/internal/decrypt"
	"payload-log/internal/metrics"
	"payload-log/internal/query"
	"payload-log/internal/source"

	"github.com/fernet/fernet-go"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `2024-05-01T10:00:00Z GET /a status=200
2024-05-01T10:00:01Z GET /b status=404
2024-05-01T10:00:02Z GET /c status=500
no timestamp here status=404
`

type testServer struct {
	dir     string
	metrics *metrics.Metrics
	handler http.Handler
}

func newTestServer(t *testing.T, dec decrypt.Decryptor, files map[string]string) *testServer {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	cfg := config.Config{DefaultPageSize: 2, MaxPageSize: 3}
	m := metrics.New()
	src := source.NewLocal(dir)
	h := NewHandler(cfg, m, query.NewEngine(src, dec, m), cache.NewSessionCache(src, time.Hour, m))
	return &testServer{dir: dir, metrics: m, handler: h.Router()}
}

func (s *testServer) get(t *testing.T, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type sseEvent struct {
	id    string
	event string
	data  string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		if block == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "id: "):
				ev.id = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "event: "):
				ev.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		out = append(out, ev)
	}
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "streams_active=0")
}

func TestMissingIdentifiers(t *testing.T) {
	s := newTestServer(t, nil, map[string]string{"svcA-s1.log": sample})

	for _, target := range []string{
		"/payload-log",
		"/payload-log?serviceName=svcA",
		"/payload-log/stream?sessionId=s1",
		"/payload-log?serviceName=%20&sessionId=s1",
		"/payload-log?serviceName=..&sessionId=s1",
		"/payload-log/stream?serviceName=svcA&sessionId=a%2Fb",
	} {
		t.Run(target, func(t *testing.T) {
			rec := s.get(t, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
	assert.EqualValues(t, 6, atomic.LoadInt64(&s.metrics.HTTPRequestsRejectedTotal))
}

func TestPageStatusFilter(t *testing.T) {
	s := newTestServer(t, nil, map[string]string{"svcA-s1.log": sample})

	rec := s.get(t, "/payload-log?serviceName=svcA&sessionId=s1&status=404")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"entries": [
			{"timestamp": "2024-05-01T10:00:01Z", "content": "2024-05-01T10:00:01Z GET /b status=404"},
			{"timestamp": "", "content": "no timestamp here status=404"}
		],
		"page": 1,
		"pageSize": 2,
		"hasMore": false,
		"totalMatched": 2
	}`, rec.Body.String())
}

func TestPagePaging(t *testing.T) {
	s := newTestServer(t, nil, map[string]string{"svcA-s1.log": sample})

	var page struct {
		Entries      []entryJSON `json:"entries"`
		Page         int         `json:"page"`
		PageSize     int         `json:"pageSize"`
		HasMore      bool        `json:"hasMore"`
		TotalMatched int64       `json:"totalMatched"`
	}

	rec := s.get(t, "/payload-log?serviceName=svcA&sessionId=s1&page=2&pageSize=3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.PageSize)
	assert.Len(t, page.Entries, 1)
	assert.False(t, page.HasMore)
	assert.EqualValues(t, 4, page.TotalMatched)

	// pageSize above the configured maximum is clamped; junk is ignored
	rec = s.get(t, "/payload-log?serviceName=svcA&sessionId=s1&pageSize=99&status=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.PageSize)
	assert.True(t, page.HasMore)
	assert.EqualValues(t, 4, page.TotalMatched)
}

func TestPageExcludeFrom(t *testing.T) {
	s := newTestServer(t, nil, map[string]string{"svcA-s1.log": sample})

	rec := s.get(t, "/payload-log?serviceName=svcA&sessionId=s1&from=2024-05-01T10:00:01Z&excludeFrom=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"entries": [
			{"timestamp": "2024-05-01T10:00:02Z", "content": "2024-05-01T10:00:02Z GET /c status=500"},
			{"timestamp": "", "content": "no timestamp here status=404"}
		],
		"page": 1,
		"pageSize": 2,
		"hasMore": false,
		"totalMatched": 2
	}`, rec.Body.String())
}

func TestPageMissingSession(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.get(t, "/payload-log?serviceName=nobody&sessionId=none")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[],"page":1,"pageSize":2,"hasMore":false,"totalMatched":0}`, rec.Body.String())
}

func TestStream(t *testing.T) {
	s := newTestServer(t, nil, map[string]string{"svcA-s1.log": sample})

	rec := s.get(t, "/payload-log/stream?serviceName=svcA&sessionId=s1&q=GET&from=2024-05-01%2010:00:01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)

	var e entryJSON
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &e))
	assert.Equal(t, entryJSON{Timestamp: "2024-05-01T10:00:01Z", Content: "2024-05-01T10:00:01Z GET /b status=404"}, e)
	assert.Equal(t, "2024-05-01T10:00:01Z", events[0].id)
	assert.Equal(t, "2024-05-01T10:00:02Z", events[1].id)
}

func TestStreamLimitAndResume(t *testing.T) {
	s := newTestServer(t, nil, map[string]string{"svcA-s1.log": sample})

	rec := s.get(t, "/payload-log/stream?serviceName=svcA&sessionId=s1&limit=1")
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "2024-05-01T10:00:00Z", events[0].id)

	rec = s.get(t, "/payload-log/stream?serviceName=svcA&sessionId=s1", "Last-Event-ID", events[0].id)
	events = parseSSE(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "2024-05-01T10:00:01Z", events[0].id)
	assert.Equal(t, "2024-05-01T10:00:02Z", events[1].id)
	assert.Empty(t, events[2].id) // no timestamp
}

func TestStreamMissingSessionIsEmpty(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.get(t, "/payload-log/stream?serviceName=svcA&sessionId=s1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, strings.TrimSpace(rec.Body.String()))
}

func TestStreamDecryptFailure(t *testing.T) {
	var k fernet.Key
	require.NoError(t, k.Generate())
	var other fernet.Key
	require.NoError(t, other.Generate())

	good, err := decrypt.NewFernet(k.Encode())
	require.NoError(t, err)
	foreign, err := decrypt.NewFernet(other.Encode())
	require.NoError(t, err)

	ok, err := good.Seal(`{"path":"/ok"}`)
	require.NoError(t, err)
	bad, err := foreign.Seal(`{"path":"/bad"}`)
	require.NoError(t, err)

	body := "2024-05-01T10:00:00Z " + ok + " [status:200]\n" +
		"2024-05-01T10:00:01Z " + bad + " [status:200]\n"
	s := newTestServer(t, good, map[string]string{"svcA-s1.log": body})

	rec := s.get(t, "/payload-log/stream?serviceName=svcA&sessionId=s1")
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Contains(t, events[0].data, `v1:{\"path\":\"/ok\"}`)
	assert.Equal(t, "error", events[1].event)
	assert.Contains(t, events[1].data, "decrypt")

	rec = s.get(t, "/payload-log?serviceName=svcA&sessionId=s1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "decrypt")
}

func TestMetadata(t *testing.T) {
	s := newTestServer(t, nil, map[string]string{
		"svcA-sess1.log": "",
		"svcA-sess2.log": "",
		"svcB-sess1.log": "",
	})

	rec := s.get(t, "/metadata")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"svcA":["sess1","sess2"],"svcB":["sess1"]}`, rec.Body.String())

	// cached until refresh
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "svcC-x.log"), nil, 0o644))
	rec = s.get(t, "/metadata")
	assert.NotContains(t, rec.Body.String(), "svcC")

	rec = s.get(t, "/metadata?refresh=true")
	assert.Contains(t, rec.Body.String(), `"svcC":["x"]`)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-05-01T10:00:00Z", "2024-05-01T10:00:00Z"},
		{"2024-05-01T10:00:00.123456Z", "2024-05-01T10:00:00.123456Z"},
		{"2024-05-01T19:00:00+09:00", "2024-05-01T10:00:00Z"},
		{"2024-05-01T10:00:00", "2024-05-01T10:00:00Z"},
		{"2024-05-01 10:00:00", "2024-05-01T10:00:00Z"},
		{"2024-05-01T10:00", "2024-05-01T10:00:00Z"},
		{"2024-05-01T10:00Z", "2024-05-01T10:00:00Z"},
		{"yesterday", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseTime(tt.in)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format(time.RFC3339Nano))
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"xff public", map[string]string{"X-Forwarded-For": "10.0.0.1, 203.0.113.7"}, "10.0.0.2:1234", "203.0.113.7"},
		{"cloudfront", map[string]string{"CloudFront-Viewer-Address": "198.51.100.9:5555"}, "10.0.0.2:1234", "198.51.100.9"},
		{"cloudfront ipv6", map[string]string{"CloudFront-Viewer-Address": "2404:6800:4004::200e:44321"}, "10.0.0.2:1234", "2404:6800:4004::200e"},
		{"xff only private hops", map[string]string{"X-Forwarded-For": "10.0.0.1, 192.168.1.1"}, "10.0.0.2:1234", "10.0.0.2"},
		{"xff padded", map[string]string{"X-Forwarded-For": "  198.51.100.3 "}, "10.0.0.2:1234", "198.51.100.3"},
		{"remote fallback", nil, "10.0.0.2:1234", "10.0.0.2"},
		{"garbage", nil, "nonsense", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}
