package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInfluxRecorder_WritesOnClose(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/write" {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(b))
			query = r.URL.RawQuery
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rec := NewInfluxRecorder(srv.URL, "token", "home", "board")
	rec.Record("door", map[string]string{"pin": "a2"}, map[string]any{"open": true}, time.Unix(1700000000, 0))
	rec.Close()

	mu.Lock()
	defer mu.Unlock()
	all := strings.Join(bodies, "\n")
	assert.Contains(t, all, "door,pin=a2 open=true 1700000000000000000")
	assert.Contains(t, query, "bucket=board")
	assert.Contains(t, query, "org=home")
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	assert.NotPanics(t, func() {
		r.Record("x", nil, map[string]any{"v": 1}, time.Now())
		r.Close()
	})
}
