package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/showkeeper/showkeeper/internal/activity"
	"github.com/showkeeper/showkeeper/internal/cleanup"
	"github.com/showkeeper/showkeeper/internal/intake"
	"github.com/showkeeper/showkeeper/internal/library/librarytest"
	"github.com/showkeeper/showkeeper/internal/retention"
	"github.com/showkeeper/showkeeper/internal/rules"
	"github.com/showkeeper/showkeeper/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	log := testutil.NewTestLogger(t)
	lib := &librarytest.Fake{}

	ruleStore := rules.NewStore(tdb.Conn)
	activityStore := activity.NewStore(tdb.Conn)
	resolver := activity.NewResolver(activityStore, lib, nil, log)
	retentionSvc := retention.NewService(lib, ruleStore, activityStore, nil, log)

	settings := cleanup.NewSettings(tdb.Conn)
	gate := cleanup.NewGate(lib, settings)
	sweeper := cleanup.NewSweeper(lib, ruleStore, resolver, settings, gate, log)

	matcher := intake.NewMatcher(lib, nil, log)
	processor := intake.NewProcessor(matcher, intake.NewDeduper(), retentionSvc, log)

	return NewServer(
		intake.NewHandlers(processor, nil, nil),
		cleanup.NewHandlers(sweeper, gate),
		log,
	)
}

func TestPing(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestRoutesRegistered(t *testing.T) {
	server := newTestServer(t)

	want := map[string]bool{
		"POST /api/v1/webhook":                false,
		"POST /api/v1/webhook/playback-start": false,
		"GET /api/v1/polling/status":          false,
		"POST /api/v1/cleanup/run":            false,
		"GET /api/v1/cleanup/gate":            false,
	}
	for _, route := range server.echo.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		if !found {
			t.Errorf("route %s not registered", key)
		}
	}
}
