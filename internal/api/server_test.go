package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hearth-automation/hearth-core/internal/audit"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/config"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/schedule"
	"github.com/hearth-automation/hearth-core/internal/state"
	"github.com/hearth-automation/hearth-core/internal/suntimes"
	"github.com/hearth-automation/hearth-core/internal/timespec"
	"github.com/hearth-automation/hearth-core/internal/trigger"
)

// staticSun supplies fixed named times so tests don't depend on the
// calendar.
type staticSun struct{}

func (staticSun) Times(time.Time) timespec.NamedTimes {
	return timespec.NamedTimes{
		"sunrise": {Hour: 6, Minute: 45},
		"sunset":  {Hour: 20, Minute: 10},
	}
}

type fakeState struct {
	snap trigger.Snapshot
	err  error
}

func (f *fakeState) AggregateState(context.Context) (trigger.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snap.Clone(), nil
}

func (f *fakeState) DeviceCount() int { return len(f.snap) }

type fakeReloader struct {
	err   error
	calls int
}

func (f *fakeReloader) Reload() error {
	f.calls++
	return f.err
}

type fakeActions struct {
	result *audit.ListResult
	filter audit.Filter
	err    error
}

func (f *fakeActions) Create(context.Context, *audit.Action) error { return nil }

func (f *fakeActions) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeConn struct{ connected bool }

func (f fakeConn) IsConnected() bool { return f.connected }

const testDoc = `
reset: "04:00"
schedules:
  lamp:
    on: "sunset-15"
    off: "23:15"
  porch:
    on: "22:00"
    off: "sunrise"
    doNotOverride: true
`

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func testStore(t *testing.T) *schedule.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "schedules.yaml")
	if err := os.WriteFile(path, []byte(testDoc), 0o600); err != nil {
		t.Fatalf("writing schedules file: %v", err)
	}

	resolver := &timespec.Resolver{Sun: staticSun{}, Now: time.Now}
	store := schedule.NewStore(path, resolver, testLogger())
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return store
}

func testSun(t *testing.T) *suntimes.Source {
	t.Helper()

	src, err := suntimes.New(suntimes.Config{
		Latitude:  51.5,
		Longitude: -0.12,
		Timezone:  "UTC",
	})
	if err != nil {
		t.Fatalf("suntimes.New: %v", err)
	}
	return src
}

// testServer builds a server over fakes and returns it with its router.
func testServer(t *testing.T, mutate func(*Deps)) (*Server, http.Handler) {
	t.Helper()

	deps := Deps{
		Security: config.SecurityConfig{},
		Logger:   testLogger(),
		Store:    testStore(t),
		Scheduler: &fakeReloader{},
		State: &fakeState{snap: trigger.Snapshot{
			"lamp": trigger.Device{"on": trigger.Bool(true), "power": trigger.Number(12.5)},
		}},
		Sun:     testSun(t),
		Actions: &fakeActions{result: &audit.ListResult{Actions: []audit.Action{}, Limit: 50}},
		Version: "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, srv.buildRouter()
}

func doRequest(t *testing.T, router http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	_, router := testServer(t, func(d *Deps) {
		d.MQTT = fakeConn{connected: true}
	})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	components, _ := body["components"].(map[string]any)
	if components["mqtt"] != "connected" {
		t.Errorf("mqtt component = %v, want connected", components["mqtt"])
	}
}

func TestAuthRequired(t *testing.T) {
	_, router := testServer(t, func(d *Deps) {
		d.Security.APIKey = "secret"
	})

	// Health stays open.
	rec := doRequest(t, router, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}

	// Protected route without key.
	rec = doRequest(t, router, http.MethodGet, "/api/v1/schedules", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}

	// Wrong key.
	rec = doRequest(t, router, http.MethodGet, "/api/v1/schedules", map[string]string{"X-API-Key": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", rec.Code)
	}

	// Header key.
	rec = doRequest(t, router, http.MethodGet, "/api/v1/schedules", map[string]string{"X-API-Key": "secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("header key status = %d, want 200", rec.Code)
	}

	// Query param key (WebSocket-style clients).
	rec = doRequest(t, router, http.MethodGet, "/api/v1/schedules?key=secret", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("query key status = %d, want 200", rec.Code)
	}
}

func TestListSchedules(t *testing.T) {
	_, router := testServer(t, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/schedules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["reset"] != "04:00" {
		t.Errorf("reset = %v, want 04:00", body["reset"])
	}
	schedules, _ := body["schedules"].(map[string]any)
	if len(schedules) != 2 {
		t.Errorf("schedules = %d entries, want 2", len(schedules))
	}
	if _, ok := schedules["lamp"]; !ok {
		t.Error("lamp schedule missing from listing")
	}
}

func TestGetSchedule(t *testing.T) {
	_, router := testServer(t, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/schedules/lamp", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/schedules/garage", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown schedule status = %d, want 404", rec.Code)
	}
}

func TestOverrideLifecycle(t *testing.T) {
	srv, router := testServer(t, nil)

	rec := doRequest(t, router, http.MethodPut, "/api/v1/schedules/lamp/override", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("set override status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["overridden"] != true {
		t.Errorf("overridden = %v, want true", body["overridden"])
	}
	if !srv.store.IsOverridden("lamp") {
		t.Error("store does not report lamp overridden")
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/schedules/lamp/override", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove override status = %d, want 200", rec.Code)
	}
	if srv.store.IsOverridden("lamp") {
		t.Error("override not cleared")
	}
}

func TestOverridePinnedSchedule(t *testing.T) {
	_, router := testServer(t, nil)

	rec := doRequest(t, router, http.MethodPut, "/api/v1/schedules/porch/override", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["overridden"] != false {
		t.Errorf("overridden = %v, want false for pinned schedule", body["overridden"])
	}
	if body["pinned"] != true {
		t.Errorf("pinned = %v, want true", body["pinned"])
	}
}

func TestOverrideUnknownSchedule(t *testing.T) {
	_, router := testServer(t, nil)

	rec := doRequest(t, router, http.MethodPut, "/api/v1/schedules/garage/override", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReload(t *testing.T) {
	reloader := &fakeReloader{}
	_, router := testServer(t, func(d *Deps) {
		d.Scheduler = reloader
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/schedules/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if reloader.calls != 1 {
		t.Errorf("reload calls = %d, want 1", reloader.calls)
	}
}

func TestReloadFailure(t *testing.T) {
	_, router := testServer(t, func(d *Deps) {
		d.Scheduler = &fakeReloader{err: errors.New("bad document")}
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/schedules/reload", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestListDevices(t *testing.T) {
	_, router := testServer(t, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/devices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	devices, _ := body["devices"].(map[string]any)
	lamp, _ := devices["lamp"].(map[string]any)
	if lamp == nil {
		t.Fatal("lamp device missing")
	}
	if lamp["on"] != true {
		t.Errorf("lamp on = %v, want true", lamp["on"])
	}
	if lamp["power"] != 12.5 {
		t.Errorf("lamp power = %v, want 12.5", lamp["power"])
	}
}

func TestListDevicesUnavailable(t *testing.T) {
	_, router := testServer(t, func(d *Deps) {
		d.State = &fakeState{err: state.ErrStateUnavailable}
	})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/devices", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestListActions(t *testing.T) {
	actions := &fakeActions{result: &audit.ListResult{
		Actions: []audit.Action{{ID: "act-1", Schedule: "lamp", Actor: "on"}},
		Total:   1,
		Limit:   50,
	}}
	_, router := testServer(t, func(d *Deps) {
		d.Actions = actions
	})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/actions?schedule=lamp&source=schedule&limit=10&offset=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if actions.filter.Schedule != "lamp" {
		t.Errorf("filter schedule = %q, want lamp", actions.filter.Schedule)
	}
	if actions.filter.Source != "schedule" {
		t.Errorf("filter source = %q, want schedule", actions.filter.Source)
	}
	if actions.filter.Limit != 10 || actions.filter.Offset != 5 {
		t.Errorf("filter limit/offset = %d/%d, want 10/5", actions.filter.Limit, actions.filter.Offset)
	}
}

func TestSunTimes(t *testing.T) {
	_, router := testServer(t, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/sun", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	times, _ := body["times"].(map[string]any)
	if times["sunrise"] == nil || times["sunset"] == nil {
		t.Errorf("sun times missing sunrise/sunset: %v", times)
	}
	if _, ok := body["night"].(bool); !ok {
		t.Errorf("night field = %v, want bool", body["night"])
	}
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{Logger: testLogger()})
	if err == nil {
		t.Error("New() without store should fail")
	}

	_, err = New(Deps{})
	if err == nil {
		t.Error("New() without logger should fail")
	}
}
