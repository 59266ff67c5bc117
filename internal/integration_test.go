package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazz-dev/readycheck/internal/apiclient"
	"github.com/hazz-dev/readycheck/internal/readiness"
	"github.com/hazz-dev/readycheck/internal/server"
	"github.com/hazz-dev/readycheck/internal/storage"
)

// newStack wires stub backend → API client → readiness page → storage →
// page server, the same way `readycheck serve` does.
func newStack(t *testing.T, backendURL string) (*httptest.Server, *storage.DB) {
	t.Helper()

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := apiclient.New(backendURL)
	check := func(ctx context.Context) (apiclient.BackendHealth, error) {
		return apiclient.CheckBackendHealth(ctx, client)
	}
	factory := func() *readiness.Page {
		return readiness.New(backendURL, check,
			readiness.WithSetup(func() { apiclient.SetupInterceptors(client) }),
			readiness.WithOnSettled(func(r readiness.Result) {
				if err := db.InsertCheck(context.Background(), r); err != nil {
					t.Errorf("recording check: %v", err)
				}
			}),
		)
	}

	page := httptest.NewServer(server.New(factory, db, nil).Router())
	t.Cleanup(page.Close)
	return page, db
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, string(body)
}

// TestIntegration_FullFlow verifies the complete pipeline:
// page request → interceptors → backend health → page state → render → storage → API
func TestIntegration_FullFlow(t *testing.T) {
	backend := httptest.NewServer(server.NewHealthAPI("core-api", nil, nil).Router())
	defer backend.Close()

	page, db := newStack(t, backend.URL)

	// 1. The plain page renders in the checking state without a check
	code, body := getBody(t, page.URL+"/")
	if code != http.StatusOK || !strings.Contains(body, "Checking backend connection...") {
		t.Fatalf("expected checking page, got %d:\n%s", code, body)
	}

	// 2. Render the settled page
	code, body = getBody(t, page.URL+"/?wait=1")
	if code != http.StatusOK {
		t.Fatalf("expected 200 from /, got %d", code)
	}
	if !strings.Contains(body, backend.URL) {
		t.Errorf("expected page to show backend url %q", backend.URL)
	}
	if !strings.Contains(body, "Connected") || !strings.Contains(body, "core-api") {
		t.Errorf("expected connected page, got:\n%s", body)
	}

	// 3. The settled check is recorded
	latest, err := db.LatestCheck(context.Background())
	if err != nil {
		t.Fatalf("LatestCheck: %v", err)
	}
	if latest == nil || latest.State != "connected" || latest.Service != "core-api" {
		t.Fatalf("expected a recorded connected check, got %+v", latest)
	}

	// 4. JSON status runs its own cycle
	code, body = getBody(t, page.URL+"/api/status")
	if code != http.StatusOK {
		t.Fatalf("expected 200 from /api/status, got %d", code)
	}
	var status struct {
		Data struct {
			State   string `json:"state"`
			Service string `json:"service"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.Data.State != "connected" || status.Data.Service != "core-api" {
		t.Errorf("unexpected status: %+v", status.Data)
	}

	// 5. History shows both cycles
	code, body = getBody(t, page.URL+"/api/history")
	if code != http.StatusOK {
		t.Fatalf("expected 200 from /api/history, got %d", code)
	}
	var history struct {
		Data struct {
			Checks           []storage.Check `json:"checks"`
			Total            int             `json:"total"`
			ConnectedPercent float64         `json:"connected_percent"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &history); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if history.Data.Total != 2 {
		t.Errorf("expected 2 recorded checks, got %d", history.Data.Total)
	}
	if history.Data.ConnectedPercent != 100.0 {
		t.Errorf("expected 100%% connected, got %.2f", history.Data.ConnectedPercent)
	}
}

func TestIntegration_BackendDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	backendURL := backend.URL
	backend.Close()

	page, db := newStack(t, backendURL)

	code, body := getBody(t, page.URL+"/?wait=1")
	if code != http.StatusOK {
		t.Fatalf("expected 200 from /, got %d", code)
	}
	if !strings.Contains(body, "Connection failed") || !strings.Contains(body, "Error: ") {
		t.Errorf("expected failed page, got:\n%s", body)
	}

	latest, err := db.LatestCheck(context.Background())
	if err != nil {
		t.Fatalf("LatestCheck: %v", err)
	}
	if latest == nil || latest.State != "failed" {
		t.Fatalf("expected a recorded failed check, got %+v", latest)
	}
	if latest.HTTPStatus != nil {
		t.Errorf("expected null http status for a network error, got %d", *latest.HTTPStatus)
	}
}

func TestIntegration_ServerDetail(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"db unavailable"}`))
	}))
	defer backend.Close()

	page, db := newStack(t, backend.URL)

	_, body := getBody(t, page.URL+"/?wait=1")
	if !strings.Contains(body, "Error: db unavailable") {
		t.Errorf("expected server detail on page, got:\n%s", body)
	}

	latest, err := db.LatestCheck(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.HTTPStatus == nil || *latest.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected recorded 503, got %+v", latest)
	}
}
