package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"telkatv/internal/config"
	"telkatv/internal/database"
	"telkatv/internal/migrations"
	"telkatv/internal/models"
	"telkatv/internal/repositories"
)

var testDBCounter int

func newTestServer(t *testing.T) (*Server, *bun.DB) {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:servertest%d?mode=memory&cache=shared", testDBCounter)
	db, err := database.NewDB(dsn, false)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrations.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := &config.Config{ServerPort: "0"}
	return New(db, cfg, nil, nil), db
}

func seed(t *testing.T, db *bun.DB) {
	t.Helper()
	ctx := context.Background()

	err := repositories.UpsertChannel(ctx, db, &models.Channel{
		ID: 1, Name: "YLE TV1", Active: true,
		LastUpdated: time.Now().Format(models.TimeLayout),
	})
	if err != nil {
		t.Fatalf("seed channel: %v", err)
	}

	today := time.Now().Format("2006-01-02")
	programs := []struct {
		ext, title, start, end string
		genres                 []string
	}{
		{"e1", "Uutiset", today + "T18:00:00", today + "T18:30:00", []string{"News"}},
		{"e2", "Iltaelokuva", today + "T21:00:00", today + "T22:30:00", []string{"Movies"}},
	}
	for _, p := range programs {
		prog := &models.Program{
			ExternalID: p.ext, ChannelID: 1, Title: p.title,
			StartTime: p.start, EndTime: p.end, Duration: 30,
		}
		if _, err := repositories.InsertProgram(ctx, db, prog, p.genres, nil); err != nil {
			t.Fatalf("seed program %s: %v", p.ext, err)
		}
	}
}

func get(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := get(t, srv, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestByDate(t *testing.T) {
	srv, db := newTestServer(t)
	seed(t, db)

	today := time.Now().Format("2006-01-02")
	rec, body := get(t, srv, "/api/tv/date/"+today)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rec.Code, body)
	}
	if body["total"] != float64(2) {
		t.Fatalf("expected 2 programs, got %v", body["total"])
	}

	rec, _ = get(t, srv, "/api/tv/date/not-a-date")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestByDateChannelFilter(t *testing.T) {
	srv, db := newTestServer(t)
	seed(t, db)

	today := time.Now().Format("2006-01-02")
	rec, body := get(t, srv, "/api/tv/date/"+today+"?channel=99")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["total"] != float64(0) {
		t.Fatalf("expected no programs for unknown channel, got %v", body["total"])
	}

	rec, _ = get(t, srv, "/api/tv/date/"+today+"?channel=abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad channel, got %d", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	srv, db := newTestServer(t)
	seed(t, db)

	rec, body := get(t, srv, "/api/tv/search?q=uutiset")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["total"] != float64(1) {
		t.Fatalf("expected 1 hit, got %v", body["total"])
	}

	rec, _ = get(t, srv, "/api/tv/search")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without q, got %d", rec.Code)
	}
}

func TestByGenre(t *testing.T) {
	srv, db := newTestServer(t)
	seed(t, db)

	rec, body := get(t, srv, "/api/tv/genre/Movies")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["total"] != float64(1) {
		t.Fatalf("expected 1 movie, got %v", body["total"])
	}

	rec, body = get(t, srv, "/api/tv/genre/Unknown")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown genre, got %d", rec.Code)
	}
	if body["total"] != float64(0) {
		t.Fatalf("expected empty list for unknown genre, got %v", body["total"])
	}
}

func TestStats(t *testing.T) {
	srv, db := newTestServer(t)
	seed(t, db)

	rec, body := get(t, srv, "/api/tv/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["total_programs"] != float64(2) {
		t.Fatalf("unexpected stats: %v", body)
	}
	if body["total_channels"] != float64(1) {
		t.Fatalf("unexpected channel count: %v", body["total_channels"])
	}
}

func TestChannels(t *testing.T) {
	srv, db := newTestServer(t)
	seed(t, db)

	rec, body := get(t, srv, "/api/channels")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["total"] != float64(1) {
		t.Fatalf("expected 1 channel, got %v", body["total"])
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	rec := httptest.NewRecorder()
	withCORS(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := get(t, srv, "/api/tv/date/bogus")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("expected status in envelope, got %v", body)
	}
	if body["error"] != http.StatusText(http.StatusBadRequest) {
		t.Fatalf("unexpected error field: %v", body["error"])
	}
	if body["detail"] == "" {
		t.Fatalf("expected detail in envelope")
	}
}
