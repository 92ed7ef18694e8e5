package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"telkatv/internal/database"
	"telkatv/internal/migrations"
	"telkatv/internal/models"
)

var testDBCounter int

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", testDBCounter)
	db, err := database.NewDB(dsn, false)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrations.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedChannel(t *testing.T, db *bun.DB, id int64, name string) {
	t.Helper()
	err := UpsertChannel(context.Background(), db, &models.Channel{
		ID:          id,
		Name:        name,
		Active:      true,
		LastUpdated: time.Now().Format(models.TimeLayout),
	})
	if err != nil {
		t.Fatalf("seed channel: %v", err)
	}
}

func testProgram(externalID string, channelID int64, title, start, end string) *models.Program {
	return &models.Program{
		ExternalID: externalID,
		ChannelID:  channelID,
		Title:      title,
		StartTime:  start,
		EndTime:    end,
		Duration:   60,
	}
}

func TestUpsertChannelIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedChannel(t, db, 1, "YLE TV1")
	seedChannel(t, db, 1, "YLE TV1 HD")

	channels, err := GetChannels(ctx, db, true)
	if err != nil {
		t.Fatalf("GetChannels error: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected 1 channel after re-upsert, got %d", len(channels))
	}
	if channels[0].Name != "YLE TV1 HD" {
		t.Fatalf("expected updated name, got %s", channels[0].Name)
	}
}

func TestDeactivateChannel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedChannel(t, db, 1, "YLE TV1")
	seedChannel(t, db, 2, "YLE TV2")

	if err := DeactivateChannel(ctx, db, 2); err != nil {
		t.Fatalf("DeactivateChannel error: %v", err)
	}

	active, err := GetChannels(ctx, db, true)
	if err != nil {
		t.Fatalf("GetChannels error: %v", err)
	}
	if len(active) != 1 || active[0].ID != 1 {
		t.Fatalf("expected only channel 1 active, got %+v", active)
	}

	all, err := GetChannels(ctx, db, false)
	if err != nil {
		t.Fatalf("GetChannels error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 channels total, got %d", len(all))
	}
}

func TestInsertProgramIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChannel(t, db, 1, "YLE TV1")

	p := testProgram("ext1", 1, "Uutiset", "2025-03-10T18:00:00", "2025-03-10T19:00:00")
	genres := []string{"News"}
	people := []models.Credit{{Name: "Matti Meikäläinen", Role: models.RoleActor}}

	stored, err := InsertProgram(ctx, db, p, genres, people)
	if err != nil {
		t.Fatalf("first insert error: %v", err)
	}
	if !stored {
		t.Fatalf("expected first insert to store")
	}

	dup := testProgram("ext1", 1, "Uutiset", "2025-03-10T18:00:00", "2025-03-10T19:00:00")
	stored, err = InsertProgram(ctx, db, dup, genres, people)
	if err != nil {
		t.Fatalf("second insert error: %v", err)
	}
	if stored {
		t.Fatalf("expected duplicate insert to be a no-op")
	}

	count, err := db.NewSelect().Model((*models.Program)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("count error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 program row, got %d", count)
	}
}

func TestInsertProgramValidates(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, 1, "YLE TV1")

	bad := testProgram("", 1, "Uutiset", "2025-03-10T18:00:00", "2025-03-10T19:00:00")
	if _, err := InsertProgram(context.Background(), db, bad, nil, nil); err == nil {
		t.Fatalf("expected validation error for empty external id")
	}
}

func TestGenreAndPersonDedup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChannel(t, db, 1, "YLE TV1")

	p1 := testProgram("ext1", 1, "Elokuva A", "2025-03-10T20:00:00", "2025-03-10T22:00:00")
	p2 := testProgram("ext2", 1, "Elokuva B", "2025-03-11T20:00:00", "2025-03-11T22:00:00")
	genres := []string{"Movies"}
	people := []models.Credit{{Name: "Maija Mallikas", Role: models.RoleDirector}}

	if _, err := InsertProgram(ctx, db, p1, genres, people); err != nil {
		t.Fatalf("insert p1: %v", err)
	}
	if _, err := InsertProgram(ctx, db, p2, genres, people); err != nil {
		t.Fatalf("insert p2: %v", err)
	}

	genreCount, err := db.NewSelect().Model((*models.Genre)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("genre count: %v", err)
	}
	if genreCount != 1 {
		t.Fatalf("expected 1 genre row, got %d", genreCount)
	}

	personCount, err := db.NewSelect().Model((*models.Person)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("person count: %v", err)
	}
	if personCount != 1 {
		t.Fatalf("expected 1 person row, got %d", personCount)
	}

	linkCount, err := db.NewSelect().Model((*models.ProgramGenre)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("link count: %v", err)
	}
	if linkCount != 2 {
		t.Fatalf("expected 2 genre links, got %d", linkCount)
	}
}

func TestProgramsByDate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChannel(t, db, 1, "YLE TV1")
	seedChannel(t, db, 2, "YLE TV2")

	inserts := []*models.Program{
		testProgram("e1", 1, "Aamuohjelma", "2025-03-10T08:00:00", "2025-03-10T09:00:00"),
		testProgram("e2", 2, "Iltaohjelma", "2025-03-10T20:00:00", "2025-03-10T21:00:00"),
		testProgram("e3", 1, "Toinen päivä", "2025-03-11T08:00:00", "2025-03-11T09:00:00"),
	}
	for _, p := range inserts {
		if _, err := InsertProgram(ctx, db, p, []string{"Misc"}, nil); err != nil {
			t.Fatalf("insert %s: %v", p.ExternalID, err)
		}
	}

	programs, err := ProgramsByDate(ctx, db, "2025-03-10", nil)
	if err != nil {
		t.Fatalf("ProgramsByDate error: %v", err)
	}
	if len(programs) != 2 {
		t.Fatalf("expected 2 programs on 2025-03-10, got %d", len(programs))
	}
	if programs[0].ChannelName == "" {
		t.Fatalf("expected channel name to be joined in")
	}
	if len(programs[0].Genres) != 1 {
		t.Fatalf("expected genre relation loaded, got %+v", programs[0].Genres)
	}

	ch := int64(1)
	programs, err = ProgramsByDate(ctx, db, "2025-03-10", &ch)
	if err != nil {
		t.Fatalf("ProgramsByDate filtered error: %v", err)
	}
	if len(programs) != 1 || programs[0].ExternalID != "e1" {
		t.Fatalf("expected only channel 1 program, got %+v", programs)
	}
}

func TestProgramsNow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChannel(t, db, 1, "YLE TV1")

	inserts := []*models.Program{
		testProgram("e1", 1, "Käynnissä", "2025-03-10T18:00:00", "2025-03-10T19:00:00"),
		testProgram("e2", 1, "Myöhemmin", "2025-03-10T21:00:00", "2025-03-10T22:00:00"),
	}
	for _, p := range inserts {
		if _, err := InsertProgram(ctx, db, p, nil, nil); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	now := time.Date(2025, 3, 10, 18, 30, 0, 0, time.Local)
	programs, err := ProgramsNow(ctx, db, now)
	if err != nil {
		t.Fatalf("ProgramsNow error: %v", err)
	}
	if len(programs) != 1 || programs[0].Title != "Käynnissä" {
		t.Fatalf("expected the airing program, got %+v", programs)
	}
}

func TestSearchPrograms(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChannel(t, db, 1, "YLE TV1")

	inserts := []*models.Program{
		testProgram("e1", 1, "Urheiluruutu", "2025-03-10T18:00:00", "2025-03-10T18:15:00"),
		testProgram("e2", 1, "Uutiset", "2025-03-10T19:00:00", "2025-03-10T19:30:00"),
	}
	for _, p := range inserts {
		if _, err := InsertProgram(ctx, db, p, nil, nil); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	programs, err := SearchPrograms(ctx, db, "URHEILU", 0)
	if err != nil {
		t.Fatalf("SearchPrograms error: %v", err)
	}
	if len(programs) != 1 || programs[0].Title != "Urheiluruutu" {
		t.Fatalf("expected case-insensitive match, got %+v", programs)
	}
}

func TestProgramsByGenre(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChannel(t, db, 1, "YLE TV1")

	p1 := testProgram("e1", 1, "Dokumentti", "2025-03-10T18:00:00", "2025-03-10T19:00:00")
	p2 := testProgram("e2", 1, "Elokuva", "2025-03-10T21:00:00", "2025-03-10T23:00:00")
	if _, err := InsertProgram(ctx, db, p1, []string{"Documentary"}, nil); err != nil {
		t.Fatalf("insert p1: %v", err)
	}
	if _, err := InsertProgram(ctx, db, p2, []string{"Movies"}, nil); err != nil {
		t.Fatalf("insert p2: %v", err)
	}

	programs, err := ProgramsByGenre(ctx, db, "Documentary", 0)
	if err != nil {
		t.Fatalf("ProgramsByGenre error: %v", err)
	}
	if len(programs) != 1 || programs[0].Title != "Dokumentti" {
		t.Fatalf("expected only the documentary, got %+v", programs)
	}
}

func TestFetchLog(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChannel(t, db, 1, "YLE TV1")

	if last, err := LastFetch(ctx, db); err != nil || last != nil {
		t.Fatalf("expected no last fetch on empty log, got %v, %v", last, err)
	}

	errMsg := "Fetch failed"
	entries := []*models.FetchLog{
		{ChannelID: 1, Date: "20250310", Success: false, ErrorMessage: &errMsg, FetchedAt: "2025-03-10T06:00:00"},
		{ChannelID: 1, Date: "20250310", Success: true, ProgramsCount: 12, DurationMs: 150, FetchedAt: "2025-03-10T07:00:00"},
	}
	for _, e := range entries {
		if err := LogFetch(ctx, db, e); err != nil {
			t.Fatalf("LogFetch error: %v", err)
		}
	}

	last, err := LastFetch(ctx, db)
	if err != nil {
		t.Fatalf("LastFetch error: %v", err)
	}
	if last == nil || !last.Success || last.ProgramsCount != 12 {
		t.Fatalf("unexpected last fetch: %+v", last)
	}

	history, err := FetchHistory(ctx, db, 1, "20250310")
	if err != nil {
		t.Fatalf("FetchHistory error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 log rows, got %d", len(history))
	}
}

func TestCleanupOldPrograms(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChannel(t, db, 1, "YLE TV1")

	old := testProgram("e1", 1, "Vanha", "2025-01-01T18:00:00", "2025-01-01T19:00:00")
	fresh := testProgram("e2", 1, "Tuore", "2025-03-01T18:00:00", "2025-03-01T19:00:00")
	if _, err := InsertProgram(ctx, db, old, []string{"Misc"}, nil); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	if _, err := InsertProgram(ctx, db, fresh, []string{"Misc"}, nil); err != nil {
		t.Fatalf("insert fresh: %v", err)
	}

	cutoff := time.Date(2025, 3, 15, 0, 0, 0, 0, time.Local).AddDate(0, 0, -30)
	deleted, err := CleanupOldPrograms(ctx, db, cutoff)
	if err != nil {
		t.Fatalf("CleanupOldPrograms error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 purged program, got %d", deleted)
	}

	var remaining []*models.Program
	if err := db.NewSelect().Model(&remaining).Scan(ctx); err != nil {
		t.Fatalf("select remaining: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ExternalID != "e2" {
		t.Fatalf("expected only the fresh program, got %+v", remaining)
	}

	// Join rows for the purged program must cascade away.
	links, err := db.NewSelect().Model((*models.ProgramGenre)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("link count: %v", err)
	}
	if links != 1 {
		t.Fatalf("expected 1 remaining genre link, got %d", links)
	}
}

func TestGetStatistics(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChannel(t, db, 1, "YLE TV1")
	seedChannel(t, db, 2, "YLE TV2")

	inserts := []*models.Program{
		testProgram("e1", 1, "A", "2025-03-10T18:00:00", "2025-03-10T19:00:00"),
		testProgram("e2", 1, "B", "2025-03-11T18:00:00", "2025-03-11T19:00:00"),
		testProgram("e3", 2, "C", "2025-03-12T18:00:00", "2025-03-12T19:00:00"),
	}
	for _, p := range inserts {
		if _, err := InsertProgram(ctx, db, p, []string{"News"}, nil); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := LogFetch(ctx, db, &models.FetchLog{
		ChannelID: 1, Date: "20250310", Success: true, ProgramsCount: 3,
		FetchedAt: "2025-03-10T06:00:00",
	}); err != nil {
		t.Fatalf("LogFetch: %v", err)
	}

	stats, err := GetStatistics(ctx, db)
	if err != nil {
		t.Fatalf("GetStatistics error: %v", err)
	}
	if stats.TotalPrograms != 3 {
		t.Fatalf("expected 3 programs, got %d", stats.TotalPrograms)
	}
	if stats.TotalChannels != 2 {
		t.Fatalf("expected 2 channels, got %d", stats.TotalChannels)
	}
	if stats.DateRange.Earliest != "2025-03-10" || stats.DateRange.Latest != "2025-03-12" {
		t.Fatalf("unexpected date range: %+v", stats.DateRange)
	}
	if len(stats.TopGenres) != 1 || stats.TopGenres[0].Count != 3 {
		t.Fatalf("unexpected top genres: %+v", stats.TopGenres)
	}
	if stats.LastFetch == nil || !stats.LastFetch.Success {
		t.Fatalf("expected last fetch in stats, got %+v", stats.LastFetch)
	}
}
