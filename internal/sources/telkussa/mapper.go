package telkussa

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"telkatv/internal/models"
)

// ErrMalformedRecord marks a raw program that cannot be normalized.
// The caller skips the record and moves on; one bad program never
// fails a batch.
var ErrMalformedRecord = errors.New("malformed program record")

// Normalized is the canonical form of one raw program plus the
// dimension links the store resolves during insert.
type Normalized struct {
	Program  *models.Program
	Genres   []string
	People   []models.Credit
	SeriesID int64 // upstream series key, zero when the program is standalone
}

// Normalize maps one raw program onto the canonical schema. channelID
// and date (YYYYMMDD) come from the fetch that produced the record and
// anchor both the synthesized external ID and bare HH:MM timestamps.
func Normalize(raw RawProgram, channelID int64, date string) (*Normalized, error) {
	title := raw.stringField("title")
	if title == "" {
		return nil, fmt.Errorf("%w: no title", ErrMalformedRecord)
	}

	startRaw, ok := raw.lookup("start")
	if !ok {
		return nil, fmt.Errorf("%w: no start time for %q", ErrMalformedRecord, title)
	}
	start, err := ParseTimestamp(startRaw, date)
	if err != nil {
		return nil, fmt.Errorf("%w: start time for %q: %v", ErrMalformedRecord, title, err)
	}

	// End time is best-effort: a missing or unparseable end collapses
	// to the start instant and a zero duration rather than losing the
	// whole program.
	end := start
	if endRaw, ok := raw.lookup("end"); ok {
		if parsed, err := ParseTimestamp(endRaw, date); err == nil {
			end = parsed
		}
	}

	seriesID := int64(0)
	if n, ok := raw.intField("seriesID"); ok {
		seriesID = int64(n)
	}

	p := &models.Program{
		ExternalID: ExternalID(raw, channelID, date),
		ChannelID:  channelID,
		Title:      title,
		StartTime:  start.Format(models.TimeLayout),
		EndTime:    end.Format(models.TimeLayout),
		Duration:   deriveDuration(start, end),
		IsSeries:   raw.boolField("series") || seriesID > 0,
		IsRerun:    raw.boolField("rerun"),
	}

	if s := raw.stringField("description"); s != "" {
		p.Description = &s
	}
	if s := raw.stringField("category"); s != "" {
		p.Category = &s
	}
	if n, ok := raw.intField("season"); ok {
		p.Season = &n
	}
	// Some API versions send episode as a number, others as an episode
	// name string. A non-numeric value becomes the episode title.
	if n, ok := raw.intField("episode"); ok {
		p.Episode = &n
	} else if s := raw.stringField("episode"); s != "" {
		p.EpisodeTitle = &s
	}
	if s := raw.stringField("episodeTitle"); s != "" {
		p.EpisodeTitle = &s
	}
	if s := raw.stringField("ageRating"); s != "" && s != "0" {
		p.AgeRating = &s
	}
	if s := raw.stringField("image"); s != "" {
		p.ImageURL = &s
	}
	if n, ok := raw.intField("year"); ok && n > 0 {
		p.Year = &n
	}
	if s := raw.stringField("country"); s != "" {
		p.Country = &s
	}

	return &Normalized{
		Program:  p,
		Genres:   extractGenres(raw),
		People:   extractPeople(raw),
		SeriesID: seriesID,
	}, nil
}

// ExternalID derives the stable duplicate-detection key: the upstream
// program ID when present, otherwise a composite of channel, date,
// title and start time with spaces and colons stripped so the same raw
// record always yields the same key.
func ExternalID(raw RawProgram, channelID int64, date string) string {
	if id := raw.stringField("id"); id != "" {
		return id
	}

	title := raw.stringField("title")
	if title == "" {
		title = "unknown"
	}
	start := raw.stringField("start")

	key := fmt.Sprintf("%d_%s_%s_%s", channelID, date, title, start)
	key = strings.ReplaceAll(key, " ", "_")
	return strings.ReplaceAll(key, ":", "")
}

// ParseTimestamp converts an upstream timestamp to an absolute instant.
// All observed formats live here: unix integers, full ISO 8601 with or
// without a zone, and bare HH:MM resolved against the fetch date.
func ParseTimestamp(v any, date string) (time.Time, error) {
	switch ts := v.(type) {
	case float64:
		return time.Unix(int64(ts), 0), nil
	case int:
		return time.Unix(int64(ts), 0), nil
	case int64:
		return time.Unix(ts, 0), nil
	case string:
		s := strings.TrimSpace(ts)
		if s == "" {
			return time.Time{}, errors.New("empty timestamp")
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 9 {
			return time.Unix(n, 0), nil
		}
		for _, layout := range []string{
			time.RFC3339,
			models.TimeLayout,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04",
		} {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return t, nil
			}
		}
		// Bare HH:MM has no date of its own; anchor it to the day the
		// schedule was fetched for.
		if t, err := time.ParseInLocation("20060102 15:04", date+" "+s, time.Local); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// deriveDuration returns whole minutes between start and end. Upstream
// duration fields are never trusted; an inverted or equal pair yields
// zero rather than an error.
func deriveDuration(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start).Minutes())
}

func extractGenres(raw RawProgram) []string {
	genres := raw.stringsField("genres")
	if len(genres) == 0 {
		genres = raw.stringsField("genre")
	}

	seen := make(map[string]bool, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

func extractPeople(raw RawProgram) []models.Credit {
	credits := make([]models.Credit, 0)
	for _, actor := range raw.stringsField("actors") {
		credits = append(credits, models.Credit{Name: actor, Role: models.RoleActor})
	}
	for _, director := range raw.stringsField("director") {
		credits = append(credits, models.Credit{Name: director, Role: models.RoleDirector})
	}
	for _, writer := range raw.stringsField("writer") {
		credits = append(credits, models.Credit{Name: writer, Role: models.RoleWriter})
	}
	return credits
}
