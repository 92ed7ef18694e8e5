package telkussa

import (
	"strconv"
	"strings"
)

// RawProgram is one program object as returned by the schedule API.
// Field names vary across upstream versions (some expose title, others
// name; start may be a unix integer or an ISO string), so records stay
// untyped until the normalizer resolves them.
type RawProgram map[string]any

// fieldAliases maps each canonical field to the upstream names observed
// across API versions, in lookup order. First present key wins.
var fieldAliases = map[string][]string{
	"id":           {"id"},
	"title":        {"title", "name"},
	"description":  {"description", "desc"},
	"start":        {"startTime", "start"},
	"end":          {"endTime", "end", "stop"},
	"duration":     {"duration", "length"},
	"category":     {"category", "type"},
	"series":       {"series", "isSeries"},
	"seriesID":     {"series_id", "seriesId"},
	"season":       {"season"},
	"episode":      {"episode"},
	"episodeTitle": {"episodeTitle", "episodeName"},
	"ageRating":    {"ageRating", "rating", "agelimit"},
	"image":        {"image", "imageUrl"},
	"year":         {"year"},
	"country":      {"country"},
	"rerun":        {"rerun", "isRerun"},
	"genres":       {"genres"},
	"genre":        {"genre"},
	"actors":       {"actors"},
	"director":     {"director"},
	"writer":       {"writer", "writers"},
}

// lookup returns the first present alias value for a canonical field.
func (r RawProgram) lookup(field string) (any, bool) {
	for _, key := range fieldAliases[field] {
		if v, ok := r[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// stringField resolves a canonical field to a trimmed string. Numeric
// values are formatted, so an upstream that sends agelimit as a number
// still yields a usable rating string.
func (r RawProgram) stringField(field string) string {
	v, ok := r.lookup(field)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// intField resolves a canonical field to an int. JSON numbers arrive as
// float64; numeric strings are tolerated as well.
func (r RawProgram) intField(field string) (int, bool) {
	v, ok := r.lookup(field)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// boolField resolves a canonical field to a bool. Non-zero numbers and
// "true"/"1" strings count as true.
func (r RawProgram) boolField(field string) bool {
	v, ok := r.lookup(field)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		return b == "true" || b == "1"
	default:
		return false
	}
}

// stringsField resolves a canonical field holding a list of strings.
func (r RawProgram) stringsField(field string) []string {
	v, ok := r.lookup(field)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(list) == "" {
			return nil
		}
		return []string{strings.TrimSpace(list)}
	default:
		return nil
	}
}

// ChannelInfo is one entry from the upstream channel directory.
type ChannelInfo struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Logo      string `json:"logo"`
	Category  string `json:"category"`
	ShowOrder int    `json:"showOrder"`
}
