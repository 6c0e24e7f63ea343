package catalog

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"fbaudio/internal/domain"
)

// The embedded payloads are not contractually stable, so parsing works on a
// generic JSON tree with tolerant field accessors. One bad element must never
// abort the batch it arrived in.

func parseTalk(value any) (domain.Talk, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return domain.Talk{}, fmt.Errorf("talk element is not an object")
	}

	id := stringField(obj, "id")
	if id == "" {
		return domain.Talk{}, fmt.Errorf("talk element missing id")
	}

	talk := domain.Talk{
		ID:       id,
		Title:    decodeText(stringField(obj, "title")),
		Speaker:  decodeText(stringField(obj, "speaker")),
		Year:     decodeText(stringField(obj, "year")),
		Blurb:    decodeText(stringField(obj, "blurb")),
		ImageURL: stringField(obj, "image"),
	}

	rawTracks, _ := obj["tracks"].([]any)
	for _, rawTrack := range rawTracks {
		track, err := parseTrack(rawTrack)
		if err != nil {
			logSkip("track", talk.ID, err)
			continue
		}
		talk.Tracks = append(talk.Tracks, track)
	}
	return talk, nil
}

func parseTrack(value any) (domain.Track, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return domain.Track{}, fmt.Errorf("track element is not an object")
	}

	number := intField(obj, "number")
	if number < 1 {
		return domain.Track{}, fmt.Errorf("track element missing number")
	}
	path := stringField(obj, "path")
	if path == "" {
		return domain.Track{}, fmt.Errorf("track %d missing path", number)
	}

	return domain.Track{
		Title:           decodeText(stringField(obj, "title")),
		Number:          number,
		Path:            path,
		Duration:        stringField(obj, "time"),
		DurationSeconds: intField(obj, "seconds"),
		TrackID:         stringField(obj, "trackId"),
	}, nil
}

// decodeText reverses the HTML entity escaping applied to every text field in
// the server-rendered document.
func decodeText(value string) string {
	return strings.TrimSpace(html.UnescapeString(value))
}

// stringField reads a string-valued field, accepting numeric values since the
// payload is inconsistent about quoting identifiers.
func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// intField reads an integer-valued field, accepting quoted numbers.
func intField(obj map[string]any, key string) int {
	switch v := obj[key].(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
