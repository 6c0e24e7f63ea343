package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fbaudio/internal/remote"
)

const searchDocTemplate = `<html><head></head><body>
<script>
document.__FBA__.search = %s;
document.__FBA__.refinements = {"speakers":["x; y"]};
</script>
</body></html>`

const detailDocTemplate = `<html><body>
<script>
document.__FBA__.talk = %s;
</script>
</body></html>`

func newSearchServer(t *testing.T, payload string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, searchDocTemplate, payload)
	}))
	t.Cleanup(server.Close)
	return NewClient(server.Client(), server.URL)
}

func TestSearchParsesEmbeddedPayload(t *testing.T) {
	payload := `{
		"total": 42,
		"results": [
			{
				"id": "36",
				"title": "On Meditation",
				"speaker": "Sangharakshita",
				"year": "1978",
				"blurb": "Calm &amp; insight &mdash; a beginner&#39;s guide",
				"image": "https://example.com/36.jpg",
				"tracks": [
					{"number": 1, "title": "Introduction", "path": "https://example.com/36-1.mp3", "time": "12:30"},
					{"number": 2, "title": "Going Deeper", "path": "https://example.com/36-2.mp3", "time": "45:10"},
					{"number": 3, "title": "Questions", "path": "https://example.com/36-3.mp3", "time": "8:01"}
				]
			}
		]
	}`
	client := newSearchServer(t, payload)

	response, err := client.Search(context.Background(), "meditation")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if response.Total != 42 {
		t.Errorf("total = %d, want 42", response.Total)
	}
	if len(response.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(response.Results))
	}

	talk := response.Results[0]
	if talk.ID != "36" {
		t.Errorf("id = %q, want 36", talk.ID)
	}
	if talk.Title != "On Meditation" {
		t.Errorf("title = %q", talk.Title)
	}
	if want := "Calm & insight — a beginner's guide"; talk.Blurb != want {
		t.Errorf("blurb = %q, want %q (entities must be decoded)", talk.Blurb, want)
	}
	if len(talk.Tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(talk.Tracks))
	}
	if talk.Tracks[0].Number != 1 || talk.Tracks[2].Number != 3 {
		t.Errorf("track numbers = %d..%d, want 1..3", talk.Tracks[0].Number, talk.Tracks[2].Number)
	}
	if talk.Tracks[1].Duration != "45:10" {
		t.Errorf("track 2 duration = %q", talk.Tracks[1].Duration)
	}
}

func TestSearchSkipsUnparsableElements(t *testing.T) {
	// Two parseable talks with three broken elements interleaved; the bad
	// ones are dropped, order of the good ones is preserved.
	payload := `{
		"total": 5,
		"results": [
			"not an object",
			{"id": "10", "title": "First", "tracks": [{"number": 1, "path": "u1"}]},
			{"title": "missing id"},
			{"id": "20", "title": "Second", "tracks": [
				{"number": 0, "path": "bad number"},
				{"title": "missing path", "number": 2},
				{"number": 1, "path": "u2"}
			]},
			42
		]
	}`
	client := newSearchServer(t, payload)

	response, err := client.Search(context.Background(), "resilience")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(response.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(response.Results))
	}
	if response.Results[0].ID != "10" || response.Results[1].ID != "20" {
		t.Errorf("result order = %s, %s; want 10, 20", response.Results[0].ID, response.Results[1].ID)
	}
	if len(response.Results[1].Tracks) != 1 {
		t.Fatalf("expected 1 surviving track, got %d", len(response.Results[1].Tracks))
	}
	if response.Results[1].Tracks[0].Number != 1 {
		t.Errorf("surviving track number = %d, want 1", response.Results[1].Tracks[0].Number)
	}
}

func TestSearchMissingMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing embedded here</body></html>")
	}))
	defer server.Close()
	client := NewClient(server.Client(), server.URL)

	_, err := client.Search(context.Background(), "anything")
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestSearchMissingEndMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><script>document.__FBA__.search = {"total":1};</script></html>`)
	}))
	defer server.Close()
	client := NewClient(server.Client(), server.URL)

	_, err := client.Search(context.Background(), "anything")
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError for missing end marker, got %v", err)
	}
}

func TestSearchUnparsableJSON(t *testing.T) {
	client := newSearchServer(t, `{"total": `)

	_, err := client.Search(context.Background(), "anything")
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError for bad JSON, got %v", err)
	}
}

func TestTalkDetailsParsesEnrichedTracks(t *testing.T) {
	payload := `{
		"id": "36",
		"title": "On Meditation",
		"speaker": "Sangharakshita",
		"tracks": [
			{"number": 1, "title": "Introduction; part one", "path": "https://example.com/36-1.mp3",
			 "time": "12:30", "seconds": 750, "trackId": "T36-1"}
		]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("num"); got != "36" {
			t.Errorf("num = %q, want 36", got)
		}
		fmt.Fprintf(w, detailDocTemplate, payload)
	}))
	defer server.Close()
	client := NewClient(server.Client(), server.URL)

	talk, ok, err := client.TalkDetails(context.Background(), "36")
	if err != nil {
		t.Fatalf("TalkDetails: %v", err)
	}
	if !ok {
		t.Fatal("expected talk to parse")
	}
	track := talk.Tracks[0]
	if track.TrackID != "T36-1" {
		t.Errorf("trackId = %q, want T36-1", track.TrackID)
	}
	if track.DurationSeconds != 750 {
		t.Errorf("durationSeconds = %d, want 750", track.DurationSeconds)
	}
	// The payload contains a semicolon inside a string; scanning from the
	// end of the page must not truncate it.
	if track.Title != "Introduction; part one" {
		t.Errorf("title = %q", track.Title)
	}
}

func TestTalkDetailsUnparsableReportsAbsence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><script>document.__FBA__.talk = {broken;</script></html>`)
	}))
	defer server.Close()
	client := NewClient(server.Client(), server.URL)

	_, ok, err := client.TalkDetails(context.Background(), "36")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected absence for unparsable detail payload")
	}
}

func TestTalkDetailsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()
	client := NewClient(server.Client(), server.URL)

	_, _, err := client.TalkDetails(context.Background(), "36")
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSearchHTTPErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()
	client := NewClient(server.Client(), server.URL)

	_, err := client.Search(context.Background(), "anything")
	var status *remote.HTTPStatusError
	if !errors.As(err, &status) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if status.Code != http.StatusInternalServerError {
		t.Errorf("code = %d, want 500", status.Code)
	}
	if got := remote.Classify(err); got != remote.CategoryServer {
		t.Errorf("Classify = %v, want server", got)
	}
}

func TestTalkDetailsIgnoresSemicolonsAfterScriptBlock(t *testing.T) {
	// Markup after the script block carries its own semicolons (a later
	// script, an entity in the footer); they must not widen the fragment.
	doc := `<html><body>
<script>
document.__FBA__.talk = {"id": "36", "title": "On Meditation"};
</script>
<script>window.analytics = true;</script>
<footer>Tea &amp; talks; since 1967</footer>
</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, doc)
	}))
	defer server.Close()
	client := NewClient(server.Client(), server.URL)

	talk, ok, err := client.TalkDetails(context.Background(), "36")
	if err != nil {
		t.Fatalf("TalkDetails: %v", err)
	}
	if !ok {
		t.Fatal("expected talk to parse despite trailing markup")
	}
	if talk.Title != "On Meditation" {
		t.Errorf("title = %q", talk.Title)
	}
}
