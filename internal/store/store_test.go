package store_test

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"fbaudio/internal/domain"
	"fbaudio/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s
}

func sampleTalk(id string) domain.Talk {
	return domain.Talk{
		ID:      id,
		Title:   "Talk " + id,
		Speaker: "A Speaker",
		Year:    "1997",
		Blurb:   "About something",
		Tracks: []domain.Track{
			{Title: "One", Number: 1, Path: "https://example.com/" + id + "-1.mp3", Duration: "10:00"},
			{Title: "Two", Number: 2, Path: "https://example.com/" + id + "-2.mp3", Duration: "20:00"},
		},
	}
}

func writeTrackFile(t *testing.T, s *store.Store, id string, number int) {
	t.Helper()
	dir := s.TalkDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.mp3", number))
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}
}

func TestTalkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	original := sampleTalk("36")
	original.IsFavorite = true // must not be trusted by the read path

	if err := s.SaveTalk(original); err != nil {
		t.Fatalf("SaveTalk: %v", err)
	}

	loaded, ok := s.LoadTalk("36")
	if !ok {
		t.Fatal("LoadTalk: talk missing")
	}
	if loaded.IsFavorite {
		t.Error("IsFavorite must be recomputed from the favorites set, not read from the document")
	}

	original.IsFavorite = false
	if !reflect.DeepEqual(original, loaded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, original)
	}
}

func TestLoadTalkMissingAndCorrupt(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.LoadTalk("nope"); ok {
		t.Error("expected miss for absent talk")
	}

	// A corrupt document reads as absence, never as an error.
	if err := s.SaveTalk(sampleTalk("7")); err != nil {
		t.Fatalf("SaveTalk: %v", err)
	}
	root := filepath.Dir(s.AudioRoot())
	path := filepath.Join(root, "talks", "7.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt document: %v", err)
	}
	if _, ok := s.LoadTalk("7"); ok {
		t.Error("expected miss for corrupt talk document")
	}
}

func TestIsDownloadedLifecycle(t *testing.T) {
	s := newTestStore(t)
	talk := sampleTalk("36")

	if s.IsDownloaded("36") {
		t.Error("IsDownloaded before any download")
	}

	// Metadata alone is not enough.
	if err := s.SaveTalk(talk); err != nil {
		t.Fatalf("SaveTalk: %v", err)
	}
	if s.IsDownloaded("36") {
		t.Error("IsDownloaded with orphaned metadata only")
	}

	// An empty directory is not enough either.
	if err := os.MkdirAll(s.TalkDir("36"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if s.IsDownloaded("36") {
		t.Error("IsDownloaded with empty audio directory")
	}

	writeTrackFile(t, s, "36", 1)
	if !s.IsDownloaded("36") {
		t.Error("IsDownloaded after metadata + file present")
	}

	if err := s.DeleteTalk("36"); err != nil {
		t.Fatalf("DeleteTalk: %v", err)
	}
	if s.IsDownloaded("36") {
		t.Error("IsDownloaded after delete")
	}
}

func TestTrackPath(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.TrackPath("36", 1); ok {
		t.Error("expected no path before download")
	}

	writeTrackFile(t, s, "36", 2)
	path, ok := s.TrackPath("36", 2)
	if !ok {
		t.Fatal("expected path for downloaded track")
	}
	if filepath.Base(path) != "2.mp3" {
		t.Errorf("path = %q, want basename 2.mp3", path)
	}
}

func TestListDownloadedSkipsBrokenEntries(t *testing.T) {
	s := newTestStore(t)

	good := sampleTalk("1")
	if err := s.SaveTalk(good); err != nil {
		t.Fatalf("SaveTalk: %v", err)
	}
	writeTrackFile(t, s, "1", 1)

	// Audio present but no metadata document: skipped.
	writeTrackFile(t, s, "2", 1)

	// Empty directory: skipped.
	if err := os.MkdirAll(s.TalkDir("3"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	talks := s.ListDownloaded()
	if len(talks) != 1 {
		t.Fatalf("expected 1 downloaded talk, got %d", len(talks))
	}
	if talks[0].ID != "1" {
		t.Errorf("downloaded talk id = %q, want 1", talks[0].ID)
	}
}

func TestToggleFavoriteInvolution(t *testing.T) {
	s := newTestStore(t)
	talk := sampleTalk("36")

	if s.IsFavorite("36") {
		t.Fatal("fresh store should have no favorites")
	}
	if _, ok := s.LoadFavoriteMeta("36"); ok {
		t.Fatal("fresh store should have no favorite metadata")
	}

	first, err := s.ToggleFavorite(talk)
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if !first.IsFavorite {
		t.Error("expected favorited after first toggle")
	}
	if !s.IsFavorite("36") {
		t.Error("favorites set should contain 36")
	}
	if _, ok := s.LoadFavoriteMeta("36"); !ok {
		t.Error("favorite metadata should be persisted on favoriting")
	}

	second, err := s.ToggleFavorite(talk)
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if second.IsFavorite {
		t.Error("expected unfavorited after second toggle")
	}
	if s.IsFavorite("36") {
		t.Error("favorites set should be restored to empty")
	}
	if _, ok := s.LoadFavoriteMeta("36"); ok {
		t.Error("favorite metadata store should be restored to empty")
	}
}

func TestRecentPlaysBoundedAndDeduplicated(t *testing.T) {
	s := newTestStore(t)

	for i := 1; i <= 12; i++ {
		if err := s.AddRecentPlay(sampleTalk(fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("AddRecentPlay: %v", err)
		}
	}

	recent := s.RecentPlays()
	if len(recent) != 10 {
		t.Fatalf("expected 10 recent plays, got %d", len(recent))
	}
	if recent[0].ID != "12" || recent[9].ID != "3" {
		t.Errorf("recent order = %s..%s, want 12..3", recent[0].ID, recent[9].ID)
	}

	// Re-adding an existing id moves it to the front without duplicating.
	if err := s.AddRecentPlay(sampleTalk("5")); err != nil {
		t.Fatalf("AddRecentPlay: %v", err)
	}
	recent = s.RecentPlays()
	if len(recent) != 10 {
		t.Fatalf("expected 10 recent plays after re-add, got %d", len(recent))
	}
	if recent[0].ID != "5" {
		t.Errorf("front = %s, want 5", recent[0].ID)
	}
	seen := map[string]int{}
	for _, talk := range recent {
		seen[talk.ID]++
	}
	if seen["5"] != 1 {
		t.Errorf("talk 5 appears %d times, want 1", seen["5"])
	}
}

func TestFavoritesSurviveCorruptFile(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.ToggleFavorite(sampleTalk("1")); err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	favPath := filepath.Join(filepath.Dir(s.AudioRoot()), "favorites.json")
	if err := os.WriteFile(favPath, []byte("broken["), 0o644); err != nil {
		t.Fatalf("corrupt favorites: %v", err)
	}

	// Corrupt favorites read as empty; toggling starts a fresh set.
	if s.IsFavorite("1") {
		t.Error("corrupt favorites should read as empty set")
	}
	updated, err := s.ToggleFavorite(sampleTalk("2"))
	if err != nil {
		t.Fatalf("ToggleFavorite after corruption: %v", err)
	}
	if !updated.IsFavorite {
		t.Error("expected toggle to favorite on fresh set")
	}
}
