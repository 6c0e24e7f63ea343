package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"fbaudio/internal/domain"
)

// recentLimit bounds the recent-plays list.
const recentLimit = 10

// Store is the file-backed local library: per-talk metadata documents, the
// favorites id-set, the bounded recent-plays list and the downloaded audio
// directories. Reads tolerate missing or corrupt files by returning empty
// results and logging; local cache corruption must never block network
// features. Writes are full-document rewrites, not internally synchronized
// against concurrent callers.
type Store struct {
	root string
}

// New creates a store rooted at dir, creating the directory skeleton.
func New(dir string) (*Store, error) {
	s := &Store{root: dir}
	for _, sub := range []string{s.talksDir(), s.favMetaDir(), s.audioRoot()} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return s, nil
}

// AudioRoot returns the directory holding downloaded audio, one subdirectory
// per talk id.
func (s *Store) AudioRoot() string { return s.audioRoot() }

func (s *Store) talksDir() string   { return filepath.Join(s.root, "talks") }
func (s *Store) favMetaDir() string { return filepath.Join(s.root, "favorites-meta") }
func (s *Store) audioRoot() string  { return filepath.Join(s.root, "audio") }

func (s *Store) favoritesPath() string { return filepath.Join(s.root, "favorites.json") }
func (s *Store) recentPath() string    { return filepath.Join(s.root, "recent.json") }

func (s *Store) talkPath(id string) string {
	return filepath.Join(s.talksDir(), id+".json")
}

func (s *Store) favMetaPath(id string) string {
	return filepath.Join(s.favMetaDir(), id+".json")
}

// TalkDir returns the audio directory for a talk id.
func (s *Store) TalkDir(id string) string {
	return filepath.Join(s.audioRoot(), id)
}

// SaveTalk writes the general metadata document for a talk.
func (s *Store) SaveTalk(talk domain.Talk) error {
	return writeJSON(s.talkPath(talk.ID), talk)
}

// LoadTalk reads the general metadata document for a talk. The favorite flag
// on the returned value is recomputed from the favorites set, never taken
// from the document.
func (s *Store) LoadTalk(id string) (domain.Talk, bool) {
	talk, ok := readTalk(s.talkPath(id))
	if !ok {
		return domain.Talk{}, false
	}
	return talk.WithFavorite(s.IsFavorite(id)), true
}

// SaveFavoriteMeta writes the favorited-but-not-downloaded metadata document.
func (s *Store) SaveFavoriteMeta(talk domain.Talk) error {
	return writeJSON(s.favMetaPath(talk.ID), talk)
}

// LoadFavoriteMeta reads the favorited-but-not-downloaded metadata document.
func (s *Store) LoadFavoriteMeta(id string) (domain.Talk, bool) {
	talk, ok := readTalk(s.favMetaPath(id))
	if !ok {
		return domain.Talk{}, false
	}
	return talk.WithFavorite(s.IsFavorite(id)), true
}

// IsDownloaded reports whether a talk is fully present locally: audio
// directory, metadata document and at least one file. All three are required
// to distinguish a downloaded talk from orphaned metadata.
func (s *Store) IsDownloaded(id string) bool {
	entries, err := os.ReadDir(s.TalkDir(id))
	if err != nil || len(entries) == 0 {
		return false
	}
	if _, err := os.Stat(s.talkPath(id)); err != nil {
		return false
	}
	return true
}

// TrackPath resolves the local file for a talk id and track number.
func (s *Store) TrackPath(id string, number int) (string, bool) {
	path := filepath.Join(s.TalkDir(id), strconv.Itoa(number)+".mp3")
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// ListDownloaded scans the audio root and returns every downloaded talk.
// Entries whose metadata document is missing or unparsable are skipped with a
// log line; the listing never fails as a whole.
func (s *Store) ListDownloaded() []domain.Talk {
	entries, err := os.ReadDir(s.audioRoot())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("scan downloads: %v", err)
		}
		return nil
	}

	talks := make([]domain.Talk, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if !s.IsDownloaded(id) {
			continue
		}
		talk, ok := s.LoadTalk(id)
		if !ok {
			log.Printf("downloaded talk %s has no readable metadata, skipping", id)
			continue
		}
		talks = append(talks, talk)
	}
	return talks
}

// DeleteTalk removes a talk's audio directory and metadata document.
// Best-effort: partial deletion is not rolled back. Favorites and recent
// plays are left untouched.
func (s *Store) DeleteTalk(id string) error {
	var firstErr error
	if err := os.RemoveAll(s.TalkDir(id)); err != nil {
		firstErr = err
	}
	if err := os.Remove(s.talkPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AddRecentPlay inserts the talk at the front of the recent-plays list,
// removing any previous occurrence of the same id and truncating to the
// capacity bound.
func (s *Store) AddRecentPlay(talk domain.Talk) error {
	current := s.RecentPlays()

	next := make([]domain.Talk, 0, len(current)+1)
	next = append(next, talk)
	for _, existing := range current {
		if existing.ID == talk.ID {
			continue
		}
		next = append(next, existing)
	}
	if len(next) > recentLimit {
		next = next[:recentLimit]
	}
	return writeJSON(s.recentPath(), next)
}

// RecentPlays returns the recent-plays list, most recent first.
func (s *Store) RecentPlays() []domain.Talk {
	var talks []domain.Talk
	if !readJSON(s.recentPath(), &talks) {
		return nil
	}
	for i := range talks {
		talks[i].IsFavorite = s.IsFavorite(talks[i].ID)
	}
	return talks
}

// Favorites returns the favorite talk ids.
func (s *Store) Favorites() []string {
	var ids []string
	if !readJSON(s.favoritesPath(), &ids) {
		return nil
	}
	return ids
}

// IsFavorite reports membership of a talk id in the favorites set.
func (s *Store) IsFavorite(id string) bool {
	for _, fav := range s.Favorites() {
		if fav == id {
			return true
		}
	}
	return false
}

// ToggleFavorite flips favorite membership for the talk. On transition to
// favorited the talk's metadata is unconditionally persisted to the
// favorites-meta store so the talk can be resolved later without a network
// call. Returns the talk with the updated flag.
func (s *Store) ToggleFavorite(talk domain.Talk) (domain.Talk, error) {
	ids := s.Favorites()

	next := make([]string, 0, len(ids)+1)
	wasFavorite := false
	for _, id := range ids {
		if id == talk.ID {
			wasFavorite = true
			continue
		}
		next = append(next, id)
	}

	if !wasFavorite {
		next = append(next, talk.ID)
		if err := s.SaveFavoriteMeta(talk); err != nil {
			return talk, err
		}
	} else {
		if err := os.Remove(s.favMetaPath(talk.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("remove favorite metadata %s: %v", talk.ID, err)
		}
	}

	if err := writeJSON(s.favoritesPath(), next); err != nil {
		return talk, err
	}
	return talk.WithFavorite(!wasFavorite), nil
}

func readTalk(path string) (domain.Talk, bool) {
	var talk domain.Talk
	if !readJSON(path, &talk) {
		return domain.Talk{}, false
	}
	if talk.ID == "" {
		log.Printf("talk document %s missing id, treating as absent", path)
		return domain.Talk{}, false
	}
	return talk, true
}

// readJSON loads a document, treating a missing file as a silent miss and a
// corrupt one as a logged miss.
func readJSON(path string, out any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("read %s: %v", path, err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("corrupt document %s: %v", path, err)
		return false
	}
	return true
}

// writeJSON rewrites a document atomically via temp file and rename.
func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(temp, path)
}
