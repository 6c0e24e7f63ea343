package library

import (
	"context"
	"log"
	"sync"

	"fbaudio/internal/catalog"
	"fbaudio/internal/domain"
	"fbaudio/internal/playback"
	"fbaudio/internal/searchcache"
	"fbaudio/internal/store"
)

// Service is the facade the presentation layer talks to. It reconciles the
// local store with the remote catalog: cached talks are refreshed over the
// network when their track detail has not been enriched yet, and network
// failures fall back to whatever local data exists.
type Service struct {
	store   *store.Store
	catalog *catalog.Client
	cache   *searchcache.Cache

	mu          sync.Mutex
	searchGen   uint64
	searchState domain.SearchState
}

// NewService wires the facade. The search cache may be nil, in which case
// offline search fallback is disabled.
func NewService(st *store.Store, cat *catalog.Client, cache *searchcache.Cache) *Service {
	return &Service{store: st, catalog: cat, cache: cache}
}

// stale reports whether a cached talk still lacks per-talk detail: no tracks
// at all, or a first track with no secondary id or no numeric duration.
func stale(talk domain.Talk) bool {
	if len(talk.Tracks) == 0 {
		return true
	}
	first := talk.Tracks[0]
	return first.TrackID == "" || first.DurationSeconds == 0
}

// GetTalk resolves a talk by id. Local metadata is checked in both the
// general and the favorites-meta location (general preferred); stale or
// absent records trigger a network refresh whose result is merged with the
// current favorite flag and persisted. If the network fails, the stale local
// copy is still returned; only when neither source has data is ok false.
func (s *Service) GetTalk(ctx context.Context, id string) (domain.Talk, bool) {
	local, found := s.store.LoadTalk(id)
	if !found {
		local, found = s.store.LoadFavoriteMeta(id)
	}
	if found && !stale(local) {
		return local, true
	}

	remote, ok, err := s.catalog.TalkDetails(ctx, id)
	if err != nil || !ok {
		if err != nil {
			log.Printf("refresh talk %s: %v", id, err)
		}
		if found {
			return local, true
		}
		return domain.Talk{}, false
	}

	merged := remote.WithFavorite(s.store.IsFavorite(id))
	if err := s.store.SaveTalk(merged); err != nil {
		log.Printf("persist talk %s: %v", id, err)
	}
	if merged.IsFavorite {
		if err := s.store.SaveFavoriteMeta(merged); err != nil {
			log.Printf("persist favorite metadata %s: %v", id, err)
		}
	}
	return merged, true
}

// FavoriteTalks resolves every favorited id, skipping ids that cannot be
// resolved from either source.
func (s *Service) FavoriteTalks(ctx context.Context) []domain.Talk {
	ids := s.store.Favorites()
	talks := make([]domain.Talk, 0, len(ids))
	for _, id := range ids {
		talk, ok := s.GetTalk(ctx, id)
		if !ok {
			log.Printf("favorite %s could not be resolved, skipping", id)
			continue
		}
		talks = append(talks, talk)
	}
	return talks
}

// ToggleFavorite flips favorite membership and returns the updated talk.
func (s *Service) ToggleFavorite(talk domain.Talk) (domain.Talk, error) {
	return s.store.ToggleFavorite(talk)
}

// AddRecentPlay records the talk at the front of the recent-plays list.
func (s *Service) AddRecentPlay(talk domain.Talk) error {
	return s.store.AddRecentPlay(talk)
}

// RecentPlays returns the recent-plays list, most recent first.
func (s *Service) RecentPlays() []domain.Talk {
	return s.store.RecentPlays()
}

// DownloadedTalks lists every fully downloaded talk.
func (s *Service) DownloadedTalks() []domain.Talk {
	return s.store.ListDownloaded()
}

// IsDownloaded reports whether the talk is fully present locally.
func (s *Service) IsDownloaded(id string) bool {
	return s.store.IsDownloaded(id)
}

// DeleteTalk removes a talk's downloaded audio and metadata document.
// Favorites and recent-plays entries are left in place; a talk can stay
// favorited without being downloaded.
func (s *Service) DeleteTalk(id string) error {
	return s.store.DeleteTalk(id)
}

// Queue builds the playable queue for a talk, preferring local files over
// remote track URLs.
func (s *Service) Queue(talk domain.Talk) []playback.QueueItem {
	items := make([]playback.QueueItem, 0, len(talk.Tracks))
	for _, track := range talk.Tracks {
		uri := track.Path
		if local, ok := s.store.TrackPath(talk.ID, track.Number); ok {
			uri = local
		}
		items = append(items, playback.QueueItem{
			URI:         uri,
			TalkID:      talk.ID,
			TrackNumber: track.Number,
			Title:       track.Title,
			Speaker:     talk.Speaker,
			ImageURL:    talk.ImageURL,
		})
	}
	return items
}
