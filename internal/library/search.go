package library

import (
	"context"
	"log"

	"fbaudio/internal/domain"
)

// Search runs a catalog search and drives the observable search state
// machine. Every submission takes a generation token; a completion whose
// token is no longer current is discarded, so a slow superseded search can
// never overwrite fresher results. Successful responses are written through
// to the search cache; on network failure a cached response for the same
// query is served instead when one exists.
func (s *Service) Search(ctx context.Context, query string) (domain.SearchResponse, error) {
	gen := s.beginSearch(query)

	response, err := s.catalog.Search(ctx, query)
	if err != nil {
		if s.cache != nil {
			cached, ok, cacheErr := s.cache.Get(ctx, query)
			if cacheErr != nil {
				log.Printf("search cache read %q: %v", query, cacheErr)
			} else if ok {
				log.Printf("search %q failed (%v), serving cached results", query, err)
				s.refreshFavorites(&cached)
				s.completeSearch(gen, domain.SearchState{
					Phase:    domain.SearchSuccess,
					Query:    query,
					Response: cached,
				})
				return cached, nil
			}
		}
		s.completeSearch(gen, domain.SearchState{
			Phase:   domain.SearchError,
			Query:   query,
			Message: err.Error(),
		})
		return domain.SearchResponse{}, err
	}

	s.refreshFavorites(&response)

	if s.cache != nil {
		if err := s.cache.Put(ctx, query, response); err != nil {
			log.Printf("search cache write %q: %v", query, err)
		}
	}

	s.completeSearch(gen, domain.SearchState{
		Phase:    domain.SearchSuccess,
		Query:    query,
		Response: response,
	})
	return response, nil
}

// SearchState returns the current observable search snapshot.
func (s *Service) SearchState() domain.SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchState
}

func (s *Service) beginSearch(query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchGen++
	s.searchState = domain.SearchState{Phase: domain.SearchLoading, Query: query}
	return s.searchGen
}

// completeSearch commits a terminal state only when the token is still
// current; stale completions are dropped.
func (s *Service) completeSearch(gen uint64, state domain.SearchState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.searchGen {
		return
	}
	s.searchState = state
}

// refreshFavorites recomputes the derived favorite flag on each result.
func (s *Service) refreshFavorites(response *domain.SearchResponse) {
	for i := range response.Results {
		response.Results[i].IsFavorite = s.store.IsFavorite(response.Results[i].ID)
	}
}
