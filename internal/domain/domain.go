package domain

// Talk is the top-level catalog entity: one recorded talk and its tracks.
// Talks are value data; updates copy, they never mutate a shared instance.
type Talk struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Speaker  string  `json:"speaker"`
	Year     string  `json:"year"`
	Blurb    string  `json:"blurb"`
	ImageURL string  `json:"imageUrl"`
	Tracks   []Track `json:"tracks"`

	// IsFavorite is derived from the favorites set on every read and is
	// never taken from a stored document.
	IsFavorite bool `json:"-"`
}

// Track is one audio segment of a Talk, numbered from 1. Number doubles as
// the on-disk filename stem for downloaded audio.
type Track struct {
	Title    string `json:"title"`
	Number   int    `json:"number"`
	Path     string `json:"path"`
	Duration string `json:"duration"`

	// DurationSeconds is zero until enriched from the detail endpoint or
	// probed from a downloaded file.
	DurationSeconds int `json:"durationSeconds"`

	// TrackID is empty until enriched from the detail endpoint.
	TrackID string `json:"trackId"`
}

// WithFavorite returns a copy of the talk with the favorite flag set.
func (t Talk) WithFavorite(fav bool) Talk {
	t.IsFavorite = fav
	return t
}

// SearchResponse holds one page of search results in server relevance order.
// Total may exceed len(Results); pagination is not implemented.
type SearchResponse struct {
	Total   int    `json:"total"`
	Results []Talk `json:"results"`
}

// SearchPhase enumerates the states of the search state machine.
type SearchPhase int

const (
	SearchEmpty SearchPhase = iota
	SearchLoading
	SearchSuccess
	SearchError
)

// SearchState is the observable search snapshot handed to the presentation
// layer. Response is meaningful in SearchSuccess, Message in SearchError.
type SearchState struct {
	Phase    SearchPhase
	Query    string
	Response SearchResponse
	Message  string
}
