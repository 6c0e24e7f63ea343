// Package playback defines the port to the host audio engine. The library
// never depends on a concrete media framework; the embedding process supplies
// an implementation and reports state changes back through Status.
package playback

// QueueItem is one playable entry handed to the engine. URI is a local file
// path when the track is downloaded, the remote track URL otherwise.
type QueueItem struct {
	URI         string
	TalkID      string
	TrackNumber int
	Title       string
	Speaker     string
	ImageURL    string
}

// Status is the engine-owned observable playback snapshot.
type Status struct {
	IsPlaying    bool
	PositionMs   int64
	CurrentIndex int
}

// Port is implemented by the host audio engine adapter.
type Port interface {
	LoadQueue(items []QueueItem) error
	Play() error
	Pause() error
	SeekTo(ms int64) error
	Next() error
	Previous() error
	Status() Status
}

// Noop discards every command; useful in tests and headless runs.
type Noop struct{}

func (Noop) LoadQueue([]QueueItem) error { return nil }
func (Noop) Play() error                 { return nil }
func (Noop) Pause() error                { return nil }
func (Noop) SeekTo(int64) error          { return nil }
func (Noop) Next() error                 { return nil }
func (Noop) Previous() error             { return nil }
func (Noop) Status() Status              { return Status{} }
