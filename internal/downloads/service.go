package downloads

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fbaudio/internal/config"
	"fbaudio/internal/domain"
	"fbaudio/internal/remote"
	"fbaudio/internal/store"
)

const copyBufferSize = 32 * 1024

// SleepFunc waits between retry attempts; injectable so tests run instantly.
type SleepFunc func(context.Context, time.Duration) error

// Service coordinates bulk talk downloads: fetch the zip archive with
// retries, extract the numbered tracks into the local store's audio area and
// report progress over a cancellable stream.
type Service struct {
	store      *store.Store
	httpClient *http.Client
	baseURL    string
	userAgent  string
	attempts   int
	baseDelay  time.Duration
	probe      bool
	probeFn    func(path string) (int, string)
	sleep      SleepFunc
}

// NewService builds a download coordinator from configuration. A nil sleep
// falls back to a context-aware timer wait.
func NewService(cfg config.Config, st *store.Store, client *http.Client, sleep SleepFunc) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	if sleep == nil {
		sleep = defaultSleep
	}
	attempts := cfg.RetryCount
	if attempts <= 0 {
		attempts = 3
	}
	baseDelay := time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Service{
		store:      st,
		httpClient: client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		attempts:   attempts,
		baseDelay:  baseDelay,
		probe:      cfg.ProbeDurations,
		probeFn:    probeTrack,
		sleep:      sleep,
	}
}

// ArchiveURL returns the bulk zip archive location for a talk id.
func (s *Service) ArchiveURL(talkID string) string {
	return fmt.Sprintf("%s/talks/mp3zips/%s.zip", s.baseURL, talkID)
}

// DownloadTalk starts the download and returns its progress stream. The
// stream emits non-decreasing fractions, ends with a Done event (Err set on
// failure) and is then closed. Cancelling ctx stops the transfer promptly
// and removes partial audio files; the metadata document written up front is
// kept on every path.
func (s *Service) DownloadTalk(ctx context.Context, talk domain.Talk) <-chan Progress {
	ch := make(chan Progress, 32)
	go s.run(ctx, talk, ch)
	return ch
}

func (s *Service) run(ctx context.Context, talk domain.Talk, ch chan Progress) {
	defer close(ch)
	em := newEmitter(ch)

	dir := s.store.TalkDir(talk.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		em.fail(ctx, fmt.Errorf("create talk directory: %w", err))
		return
	}

	// Immediate sub-percent emission so the consumer sees movement before
	// the first byte arrives.
	em.emit(ctx, progressFloor)

	// Metadata is persisted before any bytes move so it survives a total
	// download failure.
	if err := s.store.SaveTalk(talk); err != nil {
		em.fail(ctx, fmt.Errorf("persist talk metadata: %w", err))
		return
	}

	var attemptErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * s.baseDelay
			if err := s.sleep(ctx, delay); err != nil {
				s.cleanup(talk.ID)
				em.fail(ctx, err)
				return
			}
		}

		err := s.downloadOnce(ctx, talk, dir, em)
		if err == nil {
			if s.probe {
				s.enrich(talk, dir)
			}
			em.finish(ctx)
			return
		}
		if ctx.Err() != nil {
			s.cleanup(talk.ID)
			em.fail(ctx, ctx.Err())
			return
		}

		attemptErr = err
		log.Printf("download %s: attempt %d/%d failed: %v", talk.ID, attempt, s.attempts, err)
	}

	s.cleanup(talk.ID)
	em.fail(ctx, &remote.ExhaustedRetriesError{Attempts: s.attempts, Last: attemptErr})
}

// downloadOnce performs one full attempt: stream the archive to a partial
// file, then extract the numbered audio entries.
func (s *Service) downloadOnce(ctx context.Context, talk domain.Talk, dir string, em *emitter) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ArchiveURL(talk.ID), nil)
	if err != nil {
		return err
	}
	if ua := strings.TrimSpace(s.userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &remote.HTTPStatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	partial, err := os.CreateTemp("", "fbaudio-"+talk.ID+"-*.zip")
	if err != nil {
		return err
	}
	partialPath := partial.Name()
	defer os.Remove(partialPath)

	written, err := s.copyArchive(ctx, partial, resp.Body, resp.ContentLength, em)
	closeErr := partial.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	if written == 0 {
		return fmt.Errorf("archive was empty")
	}
	return s.extract(ctx, talk, dir, partialPath, resp.ContentLength, em)
}

// copyArchive is the buffered copy loop. Cancellation is checked per chunk;
// byte progress is emitted when the server reported a length.
func (s *Service) copyArchive(ctx context.Context, dst io.Writer, src io.Reader, total int64, em *emitter) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if total > 0 {
				em.emit(ctx, float64(written)/float64(total))
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, fmt.Errorf("read archive: %w", readErr)
		}
	}
}

// extract writes every archive entry whose name is an integer with an audio
// extension to {dir}/{number}.mp3. Without a content length, progress is
// estimated from completed tracks over the expected count.
func (s *Service) extract(ctx context.Context, talk domain.Talk, dir, archivePath string, contentLength int64, em *emitter) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	expected := len(talk.Tracks)
	if expected == 0 {
		expected = len(reader.File)
	}

	completed := 0
	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		number, ok := trackNumber(entry.Name)
		if !ok {
			continue
		}
		if err := s.extractEntry(ctx, entry, filepath.Join(dir, strconv.Itoa(number)+".mp3")); err != nil {
			return fmt.Errorf("extract track %d: %w", number, err)
		}
		completed++
		if contentLength <= 0 && expected > 0 {
			em.emit(ctx, float64(completed)/float64(expected))
		}
	}

	if completed == 0 {
		return fmt.Errorf("archive contained no audio tracks")
	}
	return nil
}

func (s *Service) extractEntry(ctx context.Context, entry *zip.File, dest string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	buf := make([]byte, copyBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				return err
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			out.Close()
			return readErr
		}
	}
	return out.Close()
}

// enrich fills track durations and titles from the extracted files and
// rewrites the metadata document. Best-effort: probe failures leave the
// document as downloaded.
func (s *Service) enrich(talk domain.Talk, dir string) {
	tracks := make([]domain.Track, len(talk.Tracks))
	copy(tracks, talk.Tracks)

	changed := false
	for i, track := range tracks {
		if track.DurationSeconds > 0 && track.Title != "" {
			continue
		}
		seconds, title := s.probeFn(filepath.Join(dir, strconv.Itoa(track.Number)+".mp3"))
		if track.DurationSeconds == 0 && seconds > 0 {
			tracks[i].DurationSeconds = seconds
			changed = true
		}
		if track.Title == "" && title != "" {
			tracks[i].Title = title
			changed = true
		}
	}
	talk.Tracks = tracks
	if changed {
		if err := s.store.SaveTalk(talk); err != nil {
			log.Printf("persist enriched metadata %s: %v", talk.ID, err)
		}
	}
}

// cleanup removes the partially written audio directory. The metadata
// document deliberately survives.
func (s *Service) cleanup(talkID string) {
	if err := os.RemoveAll(s.store.TalkDir(talkID)); err != nil {
		log.Printf("cleanup partial download %s: %v", talkID, err)
	}
}

func trackNumber(name string) (int, bool) {
	base := path.Base(name)
	ext := strings.ToLower(path.Ext(base))
	switch ext {
	case ".mp3", ".m4a", ".ogg", ".wav":
	default:
		return 0, false
	}
	number, err := strconv.Atoi(strings.TrimSuffix(base, path.Ext(base)))
	if err != nil || number < 1 {
		return 0, false
	}
	return number, true
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
