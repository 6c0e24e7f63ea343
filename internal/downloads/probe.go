package downloads

import (
	"errors"
	"io"
	"math"
	"os"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

// probeTrack inspects an extracted audio file and returns its playing time in
// whole seconds and the ID3 title, either of which may be absent (0 / "").
func probeTrack(path string) (int, string) {
	seconds := 0
	if dur, err := mp3Duration(path); err == nil && dur > 0 {
		seconds = int(math.Round(dur))
	}
	return seconds, readTitle(path)
}

func readTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(meta.Title())
}

// mp3Duration walks every frame; accurate for VBR files where header math
// would lie.
func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}

	return total, nil
}
