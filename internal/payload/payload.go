// Package payload reads injection waveforms and their metadata files.
package payload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/tinj/internal/schedule"
)

// Waveform is a time series held in memory for one injection.
type Waveform struct {
	Path       string
	Samples    []float64
	SampleRate int
}

// Duration is the playback length at the waveform's sample rate.
func (w *Waveform) Duration() time.Duration {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Read loads a single-column ASCII waveform. Blank lines and lines starting
// with '#' are skipped.
func Read(path string, sampleRate int) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open waveform: %w", err)
	}
	defer f.Close()

	samples, err := parseColumn(f)
	if err != nil {
		return nil, fmt.Errorf("read waveform %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("read waveform %s: no samples", path)
	}
	return &Waveform{Path: path, Samples: samples, SampleRate: sampleRate}, nil
}

func parseColumn(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 1 {
			return nil, fmt.Errorf("line %d: expected one column, got %d", line, len(fields))
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	return out, sc.Err()
}

// ReadMetadata returns the raw metadata file for an event, or nil when the
// event has none.
func ReadMetadata(ev schedule.Event) ([]byte, error) {
	if !ev.HasMetadata() {
		return nil, nil
	}
	b, err := os.ReadFile(ev.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return b, nil
}

// StartTime parses the GPS start time out of a waveform file name of the
// form IFO-TAG-START-DURATION.EXT.
func StartTime(path string) (float64, error) {
	name := filepath.Base(path)
	parts := strings.Split(name, "-")
	if len(parts) < 4 {
		return 0, fmt.Errorf("waveform name %q is not IFO-TAG-START-DURATION.EXT", name)
	}
	start, err := strconv.ParseFloat(parts[len(parts)-2], 64)
	if err != nil {
		return 0, fmt.Errorf("waveform name %q: start time: %w", name, err)
	}
	return start, nil
}

// Durations returns a schedule.DurationFunc that reads each payload once
// and caches its length. Unreadable payloads report ok=false.
func Durations(sampleRate int) schedule.DurationFunc {
	var (
		mu    sync.Mutex
		cache = make(map[string]time.Duration)
	)
	return func(ev schedule.Event) (time.Duration, bool) {
		mu.Lock()
		defer mu.Unlock()
		if d, ok := cache[ev.PayloadPath]; ok {
			return d, true
		}
		w, err := Read(ev.PayloadPath, sampleRate)
		if err != nil {
			return 0, false
		}
		cache[ev.PayloadPath] = w.Duration()
		return w.Duration(), true
	}
}
