package schedule

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tinj/internal/gpstime"
)

// IFOPlaceholder is replaced with LoadOptions.IFO in payload paths.
const IFOPlaceholder = "{ifo}"

const fieldCount = 6

// LoadOptions controls schedule parsing.
type LoadOptions struct {
	// IFO resolves the {ifo} placeholder in payload paths.
	IFO string
}

// LoadFile reads and parses a schedule file.
func LoadFile(path string, opts LoadOptions) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schedule: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load parses every record in r. Records keep their file order. The first
// malformed record fails the whole load with a *ParseError.
func Load(r io.Reader, opts LoadOptions) ([]Event, error) {
	var events []Event

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		ev, err := parseRecord(text, line, opts)
		if err != nil {
			return nil, err
		}
		ev.Index = len(events)
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}

	return events, nil
}

func parseRecord(text string, line int, opts LoadOptions) (Event, error) {
	fields := strings.Fields(text)
	if len(fields) != fieldCount {
		return Event{}, &ParseError{
			Line: line,
			Err:  fmt.Errorf("expected %d fields, got %d", fieldCount, len(fields)),
		}
	}

	due, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Event{}, &ParseError{Line: line, Field: "due time", Err: err}
	}

	kind, err := ParseKind(fields[1])
	if err != nil {
		return Event{}, &ParseError{Line: line, Field: "kind", Err: err}
	}

	mode, err := ParseMode(fields[2])
	if err != nil {
		return Event{}, &ParseError{Line: line, Field: "mode", Err: err}
	}

	scale, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Event{}, &ParseError{Line: line, Field: "scale", Err: err}
	}

	payload := fields[4]
	if strings.Contains(payload, IFOPlaceholder) {
		if opts.IFO == "" {
			return Event{}, &ParseError{
				Line:  line,
				Field: "payload",
				Err:   errors.New("path uses {ifo} but no IFO is configured"),
			}
		}
		payload = strings.ReplaceAll(payload, IFOPlaceholder, opts.IFO)
	}

	meta := fields[5]
	if meta == NoMetadata {
		meta = ""
	}

	return Event{
		Due:          gpstime.FromSeconds(due),
		Kind:         kind,
		Mode:         mode,
		Scale:        scale,
		PayloadPath:  payload,
		MetadataPath: meta,
		Line:         line,
	}, nil
}

// FutureEvents returns the events due strictly after now, in input order.
func FutureEvents(events []Event, now time.Time) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Due.After(now) {
			out = append(out, ev)
		}
	}
	return out
}
