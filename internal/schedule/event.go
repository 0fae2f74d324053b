package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tinj/internal/gpstime"
)

// NoMetadata is the schedule token for an absent metadata file.
const NoMetadata = "None"

// Kind identifies the category of an injection.
type Kind string

const (
	KindCBC        Kind = "CBC"
	KindBurst      Kind = "BURST"
	KindStochastic Kind = "STOCHASTIC"
	KindDetchar    Kind = "DETCHAR"
)

type kindInfo struct {
	group    string // tracking-service group
	typeCode int    // legacy TINJ_TYPE value
}

// kinds is the closed table of known kinds. New kinds are added here.
var kinds = map[Kind]kindInfo{
	KindCBC:        {group: "CBC", typeCode: 1},
	KindBurst:      {group: "Burst", typeCode: 2},
	KindDetchar:    {group: "Burst", typeCode: 3},
	KindStochastic: {group: "Stochastic", typeCode: 4},
}

var upper = cases.Upper(language.Und)

// ParseKind parses a kind token. Both the short form ("cbc") and the legacy
// state form ("INJECT_CBC_ACTIVE") are accepted.
func ParseKind(tok string) (Kind, error) {
	s := upper.String(norm.NFC.String(strings.TrimSpace(tok)))
	s = strings.TrimPrefix(s, "INJECT_")
	s = strings.TrimSuffix(s, "_ACTIVE")
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("unknown injection kind %q", tok)
	}
	return k, nil
}

// Group returns the tracking-service group for the kind.
func (k Kind) Group() string {
	return kinds[k].group
}

// TypeCode returns the legacy numeric type code, or 0 for unknown kinds.
func (k Kind) TypeCode() int {
	return kinds[k].typeCode
}

// Kinds returns every known kind in lexical order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Mode is the process mode an injection requires.
type Mode int

const (
	ModeCommissioning Mode = 0
	ModeObservation   Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeCommissioning:
		return "commissioning"
	case ModeObservation:
		return "observation"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses the 0/1 mode column.
func ParseMode(tok string) (Mode, error) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("mode must be 0 or 1: %w", err)
	}
	switch Mode(n) {
	case ModeCommissioning, ModeObservation:
		return Mode(n), nil
	}
	return 0, fmt.Errorf("mode must be 0 or 1, got %d", n)
}

// Event is one scheduled injection. Events are values; the engine copies
// the one it executes and never mutates the schedule.
type Event struct {
	Due          time.Time
	Kind         Kind
	Mode         Mode
	Scale        float64
	PayloadPath  string
	MetadataPath string // empty when the schedule says None

	// Line is the 1-based source line, Index the position among loaded
	// events. Index gives a stable order for ties.
	Line  int
	Index int
}

// GPS returns the due time in GPS seconds.
func (e Event) GPS() float64 {
	return gpstime.ToSeconds(e.Due)
}

// HasMetadata reports whether a metadata file was scheduled.
func (e Event) HasMetadata() bool {
	return e.MetadataPath != ""
}

// ScheduleLine renders the event back into schedule-file form.
func (e Event) ScheduleLine() string {
	meta := e.MetadataPath
	if meta == "" {
		meta = NoMetadata
	}
	return fmt.Sprintf("%.6f %s %d %g %s %s", e.GPS(), e.Kind, int(e.Mode), e.Scale, e.PayloadPath, meta)
}

func (e Event) String() string {
	return fmt.Sprintf("<%.6f %s>", e.GPS(), e.Kind)
}
