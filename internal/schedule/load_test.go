package schedule

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tinj/internal/gpstime"
)

const sampleSchedule = `# due kind mode scale payload metadata
1148558052 INJECT_CBC_ACTIVE 1 1.0 /inj/{ifo}-CBC-1148558000-64.txt /inj/cbc.xml

1148558952.5 burst 0 0.5 /inj/{ifo}-BURST-1148558900-4.txt None
1148559852 DETCHAR 1 2 /inj/detchar.txt None
`

func TestLoad_ParsesRecords(t *testing.T) {
	events, err := Load(strings.NewReader(sampleSchedule), LoadOptions{IFO: "H1"})
	require.NoError(t, err)
	require.Len(t, events, 3)

	cbc := events[0]
	assert.Equal(t, KindCBC, cbc.Kind)
	assert.Equal(t, ModeObservation, cbc.Mode)
	assert.Equal(t, 1.0, cbc.Scale)
	assert.Equal(t, "/inj/H1-CBC-1148558000-64.txt", cbc.PayloadPath)
	assert.Equal(t, "/inj/cbc.xml", cbc.MetadataPath)
	assert.True(t, cbc.HasMetadata())
	assert.Equal(t, 2, cbc.Line)
	assert.Equal(t, 0, cbc.Index)
	assert.True(t, cbc.Due.Equal(gpstime.FromSeconds(1148558052)))

	burst := events[1]
	assert.Equal(t, KindBurst, burst.Kind)
	assert.Equal(t, ModeCommissioning, burst.Mode)
	assert.False(t, burst.HasMetadata())
	assert.Equal(t, 4, burst.Line)
	assert.Equal(t, 1, burst.Index)
	assert.InDelta(t, 1148558952.5, burst.GPS(), 1e-6)
}

func TestLoad_MalformedRecords(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		field string
	}{
		{"too few fields", "100 CBC 1 1.0 /p", ""},
		{"too many fields", "100 CBC 1 1.0 /p None extra", ""},
		{"bad time", "soon CBC 1 1.0 /p None", "due time"},
		{"bad kind", "100 PULSAR 1 1.0 /p None", "kind"},
		{"bad mode", "100 CBC 2 1.0 /p None", "mode"},
		{"bad scale", "100 CBC 1 big /p None", "scale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.line), LoadOptions{})
			require.Error(t, err)
			require.True(t, IsParseError(err), "want ParseError, got %T", err)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, 1, pe.Line)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestLoad_UnresolvedPlaceholder(t *testing.T) {
	_, err := Load(strings.NewReader("100 CBC 1 1 /inj/{ifo}.txt None"), LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{ifo}")
}

func TestFutureEvents_RoundTripKeepsOrder(t *testing.T) {
	events, err := Load(strings.NewReader(sampleSchedule), LoadOptions{IFO: "L1"})
	require.NoError(t, err)

	future := FutureEvents(events, gpstime.FromSeconds(1000))
	assert.Equal(t, events, future)
}

func TestFutureEvents_DropsPastAndDue(t *testing.T) {
	events := []Event{ev(100, KindCBC), ev(200, KindBurst), ev(300, KindCBC)}

	future := FutureEvents(events, gpstime.FromSeconds(200))
	require.Len(t, future, 1)
	assert.InDelta(t, 300, future[0].GPS(), 1e-9)
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"CBC":                      KindCBC,
		"cbc":                      KindCBC,
		"INJECT_BURST_ACTIVE":      KindBurst,
		"inject_stochastic_active": KindStochastic,
		" Detchar ":                KindDetchar,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("SUPERNOVA")
	assert.Error(t, err)
}

func TestKindTable(t *testing.T) {
	assert.Equal(t, "Burst", KindDetchar.Group())
	assert.Equal(t, 4, KindStochastic.TypeCode())
	assert.Equal(t, []Kind{KindBurst, KindCBC, KindDetchar, KindStochastic}, Kinds())
}

func TestEvent_ScheduleLine(t *testing.T) {
	e := Event{
		Due:         gpstime.FromSeconds(100.5),
		Kind:        KindCBC,
		Mode:        ModeObservation,
		Scale:       1.5,
		PayloadPath: "/p.txt",
	}
	assert.Equal(t, "100.500000 CBC 1 1.5 /p.txt None", e.ScheduleLine())
	assert.Equal(t, "<100.500000 CBC>", e.String())
}

// ev builds a minimal event due at gps seconds.
func ev(gps float64, kind Kind) Event {
	return Event{Due: gpstime.FromSeconds(gps), Kind: kind, Mode: ModeObservation, Scale: 1}
}
