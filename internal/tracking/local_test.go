package tracking

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tinj/internal/store"
)

func TestLocal_RegisterAndAnnotate(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tr := NewLocal(st, func() time.Time { return now })
	ctx := context.Background()

	id, err := tr.Register(ctx, Registration{Group: "Stochastic", Instruments: []string{"H1"}})
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	entry, err := st.GetTrackingEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DefaultPipeline, entry.Pipeline)
	assert.True(t, entry.CreatedAt.Equal(now))

	require.NoError(t, tr.Annotate(ctx, id, "Injection was successful."))
	anns, err := st.Annotations(ctx, id)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, "Injection was successful.", anns[0].Body)
}

func TestLocal_AnnotateUnknown(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tr := NewLocal(st, nil)
	assert.Error(t, tr.Annotate(context.Background(), "nope", "x"))
}
