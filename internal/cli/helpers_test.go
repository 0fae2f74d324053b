package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tinj/internal/store"
)

// node is a temp directory holding a config, schedule, payloads and ledger.
type node struct {
	dir      string
	config   string
	schedule string
	ledger   string
}

func newNode(t *testing.T, schedule string, extra string) *node {
	t.Helper()
	dir := t.TempDir()
	n := &node{
		dir:      dir,
		config:   filepath.Join(dir, "node.yaml"),
		schedule: filepath.Join(dir, "schedule.txt"),
		ledger:   filepath.Join(dir, "tinj.db"),
	}
	cfg := fmt.Sprintf("schedule: %s\nledger: %s\nsample_rate: 4\n%s", n.schedule, n.ledger, extra)
	if !strings.Contains(extra, "ifo:") {
		cfg = "ifo: H1\n" + cfg
	}
	require.NoError(t, os.WriteFile(n.config, []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(n.schedule, []byte(strings.ReplaceAll(schedule, "$DIR", dir)), 0o644))
	return n
}

// payload writes a waveform of samples lines under the node directory.
func (n *node) payload(t *testing.T, name string, samples int) string {
	t.Helper()
	path := filepath.Join(n.dir, name)
	var b strings.Builder
	for i := 0; i < samples; i++ {
		b.WriteString("0.5\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

// seedLedger writes one finished attempt with two transitions.
func (n *node) seedLedger(t *testing.T) {
	t.Helper()
	st, err := store.Open(n.ledger)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.BeginAttempt(ctx, store.Attempt{
		ID: "attempt-1", Epoch: 1, DueGPS: 1100, Kind: "CBC", Mode: 1, Scale: 1,
		PayloadPath: "/inj/H1-cbc.txt", StartedAt: at,
	}))
	require.NoError(t, st.SetTrackingID(ctx, "attempt-1", "T1"))
	require.NoError(t, st.WriteTransition(ctx, store.Transition{Seq: 1, AttemptID: "attempt-1", From: "WAIT", To: "CADENCE_CHECK", Cause: "imminent <1100.000000 CBC>", At: at}))
	require.NoError(t, st.WriteTransition(ctx, store.Transition{Seq: 2, AttemptID: "attempt-1", From: "ACTIVE", To: "SUCCESS", Cause: "injection complete", At: at.Add(time.Minute)}))
	require.NoError(t, st.FinishAttempt(ctx, "attempt-1", "SUCCESS", "injection complete", at.Add(time.Minute)))
}

// execute runs a subcommand through the root command so persistent flags
// are parsed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	resp.Data = v
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	sub, _, err := NewRootCommand().Find([]string{name})
	require.NoError(t, err)
	return sub
}
