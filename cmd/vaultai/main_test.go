package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultAI/internal/intake"
	"github.com/dharsanguruparan/VaultAI/internal/wizard"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSubmitRunsWizard(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "front.png")
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(photo, []byte("\x89PNG\r\n\x1a\nimage"), 0o600))
	require.NoError(t, os.WriteFile(notes, []byte("plain text"), 0o600))

	out, err := execute(t, "submit",
		"--type", "real-estate", "--name", "Loft", "--description", "A loft.", "--owner", "0xabc",
		"--verify-delay", "0s", "--mint-delay", "0s",
		photo, notes)
	require.NoError(t, err, out)
	assert.Contains(t, out, "accepted  front.png (image/png")
	assert.Contains(t, out, "rejected  notes.txt: "+intake.ReasonType)
	assert.Contains(t, out, "token     0")
	assert.Contains(t, out, `"owner": "0xabc"`)
	assert.Contains(t, out, "ipfs://vault/")
}

func TestSubmitReportsMissingDetails(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "front.png")
	require.NoError(t, os.WriteFile(photo, []byte("\x89PNG\r\n\x1a\nimage"), 0o600))

	out, err := execute(t, "submit", "--type", "spaceship", "--verify-delay", "0s", photo)
	require.ErrorIs(t, err, wizard.ErrValidation)
	assert.Contains(t, out, wizard.MsgAssetType)
	assert.Contains(t, out, wizard.MsgAssetName)
}

func TestSubmitAllFilesRejected(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("plain text"), 0o600))

	out, err := execute(t, "submit", "--type", "art", "--name", "Vase", "--description", "Ming.",
		"--verify-delay", "0s", notes)
	require.ErrorIs(t, err, wizard.ErrValidation)
	assert.Contains(t, out, wizard.MsgFiles)
}

func TestAssetTypes(t *testing.T) {
	out, err := execute(t, "asset-types")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 7)
	assert.Contains(t, out, "precious-metals")
}

type invocation struct {
	env  []string
	name string
	args []string
}

func captureExec(t *testing.T) *[]invocation {
	t.Helper()
	var calls []invocation
	orig := execCommand
	execCommand = func(_ context.Context, _ *cobra.Command, env []string, name string, args ...string) error {
		calls = append(calls, invocation{env: env, name: name, args: args})
		return nil
	}
	t.Cleanup(func() { execCommand = orig })
	return &calls
}

func TestStackUpStartsDependencies(t *testing.T) {
	calls := captureExec(t)
	_, err := execute(t, "stack", "up")
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	got := (*calls)[0]
	assert.Equal(t, "docker", got.name)
	assert.Equal(t, []string{"compose", "-f", "docker-compose.yml", "up", "-d", "--wait", "postgres", "minio", "redis"}, got.args)
}

func TestStackDownPurge(t *testing.T) {
	calls := captureExec(t)
	_, err := execute(t, "stack", "down", "--purge", "-f", "dev.yml")
	require.NoError(t, err)
	assert.Equal(t, []string{"compose", "-f", "dev.yml", "down", "-v"}, (*calls)[0].args)
}

func TestRunPassesConfig(t *testing.T) {
	calls := captureExec(t)
	_, err := execute(t, "--config", "vaultai.yaml", "run", "api", "--addr", ":9090")
	require.NoError(t, err)
	got := (*calls)[0]
	assert.Equal(t, "go", got.name)
	assert.Equal(t, []string{"run", "./cmd/api"}, got.args)
	assert.Equal(t, []string{"VAULTAI_CONFIG=vaultai.yaml", "VAULTAI_ADDRESS=:9090"}, got.env)
}

func TestRunWorkerHasNoAddress(t *testing.T) {
	captureExec(t)
	_, err := execute(t, "run", "worker", "--addr", ":9090")
	assert.Error(t, err)
}
