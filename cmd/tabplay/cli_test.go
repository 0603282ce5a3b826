package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TABPLAY_TUNING", "")
	t.Setenv("TABPLAY_TEMPO", "")
	t.Setenv("TABPLAY_LOG_LEVEL", "")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTuningsCommand(t *testing.T) {
	out, err := run(t, "tunings", "--tuning", "standard")
	require.NoError(t, err)
	assert.Contains(t, out, "* standard")
	assert.Contains(t, out, "drop_d")
}

func TestExercisesCommand(t *testing.T) {
	out, err := run(t, "exercises")
	require.NoError(t, err)
	assert.Equal(t, []string{"chords", "chromatic", "default", "pentatonic"}, strings.Fields(out))

	out, err = run(t, "exercises", "chords")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "e|"))
}

func TestParseCommand(t *testing.T) {
	out, err := run(t, "parse", "--tuning", "standard", "--tempo", "120",
		"--tab", `e|0-3-|\nB|----|\nG|----|\nD|----|\nA|----|\nE|----|`)
	require.NoError(t, err)
	assert.Contains(t, out, "2 events over 5 columns")
	assert.Contains(t, out, "E4(64)")
	assert.Contains(t, out, "G4(67)")
	assert.Contains(t, out, "250.0ms")
}

func TestParseCommandRejectsRaggedTab(t *testing.T) {
	_, err := run(t, "parse", "--tab", `e|0-3-|\nB|---|\nG|----|\nD|----|\nA|----|\nE|----|`)
	assert.Error(t, err)
}

func TestMidiAndImageCommands(t *testing.T) {
	dir := t.TempDir()
	mid := filepath.Join(dir, "out.mid")
	_, err := run(t, "midi", "--exercise", "pentatonic", "--tuning", "standard", "-o", mid)
	require.NoError(t, err)
	data, err := os.ReadFile(mid)
	require.NoError(t, err)
	assert.Equal(t, "MThd", string(data[:4]))

	png := filepath.Join(dir, "out.png")
	_, err = run(t, "image", "--exercise", "pentatonic", "--highlight", "3", "-o", png)
	require.NoError(t, err)
	_, err = os.Stat(png)
	assert.NoError(t, err)
}

func TestRenderAll(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "render", "--all", "--dir", dir, "--tuning", "standard")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 4 files")
	for _, name := range []string{"chords", "chromatic", "default", "pentatonic"} {
		info, err := os.Stat(filepath.Join(dir, name+".wav"))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(44))
	}
}

func TestUnknownTuningFails(t *testing.T) {
	_, err := run(t, "tunings", "--tuning", "open_g")
	assert.Error(t, err)
}

func TestGenerateCommand(t *testing.T) {
	t.Cleanup(func() { _ = rootCmd.PersistentFlags().Set("multi-digit", "false") })
	path := filepath.Join(t.TempDir(), "scale.tab")
	out, err := run(t, "generate", "--root", "E", "--scale", "phrygian", "--pattern", "ascending",
		"--bars", "2", "--position", "2", "--tuning", "standard", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "E phrygian: E, F, G, A, B, C, D")

	out, err = run(t, "parse", "--multi-digit", "-f", path, "--tuning", "standard")
	require.NoError(t, err)
	assert.Contains(t, out, "8 events")
	assert.Contains(t, out, "E3(52)")
}

func TestGenerateCommandList(t *testing.T) {
	out, err := run(t, "generate", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "phrygian")
	assert.Contains(t, out, "power_chords")
	assert.Contains(t, out, "metal_riff")
}

func TestGenerateCommandRejectsUnknownPattern(t *testing.T) {
	_, err := run(t, "generate", "--pattern", "sweep")
	assert.Error(t, err)
}
