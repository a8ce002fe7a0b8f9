package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasm-oj/wark/internal/probe"
)

// executeRoot runs the root command with a clean home directory and returns stdout.
// Flags keep their values between Execute calls, so every call passes them explicitly.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))

	probeFlags = probeCmdFlags{}
	jsonOutput = false
	verbose = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "memlimit", rootCmd.Use)
	assert.Contains(t, rootCmd.Short, "contiguous allocation")
}

func TestSubcommands(t *testing.T) {
	commands := rootCmd.Commands()
	commandNames := make([]string, len(commands))
	for i, cmd := range commands {
		commandNames[i] = cmd.Name()
	}

	assert.Contains(t, commandNames, "doctor")
}

func TestGlobalFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	assert.NotNil(t, flags.Lookup("config"))
	assert.NotNil(t, flags.Lookup("verbose"))
	assert.NotNil(t, flags.Lookup("json"))
}

func TestProbeFlags(t *testing.T) {
	flags := rootCmd.Flags()

	minFlag := flags.Lookup("min")
	require.NotNil(t, minFlag)
	assert.Equal(t, "0", minFlag.DefValue)

	maxFlag := flags.Lookup("max")
	require.NotNil(t, maxFlag)
	assert.Equal(t, "4096", maxFlag.DefValue)

	assert.NotNil(t, flags.Lookup("allocator"))
	assert.NotNil(t, flags.Lookup("record"))
	assert.NotNil(t, flags.Lookup("address-space-limit"))
}

func TestRunProbe_TextOutput(t *testing.T) {
	out, err := executeRoot(t, "--min", "0", "--max", "3", "--allocator", "heap", "--json=false")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Successfully allocated 0 MB of memory. ["))
	assert.True(t, strings.HasPrefix(lines[2], "Successfully allocated 2 MB of memory. [0x"))
	assert.Equal(t, "Memory limit: 3 MB", lines[3])
}

func TestRunProbe_EmptyRange(t *testing.T) {
	out, err := executeRoot(t, "--min", "5", "--max", "5", "--allocator", "heap", "--json=false")
	require.NoError(t, err)

	assert.Equal(t, "Memory limit: 5 MB\n", out)
}

func TestRunProbe_JSONOutput(t *testing.T) {
	out, err := executeRoot(t, "--min", "1", "--max", "4", "--allocator", "heap", "--json")
	require.NoError(t, err)

	var result struct {
		LimitMB   uint64 `json:"limit_mb"`
		Attempts  int    `json:"attempts"`
		Failed    bool   `json:"failed"`
		Allocator string `json:"allocator"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	assert.Equal(t, uint64(4), result.LimitMB)
	assert.Equal(t, 3, result.Attempts)
	assert.False(t, result.Failed)
	assert.Equal(t, "heap", result.Allocator)
}

func TestRunProbe_Record(t *testing.T) {
	recordFile := filepath.Join(t.TempDir(), "probe.jsonl")

	_, err := executeRoot(t, "--min", "0", "--max", "2", "--allocator", "heap", "--json=false", "--record", recordFile)
	require.NoError(t, err)

	data, err := os.ReadFile(recordFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// start, two attempts, result
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"type":"start"`)
	assert.Contains(t, lines[1], `"type":"attempt"`)
	assert.Contains(t, lines[3], `"type":"result"`)
	assert.Contains(t, lines[3], `"limit_mb":2`)
}

func TestRunProbe_InvalidBounds(t *testing.T) {
	_, err := executeRoot(t, "--min", "10", "--max", "2", "--allocator", "heap", "--json=false")
	require.Error(t, err)
	assert.ErrorIs(t, err, probe.ErrInvalidBounds)
}

func TestRunProbe_UnknownAllocator(t *testing.T) {
	_, err := executeRoot(t, "--min", "0", "--max", "2", "--allocator", "slab", "--json=false")
	assert.Error(t, err)
}

func TestPrintAttempt(t *testing.T) {
	var buf bytes.Buffer
	obs := printAttempt(&buf)

	obs(probe.Attempt{SizeMB: 1, Bytes: probe.MB, OK: true, Start: 0x10000000, End: 0x100fffff})
	obs(probe.Attempt{SizeMB: 101})

	assert.Equal(t,
		"Successfully allocated 1 MB of memory. [0x10000000 ~ 0x100fffff]\n"+
			"Could not allocate 101 MB of memory.\n",
		buf.String())
}
