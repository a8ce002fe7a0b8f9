//go:build linux

package alloc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasm-oj/wark/internal/host"
	"github.com/wasm-oj/wark/internal/probe"
)

const (
	limitChildEnv    = "MEMLIMIT_ADDRESS_SPACE_CHILD"
	limitResultMark  = "LIMIT_RESULT "
	addressSpaceCap  = 3 << 30
	addressSpaceCapM = addressSpaceCap >> 20
)

// TestFindLimit_UnderAddressSpaceLimit runs the search in a child process
// whose RLIMIT_AS is lowered, so the mmap allocator is refused for real.
// The lowered limit lasts for the life of the process, so only the child sets it.
func TestFindLimit_UnderAddressSpaceLimit(t *testing.T) {
	if os.Getenv(limitChildEnv) == "1" {
		runLimitedChild(t)
		return
	}
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestFindLimit_UnderAddressSpaceLimit$", "-test.count=1")
	cmd.Env = append(os.Environ(), limitChildEnv+"=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	require.NoError(t, err, "child failed: %s\n%s", out, stderr.String())

	var res probe.Result
	found := false
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, limitResultMark) {
			continue
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, limitResultMark)), &res))
		found = true
	}
	if !found {
		t.Skipf("child could not lower RLIMIT_AS:\n%s", out)
	}

	assert.True(t, res.Failed, "a %d MB address space must refuse some size below 4096 MB", addressSpaceCapM)
	assert.Greater(t, res.FailedMB, uint64(0))
	assert.Less(t, res.FailedMB, uint64(addressSpaceCapM))
	assert.Equal(t, res.FailedMB-1, res.LimitMB)
	assert.False(t, res.Immediate)
	assert.Equal(t, int(res.FailedMB)+1, res.Attempts)
}

func runLimitedChild(t *testing.T) {
	if err := host.SetAddressSpaceLimit(addressSpaceCap); err != nil {
		t.Skipf("cannot lower RLIMIT_AS: %v", err)
	}

	a, err := New(KindOS)
	require.NoError(t, err)

	res, err := probe.FindLimit(a, probe.DefaultBounds, nil)
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	fmt.Printf("%s%s\n", limitResultMark, data)
}
