package supervisor

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scanAll(t *testing.T, input string) []string {
	t.Helper()
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanProgressLines)
	var out []string
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			out = append(out, line)
		}
	}
	assert.NoError(t, scanner.Err())
	return out
}

func TestScanProgressLines_SplitsOnNewline(t *testing.T) {
	lines := scanAll(t, "first\nsecond\nthird")
	assert.Equal(t, []string{"first", "second", "third"}, lines)
}

func TestScanProgressLines_SplitsOnCarriageReturn(t *testing.T) {
	// In-place status redraws separate updates with bare CRs.
	lines := scanAll(t, "10%\r20%\r30%\r\n done\n")
	assert.Equal(t, []string{"10%", "20%", "30%", "done"}, lines)
}

func TestScanProgressLines_CRLF(t *testing.T) {
	lines := scanAll(t, "first\r\nsecond\r\n")
	assert.Equal(t, []string{"first", "second"}, lines)
}

func TestTailBuffer_KeepsLastLines(t *testing.T) {
	tail := newTailBuffer(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		tail.Add(l)
	}
	assert.Equal(t, "c\nd\ne", tail.String())
}

func TestTailBuffer_Empty(t *testing.T) {
	assert.Equal(t, "", newTailBuffer(3).String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, -1, exitCode(errors.New("wait: no child processes")))
}
