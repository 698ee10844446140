package daemon

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleMemoryUsageKB(t *testing.T) {
	kb := sampleMemoryUsageKB()
	if runtime.GOOS == "linux" {
		assert.Greater(t, kb, int64(0), "a running test process should report nonzero RSS")
	} else {
		assert.Equal(t, int64(0), kb)
	}
}
