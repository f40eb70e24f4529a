package device

import (
	"bytes"
	"log/slog"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkers(t *testing.T) {
	assert.Equal(t, 1, Info{PhysicalCores: 1, LogicalCores: 2}.Workers())
	assert.Equal(t, runtime.NumCPU(), Info{}.Workers())
	assert.Equal(t, runtime.NumCPU(), Info{PhysicalCores: runtime.NumCPU() + 1}.Workers())

	w := Detect().Workers()
	assert.GreaterOrEqual(t, w, 1)
	assert.LessOrEqual(t, w, runtime.NumCPU())
}

func TestLogValue(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	log.Info("cpu", "cpu", Info{Brand: "test", PhysicalCores: 4, AVX2: true})
	assert.Contains(t, buf.String(), "cpu.physical_cores=4")
	assert.Contains(t, buf.String(), "cpu.avx2=true")
}
