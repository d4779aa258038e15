package cpuspec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxThreads(t *testing.T) {
	t.Parallel()

	limit := runtime.GOMAXPROCS(0)

	tests := []struct {
		name string
		spec CPUSpec
		want int
	}{
		{"logical cores bounded by gomaxprocs", CPUSpec{LogicalCores: 1 << 20}, limit},
		{"single core", CPUSpec{LogicalCores: 1}, 1},
		{"physical times threads", CPUSpec{PhysicalCores: 1, ThreadsPerCore: 1}, 1},
		{"unknown topology", CPUSpec{}, min(runtime.NumCPU(), limit)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.spec.MaxThreads())
		})
	}
}

func TestGetCPUSpec(t *testing.T) {
	t.Parallel()

	spec := GetCPUSpec()
	assert.GreaterOrEqual(t, spec.MaxThreads(), 1)
	assert.LessOrEqual(t, spec.MaxThreads(), runtime.GOMAXPROCS(0))
}
