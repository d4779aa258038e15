// Package cpuspec reports the processor topology used to cap the number of
// analysis threads.
package cpuspec

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName      string
	PhysicalCores  int
	LogicalCores   int
	ThreadsPerCore int
	HasFMA         bool
}

// GetCPUSpec returns the CPU specification detected by cpuid
func GetCPUSpec() CPUSpec {
	return CPUSpec{
		BrandName:      cpuid.CPU.BrandName,
		PhysicalCores:  cpuid.CPU.PhysicalCores,
		LogicalCores:   cpuid.CPU.LogicalCores,
		ThreadsPerCore: cpuid.CPU.ThreadsPerCore,
		HasFMA:         cpuid.CPU.Supports(cpuid.FMA3),
	}
}

// MaxThreads returns the hardware thread ceiling for frame-parallel work:
// logical cores as reported by cpuid, bounded by GOMAXPROCS. Containers and
// VMs may report zero cores, in which case runtime.NumCPU is used.
func (c CPUSpec) MaxThreads() int {
	limit := runtime.GOMAXPROCS(0)

	cores := c.LogicalCores
	if cores <= 0 {
		cores = c.PhysicalCores * max(c.ThreadsPerCore, 1)
	}
	if cores <= 0 {
		cores = runtime.NumCPU()
	}

	return max(min(cores, limit), 1)
}
