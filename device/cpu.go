// Package device reports the CPU the forward pass runs on
package device

import "log/slog"
import "runtime"

import "github.com/klauspost/cpuid/v2"

// Info describes the host CPU.
type Info struct {
	Brand         string
	PhysicalCores int
	LogicalCores  int
	AVX2          bool
	AVX512        bool
	FMA3          bool
}

// Detect queries the CPU through cpuid.
func Detect() Info {
	return Info{
		Brand:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
		AVX512:        cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
		FMA3:          cpuid.CPU.Supports(cpuid.FMA3),
	}
}

// Workers returns the default number of image decoding goroutines: one per
// physical core, falling back to the Go runtime count when cpuid cannot tell.
func (i Info) Workers() int {
	n := i.PhysicalCores
	if n <= 0 {
		n = i.LogicalCores
	}
	if n <= 0 || n > runtime.NumCPU() {
		n = runtime.NumCPU()
	}
	if n <= 0 {
		n = 1
	}
	return n
}

// LogValue implements slog.LogValuer.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("brand", i.Brand),
		slog.Int("physical_cores", i.PhysicalCores),
		slog.Int("logical_cores", i.LogicalCores),
		slog.Bool("avx2", i.AVX2),
		slog.Bool("avx512", i.AVX512),
		slog.Bool("fma3", i.FMA3),
	)
}
