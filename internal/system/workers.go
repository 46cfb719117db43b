package system

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// framesPerWorker is how many frames a worker may hold at once: the one it
// draws plus the ones queued behind the encoder.
const framesPerWorker = 4

// RecommendedWorkers sizes the render pool from logical CPUs, capped so
// in-flight frames of frameBytes each fit in half the available memory.
func RecommendedWorkers(frameBytes uint64) int {
	workers := runtime.NumCPU()
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		workers = n
	}

	if frameBytes > 0 {
		if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
			limit := int(vm.Available / 2 / frameBytes / framesPerWorker)
			if limit < workers {
				workers = limit
			}
		}
	}

	if workers < 1 {
		workers = 1
	}
	return workers
}
