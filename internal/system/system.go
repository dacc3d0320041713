// Package system probes the host for sensible rendering defaults.
package system

import (
	"runtime"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Worker bounds. Past maxWorkers the encoder pipe is the bottleneck, not
// frame synthesis.
const (
	minWorkers = 1
	maxWorkers = 32
)

// RaiseFileLimit lifts the soft open-file limit to 2048 so that a timeline
// full of clips can keep decoder pipes open. Returns the resulting limit.
func RaiseFileLimit() (uint64, error) {
	var rl syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return 0, err
	}
	if rl.Cur >= 2048 {
		return rl.Cur, nil
	}
	rl.Cur = 2048
	if rl.Cur > rl.Max {
		rl.Cur = rl.Max
	}
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return 0, err
	}
	return rl.Cur, nil
}

// Workers picks a degree of parallelism for frame synthesis: one worker per
// logical CPU, reduced if available memory cannot hold the in-flight frames
// that much parallelism implies. Each in-flight frame costs roughly three
// canvas-sized RGBA buffers across decode, composite and pack.
func Workers(canvasW, canvasH int) int {
	count, err := cpu.Counts(true)
	if err != nil || count < 1 {
		count = runtime.NumCPU()
	}

	workers := count
	if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
		perWorker := uint64(canvasW) * uint64(canvasH) * 4 * 3
		if perWorker > 0 {
			// Leave half of available memory to everything else.
			if byMem := int(vm.Available / 2 / perWorker); byMem < workers {
				workers = byMem
			}
		}
	}

	if workers < minWorkers {
		workers = minWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	return workers
}
