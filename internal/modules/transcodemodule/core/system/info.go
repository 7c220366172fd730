// Package system reports host resources used to size the worker pool and to
// populate the health endpoint.
package system

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Info is a snapshot of the host for diagnostics.
type Info struct {
	Hostname      string  `json:"hostname"`
	Platform      string  `json:"platform"`
	CPUCores      int     `json:"cpu_cores"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryUsedPct float64 `json:"memory_used_pct"`
}

// Snapshot collects current host information. Fields that cannot be read are
// left at their zero value rather than failing the whole snapshot.
func Snapshot() Info {
	info := Info{
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		CPUCores: runtime.NumCPU(),
	}

	if hostInfo, err := host.Info(); err == nil {
		info.Hostname = hostInfo.Hostname
		info.Platform = hostInfo.Platform + " " + hostInfo.PlatformVersion
	}
	if counts, err := cpu.Counts(true); err == nil && counts > 0 {
		info.CPUCores = counts
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotalMB = vm.Total / (1024 * 1024)
		info.MemoryUsedPct = vm.UsedPercent
	}

	return info
}

// DefaultWorkerSlots suggests a worker slot count for hosts where none is
// configured. Transcodes are CPU heavy, so one slot per four logical cores,
// clamped to [1, 4].
func DefaultWorkerSlots() int {
	cores := runtime.NumCPU()
	if counts, err := cpu.Counts(true); err == nil && counts > 0 {
		cores = counts
	}

	slots := cores / 4
	if slots < 1 {
		slots = 1
	}
	if slots > 4 {
		slots = 4
	}
	return slots
}
