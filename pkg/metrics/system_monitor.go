package metrics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatus 主机资源快照
type SystemStatus struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemUsed     uint64  `json:"mem_used"`
	MemTotal    uint64  `json:"mem_total"`
	MemPercent  float64 `json:"mem_percent"`
	DiskUsed    uint64  `json:"disk_used"`
	DiskTotal   uint64  `json:"disk_total"`
	DiskPercent float64 `json:"disk_percent"`
	Goroutines  int     `json:"goroutines"`
}

// SnapshotSystem 采集一次系统状态
func SnapshotSystem() SystemStatus {
	var st SystemStatus
	st.Goroutines = runtime.NumGoroutine()

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		st.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.MemUsed = vm.Used
		st.MemTotal = vm.Total
		st.MemPercent = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		st.DiskUsed = du.Used
		st.DiskTotal = du.Total
		st.DiskPercent = du.UsedPercent
	}
	return st
}
