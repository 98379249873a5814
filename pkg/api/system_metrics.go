package api

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// handleSystem returns process CPU and memory usage for the dashboard.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, collectSystemMetrics(r.Context()))
}

func collectSystemMetrics(ctx context.Context) SystemResponse {
	var resp SystemResponse

	// Process CPU is reported per-core; normalize to 0-100%.
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err == nil {
		if cpuPercent, err := proc.PercentWithContext(ctx, 200*time.Millisecond); err == nil {
			if numCPU := runtime.NumCPU(); numCPU > 0 {
				resp.CPUUsagePercent = cpuPercent / float64(numCPU)
			} else {
				resp.CPUUsagePercent = cpuPercent
			}
		} else if percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(percents) > 0 {
			resp.CPUUsagePercent = percents[0]
		}

		if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
			resp.MemoryUsageBytes = memInfo.RSS
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.MemoryTotalBytes = vm.Total
		if resp.MemoryTotalBytes > 0 && resp.MemoryUsageBytes > 0 {
			resp.MemoryUsagePercent = (float64(resp.MemoryUsageBytes) / float64(resp.MemoryTotalBytes)) * 100
		}
	}

	return resp
}
