package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemProvider samples host memory and CPU usage.
type SystemProvider struct {
	// CPUSample is how long CPU usage is measured; zero compares with the previous call.
	CPUSample time.Duration
	Now       func() time.Time
}

func (p *SystemProvider) Name() string { return "system" }

func (p *SystemProvider) Fetch(ctx context.Context) (Snapshot, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}

	var cpuPercent float64
	percents, err := cpu.PercentWithContext(ctx, p.CPUSample, false)
	if err != nil {
		return nil, fmt.Errorf("read cpu: %w", err)
	}
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	return SystemSnapshot{
		At:            clockOrNow(p.Now),
		MemoryPercent: vm.UsedPercent,
		CPUPercent:    cpuPercent,
	}, nil
}
