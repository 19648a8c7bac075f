package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"

	"salachat/contract"
)

var _ contract.Worker = (*MonitorWorker)(nil)

// StatsProvider supplies broker figures (rooms, members, queue depths)
// for each monitoring tick.
type StatsProvider func() map[string]any

// MonitorWorker periodically logs self-process health next to broker
// stats. Log-only telemetry; losing a tick is harmless.
type MonitorWorker struct {
	log      *slog.Logger
	interval time.Duration
	stats    StatsProvider
}

func NewMonitorWorker(log *slog.Logger, interval time.Duration, stats StatsProvider) *MonitorWorker {
	return &MonitorWorker{log: log, interval: interval, stats: stats}
}

func (w *MonitorWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping monitor")
			return nil
		case <-ticker.C:
			args := []any{"goroutines", runtime.NumGoroutine()}
			if cpu, err := p.CPUPercent(); err == nil {
				args = append(args, "cpu_pct", cpu)
			}
			if ram, err := p.MemoryPercent(); err == nil {
				args = append(args, "ram_pct", ram)
			}
			for k, v := range w.stats() {
				args = append(args, k, v)
			}
			w.log.Info("Estado del broker", args...)
		}
	}
}
