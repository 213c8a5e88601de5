package monitor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// MetricsSource produces the numeric system snapshot for one cycle. The
// engine falls back to models.DefaultSystemMetrics when Collect fails.
type MetricsSource interface {
	Collect(ctx context.Context) (models.SystemMetrics, error)
}

// hostSource reads resource usage from the local host: load average and
// memory from procfs, storage from the configured volume.
type hostSource struct {
	storagePath string
}

func NewHostSource(storagePath string) MetricsSource {
	if storagePath == "" {
		storagePath = "/"
	}
	return &hostSource{storagePath: storagePath}
}

func (s *hostSource) Collect(_ context.Context) (models.SystemMetrics, error) {
	m := models.DefaultSystemMetrics()

	load, err := readLoadAvg()
	if err != nil {
		return m, fmt.Errorf("failed to read load average: %w", err)
	}
	m.CPU.Load = load
	m.CPU.Usage = cpuUsageFromLoad(load[0])

	used, total, err := readMemInfo()
	if err != nil {
		return m, fmt.Errorf("failed to read memory info: %w", err)
	}
	m.Memory.Used = used
	m.Memory.Total = total
	if total > 0 {
		m.Memory.Percentage = float64(used) / float64(total) * 100
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.storagePath, &stat); err != nil {
		return m, fmt.Errorf("failed to stat storage volume: %w", err)
	}
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	freeBytes := stat.Bavail * uint64(stat.Bsize)
	m.Storage.Total = totalBytes
	m.Storage.Used = totalBytes - freeBytes
	if totalBytes > 0 {
		m.Storage.Percentage = float64(totalBytes-freeBytes) / float64(totalBytes) * 100
	}

	return m, nil
}

func readLoadAvg() ([]float64, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return nil, fmt.Errorf("unexpected loadavg format: %q", string(data))
	}
	load := make([]float64, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		load[i] = v
	}
	return load, nil
}

// cpuUsageFromLoad approximates CPU usage as the 1-minute load normalized by
// core count, capped at 100.
func cpuUsageFromLoad(load1 float64) float64 {
	usage := load1 / float64(runtime.NumCPU()) * 100
	if usage > 100 {
		usage = 100
	}
	return usage
}

func readMemInfo() (used, total uint64, err error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		value, perr := strconv.ParseUint(fields[1], 10, 64)
		if perr != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			memTotal = value * 1024
		case "MemAvailable:":
			memAvailable = value * 1024
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, err
	}
	if memTotal == 0 {
		return 0, 0, fmt.Errorf("MemTotal not found in /proc/meminfo")
	}
	return memTotal - memAvailable, memTotal, nil
}
