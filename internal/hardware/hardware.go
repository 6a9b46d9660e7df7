// Package hardware reports the CPU and GPU available for model inference.
package hardware

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Device names passed to the models
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// CPUInfo describes the host processor
type CPUInfo struct {
	Brand          string  `json:"brand"`
	PhysicalCores  int     `json:"physical_cores"`
	LogicalCores   int     `json:"logical_cores"`
	FrequencyMHz   float64 `json:"frequency_mhz"`
	TotalMemoryMiB uint64  `json:"total_memory_mib"`
}

// GPUInfo describes one NVIDIA GPU
type GPUInfo struct {
	Name          string `json:"name"`
	MemoryMiB     int    `json:"memory_mib"`
	DriverVersion string `json:"driver_version"`
}

// Info is the response of GET /hardware
type Info struct {
	CPU        CPUInfo   `json:"cpu"`
	GPUs       []GPUInfo `json:"gpus"`
	Device     string    `json:"device"`
	DeviceName string    `json:"device_name"`
}

// Probe inspects the host once and caches the answer
type Probe struct {
	once sync.Once
	info Info
	// gpuQuery lists GPUs; replaced in tests
	gpuQuery func(ctx context.Context) ([]byte, error)
}

// NewProbe creates a probe that queries nvidia-smi for GPUs
func NewProbe() *Probe {
	return &Probe{gpuQuery: nvidiaSMI}
}

// Info returns the host hardware
func (p *Probe) Info(ctx context.Context) Info {
	p.once.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		p.info = p.collect(ctx)
	})
	return p.info
}

// Device is the compute device stages should run on
func (p *Probe) Device(ctx context.Context) string {
	return p.Info(ctx).Device
}

// DeviceName describes the device for run logs: the GPU name or
// "CPU brand (arch)".
func (p *Probe) DeviceName(ctx context.Context) string {
	return p.Info(ctx).DeviceName
}

func (p *Probe) collect(ctx context.Context) Info {
	info := Info{GPUs: []GPUInfo{}, Device: DeviceCPU}

	if stats, err := cpu.InfoWithContext(ctx); err == nil && len(stats) > 0 {
		info.CPU.Brand = strings.TrimSpace(stats[0].ModelName)
		info.CPU.FrequencyMHz = stats[0].Mhz
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.CPU.PhysicalCores = n
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPU.LogicalCores = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.CPU.TotalMemoryMiB = vm.Total / (1024 * 1024)
	}

	if out, err := p.gpuQuery(ctx); err == nil {
		info.GPUs = parseNvidiaSMI(out)
	}
	if len(info.GPUs) > 0 {
		info.Device = DeviceCUDA
		info.DeviceName = info.GPUs[0].Name
	} else {
		brand := info.CPU.Brand
		if brand == "" {
			brand = "Unknown"
		}
		info.DeviceName = fmt.Sprintf("%s (%s)", brand, runtime.GOARCH)
	}
	return info
}

func nvidiaSMI(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=name,memory.total,driver_version",
		"--format=csv,noheader,nounits",
	)
	return cmd.Output()
}

// parseNvidiaSMI reads "name, memory, driver" csv lines
func parseNvidiaSMI(out []byte) []GPUInfo {
	gpus := []GPUInfo{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ",")
		if len(fields) < 3 {
			continue
		}
		memory, _ := strconv.Atoi(strings.TrimSpace(fields[1]))
		gpus = append(gpus, GPUInfo{
			Name:          strings.TrimSpace(fields[0]),
			MemoryMiB:     memory,
			DriverVersion: strings.TrimSpace(fields[2]),
		})
	}
	return gpus
}
