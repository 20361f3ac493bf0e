// Package sysinfo collects metadata about the host a benchmark ran on.
package sysinfo

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/sirupsen/logrus"
)

// Info describes the benchmarking host.
type Info struct {
	Hostname         string  `json:"hostname,omitempty"`
	OS               string  `json:"os"`
	Platform         string  `json:"platform,omitempty"`
	PlatformVersion  string  `json:"platform_version,omitempty"`
	KernelVersion    string  `json:"kernel_version,omitempty"`
	Arch             string  `json:"arch"`
	CPUModel         string  `json:"cpu_model,omitempty"`
	CPUCores         int     `json:"cpu_cores,omitempty"`
	CPUMhz           float64 `json:"cpu_mhz,omitempty"`
	MemoryTotalBytes uint64  `json:"memory_total_bytes,omitempty"`
	GoVersion        string  `json:"go_version"`
}

// Collect gathers host information. Probes that fail are logged and leave
// their fields empty.
func Collect(ctx context.Context, log logrus.FieldLogger) *Info {
	log = log.WithField("component", "sysinfo")

	info := &Info{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
	}

	if h, err := host.InfoWithContext(ctx); err != nil {
		log.WithError(err).Debug("Failed to read host info")
	} else {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelVersion = h.KernelVersion
	}

	if cpus, err := cpu.InfoWithContext(ctx); err != nil {
		log.WithError(err).Debug("Failed to read cpu info")
	} else if len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
		info.CPUMhz = cpus[0].Mhz
	}

	if cores, err := cpu.CountsWithContext(ctx, true); err != nil {
		log.WithError(err).Debug("Failed to count cpus")
	} else {
		info.CPUCores = cores
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		log.WithError(err).Debug("Failed to read memory info")
	} else {
		info.MemoryTotalBytes = vm.Total
	}

	return info
}
