// Package host describes the machine a validation run executes on.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lxc/incus/v6/shared/subprocess"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// DriverModule is the kernel module providing the control channel.
const DriverModule = "pcie_nymph"

// Info is a short description of the host.
type Info struct {
	CPUModel    string
	CPUCount    int
	MemoryTotal uint64

	// Driver is the loaded module version, empty when unknown.
	Driver string
}

// String renders the host on a single line.
func (i Info) String() string {
	cpuModel := i.CPUModel
	if cpuModel == "" {
		cpuModel = "unknown CPU"
	}

	return fmt.Sprintf("%s (%d threads), %s memory", cpuModel, i.CPUCount, humanize.IBytes(i.MemoryTotal))
}

// Get collects the host information. Every part is best effort, a missing part is left empty.
func Get(ctx context.Context) Info {
	info := Info{}

	cpus, err := cpu.InfoWithContext(ctx)
	if err != nil {
		slog.DebugContext(ctx, "Failed to get CPU information", "err", err)
	} else if len(cpus) > 0 {
		info.CPUModel = strings.TrimSpace(cpus[0].ModelName)
	}

	count, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		slog.DebugContext(ctx, "Failed to count CPUs", "err", err)
	} else {
		info.CPUCount = count
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		slog.DebugContext(ctx, "Failed to get memory information", "err", err)
	} else {
		info.MemoryTotal = vm.Total
	}

	info.Driver, err = DriverVersion(ctx)
	if err != nil {
		slog.DebugContext(ctx, "Failed to get driver version", "module", DriverModule, "err", err)
	}

	return info
}

// ModuleLoaded reports whether the pcie_nymph module is present in the running kernel.
func ModuleLoaded() bool {
	return moduleLoaded(sysModulePath)
}

const sysModulePath = "/sys/module"

func moduleLoaded(root string) bool {
	_, err := os.Stat(filepath.Join(root, DriverModule))

	return err == nil
}

// DriverVersion returns the version of the pcie_nymph module as reported by modinfo.
func DriverVersion(ctx context.Context) (string, error) {
	output, err := subprocess.RunCommandContext(ctx, "modinfo", "-F", "version", DriverModule)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}
