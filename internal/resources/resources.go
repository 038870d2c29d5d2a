// Package resources checks the host before a run: whether the output memory
// budget fits in available memory and whether the output disk can hold a flush.
package resources

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Warning is a non-fatal finding about the host.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeMemoryBudget = "memory_budget"
	CodeDiskSpace    = "disk_space"
	CodeProbeFailed  = "probe_failed"
)

// Checker probes host memory and disk.
type Checker struct {
	memory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	disk   func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewChecker returns a Checker backed by gopsutil.
func NewChecker() *Checker {
	return &Checker{
		memory: mem.VirtualMemoryWithContext,
		disk:   disk.UsageWithContext,
	}
}

// Check compares the memory budget with available memory and the size of one
// flush with free space on the disk holding dir. The budget should stay below
// half of available memory.
func (c *Checker) Check(ctx context.Context, dir string, budget, flushBytes int64) []Warning {
	var warnings []Warning

	if vm, err := c.memory(ctx); err != nil {
		warnings = append(warnings, Warning{Code: CodeProbeFailed, Message: fmt.Sprintf("reading memory stats: %v", err)})
	} else if budget > 0 && uint64(budget) > vm.Available/2 {
		warnings = append(warnings, Warning{
			Code: CodeMemoryBudget,
			Message: fmt.Sprintf("memory budget %s exceeds half of available memory (%s)",
				humanize.IBytes(uint64(budget)), humanize.IBytes(vm.Available)),
		})
	}

	if du, err := c.disk(ctx, dir); err != nil {
		warnings = append(warnings, Warning{Code: CodeProbeFailed, Message: fmt.Sprintf("reading disk usage: %v", err)})
	} else if flushBytes > 0 && uint64(flushBytes) > du.Free {
		warnings = append(warnings, Warning{
			Code: CodeDiskSpace,
			Message: fmt.Sprintf("one flush needs about %s but only %s is free",
				humanize.IBytes(uint64(flushBytes)), humanize.IBytes(du.Free)),
		})
	}

	return warnings
}
