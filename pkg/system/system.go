// Copyright 2020-2022 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package system

import (
	"context"
	"errors"
	"fmt"
	"mjpegavi/pkg/log"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status stores system status.
type Status struct {
	CPUUsage  int `json:"cpuUsage"`
	RAMUsage  int `json:"ramUsage"`
	DiskUsage int `json:"diskUsage"`
}

type (
	cpuFunc  func(context.Context, time.Duration, bool) ([]float64, error)
	ramFunc  func(context.Context) (*mem.VirtualMemoryStat, error)
	diskFunc func(context.Context, string) (*disk.UsageStat, error)
)

// ErrNoCPUStat cpu function returned no values.
var ErrNoCPUStat = errors.New("no cpu stat")

// System .
type System struct {
	cpu  cpuFunc
	ram  ramFunc
	disk diskFunc

	storageDir string
	status     Status
	duration   time.Duration

	log *log.Logger
	mu  sync.Mutex
	o   sync.Once
}

// New returns new System. Disk usage is measured on storageDir.
func New(storageDir string, logger *log.Logger) *System {
	return &System{
		cpu:  cpu.PercentWithContext,
		ram:  mem.VirtualMemoryWithContext,
		disk: disk.UsageWithContext,

		storageDir: storageDir,
		duration:   10 * time.Second,

		log: logger,
	}
}

func (s *System) update(ctx context.Context) error {
	cpuUsage, err := s.cpu(ctx, s.duration, false)
	if err != nil {
		return fmt.Errorf("get cpu usage: %w", err)
	}
	if len(cpuUsage) == 0 {
		return ErrNoCPUStat
	}
	ramUsage, err := s.ram(ctx)
	if err != nil {
		return fmt.Errorf("get ram usage: %w", err)
	}
	diskUsage, err := s.disk(ctx, s.storageDir)
	if err != nil {
		return fmt.Errorf("get disk usage: %w", err)
	}

	s.mu.Lock()
	s.status = Status{
		CPUUsage:  int(cpuUsage[0]),
		RAMUsage:  int(ramUsage.UsedPercent),
		DiskUsage: int(diskUsage.UsedPercent),
	}
	s.mu.Unlock()

	return nil
}

// StatusLoop updates system status until context is canceled.
func (s *System) StatusLoop(ctx context.Context) {
	s.o.Do(func() {
		for {
			if ctx.Err() != nil {
				return
			}
			if err := s.update(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Src("app").Msgf("could not update system status: %v", err)
				select {
				case <-ctx.Done():
				case <-time.After(s.duration):
				}
			}
		}
	})
}

// Status returns cpu, ram and disk usage.
func (s *System) Status() Status {
	defer s.mu.Unlock()
	s.mu.Lock()
	return s.status
}
