package spiritcore

import (
	"sync"
	"time"
)

// ExecutionMetrics accumulates the resource usage of a single invocation,
// feeding PricingModel.CalculateCost.
type ExecutionMetrics struct {
	FuelConsumed  uint64
	PeakMemory    uint64
	StorageReads  uint32
	StorageWrites uint32
	NetworkOps    uint32
}

// RecordFuel adds amount to the fuel-consumed counter.
func (m *ExecutionMetrics) RecordFuel(amount uint64) { m.FuelConsumed += amount }

// RecordMemory raises PeakMemory if bytes is higher than the current peak.
func (m *ExecutionMetrics) RecordMemory(bytes uint64) {
	if bytes > m.PeakMemory {
		m.PeakMemory = bytes
	}
}

// RecordStorageRead increments the storage-read counter.
func (m *ExecutionMetrics) RecordStorageRead() { m.StorageReads++ }

// RecordStorageWrite increments the storage-write counter.
func (m *ExecutionMetrics) RecordStorageWrite() { m.StorageWrites++ }

// RecordNetworkOp increments the network-operation counter.
func (m *ExecutionMetrics) RecordNetworkOp() { m.NetworkOps++ }

// SandboxMetrics aggregates usage across every invocation a sandbox has
// handled over its lifetime, independent of any single ExecutionMetrics.
type SandboxMetrics struct {
	mu             sync.Mutex
	InvocationCount uint64
	TotalFuelUsed   uint64
	TotalDuration   time.Duration
	PeakMemory      uint64
	TrapCount       uint64
	LastUpdated     time.Time
}

// NewSandboxMetrics returns a zeroed aggregate.
func NewSandboxMetrics() *SandboxMetrics { return &SandboxMetrics{} }

// RecordInvocation folds one invocation's results into the aggregate.
func (s *SandboxMetrics) RecordInvocation(metrics ExecutionMetrics, duration time.Duration, trapped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InvocationCount++
	s.TotalFuelUsed += metrics.FuelConsumed
	s.TotalDuration += duration
	if metrics.PeakMemory > s.PeakMemory {
		s.PeakMemory = metrics.PeakMemory
	}
	if trapped {
		s.TrapCount++
	}
	s.LastUpdated = time.Now()
}

// Snapshot returns a copy of the aggregate safe to read without holding the
// lock further.
func (s *SandboxMetrics) Snapshot() SandboxMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SandboxMetrics{
		InvocationCount: s.InvocationCount,
		TotalFuelUsed:   s.TotalFuelUsed,
		TotalDuration:   s.TotalDuration,
		PeakMemory:      s.PeakMemory,
		TrapCount:       s.TrapCount,
		LastUpdated:     s.LastUpdated,
	}
}
