package spiritcore

import (
	"testing"
	"time"
)

func TestSandboxMetricsRecordInvocation(t *testing.T) {
	sm := NewSandboxMetrics()
	sm.RecordInvocation(ExecutionMetrics{FuelConsumed: 50, PeakMemory: 1024}, 10*time.Millisecond, false)
	sm.RecordInvocation(ExecutionMetrics{FuelConsumed: 25, PeakMemory: 2048}, 5*time.Millisecond, true)

	snap := sm.Snapshot()
	if snap.InvocationCount != 2 {
		t.Errorf("invocation count = %d, want 2", snap.InvocationCount)
	}
	if snap.TotalFuelUsed != 75 {
		t.Errorf("total fuel used = %d, want 75", snap.TotalFuelUsed)
	}
	if snap.PeakMemory != 2048 {
		t.Errorf("peak memory = %d, want 2048", snap.PeakMemory)
	}
	if snap.TrapCount != 1 {
		t.Errorf("trap count = %d, want 1", snap.TrapCount)
	}
}

func TestExecutionMetricsRecordMemoryKeepsPeak(t *testing.T) {
	var m ExecutionMetrics
	m.RecordMemory(100)
	m.RecordMemory(50)
	m.RecordMemory(200)
	if m.PeakMemory != 200 {
		t.Errorf("peak memory = %d, want 200", m.PeakMemory)
	}
}
