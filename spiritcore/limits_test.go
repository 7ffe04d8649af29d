package spiritcore

import "testing"

func TestDefaultResourceLimitsValidate(t *testing.T) {
	if err := DefaultResourceLimits().Validate(); err != nil {
		t.Errorf("default resource limits should validate cleanly: %v", err)
	}
}

func TestResourceLimitsValidateRejectsZeroMemory(t *testing.T) {
	l := DefaultResourceLimits()
	l.MaxMemoryBytes = 0
	if err := l.Validate(); err == nil {
		t.Error("zero max memory should be rejected")
	}
}

func TestResourceLimitsValidateRejectsMemoryAboveCeiling(t *testing.T) {
	l := DefaultResourceLimits()
	l.MaxMemoryBytes = MaxSandboxMemoryBytes + 1
	if err := l.Validate(); err == nil {
		t.Error("memory above the ceiling should be rejected")
	}
}

func TestResourceLimitsValidateRejectsOutOfRangeCPUQuota(t *testing.T) {
	l := DefaultResourceLimits()
	l.CPUQuota = 0
	if err := l.Validate(); err == nil {
		t.Error("zero CPU quota should be rejected")
	}
	l.CPUQuota = 1.5
	if err := l.Validate(); err == nil {
		t.Error("CPU quota above 1 should be rejected")
	}
}
