package spiritcore

import "testing"

func TestDefaultPricingModelCalculateCost(t *testing.T) {
	p := DefaultPricingModel()
	metrics := ExecutionMetrics{
		FuelConsumed:  10000,
		StorageReads:  5,
		StorageWrites: 2,
		NetworkOps:    1,
	}

	cost := p.CalculateCost(metrics)

	if cost.Fuel != 10 {
		t.Errorf("fuel cost = %d, want 10", cost.Fuel)
	}
	if cost.StorageRead != 50 {
		t.Errorf("storage read cost = %d, want 50", cost.StorageRead)
	}
	if cost.StorageWrite != 200 {
		t.Errorf("storage write cost = %d, want 200", cost.StorageWrite)
	}
	if cost.Network != 50 {
		t.Errorf("network cost = %d, want 50", cost.Network)
	}
	if cost.Base != 100 {
		t.Errorf("base cost = %d, want 100", cost.Base)
	}
	want := cost.Base + cost.Fuel + cost.Memory + cost.StorageRead + cost.StorageWrite + cost.Network
	if cost.Total != want {
		t.Errorf("total = %d, want %d", cost.Total, want)
	}
}

func TestFreePricingModelIsZero(t *testing.T) {
	p := FreePricingModel()
	metrics := ExecutionMetrics{FuelConsumed: 1_000_000, StorageReads: 100, StorageWrites: 100, NetworkOps: 100}
	cost := p.CalculateCost(metrics)
	if cost.Total != 0 {
		t.Errorf("free pricing model total = %d, want 0", cost.Total)
	}
	if !p.CanExecute(0) {
		t.Error("free pricing model should allow execution with zero balance")
	}
}

func TestCanExecuteRespectsMinBalance(t *testing.T) {
	p := DefaultPricingModel()
	if p.CanExecute(999) {
		t.Error("balance below min_balance should not be allowed to execute")
	}
	if !p.CanExecute(1000) {
		t.Error("balance at min_balance should be allowed to execute")
	}
}
