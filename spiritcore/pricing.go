package spiritcore

// PricingModel converts an execution's resource usage into a credit cost.
// Every Spirit manifest may carry its own pricing model; the runtime falls
// back to DefaultPricingModel when none is supplied.
type PricingModel struct {
	BaseCost            uint64 // microcredits charged per invocation
	PerFuelCost         uint64 // microcredits per 1000 fuel units consumed
	PerMemoryByteCost   uint64
	PerStorageReadCost  uint64
	PerStorageWriteCost uint64
	PerNetworkOpCost    uint64
	MinBalance          uint64 // minimum balance required to start execution
}

// DefaultPricingModel mirrors the runtime's standard per-unit costs.
func DefaultPricingModel() PricingModel {
	return PricingModel{
		BaseCost:            100,
		PerFuelCost:         1,
		PerMemoryByteCost:   0,
		PerStorageReadCost:  10,
		PerStorageWriteCost: 100,
		PerNetworkOpCost:    50,
		MinBalance:          1000,
	}
}

// FreePricingModel charges nothing, used for system Spirits and tests.
func FreePricingModel() PricingModel { return PricingModel{} }

// NewPricingModel returns DefaultPricingModel with the base and per-fuel
// costs overridden.
func NewPricingModel(baseCost, perFuelCost uint64) PricingModel {
	p := DefaultPricingModel()
	p.BaseCost = baseCost
	p.PerFuelCost = perFuelCost
	return p
}

// CreditCost is the itemized result of applying a PricingModel to a set of
// ExecutionMetrics.
type CreditCost struct {
	Base         uint64
	Fuel         uint64
	Memory       uint64
	StorageRead  uint64
	StorageWrite uint64
	Network      uint64
	Total        uint64
}

// ZeroCost returns a CreditCost with every component at zero.
func ZeroCost() CreditCost { return CreditCost{} }

// CalculateCost itemizes and totals the credit cost of metrics under p.
func (p PricingModel) CalculateCost(metrics ExecutionMetrics) CreditCost {
	fuelCost := (metrics.FuelConsumed * p.PerFuelCost) / 1000
	memoryCost := metrics.PeakMemory * p.PerMemoryByteCost
	storageReadCost := uint64(metrics.StorageReads) * p.PerStorageReadCost
	storageWriteCost := uint64(metrics.StorageWrites) * p.PerStorageWriteCost
	networkCost := uint64(metrics.NetworkOps) * p.PerNetworkOpCost

	return CreditCost{
		Base:         p.BaseCost,
		Fuel:         fuelCost,
		Memory:       memoryCost,
		StorageRead:  storageReadCost,
		StorageWrite: storageWriteCost,
		Network:      networkCost,
		Total:        p.BaseCost + fuelCost + memoryCost + storageReadCost + storageWriteCost + networkCost,
	}
}

// CanExecute reports whether balance meets the pricing model's minimum.
func (p PricingModel) CanExecute(balance uint64) bool { return balance >= p.MinBalance }

// EstimateMaxCost bounds the worst-case cost for a sandbox given its
// resource limits, before any execution has happened.
func (p PricingModel) EstimateMaxCost(fuelLimit, memoryLimit uint64) uint64 {
	return p.BaseCost + (fuelLimit*p.PerFuelCost)/1000 + memoryLimit*p.PerMemoryByteCost
}
