package spiritcore

import (
	"fmt"
	"math"
)

const (
	// DefaultFuel is granted to a sandbox that does not request a different
	// budget — enough for substantial computation without allowing runaway
	// execution.
	DefaultFuel uint64 = 1_000_000_000
	// FuelPerSecond is a rough estimate of sustained WASM throughput. No code
	// in this package derives a fuel grant from it.
	FuelPerSecond uint64 = 100_000_000
	// FuelCeiling is the largest fuel amount a manager may ever hold.
	FuelCeiling uint64 = math.MaxUint64 / 2

	// BaseInvokeFuelCost is charged once per host-level invocation. wasmer-go
	// has no wasmtime-style instruction-level metering hook, so this fixed
	// per-invoke charge is the only fuel a sandbox consumes: neither WASM
	// instructions nor host calls are charged.
	BaseInvokeFuelCost uint64 = 10
)

// FuelManager tracks a sandbox's execution budget independent of the WASM
// engine: an initial allocation, the amount remaining, and the amount
// consumed cumulatively across refuels (for billing/metrics).
type FuelManager struct {
	initialFuel   uint64
	remainingFuel uint64
	consumedFuel  uint64
}

// NewFuelManager returns a manager starting with initialFuel available. It
// returns ErrInvalidLimits if initialFuel exceeds FuelCeiling.
func NewFuelManager(initialFuel uint64) (*FuelManager, error) {
	if initialFuel > FuelCeiling {
		return nil, fmt.Errorf("%w: initial fuel %d exceeds ceiling %d", ErrInvalidLimits, initialFuel, FuelCeiling)
	}
	return &FuelManager{initialFuel: initialFuel, remainingFuel: initialFuel}, nil
}

// Consume deducts amount from the remaining budget and adds it to the
// cumulative consumed counter. It fails if amount is zero or exceeds what
// remains.
func (f *FuelManager) Consume(amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: cannot consume zero fuel", ErrInvalidLimits)
	}
	if amount > f.remainingFuel {
		return fmt.Errorf("%w: %d consumed, %d remaining, %d requested", ErrOutOfFuel, f.consumedFuel, f.remainingFuel, amount)
	}
	f.remainingFuel -= amount
	f.consumedFuel += amount
	return nil
}

// Refuel adds amount back to the remaining budget without resetting the
// cumulative consumed counter. It fails if amount is zero or would push the
// remaining budget past FuelCeiling.
func (f *FuelManager) Refuel(amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: cannot refuel with zero fuel", ErrInvalidLimits)
	}
	newRemaining := f.remainingFuel + amount
	if newRemaining < f.remainingFuel || newRemaining > FuelCeiling {
		return fmt.Errorf("%w: refuel of %d would exceed ceiling %d", ErrInvalidLimits, amount, FuelCeiling)
	}
	f.remainingFuel = newRemaining
	return nil
}

// Remaining returns the fuel currently available.
func (f *FuelManager) Remaining() uint64 { return f.remainingFuel }

// IsExhausted reports whether no fuel remains.
func (f *FuelManager) IsExhausted() bool { return f.remainingFuel == 0 }

// TotalConsumed returns cumulative consumption across every Consume call
// since creation or the last Reset. Refuel leaves it unchanged.
func (f *FuelManager) TotalConsumed() uint64 { return f.consumedFuel }

// InitialFuel returns the allocation the manager was created with, which
// Reset restores the remaining budget to.
func (f *FuelManager) InitialFuel() uint64 { return f.initialFuel }

// Reset restores the remaining budget to the initial allocation and zeroes
// the cumulative consumed counter.
func (f *FuelManager) Reset() {
	f.remainingFuel = f.initialFuel
	f.consumedFuel = 0
}
