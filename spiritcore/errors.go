package spiritcore

import "errors"

// Sentinel errors returned by the sandbox, capability, manifest, and
// dependency-resolution layers. Callers use errors.Is/errors.As against
// these rather than matching error strings.
var (
	ErrCapabilityDenied  = errors.New("capability denied")
	ErrCapabilityExpired = errors.New("capability expired")
	ErrOutOfFuel         = errors.New("out of fuel")
	ErrTimeout           = errors.New("execution timed out")
	ErrWasmTrap          = errors.New("WASM trap")
	ErrFunctionNotFound  = errors.New("exported function not found")
	ErrMemoryNotExported = errors.New("module does not export linear memory")
	ErrInvalidMemory     = errors.New("invalid memory access")
	ErrSandboxNotReady   = errors.New("sandbox is not in a ready state")
	ErrSandboxFailed     = errors.New("sandbox has failed")
	ErrSandboxTerminated = errors.New("sandbox has been terminated")
	ErrModuleTooLarge    = errors.New("module exceeds maximum allowed size")

	ErrInvalidLimits = errors.New("invalid resource limits")

	ErrInvalidManifest   = errors.New("invalid manifest")
	ErrSignatureMismatch = errors.New("signature verification failed")
	ErrMalformedInput    = errors.New("malformed input")

	ErrPackageNotFound   = errors.New("package not found")
	ErrNoMatchingVersion = errors.New("no version satisfies requirement")
	ErrInvalidVersion    = errors.New("invalid version string")
	ErrCyclicDependency  = errors.New("cyclic dependency detected")

	ErrInsufficientBalance    = errors.New("insufficient credit balance")
	ErrInsufficientReserve    = errors.New("insufficient reserved credit")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrReservationSettled     = errors.New("reservation already settled")
	ErrAmountExceedsMaximum   = errors.New("amount exceeds configured maximum")
	ErrStorageKeyOutOfRange   = errors.New("storage key length out of range")
	ErrStorageValueOutOfRange = errors.New("storage value length out of range")
)
