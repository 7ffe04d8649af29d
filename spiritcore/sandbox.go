package spiritcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/wasmerio/wasmer-go/wasmer"
	"golang.org/x/time/rate"
)

// sandboxLog defaults to discarding output; embedders redirect it with
// SetSandboxLogger.
var sandboxLog = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}()

// SetSandboxLogger redirects sandbox lifecycle logging.
func SetSandboxLogger(l *logrus.Logger) { sandboxLog = l }

// SandboxState is a stage in a sandbox's lifecycle.
type SandboxState uint8

const (
	StateInitializing SandboxState = iota
	StateReady
	StateRunning
	StatePaused
	StateFailed
	StateTerminated
)

func (s SandboxState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SandboxID uniquely identifies a sandbox. It is derived deterministically
// from the owner's public key and a caller-supplied nonce so two sandboxes
// spawned by the same owner never collide, and a sandbox's identity can be
// recomputed by anyone who knows the owner and nonce without needing a
// central allocator.
type SandboxID [32]byte

// DeriveSandboxID computes a sandbox's identity from its owner and a nonce
// using Keccak256 over the owner key followed by the nonce (LE).
func DeriveSandboxID(owner PublicKeyBytes, nonce uint64) SandboxID {
	var nonceBytes [8]byte
	for i := 0; i < 8; i++ {
		nonceBytes[i] = byte(nonce >> (8 * i))
	}
	sum := crypto.Keccak256(owner[:], nonceBytes[:])
	var id SandboxID
	copy(id[:], sum)
	return id
}

func (id SandboxID) String() string { return fmt.Sprintf("%x", id[:8]) }

// InvokeResult is what a sandbox returns from a single invocation.
type InvokeResult struct {
	ReturnValue []byte
	Metrics     ExecutionMetrics
	Duration    time.Duration
}

// Sandbox is an isolated WASM execution environment for one Spirit: its
// module, capability grants, resource limits, fuel budget, and lifecycle
// state. Invoke holds the sandbox's lock for the whole call, so concurrent
// Invoke calls on one sandbox run one at a time.
type Sandbox struct {
	mu sync.Mutex

	ID      SandboxID
	Owner   PublicKeyBytes
	Limits  ResourceLimits
	Caps    *CapabilitySet
	state   SandboxState
	failure error

	code    []byte
	engine  *wasmer.Engine
	store   *wasmer.Store
	module  *wasmer.Module
	instance *wasmer.Instance
	memory  *linkerMemory

	fuel    *FuelManager
	metrics *SandboxMetrics

	hostCtx *HostContext

	createdAt time.Time
	lastRunAt time.Time
}

// SandboxConfig bundles everything New needs to build a sandbox's host
// surface.
type SandboxConfig struct {
	Owner   PublicKeyBytes
	Code    []byte
	Limits  ResourceLimits
	Caps    *CapabilitySet
	Storage StorageBackend
	Credit  CreditBackend
	Network NetworkBackend
	// RateLimiter guards the network host calls; nil disables rate limiting.
	RateLimiter *rate.Limiter
}

// New constructs a sandbox in the Initializing state. Call Initialize to
// compile the module and make it Ready.
func New(id SandboxID, cfg SandboxConfig) (*Sandbox, error) {
	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}
	if uint64(len(cfg.Code)) > MaxModuleSizeBytes {
		return nil, fmt.Errorf("%w: module is %d bytes, max is %d", ErrModuleTooLarge, len(cfg.Code), MaxModuleSizeBytes)
	}
	fuel, err := NewFuelManager(cfg.Limits.MaxFuel)
	if err != nil {
		return nil, err
	}
	if cfg.Caps == nil {
		cfg.Caps = NewCapabilitySet()
	}

	hctx := &HostContext{
		Storage:   cfg.Storage,
		Credit:    cfg.Credit,
		Network:   cfg.Network,
		Caps:      cfg.Caps,
		Account:   cfg.Owner,
		Limiter:   cfg.RateLimiter,
		TimeNowFn: func() int64 { return time.Now().UnixNano() },
		RandomFn:  cryptoRandomBytes,
	}

	return &Sandbox{
		ID:        id,
		Owner:     cfg.Owner,
		Limits:    cfg.Limits,
		Caps:      cfg.Caps,
		state:     StateInitializing,
		code:      cfg.Code,
		fuel:      fuel,
		metrics:   NewSandboxMetrics(),
		hostCtx:   hctx,
		createdAt: time.Now(),
	}, nil
}

// Initialize compiles the module and instantiates it against the host
// import surface, transitioning Initializing -> Ready (or -> Failed on any
// error along the way).
func (s *Sandbox) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInitializing {
		return fmt.Errorf("%w: expected initializing, got %s", ErrSandboxNotReady, s.state)
	}

	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)

	module, err := wasmer.NewModule(store, s.code)
	if err != nil {
		return s.fail(fmt.Errorf("compile module: %w", err))
	}

	lm := &linkerMemory{}
	imports := buildImports(store, s.hostCtx, lm)

	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return s.fail(fmt.Errorf("instantiate module: %w", err))
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return s.fail(fmt.Errorf("%w: %v", ErrMemoryNotExported, err))
	}
	lm.mem = mem

	s.engine = engine
	s.store = store
	s.module = module
	s.instance = instance
	s.memory = lm
	s.state = StateReady

	sandboxLog.WithField("sandbox", s.ID.String()).Info("spiritcore: sandbox ready")
	return nil
}

func (s *Sandbox) fail(err error) error {
	s.state = StateFailed
	s.failure = err
	sandboxLog.WithField("sandbox", s.ID.String()).WithError(err).Warn("spiritcore: sandbox failed")
	return err
}

// GetState returns the sandbox's current lifecycle state.
func (s *Sandbox) GetState() SandboxState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Invoke calls the named exported function with no arguments, charging
// BaseInvokeFuelCost up front (host calls made during execution charge no
// fuel), and enforcing the sandbox's wall-clock duration limit. A function
// that exceeds its timeout moves the sandbox to Failed. A function that
// traps moves it to Paused if no fuel remains (recoverable via Refuel) or
// Failed otherwise.
func (s *Sandbox) Invoke(ctx context.Context, functionName string) (InvokeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return InvokeResult{}, ErrSandboxTerminated
	}
	if s.state == StateFailed {
		return InvokeResult{}, fmt.Errorf("%w: %v", ErrSandboxFailed, s.failure)
	}
	if s.state != StateReady && s.state != StatePaused {
		return InvokeResult{}, fmt.Errorf("%w: sandbox is %s", ErrSandboxNotReady, s.state)
	}

	if err := s.fuel.Consume(BaseInvokeFuelCost); err != nil {
		s.state = StatePaused
		return InvokeResult{}, err
	}

	fn, err := s.instance.Exports.GetFunction(functionName)
	if err != nil {
		return InvokeResult{}, fmt.Errorf("%w: %s", ErrFunctionNotFound, functionName)
	}

	s.state = StateRunning
	s.lastRunAt = time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.Limits.MaxDuration)
	defer cancel()

	type runOutcome struct {
		ret interface{}
		err error
	}
	done := make(chan runOutcome, 1)
	start := time.Now()
	go func() {
		ret, err := fn()
		done <- runOutcome{ret: ret, err: err}
	}()

	var metrics ExecutionMetrics
	var returnValue []byte
	var trapped bool

	select {
	case <-runCtx.Done():
		trapped = true
		s.state = StateFailed
		s.failure = ErrTimeout
		sandboxLog.WithField("sandbox", s.ID.String()).Warn("spiritcore: invocation timed out")
	case outcome := <-done:
		if outcome.err != nil {
			trapped = true
			if s.fuel.IsExhausted() {
				s.state = StatePaused
				s.failure = ErrOutOfFuel
				sandboxLog.WithField("sandbox", s.ID.String()).Warn("spiritcore: invocation paused, out of fuel")
			} else {
				s.fail(fmt.Errorf("%w: %v", ErrWasmTrap, outcome.err))
			}
		} else {
			s.state = StateReady
			returnValue = encodeWasmResult(outcome.ret)
		}
	}

	duration := time.Since(start)
	metrics.RecordFuel(BaseInvokeFuelCost)
	metrics.RecordMemory(uint64(len(s.memory.mem.Data())))
	s.metrics.RecordInvocation(metrics, duration, trapped)

	if trapped {
		return InvokeResult{Metrics: metrics, Duration: duration}, s.failure
	}
	return InvokeResult{ReturnValue: returnValue, Metrics: metrics, Duration: duration}, nil
}

// encodeWasmResult renders a wasmer-go export's return value as bytes, for
// the common case of a single i32/i64 result.
func encodeWasmResult(ret interface{}) []byte {
	switch v := ret.(type) {
	case int32:
		buf := make([]byte, 4)
		putU32LE(buf, uint32(v))
		return buf
	case int64:
		buf := make([]byte, 8)
		putI64LE(buf, v)
		return buf
	default:
		return nil
	}
}

// GrantCapability adds a new grant to the sandbox's effective capability
// set, taking effect on the next host call.
func (s *Sandbox) GrantCapability(grant CapabilityGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Caps.AddGrant(grant)
}

// HasCapability reports whether the sandbox currently holds cap at a scope
// covering scope.
func (s *Sandbox) HasCapability(cap CapabilityKind, scope CapabilityScope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Caps.HasCapability(cap, scope)
}

// Refuel adds fuel to a Paused sandbox and returns it to Ready. It refuses
// to refuel a sandbox in any other state.
func (s *Sandbox) Refuel(amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return fmt.Errorf("%w: refuel only valid from paused, sandbox is %s", ErrSandboxNotReady, s.state)
	}
	if err := s.fuel.Refuel(amount); err != nil {
		return err
	}
	s.state = StateReady
	return nil
}

// Terminate moves the sandbox to the terminal Terminated state. It is
// idempotent: terminating an already-terminated sandbox is a no-op.
func (s *Sandbox) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.state = StateTerminated
	sandboxLog.WithField("sandbox", s.ID.String()).Info("spiritcore: sandbox terminated")
}

// Metrics returns a snapshot of the sandbox's cumulative usage.
func (s *Sandbox) Metrics() SandboxMetrics {
	return s.metrics.Snapshot()
}

// FuelRemaining returns the fuel currently available to the sandbox.
func (s *Sandbox) FuelRemaining() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fuel.Remaining()
}
