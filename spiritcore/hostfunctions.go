package spiritcore

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const MaxRandomBytes uint32 = 1024 * 1024 // 1 MiB
const MaxLogMessageLength = 64 * 1024     // 64 KiB
const MaxNetworkAddressSize = 256
const MaxNetworkMessageSize = 64 * 1024

// LogLevel mirrors the severity a Spirit may pass to log.
type LogLevel uint8

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
)

// HostCallResult is the uniform shape every host function returns: either a
// success (with an optional return value) or a failure message.
type HostCallResult struct {
	Success     bool
	ReturnValue []byte
	Error       string
}

// HostCallSuccess builds a bare success result.
func HostCallSuccess() HostCallResult { return HostCallResult{Success: true} }

// HostCallSuccessWithValue builds a success result carrying value.
func HostCallSuccessWithValue(value []byte) HostCallResult {
	return HostCallResult{Success: true, ReturnValue: value}
}

// HostCallError builds a failure result with the given message.
func HostCallError(msg string) HostCallResult { return HostCallResult{Error: msg} }

// HostCallCapabilityDenied builds the failure result for a missing
// capability.
func HostCallCapabilityDenied(cap CapabilityKind) HostCallResult {
	return HostCallError(fmt.Sprintf("capability denied: %s", cap))
}

// hostLog defaults to discarding output; embedders redirect it with
// SetHostLogger.
var hostLog = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}()

// SetHostLogger redirects host-function logging.
func SetHostLogger(l *logrus.Logger) { hostLog = l }

// HostContext bundles everything a host function needs: the backends it
// dispatches to, the sandbox's effective capability set, its account
// identity, and a rate limiter guarding the network surface.
type HostContext struct {
	Storage  StorageBackend
	Credit   CreditBackend
	Network  NetworkBackend
	Caps     *CapabilitySet
	Account  PublicKeyBytes
	Limiter  *rate.Limiter // nil disables rate limiting
	TimeNowFn func() int64 // overridable for tests; New sets it to time.Now().UnixNano
	RandomFn  func(n int) ([]byte, error)
}

func (h *HostContext) requireCapability(cap CapabilityKind, scope CapabilityScope) error {
	if h.Caps == nil || !h.Caps.HasCapability(cap, scope) {
		return fmt.Errorf("%w: %s", ErrCapabilityDenied, cap)
	}
	return nil
}

// TimeNow returns the current time as nanoseconds since the Unix epoch,
// gated on CapSensorTime.
func (h *HostContext) TimeNow() HostCallResult {
	if err := h.requireCapability(CapSensorTime, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapSensorTime)
	}
	now := h.TimeNowFn()
	buf := make([]byte, 8)
	putI64LE(buf, now)
	hostLog.Debug("spiritcore: host_time_now")
	return HostCallSuccessWithValue(buf)
}

// RandomBytes returns count cryptographically random bytes, gated on
// CapSensorRandom. count must be in [1, MaxRandomBytes].
func (h *HostContext) RandomBytes(count uint32) HostCallResult {
	if err := h.requireCapability(CapSensorRandom, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapSensorRandom)
	}
	if count == 0 || count > MaxRandomBytes {
		return HostCallError(fmt.Sprintf("random byte count %d out of range [1, %d]", count, MaxRandomBytes))
	}
	buf, err := h.RandomFn(int(count))
	if err != nil {
		return HostCallError(fmt.Sprintf("random source error: %v", err))
	}
	return HostCallSuccessWithValue(buf)
}

// Log records a message at the given level, gated on CapActuatorLog.
// Messages longer than MaxLogMessageLength are rejected.
func (h *HostContext) Log(level LogLevel, message []byte) HostCallResult {
	if err := h.requireCapability(CapActuatorLog, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapActuatorLog)
	}
	if len(message) > MaxLogMessageLength {
		return HostCallError(fmt.Sprintf("log message length %d exceeds maximum %d", len(message), MaxLogMessageLength))
	}
	entry := hostLog.WithField("sandbox_level", level)
	switch level {
	case LogTrace:
		entry.Trace(string(message))
	case LogDebug:
		entry.Debug(string(message))
	case LogInfo:
		entry.Info(string(message))
	case LogWarn:
		entry.Warn(string(message))
	case LogError:
		entry.Error(string(message))
	default:
		entry.WithField("sandbox_level_raw", uint8(level)).Warn(string(message))
	}
	return HostCallSuccess()
}

// StorageRead reads key from the storage backend, gated on CapStorageRead.
func (h *HostContext) StorageRead(key []byte) HostCallResult {
	if err := h.requireCapability(CapStorageRead, ScopeSandboxed); err != nil {
		return HostCallCapabilityDenied(CapStorageRead)
	}
	if len(key) == 0 || len(key) > MaxKeySize {
		return HostCallError(fmt.Sprintf("storage key length %d out of range [1, %d]", len(key), MaxKeySize))
	}
	value, ok, err := h.Storage.Read(key)
	if err != nil {
		return HostCallError(fmt.Sprintf("storage error: %v", err))
	}
	if !ok {
		return HostCallSuccess()
	}
	return HostCallSuccessWithValue(value)
}

// StorageWrite writes key/value, gated on CapStorageWrite.
func (h *HostContext) StorageWrite(key, value []byte) HostCallResult {
	if err := h.requireCapability(CapStorageWrite, ScopeSandboxed); err != nil {
		return HostCallCapabilityDenied(CapStorageWrite)
	}
	if len(key) == 0 || len(key) > MaxKeySize {
		return HostCallError(fmt.Sprintf("storage key length %d out of range [1, %d]", len(key), MaxKeySize))
	}
	if len(value) > MaxValueSize {
		return HostCallError(fmt.Sprintf("storage value length %d exceeds maximum %d", len(value), MaxValueSize))
	}
	if err := h.Storage.Write(key, value); err != nil {
		return HostCallError(fmt.Sprintf("storage error: %v", err))
	}
	return HostCallSuccess()
}

// StorageDelete removes key, gated on CapStorageDelete.
func (h *HostContext) StorageDelete(key []byte) HostCallResult {
	if err := h.requireCapability(CapStorageDelete, ScopeSandboxed); err != nil {
		return HostCallCapabilityDenied(CapStorageDelete)
	}
	if len(key) == 0 || len(key) > MaxKeySize {
		return HostCallError(fmt.Sprintf("storage key length %d out of range [1, %d]", len(key), MaxKeySize))
	}
	existed, err := h.Storage.Delete(key)
	if err != nil {
		return HostCallError(fmt.Sprintf("storage error: %v", err))
	}
	if existed {
		return HostCallSuccessWithValue([]byte{1})
	}
	return HostCallSuccessWithValue([]byte{0})
}

func (h *HostContext) rateLimited() bool {
	return h.Limiter != nil && !h.Limiter.Allow()
}

// NetworkConnect opens a connection to address, gated on CapNetworkConnect.
func (h *HostContext) NetworkConnect(address string) HostCallResult {
	if err := h.requireCapability(CapNetworkConnect, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapNetworkConnect)
	}
	if len(address) == 0 || len(address) > MaxNetworkAddressSize {
		return HostCallError(fmt.Sprintf("address length %d out of range [1, %d]", len(address), MaxNetworkAddressSize))
	}
	if h.rateLimited() {
		return HostCallError("network_connect rate limit exceeded")
	}
	id, err := h.Network.Connect(address)
	if err != nil {
		return HostCallError(fmt.Sprintf("network error: %v", err))
	}
	buf := make([]byte, 8)
	putU64LE(buf, id)
	return HostCallSuccessWithValue(buf)
}

// NetworkListen binds a listener on port, gated on CapNetworkListen.
func (h *HostContext) NetworkListen(port uint16) HostCallResult {
	if err := h.requireCapability(CapNetworkListen, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapNetworkListen)
	}
	id, err := h.Network.Listen(port)
	if err != nil {
		return HostCallError(fmt.Sprintf("network error: %v", err))
	}
	buf := make([]byte, 8)
	putU64LE(buf, id)
	return HostCallSuccessWithValue(buf)
}

// NetworkBroadcast sends message to every connected peer, gated on
// CapNetworkBroadcast.
func (h *HostContext) NetworkBroadcast(message []byte) HostCallResult {
	if err := h.requireCapability(CapNetworkBroadcast, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapNetworkBroadcast)
	}
	if len(message) > MaxNetworkMessageSize {
		return HostCallError(fmt.Sprintf("message length %d exceeds maximum %d", len(message), MaxNetworkMessageSize))
	}
	if h.rateLimited() {
		return HostCallError("network_broadcast rate limit exceeded")
	}
	reached, err := h.Network.Broadcast(message)
	if err != nil {
		return HostCallError(fmt.Sprintf("network error: %v", err))
	}
	buf := make([]byte, 4)
	putU32LE(buf, uint32(reached))
	return HostCallSuccessWithValue(buf)
}

// CreditBalance returns an account's total balance, gated on
// CapActuatorCredit.
func (h *HostContext) CreditBalance(account PublicKeyBytes) HostCallResult {
	if err := h.requireCapability(CapActuatorCredit, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapActuatorCredit)
	}
	balance, err := h.Credit.Balance(account)
	if err != nil {
		return HostCallError(fmt.Sprintf("credit error: %v", err))
	}
	buf := make([]byte, 8)
	putU64LE(buf, balance)
	return HostCallSuccessWithValue(buf)
}

// CreditTransfer moves amount from from to to, gated on CapActuatorCredit.
func (h *HostContext) CreditTransfer(from, to PublicKeyBytes, amount uint64) HostCallResult {
	if err := h.requireCapability(CapActuatorCredit, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapActuatorCredit)
	}
	if err := h.Credit.Transfer(from, to, amount); err != nil {
		return HostCallError(fmt.Sprintf("credit error: %v", err))
	}
	return HostCallSuccess()
}

// CreditReserve escrows amount from account's available balance, gated on
// CapActuatorCredit.
func (h *HostContext) CreditReserve(account PublicKeyBytes, amount uint64) HostCallResult {
	if err := h.requireCapability(CapActuatorCredit, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapActuatorCredit)
	}
	id, err := h.Credit.Reserve(account, amount)
	if err != nil {
		return HostCallError(fmt.Sprintf("credit error: %v", err))
	}
	buf := make([]byte, 8)
	putU64LE(buf, id)
	return HostCallSuccessWithValue(buf)
}

// CreditRelease returns a reservation's escrowed amount to its account,
// gated on CapActuatorCredit.
func (h *HostContext) CreditRelease(reservationID uint64) HostCallResult {
	if err := h.requireCapability(CapActuatorCredit, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapActuatorCredit)
	}
	if err := h.Credit.ReleaseReservation(reservationID); err != nil {
		return HostCallError(fmt.Sprintf("credit error: %v", err))
	}
	return HostCallSuccess()
}

// CreditConsume permanently deducts a reservation, gated on
// CapActuatorCredit.
func (h *HostContext) CreditConsume(reservationID uint64) HostCallResult {
	if err := h.requireCapability(CapActuatorCredit, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapActuatorCredit)
	}
	if err := h.Credit.ConsumeReservation(reservationID); err != nil {
		return HostCallError(fmt.Sprintf("credit error: %v", err))
	}
	return HostCallSuccess()
}

// CreditAvailable returns an account's balance minus its active
// reservations, gated on CapActuatorCredit.
func (h *HostContext) CreditAvailable(account PublicKeyBytes) HostCallResult {
	if err := h.requireCapability(CapActuatorCredit, ScopeGlobal); err != nil {
		return HostCallCapabilityDenied(CapActuatorCredit)
	}
	available, err := h.Credit.AvailableBalance(account)
	if err != nil {
		return HostCallError(fmt.Sprintf("credit error: %v", err))
	}
	buf := make([]byte, 8)
	putU64LE(buf, available)
	return HostCallSuccessWithValue(buf)
}

func putU64LE(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

func putI64LE(buf []byte, v int64) { putU64LE(buf, uint64(v)) }

func putU32LE(buf []byte, v uint32) {
	for i := 0; i < 4; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}
