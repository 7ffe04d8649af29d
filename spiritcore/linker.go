package spiritcore

import (
	"github.com/wasmerio/wasmer-go/wasmer"
)

// HostNamespace is the single flat WASM import module name every host
// function is registered under.
const HostNamespace = "spirit_host"

// Result codes returned by every host import to a Spirit. Zero is success;
// a positive value is success carrying a byte count; negative values are
// stable, specific failure kinds so a Spirit can branch without needing the
// human-readable error string.
const (
	ResultSuccess           int32 = 0
	ResultCapabilityDenied  int32 = -1
	ResultInvalidMemory     int32 = -2
	ResultInvalidParameter  int32 = -3
	ResultStorageError      int32 = -4
	ResultNetworkError      int32 = -5
	ResultCreditError       int32 = -6
	ResultBufferTooSmall    int32 = -7
	ResultInternalError     int32 = -8
)

// linkerMemory wraps a WASM instance's exported linear memory with
// bounds-checked read/write helpers. Every pointer/length pair is validated
// against the memory's current size before any copy happens.
type linkerMemory struct {
	mem *wasmer.Memory
}

func (m *linkerMemory) read(ptr, length int32) ([]byte, error) {
	if ptr < 0 || length < 0 {
		return nil, ErrInvalidMemory
	}
	data := m.mem.Data()
	end := int64(ptr) + int64(length)
	if end > int64(len(data)) {
		return nil, ErrInvalidMemory
	}
	out := make([]byte, length)
	copy(out, data[ptr:end])
	return out, nil
}

func (m *linkerMemory) write(ptr int32, value []byte) error {
	if ptr < 0 {
		return ErrInvalidMemory
	}
	data := m.mem.Data()
	end := int64(ptr) + int64(len(value))
	if end > int64(len(data)) {
		return ErrInvalidMemory
	}
	copy(data[ptr:end], value)
	return nil
}

// resultCodeFor classifies a HostCallResult's error string into one of the
// stable negative result codes, falling back to a generic failure for
// anything that doesn't match a known kind.
func resultCodeFor(res HostCallResult) int32 {
	if res.Success {
		return ResultSuccess
	}
	switch {
	case containsFold(res.Error, "capability denied"):
		return ResultCapabilityDenied
	case containsFold(res.Error, "storage error"):
		return ResultStorageError
	case containsFold(res.Error, "network error"), containsFold(res.Error, "rate limit"):
		return ResultNetworkError
	case containsFold(res.Error, "credit error"):
		return ResultCreditError
	case containsFold(res.Error, "out of range"), containsFold(res.Error, "exceeds maximum"):
		return ResultInvalidParameter
	default:
		return ResultInternalError
	}
}

func containsFold(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if equalFold(s[i:i+len(substr)], substr) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// i32Func is the repeated shape of every host import: some number of i32
// parameters (pointers, lengths, counts), one i32 result (a ResultCode or a
// positive byte count).
func i32Func(store *wasmer.Store, paramCount int, fn func(args []wasmer.Value) ([]wasmer.Value, error)) *wasmer.Function {
	params := make([]wasmer.ValueKind, paramCount)
	for i := range params {
		params[i] = wasmer.I32
	}
	return wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(params...), wasmer.NewValueTypes(wasmer.I32)),
		fn,
	)
}

// buildImports registers every host function from hctx's HostContext under
// HostNamespace. lm is filled in with the instance's memory export once
// instantiation completes — see Sandbox.Initialize.
func buildImports(store *wasmer.Store, hctx *HostContext, lm *linkerMemory) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	timeNow := i32Func(store, 2, func(args []wasmer.Value) ([]wasmer.Value, error) {
		outPtr, outLen := args[0].I32(), args[1].I32()
		res := hctx.TimeNow()
		return []wasmer.Value{wasmer.NewI32(writeResult(lm, outPtr, outLen, res))}, nil
	})

	randomBytes := i32Func(store, 3, func(args []wasmer.Value) ([]wasmer.Value, error) {
		count, outPtr, outLen := uint32(args[0].I32()), args[1].I32(), args[2].I32()
		res := hctx.RandomBytes(count)
		return []wasmer.Value{wasmer.NewI32(writeResult(lm, outPtr, outLen, res))}, nil
	})

	logFn := i32Func(store, 3, func(args []wasmer.Value) ([]wasmer.Value, error) {
		level, msgPtr, msgLen := LogLevel(args[0].I32()), args[1].I32(), args[2].I32()
		msg, err := lm.read(msgPtr, msgLen)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		res := hctx.Log(level, msg)
		return []wasmer.Value{wasmer.NewI32(resultCodeFor(res))}, nil
	})

	storageRead := i32Func(store, 4, func(args []wasmer.Value) ([]wasmer.Value, error) {
		keyPtr, keyLen, outPtr, outLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		key, err := lm.read(keyPtr, keyLen)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		res := hctx.StorageRead(key)
		return []wasmer.Value{wasmer.NewI32(writeResult(lm, outPtr, outLen, res))}, nil
	})

	storageWrite := i32Func(store, 4, func(args []wasmer.Value) ([]wasmer.Value, error) {
		keyPtr, keyLen, valPtr, valLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		key, err := lm.read(keyPtr, keyLen)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		val, err := lm.read(valPtr, valLen)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		res := hctx.StorageWrite(key, val)
		return []wasmer.Value{wasmer.NewI32(resultCodeFor(res))}, nil
	})

	storageDelete := i32Func(store, 2, func(args []wasmer.Value) ([]wasmer.Value, error) {
		keyPtr, keyLen := args[0].I32(), args[1].I32()
		key, err := lm.read(keyPtr, keyLen)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		res := hctx.StorageDelete(key)
		return []wasmer.Value{wasmer.NewI32(resultCodeFor(res))}, nil
	})

	networkConnect := i32Func(store, 4, func(args []wasmer.Value) ([]wasmer.Value, error) {
		addrPtr, addrLen, outPtr, outLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		addr, err := lm.read(addrPtr, addrLen)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		res := hctx.NetworkConnect(string(addr))
		return []wasmer.Value{wasmer.NewI32(writeResult(lm, outPtr, outLen, res))}, nil
	})

	networkListen := i32Func(store, 3, func(args []wasmer.Value) ([]wasmer.Value, error) {
		port, outPtr, outLen := uint16(args[0].I32()), args[1].I32(), args[2].I32()
		res := hctx.NetworkListen(port)
		return []wasmer.Value{wasmer.NewI32(writeResult(lm, outPtr, outLen, res))}, nil
	})

	networkBroadcast := i32Func(store, 4, func(args []wasmer.Value) ([]wasmer.Value, error) {
		msgPtr, msgLen, outPtr, outLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		msg, err := lm.read(msgPtr, msgLen)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		res := hctx.NetworkBroadcast(msg)
		return []wasmer.Value{wasmer.NewI32(writeResult(lm, outPtr, outLen, res))}, nil
	})

	creditBalance := i32Func(store, 3, func(args []wasmer.Value) ([]wasmer.Value, error) {
		acctPtr, outPtr, outLen := args[0].I32(), args[1].I32(), args[2].I32()
		acct, err := readAccount(lm, acctPtr)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		res := hctx.CreditBalance(acct)
		return []wasmer.Value{wasmer.NewI32(writeResult(lm, outPtr, outLen, res))}, nil
	})

	creditTransfer := i32Func(store, 5, func(args []wasmer.Value) ([]wasmer.Value, error) {
		fromPtr, toPtr, amountLo, amountHi := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		_ = args[4]
		from, err := readAccount(lm, fromPtr)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		to, err := readAccount(lm, toPtr)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		amount := joinU64(amountLo, amountHi)
		res := hctx.CreditTransfer(from, to, amount)
		return []wasmer.Value{wasmer.NewI32(resultCodeFor(res))}, nil
	})

	creditReserve := i32Func(store, 5, func(args []wasmer.Value) ([]wasmer.Value, error) {
		acctPtr, amountLo, amountHi, outPtr, outLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32(), args[4].I32()
		acct, err := readAccount(lm, acctPtr)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		amount := joinU64(amountLo, amountHi)
		res := hctx.CreditReserve(acct, amount)
		return []wasmer.Value{wasmer.NewI32(writeResult(lm, outPtr, outLen, res))}, nil
	})

	creditRelease := i32Func(store, 2, func(args []wasmer.Value) ([]wasmer.Value, error) {
		res := hctx.CreditRelease(joinU64(args[0].I32(), args[1].I32()))
		return []wasmer.Value{wasmer.NewI32(resultCodeFor(res))}, nil
	})

	creditConsume := i32Func(store, 2, func(args []wasmer.Value) ([]wasmer.Value, error) {
		res := hctx.CreditConsume(joinU64(args[0].I32(), args[1].I32()))
		return []wasmer.Value{wasmer.NewI32(resultCodeFor(res))}, nil
	})

	creditAvailable := i32Func(store, 3, func(args []wasmer.Value) ([]wasmer.Value, error) {
		acctPtr, outPtr, outLen := args[0].I32(), args[1].I32(), args[2].I32()
		acct, err := readAccount(lm, acctPtr)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(ResultInvalidMemory)}, nil
		}
		res := hctx.CreditAvailable(acct)
		return []wasmer.Value{wasmer.NewI32(writeResult(lm, outPtr, outLen, res))}, nil
	})

	imports.Register(HostNamespace, map[string]wasmer.IntoExtern{
		"host_time_now":         timeNow,
		"host_random_bytes":     randomBytes,
		"host_log":              logFn,
		"host_storage_read":     storageRead,
		"host_storage_write":    storageWrite,
		"host_storage_delete":   storageDelete,
		"host_network_connect":  networkConnect,
		"host_network_listen":   networkListen,
		"host_network_broadcast": networkBroadcast,
		"host_credit_balance":   creditBalance,
		"host_credit_transfer":  creditTransfer,
		"host_credit_reserve":   creditReserve,
		"host_credit_release":   creditRelease,
		"host_credit_consume":   creditConsume,
		"host_credit_available": creditAvailable,
	})

	return imports
}

// writeResult writes res's return value into the Spirit-supplied output
// buffer (outPtr, outLen) and returns the resulting status code: the byte
// count on success, ResultBufferTooSmall if the buffer can't hold the
// value, or a negative failure code.
func writeResult(lm *linkerMemory, outPtr, outLen int32, res HostCallResult) int32 {
	if !res.Success {
		return resultCodeFor(res)
	}
	if len(res.ReturnValue) == 0 {
		return ResultSuccess
	}
	if int32(len(res.ReturnValue)) > outLen {
		return ResultBufferTooSmall
	}
	if err := lm.write(outPtr, res.ReturnValue); err != nil {
		return ResultInvalidMemory
	}
	return int32(len(res.ReturnValue))
}

func readAccount(lm *linkerMemory, ptr int32) (PublicKeyBytes, error) {
	var out PublicKeyBytes
	b, err := lm.read(ptr, int32(len(out)))
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func joinU64(lo, hi int32) uint64 {
	return uint64(uint32(lo)) | uint64(uint32(hi))<<32
}

