package spiritcore

import "testing"

func newTestHostContext() *HostContext {
	return &HostContext{
		Storage:   NewInMemoryStorage(),
		Credit:    NewInMemoryCreditLedger(),
		Network:   NewMockNetworkBackend(),
		Caps:      NewCapabilitySet(),
		TimeNowFn: func() int64 { return 42 },
		RandomFn:  func(n int) ([]byte, error) { return make([]byte, n), nil },
	}
}

func TestHostContextDeniesWithoutCapability(t *testing.T) {
	h := newTestHostContext()
	res := h.TimeNow()
	if res.Success {
		t.Fatal("TimeNow should be denied without CapSensorTime")
	}
}

func TestHostContextSucceedsAfterGrant(t *testing.T) {
	h := newTestHostContext()
	h.Caps.AddGrant(CapabilityGrant{ID: 1, Capability: CapSensorTime, Scope: ScopeGlobal})

	res := h.TimeNow()
	if !res.Success {
		t.Fatalf("TimeNow should succeed once granted, got error %q", res.Error)
	}
	if len(res.ReturnValue) != 8 {
		t.Errorf("TimeNow return value should be 8 bytes, got %d", len(res.ReturnValue))
	}
}

func TestHostContextStorageRoundTrip(t *testing.T) {
	h := newTestHostContext()
	h.Caps.AddGrant(CapabilityGrant{ID: 1, Capability: CapStorageWrite, Scope: ScopeSandboxed})
	h.Caps.AddGrant(CapabilityGrant{ID: 2, Capability: CapStorageRead, Scope: ScopeSandboxed})

	if res := h.StorageWrite([]byte("key"), []byte("value")); !res.Success {
		t.Fatalf("StorageWrite failed: %s", res.Error)
	}
	res := h.StorageRead([]byte("key"))
	if !res.Success || string(res.ReturnValue) != "value" {
		t.Fatalf("StorageRead = %+v", res)
	}
}

func TestHostContextStorageReadAbsentKeyIsBenignSuccess(t *testing.T) {
	h := newTestHostContext()
	h.Caps.AddGrant(CapabilityGrant{ID: 1, Capability: CapStorageRead, Scope: ScopeSandboxed})

	res := h.StorageRead([]byte("missing"))
	if !res.Success {
		t.Fatalf("StorageRead of an absent key should succeed, got error %q", res.Error)
	}
	if len(res.ReturnValue) != 0 {
		t.Errorf("StorageRead of an absent key should return an empty value, got %v", res.ReturnValue)
	}
}

func TestHostContextRandomBytesRejectsOutOfRange(t *testing.T) {
	h := newTestHostContext()
	h.Caps.AddGrant(CapabilityGrant{ID: 1, Capability: CapSensorRandom, Scope: ScopeGlobal})

	if res := h.RandomBytes(0); res.Success {
		t.Error("RandomBytes(0) should fail")
	}
	if res := h.RandomBytes(MaxRandomBytes + 1); res.Success {
		t.Error("RandomBytes above the maximum should fail")
	}
	if res := h.RandomBytes(16); !res.Success || len(res.ReturnValue) != 16 {
		t.Errorf("RandomBytes(16) = %+v", res)
	}
}

func TestHostContextCreditFlow(t *testing.T) {
	h := newTestHostContext()
	h.Caps.AddGrant(CapabilityGrant{ID: 1, Capability: CapActuatorCredit, Scope: ScopeGlobal})
	account := testAccount(9)
	h.Credit.Credit(account, 1000)

	reserveRes := h.CreditReserve(account, 200)
	if !reserveRes.Success {
		t.Fatalf("CreditReserve failed: %s", reserveRes.Error)
	}

	availRes := h.CreditAvailable(account)
	if !availRes.Success {
		t.Fatalf("CreditAvailable failed: %s", availRes.Error)
	}
	if available := decodeU64LE(availRes.ReturnValue); available != 800 {
		t.Errorf("available credit = %d, want 800", available)
	}
}

func decodeU64LE(buf []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(buf); i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v
}
