package spiritcore

import "testing"

func TestCapabilityGrantSignAndVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	grantee, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	grant := CapabilityGrant{
		ID:         1,
		Capability: CapStorageRead,
		Scope:      ScopeSandboxed,
		GrantedAt:  1000,
	}
	copy(grant.Granter[:], kp.Public)
	copy(grant.Grantee[:], grantee.Public)

	if err := grant.Sign(kp.Private); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := grant.VerifySignature(); err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}

	grant.GrantedAt = 1001 // mutate after signing
	if err := grant.VerifySignature(); err == nil {
		t.Error("VerifySignature should fail once signed fields are mutated")
	}
}

func TestCapabilitySetHasCapabilityRespectsScope(t *testing.T) {
	cs := NewCapabilitySet()
	cs.AddGrant(CapabilityGrant{
		ID:         1,
		Capability: CapStorageWrite,
		Scope:      ScopeSandboxed,
	})

	if !cs.HasCapability(CapStorageWrite, ScopeSandboxed) {
		t.Error("expected sandboxed storage write capability")
	}
	if cs.HasCapability(CapStorageWrite, ScopeGlobal) {
		t.Error("sandboxed grant should not cover global scope")
	}
	if cs.HasCapability(CapStorageRead, ScopeSandboxed) {
		t.Error("should not have an ungranted capability")
	}
}

func TestCapabilitySetUnrestrictedBypassesChecks(t *testing.T) {
	cs := NewCapabilitySet()
	cs.AddGrant(CapabilityGrant{ID: 1, Capability: CapUnrestricted, Scope: ScopeGlobal})

	if !cs.HasCapability(CapNetworkBroadcast, ScopeGlobal) {
		t.Error("unrestricted grant should bypass every capability check")
	}
}

func TestCapabilityGrantExpiry(t *testing.T) {
	past := uint64(1)
	g := CapabilityGrant{ID: 1, Capability: CapSensorTime, Scope: ScopeGlobal, ExpiresAt: &past, GrantedAt: 0}
	cs := NewCapabilitySet()
	cs.AddGrant(g)

	if cs.HasCapability(CapSensorTime, ScopeGlobal) {
		t.Error("expired grant should not satisfy a capability check")
	}
}

func TestCapabilitySetRemoveGrant(t *testing.T) {
	g := CapabilityGrant{ID: 7, Capability: CapActuatorLog, Scope: ScopeGlobal}
	cs := NewCapabilitySet()
	cs.AddGrant(g)

	if !cs.HasCapability(CapActuatorLog, ScopeGlobal) {
		t.Fatal("expected grant to be present before removal")
	}
	if !cs.RemoveGrant(7) {
		t.Fatal("RemoveGrant should find the grant by ID")
	}
	if cs.HasCapability(CapActuatorLog, ScopeGlobal) {
		t.Error("removed grant should no longer satisfy the check")
	}
}

func TestScopeCovers(t *testing.T) {
	if !ScopeGlobal.Covers(ScopeSandboxed) {
		t.Error("global should cover sandboxed")
	}
	if ScopeSandboxed.Covers(ScopePeer) {
		t.Error("sandboxed should not cover peer")
	}
	if !ScopePeer.Covers(ScopePeer) {
		t.Error("a scope should cover itself")
	}
}
