package spiritcore

import "testing"

func TestDeriveSandboxIDIsDeterministic(t *testing.T) {
	owner := testAccount(5)
	a := DeriveSandboxID(owner, 1)
	b := DeriveSandboxID(owner, 1)
	if a != b {
		t.Error("deriving a sandbox ID from the same owner/nonce twice should match")
	}
	c := DeriveSandboxID(owner, 2)
	if a == c {
		t.Error("different nonces should derive different sandbox IDs")
	}
}

func TestDeriveSandboxIDDiffersByOwner(t *testing.T) {
	a := DeriveSandboxID(testAccount(1), 1)
	b := DeriveSandboxID(testAccount(2), 1)
	if a == b {
		t.Error("different owners should derive different sandbox IDs for the same nonce")
	}
}

func TestSandboxStateString(t *testing.T) {
	cases := map[SandboxState]string{
		StateInitializing: "initializing",
		StateReady:        "ready",
		StateRunning:      "running",
		StatePaused:       "paused",
		StateFailed:       "failed",
		StateTerminated:   "terminated",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", state, got, want)
		}
	}
}

func TestNewRejectsOversizedModule(t *testing.T) {
	owner := testAccount(1)
	cfg := SandboxConfig{
		Owner:  owner,
		Code:   make([]byte, MaxModuleSizeBytes+1),
		Limits: DefaultResourceLimits(),
	}
	if _, err := New(DeriveSandboxID(owner, 0), cfg); err == nil {
		t.Error("New should reject a module exceeding MaxModuleSizeBytes")
	}
}

func TestNewRejectsInvalidLimits(t *testing.T) {
	owner := testAccount(1)
	limits := DefaultResourceLimits()
	limits.MaxFuel = 0
	cfg := SandboxConfig{Owner: owner, Code: []byte{0x00, 0x61, 0x73, 0x6d}, Limits: limits}
	if _, err := New(DeriveSandboxID(owner, 0), cfg); err == nil {
		t.Error("New should reject invalid resource limits")
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	owner := testAccount(1)
	cfg := SandboxConfig{Owner: owner, Code: []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, Limits: DefaultResourceLimits()}
	sb, err := New(DeriveSandboxID(owner, 0), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sb.Terminate()
	sb.Terminate()
	if sb.GetState() != StateTerminated {
		t.Errorf("state after terminate = %v, want terminated", sb.GetState())
	}
}
