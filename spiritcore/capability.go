package spiritcore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// CapabilityKind enumerates the categories of privileged operation a Spirit
// may be granted. Capabilities group into network, storage, compute, sensor
// (read external state), and actuator (affect external state) families, plus
// the special Unrestricted kind reserved for system Spirits.
type CapabilityKind uint8

const (
	CapNetworkListen CapabilityKind = iota
	CapNetworkConnect
	CapNetworkBroadcast

	CapStorageRead
	CapStorageWrite
	CapStorageDelete

	CapSpawnSandbox
	CapCrossSandboxCall

	CapSensorTime
	CapSensorRandom
	CapSensorEnvironment

	CapActuatorLog
	CapActuatorNotify
	CapActuatorCredit

	CapUnrestricted // granted only to system Spirits; bypasses every check
)

func (k CapabilityKind) String() string {
	switch k {
	case CapNetworkListen:
		return "network_listen"
	case CapNetworkConnect:
		return "network_connect"
	case CapNetworkBroadcast:
		return "network_broadcast"
	case CapStorageRead:
		return "storage_read"
	case CapStorageWrite:
		return "storage_write"
	case CapStorageDelete:
		return "storage_delete"
	case CapSpawnSandbox:
		return "spawn_sandbox"
	case CapCrossSandboxCall:
		return "cross_sandbox_call"
	case CapSensorTime:
		return "sensor_time"
	case CapSensorRandom:
		return "sensor_random"
	case CapSensorEnvironment:
		return "sensor_environment"
	case CapActuatorLog:
		return "actuator_log"
	case CapActuatorNotify:
		return "actuator_notify"
	case CapActuatorCredit:
		return "actuator_credit"
	case CapUnrestricted:
		return "unrestricted"
	default:
		return "unknown"
	}
}

// CapabilityScope bounds the reach of a grant.
type CapabilityScope uint8

const (
	ScopeGlobal CapabilityScope = iota
	ScopeSandboxed
	ScopePeer
	ScopeDomain
)

func (s CapabilityScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeSandboxed:
		return "sandboxed"
	case ScopePeer:
		return "peer"
	case ScopeDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// Covers reports whether s is at least as broad as other. Global covers
// everything; every other scope only covers its own kind.
func (s CapabilityScope) Covers(other CapabilityScope) bool {
	if s == ScopeGlobal {
		return true
	}
	return s == other
}

// IsSubsetOf reports whether s is contained within other.
func (s CapabilityScope) IsSubsetOf(other CapabilityScope) bool { return other.Covers(s) }

// CapabilityGrant is a cryptographically signed, scoped, optionally
// time-limited and revocable permission. The granter must itself have held
// the capability it grants.
type CapabilityGrant struct {
	ID         uint64
	Capability CapabilityKind
	Scope      CapabilityScope
	Granter    [32]byte // Ed25519 public key
	Grantee    [32]byte // Ed25519 public key
	GrantedAt  uint64   // Unix seconds
	ExpiresAt  *uint64  // nil means no expiry
	Revoked    bool
	Signature  [64]byte
}

// hashForSigning computes the SHA-256 digest the granter signs. The byte
// layout is fixed so the signature is reproducible: id (LE) || capability ||
// scope || granter || grantee || granted_at (LE) || expiry-marker ||
// expiry? (LE) || revoked.
func (g *CapabilityGrant) hashForSigning() [32]byte {
	h := sha256.New()
	var u64buf [8]byte

	binary.LittleEndian.PutUint64(u64buf[:], g.ID)
	h.Write(u64buf[:])
	h.Write([]byte{byte(g.Capability)})
	h.Write([]byte{byte(g.Scope)})
	h.Write(g.Granter[:])
	h.Write(g.Grantee[:])
	binary.LittleEndian.PutUint64(u64buf[:], g.GrantedAt)
	h.Write(u64buf[:])

	if g.ExpiresAt != nil {
		h.Write([]byte{1})
		binary.LittleEndian.PutUint64(u64buf[:], *g.ExpiresAt)
		h.Write(u64buf[:])
	} else {
		h.Write([]byte{0})
	}

	revokedByte := byte(0)
	if g.Revoked {
		revokedByte = 1
	}
	h.Write([]byte{revokedByte})

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sign computes the grant's signing hash and signs it with granterKey,
// storing the result in g.Signature. granterKey must correspond to g.Granter.
func (g *CapabilityGrant) Sign(granterKey ed25519.PrivateKey) error {
	if len(granterKey) != PrivateKeySize {
		return fmt.Errorf("%w: private key must be %d bytes, got %d", ErrMalformedInput, PrivateKeySize, len(granterKey))
	}
	hash := g.hashForSigning()
	sig, err := Sign(granterKey, hash[:])
	if err != nil {
		return err
	}
	copy(g.Signature[:], sig)
	return nil
}

// VerifySignature reports whether g's signature is valid for its granter key.
func (g *CapabilityGrant) VerifySignature() error {
	hash := g.hashForSigning()
	return Verify(g.Granter[:], hash[:], g.Signature[:])
}

// IsValidAt reports whether the grant is neither revoked nor expired as of
// now.
func (g *CapabilityGrant) IsValidAt(now time.Time) bool {
	if g.Revoked {
		return false
	}
	if g.ExpiresAt == nil {
		return true
	}
	return uint64(now.Unix()) < *g.ExpiresAt
}

// IsValid reports whether the grant is valid right now.
func (g *CapabilityGrant) IsValid() bool { return g.IsValidAt(time.Now()) }

// Revoke marks the grant as revoked.
func (g *CapabilityGrant) Revoke() { g.Revoked = true }

// CapabilitySet is the effective permission set computed for a sandbox from
// its manifest-required capabilities, user-granted capabilities, and system
// defaults. It is checked before every privileged host call.
type CapabilitySet struct {
	grants map[CapabilityKind][]CapabilityGrant
}

// NewCapabilitySet returns an empty capability set.
func NewCapabilitySet() *CapabilitySet {
	return &CapabilitySet{grants: make(map[CapabilityKind][]CapabilityGrant)}
}

// CapabilitySetFromGrants builds a capability set from a flat grant list.
func CapabilitySetFromGrants(grants []CapabilityGrant) *CapabilitySet {
	cs := NewCapabilitySet()
	for _, g := range grants {
		cs.AddGrant(g)
	}
	return cs
}

// AddGrant adds a grant to the set, keyed by its capability kind.
func (cs *CapabilitySet) AddGrant(grant CapabilityGrant) {
	cs.grants[grant.Capability] = append(cs.grants[grant.Capability], grant)
}

// RemoveGrant removes the grant with the given ID. It reports whether a
// grant was found and removed.
func (cs *CapabilitySet) RemoveGrant(id uint64) bool {
	for kind, grants := range cs.grants {
		for i, g := range grants {
			if g.ID == id {
				cs.grants[kind] = append(grants[:i], grants[i+1:]...)
				return true
			}
		}
	}
	return false
}

// HasCapability reports whether the set grants cap at a scope covering the
// requested scope. An Unrestricted grant bypasses this check entirely.
func (cs *CapabilitySet) HasCapability(cap CapabilityKind, scope CapabilityScope) bool {
	for _, g := range cs.grants[CapUnrestricted] {
		if g.IsValid() {
			return true
		}
	}
	for _, g := range cs.grants[cap] {
		if g.Scope.Covers(scope) && g.IsValid() {
			return true
		}
	}
	return false
}

// EffectiveScope returns some valid scope granted for cap: Global when a
// valid Unrestricted or Global grant exists, otherwise the scope of the first
// valid grant for cap. It is not a union of scopes across grants. It returns
// false when no valid grant exists.
func (cs *CapabilitySet) EffectiveScope(cap CapabilityKind) (CapabilityScope, bool) {
	for _, g := range cs.grants[CapUnrestricted] {
		if g.IsValid() {
			return ScopeGlobal, true
		}
	}

	grants := cs.grants[cap]
	var first CapabilityScope
	found := false
	for _, g := range grants {
		if !g.IsValid() {
			continue
		}
		if g.Scope == ScopeGlobal {
			return ScopeGlobal, true
		}
		if !found {
			first, found = g.Scope, true
		}
	}
	return first, found
}

// CleanExpired drops every grant that is no longer valid.
func (cs *CapabilitySet) CleanExpired() {
	for kind, grants := range cs.grants {
		kept := grants[:0]
		for _, g := range grants {
			if g.IsValid() {
				kept = append(kept, g)
			}
		}
		cs.grants[kind] = kept
	}
}

// ValidGrants returns every currently valid grant in the set.
func (cs *CapabilitySet) ValidGrants() []CapabilityGrant {
	var out []CapabilityGrant
	for _, grants := range cs.grants {
		for _, g := range grants {
			if g.IsValid() {
				out = append(out, g)
			}
		}
	}
	return out
}

// IsEmpty reports whether the set holds no valid grants.
func (cs *CapabilitySet) IsEmpty() bool { return len(cs.ValidGrants()) == 0 }

// MinimalCapabilities lists the baseline capabilities (time, random, log).
// New does not grant them; a sandbox holds only the grants in its config.
var MinimalCapabilities = []CapabilityKind{CapSensorTime, CapSensorRandom, CapActuatorLog}

// NetworkSpiritCapabilities is a convenience bundle for network-enabled
// Spirits.
var NetworkSpiritCapabilities = []CapabilityKind{
	CapSensorTime, CapSensorRandom, CapActuatorLog,
	CapNetworkConnect, CapStorageRead, CapStorageWrite,
}

// SystemSpiritCapabilities grants unrestricted access, reserved for
// system-owned Spirits.
var SystemSpiritCapabilities = []CapabilityKind{CapUnrestricted}
