package spiritcore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the metadata for a Spirit package: its identity, declared
// capability requirements, dependencies, pricing, and an Ed25519 signature
// over its ContentHash (name, version, author, description, capabilities;
// license, repository, dependencies and pricing are not signed).
type Manifest struct {
	Name         string                 `json:"name" yaml:"name"`
	Version      SemVer                 `json:"-" yaml:"-"`
	Author       string                 `json:"author" yaml:"author"` // hex-encoded Ed25519 public key
	Description  string                 `json:"description,omitempty" yaml:"description,omitempty"`
	License      string                 `json:"license,omitempty" yaml:"license,omitempty"`
	Repository   string                 `json:"repository,omitempty" yaml:"repository,omitempty"`
	Capabilities []CapabilityKind       `json:"-" yaml:"-"`
	Dependencies map[string]Dependency  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Pricing      PricingModel           `json:"pricing" yaml:"pricing"`
	Signature    string                 `json:"signature,omitempty" yaml:"signature,omitempty"` // hex-encoded
}

// manifestWireForm is the JSON/YAML-serializable shape of a Manifest: it
// renders Version and Capabilities as strings since neither textual format
// needs to round-trip the in-memory enum representation exactly.
type manifestWireForm struct {
	Name         string                `json:"name" yaml:"name"`
	Version      string                `json:"version" yaml:"version"`
	Author       string                `json:"author" yaml:"author"`
	Description  string                `json:"description,omitempty" yaml:"description,omitempty"`
	License      string                `json:"license,omitempty" yaml:"license,omitempty"`
	Repository   string                `json:"repository,omitempty" yaml:"repository,omitempty"`
	Capabilities []string              `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Dependencies map[string]Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Pricing      PricingModel          `json:"pricing" yaml:"pricing"`
	Signature    string                `json:"signature,omitempty" yaml:"signature,omitempty"`
}

// NewManifest builds a manifest with the minimal required identity fields
// and default pricing.
func NewManifest(name string, version SemVer, author string) *Manifest {
	return &Manifest{
		Name:         name,
		Version:      version,
		Author:       author,
		Dependencies: make(map[string]Dependency),
		Pricing:      DefaultPricingModel(),
	}
}

func (m *Manifest) toWireForm() manifestWireForm {
	caps := make([]string, len(m.Capabilities))
	for i, c := range m.Capabilities {
		caps[i] = c.String()
	}
	return manifestWireForm{
		Name:         m.Name,
		Version:      m.Version.String(),
		Author:       m.Author,
		Description:  m.Description,
		License:      m.License,
		Repository:   m.Repository,
		Capabilities: caps,
		Dependencies: m.Dependencies,
		Pricing:      m.Pricing,
		Signature:    m.Signature,
	}
}

func manifestFromWireForm(w manifestWireForm) (*Manifest, error) {
	version, err := ParseSemVer(w.Version)
	if err != nil {
		return nil, err
	}
	caps := make([]CapabilityKind, 0, len(w.Capabilities))
	for _, name := range w.Capabilities {
		kind, ok := capabilityKindFromString(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown capability %q", ErrInvalidManifest, name)
		}
		caps = append(caps, kind)
	}
	deps := w.Dependencies
	if deps == nil {
		deps = make(map[string]Dependency)
	}
	return &Manifest{
		Name:         w.Name,
		Version:      version,
		Author:       w.Author,
		Description:  w.Description,
		License:      w.License,
		Repository:   w.Repository,
		Capabilities: caps,
		Dependencies: deps,
		Pricing:      w.Pricing,
		Signature:    w.Signature,
	}, nil
}

func capabilityKindFromString(s string) (CapabilityKind, bool) {
	for k := CapabilityKind(0); k <= CapUnrestricted; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// ToJSON serializes the manifest to pretty-printed JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m.toWireForm(), "", "  ")
}

// ManifestFromJSON parses a manifest from its JSON wire form.
func ManifestFromJSON(data []byte) (*Manifest, error) {
	var w manifestWireForm
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return manifestFromWireForm(w)
}

// ToYAML serializes the manifest to its keyed-table YAML wire form.
func (m *Manifest) ToYAML() ([]byte, error) {
	return yaml.Marshal(m.toWireForm())
}

// ManifestFromYAML parses a manifest from its keyed-table YAML wire form.
func ManifestFromYAML(data []byte) (*Manifest, error) {
	var w manifestWireForm
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return manifestFromWireForm(w)
}

// Validate checks the manifest's name, author, signature (if present), and
// dependency version syntax.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidManifest)
	}
	if len(m.Name) > 128 {
		return fmt.Errorf("%w: name too long (max 128 chars)", ErrInvalidManifest)
	}
	if !isNameCharset(m.Name) {
		return fmt.Errorf("%w: name must contain only alphanumeric, dash, or underscore", ErrInvalidManifest)
	}

	if len(m.Author) != 64 {
		return fmt.Errorf("%w: author must be 64 hex characters (32-byte Ed25519 public key)", ErrInvalidManifest)
	}
	if !isHex(m.Author) {
		return fmt.Errorf("%w: author must be hex-encoded", ErrInvalidManifest)
	}

	if m.Signature != "" {
		if len(m.Signature) != 128 {
			return fmt.Errorf("%w: signature must be 128 hex characters (64-byte Ed25519 signature)", ErrInvalidManifest)
		}
		if !isHex(m.Signature) {
			return fmt.Errorf("%w: signature must be hex-encoded", ErrInvalidManifest)
		}
	}

	return m.ValidateDependencies()
}

// ValidateDependencies checks that every registry dependency has a
// syntactically valid version requirement; local and git dependencies are
// exempt since they bypass version resolution entirely.
func (m *Manifest) ValidateDependencies() error {
	for name, dep := range m.Dependencies {
		if dep.IsLocal() || dep.IsGit() {
			continue
		}
		if dep.Version == "" {
			continue
		}
		if _, err := dep.VersionRequirement(); err != nil {
			return fmt.Errorf("%w: dependency %q has invalid version requirement: %v", ErrInvalidManifest, name, err)
		}
	}
	return nil
}

func isNameCharset(s string) bool {
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

// AddCapability adds cap to the manifest's required capabilities if not
// already present.
func (m *Manifest) AddCapability(cap CapabilityKind) {
	for _, existing := range m.Capabilities {
		if existing == cap {
			return
		}
	}
	m.Capabilities = append(m.Capabilities, cap)
}

// AddDependency registers a dependency under name.
func (m *Manifest) AddDependency(name string, dep Dependency) {
	if m.Dependencies == nil {
		m.Dependencies = make(map[string]Dependency)
	}
	m.Dependencies[name] = dep
}

// RequiresCapability reports whether the manifest lists cap among its
// required capabilities.
func (m *Manifest) RequiresCapability(cap CapabilityKind) bool {
	for _, existing := range m.Capabilities {
		if existing == cap {
			return true
		}
	}
	return false
}

// ContentHash computes the SHA-256 digest signed by Sign/verified by Verify:
// name || version string || author || description (if present) ||
// capabilities (rendered as their Go %v form, one per capability), excluding
// the signature field itself.
func (m *Manifest) ContentHash() [32]byte {
	h := sha256.New()
	h.Write([]byte(m.Name))
	h.Write([]byte(m.Version.String()))
	h.Write([]byte(m.Author))
	if m.Description != "" {
		h.Write([]byte(m.Description))
	}
	for _, cap := range m.Capabilities {
		h.Write([]byte(fmt.Sprintf("%v", cap)))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sign computes the manifest's content hash and signs it with priv,
// returning the hex-encoded signature. It does not store the signature on
// the manifest.
func (m *Manifest) Sign(priv ed25519.PrivateKey) (string, error) {
	hash := m.ContentHash()
	sig, err := Sign(priv, hash[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks the manifest's stored signature against its author public
// key. It returns ErrMalformedInput when the signature or author field is
// absent or the wrong shape, and ErrSignatureMismatch when the signature is
// well-formed but does not verify.
func (m *Manifest) Verify() error {
	if m.Signature == "" {
		return fmt.Errorf("%w: no signature present", ErrMalformedInput)
	}
	sigBytes, err := hex.DecodeString(m.Signature)
	if err != nil {
		return fmt.Errorf("%w: invalid signature hex: %v", ErrMalformedInput, err)
	}
	pubBytes, err := hex.DecodeString(m.Author)
	if err != nil {
		return fmt.Errorf("%w: invalid author hex: %v", ErrMalformedInput, err)
	}
	hash := m.ContentHash()
	return Verify(ed25519.PublicKey(pubBytes), hash[:], sigBytes)
}

// ManifestBuilder provides a fluent API for constructing manifests.
type ManifestBuilder struct {
	m *Manifest
}

// NewManifestBuilder starts building a manifest with the required identity
// fields.
func NewManifestBuilder(name string, version SemVer, author string) *ManifestBuilder {
	return &ManifestBuilder{m: NewManifest(name, version, author)}
}

func (b *ManifestBuilder) Description(d string) *ManifestBuilder { b.m.Description = d; return b }
func (b *ManifestBuilder) License(l string) *ManifestBuilder     { b.m.License = l; return b }
func (b *ManifestBuilder) Repository(r string) *ManifestBuilder  { b.m.Repository = r; return b }
func (b *ManifestBuilder) Pricing(p PricingModel) *ManifestBuilder {
	b.m.Pricing = p
	return b
}

func (b *ManifestBuilder) Capability(cap CapabilityKind) *ManifestBuilder {
	b.m.AddCapability(cap)
	return b
}

func (b *ManifestBuilder) Dependency(name string, dep Dependency) *ManifestBuilder {
	b.m.AddDependency(name, dep)
	return b
}

// Build returns the constructed manifest.
func (b *ManifestBuilder) Build() *Manifest { return b.m }

// normalizeName strips surrounding whitespace so callers that accept
// user-entered package names don't need to repeat this check themselves.
func normalizeName(name string) string { return strings.TrimSpace(name) }
