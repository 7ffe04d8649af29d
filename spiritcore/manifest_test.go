package spiritcore

import "testing"

func TestManifestSignAndVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	m := NewManifest("example-spirit", NewSemVer(1, 0, 0), EncodePublicKey(kp.Public))
	m.AddCapability(CapStorageRead)

	sig, err := m.Sign(kp.Private)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	m.Signature = sig

	if err := m.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestManifestVerifyDetectsForgedSignature(t *testing.T) {
	kp, _ := GenerateKeyPair()
	attacker, _ := GenerateKeyPair()

	m := NewManifest("example-spirit", NewSemVer(1, 0, 0), EncodePublicKey(kp.Public))
	sig, err := m.Sign(attacker.Private) // signed by the wrong key
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	m.Signature = sig

	if err := m.Verify(); err == nil {
		t.Error("Verify should reject a signature produced by a different key")
	}
}

func TestManifestVerifyDetectsTamperedContent(t *testing.T) {
	kp, _ := GenerateKeyPair()
	m := NewManifest("example-spirit", NewSemVer(1, 0, 0), EncodePublicKey(kp.Public))

	sig, err := m.Sign(kp.Private)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	m.Signature = sig
	m.Description = "added after signing"

	if err := m.Verify(); err == nil {
		t.Error("Verify should reject a manifest modified after signing")
	}
}

func TestManifestValidateRejectsBadName(t *testing.T) {
	kp, _ := GenerateKeyPair()
	m := NewManifest("bad name!", NewSemVer(1, 0, 0), EncodePublicKey(kp.Public))
	if err := m.Validate(); err == nil {
		t.Error("Validate should reject names with spaces or punctuation")
	}
}

func TestManifestJSONRoundTrip(t *testing.T) {
	kp, _ := GenerateKeyPair()
	m := NewManifest("roundtrip", NewSemVer(2, 1, 0), EncodePublicKey(kp.Public))
	m.AddCapability(CapNetworkConnect)
	m.AddDependency("widget", NewDependency("^1.0.0"))

	data, err := m.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := ManifestFromJSON(data)
	if err != nil {
		t.Fatalf("ManifestFromJSON: %v", err)
	}
	if decoded.Name != m.Name || !decoded.Version.Equal(m.Version) {
		t.Errorf("round trip mismatch: got %+v", decoded)
	}
	if !decoded.RequiresCapability(CapNetworkConnect) {
		t.Error("round-tripped manifest lost its capability requirement")
	}
}

func TestManifestYAMLRoundTrip(t *testing.T) {
	kp, _ := GenerateKeyPair()
	m := NewManifest("yaml-roundtrip", NewSemVer(0, 3, 2), EncodePublicKey(kp.Public))

	data, err := m.ToYAML()
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	decoded, err := ManifestFromYAML(data)
	if err != nil {
		t.Fatalf("ManifestFromYAML: %v", err)
	}
	if decoded.Name != m.Name || !decoded.Version.Equal(m.Version) {
		t.Errorf("round trip mismatch: got %+v", decoded)
	}
}
