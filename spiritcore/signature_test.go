package spiritcore

import "testing"

func TestSignAndVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	msg := []byte("hello spirit")
	sig, err := Sign(kp.Private, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(kp.Public, msg, sig); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	kp, _ := GenerateKeyPair()
	sig, _ := Sign(kp.Private, []byte("original"))
	if err := Verify(kp.Public, []byte("tampered"), sig); err == nil {
		t.Error("Verify should reject a signature over a different message")
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	kp, _ := GenerateKeyPair()
	if err := Verify(kp.Public, []byte("msg"), []byte("too short")); err == nil {
		t.Error("Verify should reject a malformed signature")
	}
}

func TestEncodeDecodePublicKeyRoundTrip(t *testing.T) {
	kp, _ := GenerateKeyPair()
	encoded := EncodePublicKey(kp.Public)
	decoded, err := DecodePublicKey(encoded)
	if err != nil {
		t.Fatalf("DecodePublicKey: %v", err)
	}
	if string(decoded) != string(kp.Public) {
		t.Error("decoded public key does not match original")
	}
}
