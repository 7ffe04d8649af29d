package spiritcore

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"
)

// sigLog is the package-level logger for signature operations. It defaults
// to discarding output; embedders can redirect it with SetSignatureLogger.
var sigLog = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}()

// SetSignatureLogger redirects signature-layer logging to l.
func SetSignatureLogger(l *logrus.Logger) { sigLog = l }

const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
)

// KeyPair is an Ed25519 identity used to sign capability grants and package
// manifests.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair produces a fresh Ed25519 identity.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key pair: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// cryptoRandomBytes returns n cryptographically random bytes, used as the
// default random source for a sandbox's random_bytes host call.
func cryptoRandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return buf, nil
}

// Sign produces a detached signature over msg.
func Sign(priv ed25519.PrivateKey, msg []byte) ([]byte, error) {
	if len(priv) != PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrMalformedInput, PrivateKeySize, len(priv))
	}
	sig := ed25519.Sign(priv, msg)
	sigLog.WithField("msg_len", len(msg)).Debug("spiritcore: signed message")
	return sig, nil
}

// Verify checks sig over msg against pub. It returns ErrMalformedInput when
// the key or signature is the wrong length, and ErrSignatureMismatch when
// the lengths are correct but the signature does not verify — callers can
// distinguish "this is not even a signature" from "this signature is wrong".
func Verify(pub ed25519.PublicKey, msg, sig []byte) error {
	if len(pub) != PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes, got %d", ErrMalformedInput, PublicKeySize, len(pub))
	}
	if len(sig) != SignatureSize {
		return fmt.Errorf("%w: signature must be %d bytes, got %d", ErrMalformedInput, SignatureSize, len(sig))
	}
	if !ed25519.Verify(pub, msg, sig) {
		sigLog.WithField("msg_len", len(msg)).Warn("spiritcore: signature verification failed")
		return ErrSignatureMismatch
	}
	return nil
}

// EncodePublicKey hex-encodes a public key for manifest/grant serialization.
func EncodePublicKey(pub ed25519.PublicKey) string { return hex.EncodeToString(pub) }

// DecodePublicKey parses a hex-encoded public key of the expected length.
func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not valid hex: %v", ErrMalformedInput, err)
	}
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrMalformedInput, PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// discardWriter is an io.Writer that drops everything written to it, used as
// the default sink for every swappable logger in this package.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
