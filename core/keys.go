package core

// Post-quantum signing keys for the cesium ledger.
//
// The underlying primitive is ML-DSA-44. Its byte sizes are part of the
// public contract of this package: peers parse envelopes by these fixed
// widths, so they are asserted against the scheme at init.
//
// A signed message is the detached signature followed by the message
// itself, SigLen+len(msg) bytes in total, mirroring the wire form used by
// transaction digests and checkpoint signatures.

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
)

const (
	// PubKeyLen is the byte length of a public key.
	PubKeyLen = 1312
	// SecKeyLen is the byte length of a secret key.
	SecKeyLen = 2560
	// SigLen is the byte length of a detached signature.
	SigLen = 2420
)

var sigScheme = mldsa44.Scheme()

func init() {
	if sigScheme.PublicKeySize() != PubKeyLen ||
		sigScheme.PrivateKeySize() != SecKeyLen ||
		sigScheme.SignatureSize() != SigLen {
		panic("signature scheme does not match the wire contract")
	}
}

// SigByteLen returns the length of a signed message carrying msgLen bytes.
func SigByteLen(msgLen int) int {
	return SigLen + msgLen
}

// SignerPair holds a full keypair and can both sign and verify.
type SignerPair struct {
	pub sign.PublicKey
	sec sign.PrivateKey
}

// VerifierPair holds only the public half of a keypair.
type VerifierPair struct {
	pub sign.PublicKey
}

// NewSignerPair generates a fresh keypair from the OS CSPRNG.
func NewSignerPair() (*SignerPair, error) {
	pk, sk, err := sigScheme.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return &SignerPair{pub: pk, sec: sk}, nil
}

// SignerPairFromBytes rebuilds a keypair from its raw key material.
func SignerPairFromBytes(pkBytes, skBytes []byte) (*SignerPair, error) {
	if len(pkBytes) != PubKeyLen || len(skBytes) != SecKeyLen {
		return nil, fmt.Errorf("%w: invalid key length", ErrKeyGeneration)
	}
	pk, err := sigScheme.UnmarshalBinaryPublicKey(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	sk, err := sigScheme.UnmarshalBinaryPrivateKey(skBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return &SignerPair{pub: pk, sec: sk}, nil
}

// SignerPairFromReadable rebuilds a keypair from a base-58 public key and a
// hex secret key.
func SignerPairFromReadable(pkStr, skStr string) (*SignerPair, error) {
	pkBytes, err := base58.Decode(pkStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	skBytes, err := hex.DecodeString(skStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return SignerPairFromBytes(pkBytes, skBytes)
}

// Bytes returns the raw (public, secret) key material.
func (k *SignerPair) Bytes() ([]byte, []byte, error) {
	pk, err := k.pub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	sk, err := k.sec.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return pk, sk, nil
}

// PublicKeyBytes returns the raw public key.
func (k *SignerPair) PublicKeyBytes() []byte {
	pk, err := k.pub.MarshalBinary()
	if err != nil {
		panic(err) // marshalling a valid in-memory key cannot fail
	}
	return pk
}

// ToReadable renders the keypair as (base-58 public, hex secret).
func (k *SignerPair) ToReadable() (string, string, error) {
	pk, sk, err := k.Bytes()
	if err != nil {
		return "", "", err
	}
	return base58.Encode(pk), hex.EncodeToString(sk), nil
}

// PublicKeyReadable renders the public key in base-58.
func (k *SignerPair) PublicKeyReadable() string {
	return base58.Encode(k.PublicKeyBytes())
}

// DA returns the display address of the public key.
func (k *SignerPair) DA() *DisplayAddress {
	da, err := DisplayAddressFromPK(k.PublicKeyBytes())
	if err != nil {
		panic(err)
	}
	return da
}

// Sign produces a signed message: detached signature followed by msg.
func (k *SignerPair) Sign(msg []byte) []byte {
	sig := sigScheme.Sign(k.sec, msg, nil)
	return append(sig, msg...)
}

// Verify checks a signed message against msg. A signed message whose
// embedded payload differs from msg fails with ErrMismatchedMessage.
func (k *SignerPair) Verify(msg, signedMsg []byte) (bool, error) {
	return verifySigned(k.pub, msg, signedMsg)
}

// Open verifies a signed message and returns the embedded payload.
func (k *SignerPair) Open(signedMsg []byte) ([]byte, error) {
	return openSigned(k.pub, signedMsg)
}

// VerifierPairFromBytes rebuilds the verifying half from raw public key
// bytes.
func VerifierPairFromBytes(pkBytes []byte) (*VerifierPair, error) {
	if len(pkBytes) != PubKeyLen {
		return nil, fmt.Errorf("%w: invalid public key length", ErrKeyGeneration)
	}
	pk, err := sigScheme.UnmarshalBinaryPublicKey(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return &VerifierPair{pub: pk}, nil
}

// VerifierPairFromReadable rebuilds the verifying half from a base-58
// public key.
func VerifierPairFromReadable(pkStr string) (*VerifierPair, error) {
	pkBytes, err := base58.Decode(pkStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return VerifierPairFromBytes(pkBytes)
}

// PublicKeyBytes returns the raw public key.
func (k *VerifierPair) PublicKeyBytes() []byte {
	pk, err := k.pub.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return pk
}

// DA returns the display address of the public key.
func (k *VerifierPair) DA() *DisplayAddress {
	da, err := DisplayAddressFromPK(k.PublicKeyBytes())
	if err != nil {
		panic(err)
	}
	return da
}

// Verify checks a signed message against msg.
func (k *VerifierPair) Verify(msg, signedMsg []byte) (bool, error) {
	return verifySigned(k.pub, msg, signedMsg)
}

// Open verifies a signed message and returns the embedded payload.
func (k *VerifierPair) Open(signedMsg []byte) ([]byte, error) {
	return openSigned(k.pub, signedMsg)
}

func verifySigned(pk sign.PublicKey, msg, signedMsg []byte) (bool, error) {
	if len(signedMsg) < SigByteLen(len(msg)) {
		return false, fmt.Errorf("%w: signed message too short", ErrInvalidSignature)
	}
	sig := signedMsg[:SigLen]
	embedded := signedMsg[SigLen:]
	if !bytes.Equal(embedded, msg) {
		return false, ErrMismatchedMessage
	}
	return sigScheme.Verify(pk, msg, sig, nil), nil
}

func openSigned(pk sign.PublicKey, signedMsg []byte) ([]byte, error) {
	if len(signedMsg) < SigLen {
		return nil, fmt.Errorf("%w: signed message too short", ErrInvalidSignature)
	}
	sig := signedMsg[:SigLen]
	msg := signedMsg[SigLen:]
	if !sigScheme.Verify(pk, msg, sig, nil) {
		return nil, ErrInvalidSignature
	}
	return msg, nil
}

const (
	validatorPKFile = "account.pk"
	validatorSKFile = "account.sk"
)

// LoadOrCreateValidatorKey loads the validator keypair from dir, creating
// and persisting a fresh one when neither key file exists. Exactly one of
// the two files being present is a corrupted installation and fails.
func LoadOrCreateValidatorKey(dir string, lg *log.Logger) (*SignerPair, error) {
	pkPath := filepath.Join(dir, validatorPKFile)
	skPath := filepath.Join(dir, validatorSKFile)

	_, pkErr := os.Stat(pkPath)
	_, skErr := os.Stat(skPath)
	pkExists := pkErr == nil
	skExists := skErr == nil

	switch {
	case !pkExists && !skExists:
		kp, err := NewSignerPair()
		if err != nil {
			return nil, err
		}
		pk, sk, err := kp.Bytes()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create key dir: %w", err)
		}
		if err := os.WriteFile(skPath, sk, 0o600); err != nil {
			return nil, fmt.Errorf("write secret key: %w", err)
		}
		if err := os.WriteFile(pkPath, pk, 0o644); err != nil {
			return nil, fmt.Errorf("write public key: %w", err)
		}
		lg.WithField("dir", dir).Info("validator account created")
		return kp, nil

	case pkExists != skExists:
		return nil, fmt.Errorf("%w: account key files are incomplete in %s", ErrKeyGeneration, dir)
	}

	pk, err := os.ReadFile(pkPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	sk, err := os.ReadFile(skPath)
	if err != nil {
		return nil, fmt.Errorf("read secret key: %w", err)
	}
	return SignerPairFromBytes(pk, sk)
}
