package core

// Sigma-protocol proof of possession of a secret bound to a signing
// identity. The prover commits to SHAKE256(secret || salt), the verifier
// challenges with SHAKE256(commitment), and the prover answers by signing
// commitment || challenge. The salt makes commitments non-deterministic
// across runs for the same secret. The non-interactive flow derives the
// challenge from the commitment (Fiat-Shamir), so a response transcript
// verifies offline.

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	zkSaltLen      = 32
	zkChallengeLen = 32
)

type (
	// Commitment is the prover's opening hash of secret and salt.
	Commitment []byte
	// Challenge is the verifier's hash of the commitment.
	Challenge []byte
	// Response is the prover's signed message over commitment || challenge.
	Response []byte
)

// GenerateCommitment draws a fresh salt and commits to the secret.
func GenerateCommitment(secret []byte) (Commitment, []byte, error) {
	salt := make([]byte, zkSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrZkInvalidCommitment, err)
	}

	shake := sha3.NewShake256()
	shake.Write(secret)
	shake.Write(salt)

	commitment := make(Commitment, zkChallengeLen)
	if _, err := shake.Read(commitment); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrZkInvalidCommitment, err)
	}
	return commitment, salt, nil
}

// GenerateChallenge derives the deterministic challenge for a commitment.
func GenerateChallenge(commitment Commitment) Challenge {
	shake := sha3.NewShake256()
	shake.Write(commitment)

	challenge := make(Challenge, zkChallengeLen)
	shake.Read(challenge)
	return challenge
}

// GenerateResponse signs commitment || challenge with the prover's key.
func GenerateResponse(kp *SignerPair, commitment Commitment, challenge Challenge) (Response, error) {
	msg := make([]byte, 0, len(commitment)+len(challenge))
	msg = append(msg, commitment...)
	msg = append(msg, challenge...)
	return Response(kp.Sign(msg)), nil
}

// proofVerifier is satisfied by both SignerPair and VerifierPair.
type proofVerifier interface {
	Verify(msg, signedMsg []byte) (bool, error)
}

// VerifyProof checks a response against the claimed identity. A response
// produced over a different commitment or challenge fails closed with
// ok=false rather than an error.
func VerifyProof(account proofVerifier, commitment Commitment, challenge Challenge, response Response) (bool, error) {
	msg := make([]byte, 0, len(commitment)+len(challenge))
	msg = append(msg, commitment...)
	msg = append(msg, challenge...)

	ok, err := account.Verify(msg, []byte(response))
	if err != nil {
		if errors.Is(err, ErrMismatchedMessage) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrZkInvalidResponse, err)
	}
	return ok, nil
}

// GenerateNonInteractive produces a self-contained (commitment, response)
// transcript for the secret.
func GenerateNonInteractive(kp *SignerPair, secret []byte) (Commitment, Response, error) {
	commitment, _, err := GenerateCommitment(secret)
	if err != nil {
		return nil, nil, err
	}
	challenge := GenerateChallenge(commitment)
	response, err := GenerateResponse(kp, commitment, challenge)
	if err != nil {
		return nil, nil, err
	}
	return commitment, response, nil
}

// VerifyNonInteractive recomputes the challenge from the commitment and
// verifies the transcript.
func VerifyNonInteractive(account proofVerifier, commitment Commitment, response Response) (bool, error) {
	challenge := GenerateChallenge(commitment)
	return VerifyProof(account, commitment, challenge, response)
}
