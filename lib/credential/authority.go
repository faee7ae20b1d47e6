// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/TheBaxes/slurm/lib/clock"
	"github.com/TheBaxes/slurm/lib/codec"
	"github.com/TheBaxes/slurm/lib/protocol"
)

// Errors returned by Verify and Authority.Verify. Each maps to a wire
// return code through ReturnCode.
var (
	ErrCredentialRevoked   = errors.New("credential: credential has been revoked")
	ErrCredentialExpired   = errors.New("credential: credential has expired")
	ErrCredentialSignature = errors.New("credential: invalid signature")
)

// Verify fails with ErrCredentialRevoked when credential's identity is
// in cache.
func Verify(credential *protocol.JobCredential, cache *Cache) error {
	if cache.IsRevoked(IdentityOf(credential)) {
		return fmt.Errorf("%w: %s", ErrCredentialRevoked, IdentityOf(credential))
	}
	return nil
}

// Revoke marks credential's identity revoked. Revoking twice is the
// same as revoking once.
func Revoke(credential *protocol.JobCredential, cache *Cache) error {
	cache.Revoke(IdentityOf(credential), time.Now())
	return nil
}

// ReturnCode maps a verification error to the code sent back to the
// launcher.
func ReturnCode(err error) protocol.ReturnCode {
	switch {
	case err == nil:
		return protocol.CodeSuccess
	case errors.Is(err, ErrCredentialRevoked):
		return protocol.CodeCredentialRevoked
	case errors.Is(err, ErrCredentialExpired):
		return protocol.CodeCredentialExpired
	case errors.Is(err, ErrCredentialSignature):
		return protocol.CodeCredentialInvalid
	default:
		return protocol.CodeOf(err)
	}
}

// Authority verifies launch credentials against the revocation cache,
// their expiry, and optionally the controller's signature.
type Authority struct {
	cache     *Cache
	clock     clock.Clock
	publicKey ed25519.PublicKey
}

// NewAuthority creates an authority over cache. A nil publicKey skips
// signature checks.
func NewAuthority(cache *Cache, clk clock.Clock, publicKey ed25519.PublicKey) *Authority {
	return &Authority{cache: cache, clock: clk, publicKey: publicKey}
}

// Cache returns the revocation cache the authority consults.
func (a *Authority) Cache() *Cache { return a.cache }

// Verify checks revocation first, then expiry, then the signature.
func (a *Authority) Verify(credential *protocol.JobCredential) error {
	if err := Verify(credential, a.cache); err != nil {
		return err
	}
	if credential.ExpiresAt != 0 {
		expiry := time.Unix(credential.ExpiresAt, 0)
		if !a.clock.Now().Before(expiry) {
			return fmt.Errorf("%w: %s expired at %s", ErrCredentialExpired,
				IdentityOf(credential), expiry.UTC().Format(time.RFC3339))
		}
	}
	if a.publicKey != nil {
		payload, err := signingPayload(credential)
		if err != nil {
			return err
		}
		if !ed25519.Verify(a.publicKey, payload, credential.Signature) {
			return fmt.Errorf("%w: %s", ErrCredentialSignature, IdentityOf(credential))
		}
	}
	return nil
}

// Revoke marks id revoked at the authority's current time. It reports
// whether id was newly revoked.
func (a *Authority) Revoke(id Identity) bool {
	return a.cache.Revoke(id, a.clock.Now())
}

// Sign sets credential.Signature to an Ed25519 signature over the rest
// of the credential.
func Sign(privateKey ed25519.PrivateKey, credential *protocol.JobCredential) error {
	payload, err := signingPayload(credential)
	if err != nil {
		return err
	}
	credential.Signature = ed25519.Sign(privateKey, payload)
	return nil
}

// signingPayload is the deterministic CBOR encoding of credential with
// the signature cleared.
func signingPayload(credential *protocol.JobCredential) ([]byte, error) {
	unsigned := *credential
	unsigned.Signature = nil
	payload, err := codec.Marshal(&unsigned)
	if err != nil {
		return nil, fmt.Errorf("credential: encoding signing payload: %w", err)
	}
	return payload, nil
}
