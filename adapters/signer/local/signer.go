// Package local implements the Signer port with an in-process secp256k1
// key. Meant for development and tests; production deployments use the
// custody signer.
package local

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

type Signer struct {
	key *ecdsa.PrivateKey
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// NewSignerFromHex creates a signer from a hex-encoded private key.
func NewSignerFromHex(keyHex string) (*Signer, error) {
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

// SignTypedData hashes the EIP-712 payload and signs it.
func (s *Signer) SignTypedData(ctx context.Context, raw json.RawMessage) (string, error) {
	var typedData apitypes.TypedData
	if err := json.Unmarshal(raw, &typedData); err != nil {
		return "", fmt.Errorf("invalid typed data: %w", err)
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("failed to hash typed data: %w", err)
	}

	return s.signDigest(digest)
}

// SignUserOperation signs the user operation payload with a personal-sign
// envelope over its canonical JSON form.
func (s *Signer) SignUserOperation(ctx context.Context, userOperation json.RawMessage) (string, error) {
	return s.signDigest(accounts.TextHash(userOperation))
}

func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	// Transform V from 0/1 to the 27/28 form expected on-chain.
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
