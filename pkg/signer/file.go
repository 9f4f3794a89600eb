// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
)

// walletJWK is the on-disk keyfile shape: an RSA private key in JWK form,
// the same shape the storage network's reference wallets use.
type walletJWK struct {
	N string `json:"n"`
	E string `json:"e"`
	D string `json:"d"`
	P string `json:"p"`
	Q string `json:"q"`
}

type fileSigner struct {
	path string
	key  *rsa.PrivateKey
}

func newFileSigner(path string) (Signer, error) {
	if path == "" {
		return nil, skherrors.NewConfigurationError("file signer requires a keyfile path", nil)
	}

	data, err := resolveKeySource(path)
	if err != nil {
		return nil, err
	}

	var jwk walletJWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, skherrors.NewValidationError("keyfile is not a valid wallet JWK", err)
	}

	key, err := jwkToRSAKey(jwk)
	if err != nil {
		return nil, skherrors.NewValidationError("keyfile contains an invalid RSA key", err)
	}

	return &fileSigner{path: path, key: key}, nil
}

func jwkToRSAKey(jwk walletJWK) (*rsa.PrivateKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	d, err := base64.RawURLEncoding.DecodeString(jwk.D)
	if err != nil {
		return nil, fmt.Errorf("decoding private exponent: %w", err)
	}
	p, err := base64.RawURLEncoding.DecodeString(jwk.P)
	if err != nil {
		return nil, fmt.Errorf("decoding prime p: %w", err)
	}
	q, err := base64.RawURLEncoding.DecodeString(jwk.Q)
	if err != nil {
		return nil, fmt.Errorf("decoding prime q: %w", err)
	}

	eInt := 0
	for _, b := range e {
		eInt = eInt<<8 | int(b)
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: eInt,
		},
		D:      new(big.Int).SetBytes(d),
		Primes: []*big.Int{new(big.Int).SetBytes(p), new(big.Int).SetBytes(q)},
	}
	key.Precompute()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

func (f *fileSigner) GetAddress(_ context.Context) (string, error) {
	return addressFromModulus(f.key.N.Bytes()), nil
}

func (f *fileSigner) SignTransaction(_ context.Context, tx []byte) ([]byte, error) {
	return signRSAPSS(f.key, tx)
}

func (f *fileSigner) SignDataItem(_ context.Context, payload []byte, tags Tags) (*SignedDataItem, error) {
	return signDataItemRSA(f.key, payload, tags)
}

func (f *fileSigner) Disconnect(_ context.Context) error { return nil }

func (f *fileSigner) DescribeSource() string {
	return "file:" + f.path
}

// addressFromModulus derives the storage network's 43-character address
// from an RSA public modulus: base64url(sha256(modulus)), unpadded.
func addressFromModulus(modulus []byte) string {
	sum := sha256.Sum256(modulus)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func signRSAPSS(key *rsa.PrivateKey, payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	return rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
}

func signDataItemRSA(key *rsa.PrivateKey, payload []byte, tags Tags) (*SignedDataItem, error) {
	canonical := canonicalizeDataItem(payload, tags)
	sig, err := signRSAPSS(key, canonical)
	if err != nil {
		return nil, skherrors.NewAuthorizationError("signing data item", err)
	}
	idSum := sha256.Sum256(sig)
	return &SignedDataItem{
		ID:  base64.RawURLEncoding.EncodeToString(idSum[:]),
		Raw: append(sig, payload...),
	}, nil
}

// canonicalizeDataItem deterministically serializes payload and tags for
// signing: tags sorted by key so that tag-insertion order never affects
// the resulting signature.
func canonicalizeDataItem(payload []byte, tags Tags) []byte {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sortStrings(keys)

	var buf []byte
	for _, k := range keys {
		buf = append(buf, []byte(k)...)
		buf = append(buf, '=')
		buf = append(buf, []byte(tags[k])...)
		buf = append(buf, '\n')
	}
	buf = append(buf, payload...)
	return buf
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
