// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"crypto/rsa"
	"crypto/sha512"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
)

// mnemonicWordCount is the only recognized phrase length (§4.B: "12-word
// phrase").
const mnemonicWordCount = 12

// mnemonicPBKDF2Iterations bounds the key-stretching cost of deriving a
// key from a mnemonic; chosen for interactive-CLI latency, not long-term
// storage-at-rest hardening.
const mnemonicPBKDF2Iterations = 100_000

// rsaKeyBits is the modulus size for a mnemonic-derived key. Deterministic
// prime generation from a seed needs a fixed, moderate bit length to stay
// within interactive CLI latency budgets.
const rsaKeyBits = 2048

type mnemonicSigner struct {
	phrase string
	key    *rsa.PrivateKey
}

func newMnemonicSigner(phrase string) (Signer, error) {
	words := strings.Fields(phrase)
	if len(words) != mnemonicWordCount {
		return nil, skherrors.NewConfigurationError(
			"mnemonic signer requires a 12-word space-separated phrase", nil)
	}

	key, err := deriveRSAKey(phrase)
	if err != nil {
		return nil, skherrors.NewConfigurationError("deriving key from mnemonic", err)
	}

	return &mnemonicSigner{phrase: phrase, key: key}, nil
}

// deriveRSAKey derives a deterministic RSA private key from a mnemonic
// phrase: the phrase is stretched via PBKDF2-SHA512 into a seed, which
// seeds a deterministic prime search. The same phrase always yields the
// same key (§4.B: "deterministic key from a 12-word phrase").
func deriveRSAKey(phrase string) (*rsa.PrivateKey, error) {
	seed := pbkdf2.Key([]byte(phrase), []byte("skillhive-mnemonic-wallet"), mnemonicPBKDF2Iterations, 64, sha512.New)
	rng := newSeededReader(seed)

	key, err := rsa.GenerateKey(rng, rsaKeyBits)
	if err != nil {
		return nil, err
	}
	key.Precompute()
	return key, nil
}

// seededReader is a deterministic io.Reader whose output is a counter-mode
// stream of SHA-512(seed || little-endian counter) blocks, so the bytes it
// hands to rsa.GenerateKey are a pure function of the seed.
type seededReader struct {
	seed    []byte
	counter uint64
}

func newSeededReader(seed []byte) *seededReader {
	return &seededReader{seed: seed}
}

func (r *seededReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		block := blockFor(r.seed, r.counter)
		r.counter++
		n += copy(p[n:], block)
	}
	return n, nil
}

func blockFor(seed []byte, counter uint64) []byte {
	h := sha512.New()
	h.Write(seed)
	var counterBytes [8]byte
	for i := range counterBytes {
		counterBytes[i] = byte(counter >> (8 * i))
	}
	h.Write(counterBytes[:])
	return h.Sum(nil)
}

func (m *mnemonicSigner) GetAddress(_ context.Context) (string, error) {
	return addressFromModulus(m.key.N.Bytes()), nil
}

func (m *mnemonicSigner) SignTransaction(_ context.Context, tx []byte) ([]byte, error) {
	return signRSAPSS(m.key, tx)
}

func (m *mnemonicSigner) SignDataItem(_ context.Context, payload []byte, tags Tags) (*SignedDataItem, error) {
	return signDataItemRSA(m.key, payload, tags)
}

func (m *mnemonicSigner) Disconnect(_ context.Context) error { return nil }

func (m *mnemonicSigner) DescribeSource() string {
	return "mnemonic:derived"
}
