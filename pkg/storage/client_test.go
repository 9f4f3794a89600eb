// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillhive/skillhive/pkg/signer"
)

// walletJWK mirrors pkg/signer's on-disk wallet shape so tests can
// construct a real keyfile without exporting signer internals.
type walletJWK struct {
	N string `json:"n"`
	E string `json:"e"`
	D string `json:"d"`
	P string `json:"p"`
	Q string `json:"q"`
}

func writeGeneratedWallet(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk := walletJWK{
		N: base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E: base64.RawURLEncoding.EncodeToString(bigEndianUint(key.E)),
		D: base64.RawURLEncoding.EncodeToString(key.D.Bytes()),
		P: base64.RawURLEncoding.EncodeToString(key.Primes[0].Bytes()),
		Q: base64.RawURLEncoding.EncodeToString(key.Primes[1].Bytes()),
	}

	data, err := json.Marshal(jwk)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func bigEndianUint(n int) []byte {
	if n == 0 {
		return []byte{0}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n & 0xff)}, b...)
		n >>= 8
	}
	return b
}

func TestUpload_SmallBundleGoesViaBundler(t *testing.T) {
	t.Parallel()

	var hit bool
	bundler := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer bundler.Close()

	c := New(bundler.URL, "https://gateway.example")
	var progressed []int
	result, err := c.Upload(context.Background(), nil, []byte("tiny bundle"), nil, false, func(p int) {
		progressed = append(progressed, p)
	})

	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "bundler", result.Via)
	assert.Len(t, result.TxID, 43)
	assert.Equal(t, 100, progressed[len(progressed)-1])
}

func TestUpload_LargeBundleRequiresSigner(t *testing.T) {
	t.Parallel()

	c := New("https://bundler.example", "https://gateway.example")
	large := make([]byte, FreeTierCeiling+1)

	_, err := c.Upload(context.Background(), nil, large, nil, false, nil)
	require.Error(t, err)
}

func TestUpload_LargeBundleDirectPath(t *testing.T) {
	t.Parallel()

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	fileSigner := newTestFileSigner(t)
	c := New("https://bundler.example", gateway.URL)
	large := make([]byte, FreeTierCeiling+1)

	result, err := c.Upload(context.Background(), fileSigner, large, signer.Tags{"Action": "Register-Skill"}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, "direct", result.Via)
	assert.Len(t, result.TxID, 43)
}

func TestDownload_FirstGatewaySucceeds(t *testing.T) {
	t.Parallel()

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("skill bundle contents"))
	}))
	defer gateway.Close()

	c := New("https://bundler.example", gateway.URL)
	var lastProgress int32
	data, err := c.Download(context.Background(), "some-tx-id", func(p int) {
		atomic.StoreInt32(&lastProgress, int32(p))
	})

	require.NoError(t, err)
	assert.Equal(t, "skill bundle contents", string(data))
	assert.Equal(t, int32(100), atomic.LoadInt32(&lastProgress))
}

func TestDownload_FallsBackToSecondGateway(t *testing.T) {
	t.Parallel()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fallback contents"))
	}))
	defer good.Close()

	c := New("https://bundler.example", bad.URL, WithGateways([]string{bad.URL, good.URL}), WithPerGatewayRetries(1))
	data, err := c.Download(context.Background(), "some-tx-id", nil)

	require.NoError(t, err)
	assert.Equal(t, "fallback contents", string(data))
}

func TestDownload_AllGatewaysExhaustedIsNetworkError(t *testing.T) {
	t.Parallel()

	bad1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad1.Close()
	bad2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad2.Close()

	c := New("https://bundler.example", bad1.URL, WithGateways([]string{bad1.URL, bad2.URL}), WithPerGatewayRetries(0))
	_, err := c.Download(context.Background(), "some-tx-id", nil)

	require.Error(t, err)
}

func TestDownload_ServerErrorRetriesWithinGateway(t *testing.T) {
	t.Parallel()

	var attempts int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok after retries"))
	}))
	defer gateway.Close()

	c := New("https://bundler.example", gateway.URL, WithPerGatewayRetries(3))
	data, err := c.Download(context.Background(), "some-tx-id", nil)

	require.NoError(t, err)
	assert.Equal(t, "ok after retries", string(data))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(3))
}

func TestWaitForConfirmation_TimesOutWithoutFatalError(t *testing.T) {
	t.Parallel()

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer gateway.Close()

	c := New("https://bundler.example", gateway.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.waitForConfirmation(ctx, "tx-id")
	require.Error(t, err, "confirmation wait should surface an error on timeout/cancel, but callers treat it as non-fatal")
}

func TestContentAddress_IsDeterministicAndFortyThreeChars(t *testing.T) {
	t.Parallel()

	a := contentAddress([]byte("same content"))
	b := contentAddress([]byte("same content"))
	c := contentAddress([]byte("different content"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 43)
}

func newTestFileSigner(t *testing.T) signer.Signer {
	t.Helper()
	path := writeGeneratedWallet(t)
	s, err := signer.New(signer.FileVariant, signer.Config{KeyPath: path})
	require.NoError(t, err)
	return s
}
