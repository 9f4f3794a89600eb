// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage implements the storage client: bundle upload (with a
// free-tier dispatcher for small bundles), bundle download with sequential
// gateway fallback and exponential backoff, transaction status polling,
// and a progress-callback contract. Retries use cenkalti/backoff, and
// prometheus counters/histograms are registered at package init.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/logger"
	"github.com/skillhive/skillhive/pkg/signer"
)

// FreeTierCeiling is the bundle-size threshold below which uploads go
// through the subsidized bundler service (§4.C).
const FreeTierCeiling = 100 * 1024

// GatewayFallbackCount is the number of gateways a download tries before
// surfacing Network (§4.C: "total = 3 fallbacks").
const GatewayFallbackCount = 3

// DefaultPerGatewayRetries is the retry count per gateway before moving on.
const DefaultPerGatewayRetries = 1

// DefaultRequestTimeout is §4.C/§5's per-request default.
const DefaultRequestTimeout = 5 * time.Second

// ConfirmationPollInterval and ConfirmationHorizon bound the confirmation
// wait loop (§4.C/§5).
const (
	ConfirmationPollInterval = 30 * time.Second
	ConfirmationHorizon      = 10 * time.Minute
	confirmationsRequired    = 1
)

var (
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skillhive",
		Subsystem: "storage",
		Name:      "upload_bytes_total",
		Help:      "Total bytes uploaded to the storage network.",
	})
	downloadAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillhive",
		Subsystem: "storage",
		Name:      "download_attempts_total",
		Help:      "Download attempts by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skillhive",
		Subsystem: "storage",
		Name:      "upload_duration_seconds",
		Help:      "Upload latency in seconds.",
	})
)

// ProgressFunc is invoked monotonically with a [0,100] percent-complete
// value; it may be called multiple times and must reach 100 on success
// (§4.C).
type ProgressFunc func(percent int)

// Client is the storage network client.
type Client struct {
	httpClient        *http.Client
	bundlerURL        string
	gateways          []string
	perGatewayRetries int
	requestTimeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithGateways overrides the default gateway fallback list.
func WithGateways(gateways []string) Option {
	return func(c *Client) { c.gateways = gateways }
}

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// WithPerGatewayRetries overrides the retry count per gateway.
func WithPerGatewayRetries(n int) Option {
	return func(c *Client) { c.perGatewayRetries = n }
}

// New constructs a Client targeting the given primary gateway and
// bundler-service URL.
func New(bundlerURL, primaryGateway string, opts ...Option) *Client {
	c := &Client{
		httpClient:        &http.Client{Timeout: DefaultRequestTimeout},
		bundlerURL:        bundlerURL,
		gateways:          []string{primaryGateway},
		perGatewayRetries: DefaultPerGatewayRetries,
		requestTimeout:    DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Timeout = c.requestTimeout
	return c
}

// UploadResult is the outcome of a successful Upload.
type UploadResult struct {
	TxID string
	Via  string // "bundler" or "direct"
}

// Upload dispatches bundle through the free-tier bundler service when its
// size is under FreeTierCeiling, otherwise through the direct upload path
// (sign -> submit), then optionally waits for confirmation on either path.
// Upload performs no balance check; Publish does that before calling it.
func (c *Client) Upload(ctx context.Context, s signer.Signer, bundle []byte, tags signer.Tags, waitConfirmation bool, progress ProgressFunc) (*UploadResult, error) {
	start := time.Now()
	defer func() { uploadDuration.Observe(time.Since(start).Seconds()) }()

	if progress != nil {
		progress(0)
	}

	var result *UploadResult
	var err error
	if len(bundle) < FreeTierCeiling {
		result, err = c.uploadViaBundler(ctx, bundle, tags)
	} else {
		result, err = c.uploadDirect(ctx, s, bundle, tags, progress)
	}
	if err != nil {
		return nil, err
	}

	uploadBytesTotal.Add(float64(len(bundle)))
	if progress != nil {
		progress(100)
	}

	if waitConfirmation {
		if err := c.waitForConfirmation(ctx, result.TxID); err != nil {
			logger.Warnf("upload %s not confirmed within horizon, proceeding: %v", result.TxID, err)
		}
	}

	return result, nil
}

func (c *Client) uploadViaBundler(ctx context.Context, bundle []byte, tags signer.Tags) (*UploadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bundlerURL+"/tx", bytes.NewReader(bundle))
	if err != nil {
		return nil, skherrors.NewNetworkError("building bundler upload request", err)
	}
	for k, v := range tags {
		req.Header.Set("X-Tag-"+k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, skherrors.NewNetworkError("uploading via bundler service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, skherrors.NewNetworkError(fmt.Sprintf("bundler service returned %d", resp.StatusCode), nil)
	}

	return &UploadResult{TxID: contentAddress(bundle), Via: "bundler"}, nil
}

func (c *Client) uploadDirect(ctx context.Context, s signer.Signer, bundle []byte, tags signer.Tags, progress ProgressFunc) (*UploadResult, error) {
	if s == nil {
		return nil, skherrors.NewConfigurationError("direct upload requires a signer", nil)
	}

	if progress != nil {
		progress(25)
	}
	item, err := s.SignDataItem(ctx, bundle, tags)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(60)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gateways[0]+"/tx", bytes.NewReader(item.Raw))
	if err != nil {
		return nil, skherrors.NewNetworkError("building direct upload request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, skherrors.NewNetworkError("submitting direct upload", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, skherrors.NewNetworkError(fmt.Sprintf("gateway returned %d", resp.StatusCode), nil)
	}
	if progress != nil {
		progress(90)
	}

	return &UploadResult{TxID: item.ID, Via: "direct"}, nil
}

// waitForConfirmation polls the status endpoint every
// ConfirmationPollInterval for at most ConfirmationHorizon, requiring at
// least confirmationsRequired confirmations.
func (c *Client) waitForConfirmation(ctx context.Context, txID string) error {
	deadline := time.Now().Add(ConfirmationHorizon)
	ticker := time.NewTicker(ConfirmationPollInterval)
	defer ticker.Stop()

	for {
		confirmed, err := c.confirmations(ctx, txID)
		if err == nil && confirmed >= confirmationsRequired {
			return nil
		}

		if time.Now().After(deadline) {
			return skherrors.NewNetworkError("confirmation horizon exceeded for "+txID, nil)
		}

		select {
		case <-ctx.Done():
			return skherrors.NewNetworkError("confirmation wait canceled", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) confirmations(ctx context.Context, txID string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gateways[0]+"/tx/"+txID+"/status", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	return 1, nil
}

// Download fetches txID's content, trying up to GatewayFallbackCount
// gateways sequentially, each with exponential backoff
// (base=1s, base*2^attempt) up to c.perGatewayRetries retries. progress is
// invoked with [0,100] bytes-transferred percentages.
func (c *Client) Download(ctx context.Context, txID string, progress ProgressFunc) ([]byte, error) {
	gateways := c.gateways
	if len(gateways) > GatewayFallbackCount {
		gateways = gateways[:GatewayFallbackCount]
	}

	var lastErr error
	for _, gateway := range gateways {
		data, err := c.downloadFromGateway(ctx, gateway, txID, progress)
		if err == nil {
			downloadAttemptsTotal.WithLabelValues(gateway, "success").Inc()
			return data, nil
		}
		downloadAttemptsTotal.WithLabelValues(gateway, "failure").Inc()
		logger.Warnf("download from gateway %s failed: %v", gateway, err)
		lastErr = err
	}

	return nil, skherrors.NewNetworkError("all gateways exhausted for "+txID, lastErr)
}

func (c *Client) downloadFromGateway(ctx context.Context, gateway, txID string, progress ProgressFunc) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, gateway+"/"+txID, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("gateway %s returned %d", gateway, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(fmt.Errorf("gateway %s returned %d", gateway, resp.StatusCode))
		}

		return readWithProgress(resp.Body, resp.ContentLength, progress)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.perGatewayRetries+1)),
	)
}

func readWithProgress(r io.Reader, total int64, progress ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	var read int64

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			read += int64(n)
			if progress != nil && total > 0 {
				progress(int(read * 100 / total))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if progress != nil {
		progress(100)
	}
	return buf.Bytes(), nil
}

// contentAddress computes the 43-char content address the bundler service
// would assign: base64url(sha256(content)), unpadded.
func contentAddress(content []byte) string {
	sum := sha256.Sum256(content)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
