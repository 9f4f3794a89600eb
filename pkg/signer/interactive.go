// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/logger"
)

// defaultInteractiveTimeout is §5's "interactive signature 5 min" default.
const defaultInteractiveTimeout = 5 * time.Minute

// interactiveSigner bridges signing requests to a user-approved browser
// wallet via a local HTTP loopback server: a request is POSTed by the
// wallet extension to /approve once the user accepts or rejects.
type interactiveSigner struct {
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	timeout  time.Duration
	pending  map[string]chan approvalResult
	closed   bool
}

type approvalResult struct {
	approved bool
	raw      []byte
	reason   string
}

func newInteractiveSigner(bindAddr string, timeoutSeconds int) (Signer, error) {
	if bindAddr == "" {
		bindAddr = "127.0.0.1:0"
	}
	timeout := defaultInteractiveTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}

	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, skherrors.NewConfigurationError("binding interactive signer loopback", err)
	}

	s := &interactiveSigner{
		listener: ln,
		timeout:  timeout,
		pending:  make(map[string]chan approvalResult),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/approve", s.handleApprove)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Warnf("interactive signer loopback server stopped: %v", err)
		}
	}()

	return s, nil
}

type approveRequest struct {
	RequestID string `json:"requestId"`
	Approved  bool   `json:"approved"`
	Raw       []byte `json:"raw"`
	Reason    string `json:"reason"`
}

func (s *interactiveSigner) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	ch, ok := s.pending[req.RequestID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown or expired request", http.StatusNotFound)
		return
	}

	ch <- approvalResult{approved: req.Approved, raw: req.Raw, reason: req.Reason}
	w.WriteHeader(http.StatusNoContent)
}

// requestApproval opens the user's browser at the wallet bridge URL and
// blocks until the wallet posts back an approval, rejection, or the
// configured timeout elapses.
func (s *interactiveSigner) requestApproval(ctx context.Context, kind string) (*approvalResult, error) {
	requestID := uuid.NewString()
	ch := make(chan approvalResult, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, skherrors.NewNetworkError("interactive signer already disconnected", nil)
	}
	s.pending[requestID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, requestID)
		s.mu.Unlock()
	}()

	approveURL := fmt.Sprintf("http://%s/bridge?requestId=%s&kind=%s", s.listener.Addr().String(), requestID, kind)
	if err := browser.OpenURL(approveURL); err != nil {
		return nil, skherrors.NewConfigurationError("launching browser for wallet approval", err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case result := <-ch:
		return &result, nil
	case <-timer.C:
		return nil, skherrors.NewNetworkError(
			fmt.Sprintf("interactive signature request timed out after %s", s.timeout), nil)
	case <-ctx.Done():
		return nil, skherrors.NewNetworkError("interactive signature request canceled", ctx.Err())
	}
}

func (s *interactiveSigner) GetAddress(ctx context.Context) (string, error) {
	result, err := s.requestApproval(ctx, "get-address")
	if err != nil {
		return "", err
	}
	if !result.approved {
		return "", skherrors.NewAuthorizationError("user rejected address request: "+result.reason, nil)
	}
	return string(result.raw), nil
}

func (s *interactiveSigner) SignTransaction(ctx context.Context, _ []byte) ([]byte, error) {
	result, err := s.requestApproval(ctx, "sign-transaction")
	if err != nil {
		return nil, err
	}
	if !result.approved {
		return nil, skherrors.NewAuthorizationError("user rejected transaction signature: "+result.reason, nil)
	}
	return result.raw, nil
}

func (s *interactiveSigner) SignDataItem(ctx context.Context, payload []byte, _ Tags) (*SignedDataItem, error) {
	result, err := s.requestApproval(ctx, "sign-data-item")
	if err != nil {
		return nil, err
	}
	if !result.approved {
		return nil, skherrors.NewAuthorizationError("user rejected data item signature: "+result.reason, nil)
	}
	_ = payload // payload is not sent to the bridge; Raw is whatever the wallet posts back to /approve
	return &SignedDataItem{ID: uuid.NewString(), Raw: result.raw}, nil
}

func (s *interactiveSigner) Disconnect(_ context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return skherrors.NewNetworkError("shutting down interactive signer loopback", err)
	}
	return nil
}

func (s *interactiveSigner) DescribeSource() string {
	return "interactive:" + s.listener.Addr().String()
}
