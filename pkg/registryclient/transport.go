// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
)

// Transport abstracts the underlying message-passing wire protocol to the
// registry actor (§4.D, §6). The wire format itself is an external
// collaborator (§1 Out of scope); this interface only commits to the
// client's two operation styles: a signed mutating message awaiting a
// response, and a query against either a dry-run evaluation or the HTTP
// state projection.
type Transport interface {
	// SendMessage submits a signed data item carrying tags to the actor
	// and returns the response message's tags.
	SendMessage(ctx context.Context, signedDataItem []byte) (map[string]string, error)

	// DynamicRead issues a query-path request for function against either
	// the "now" (fresh) or "cache" (HTTP-projection) state path, with req
	// as the flat query-parameter map (§4.J). The returned status is the
	// script's own reported status, mirrored from the HTTP status code.
	DynamicRead(ctx context.Context, statePath, function string, req map[string]string) (body []byte, status int, err error)
}

// HTTPTransport is the default Transport: it targets a configured gateway
// acting as a relay to the AO-like process, and a dynamic-read base URL
// for the fast HTTP query path (§6, §B.6).
type HTTPTransport struct {
	client         *http.Client
	processAddress string
	gateway        string
	dynamicReadURL string
}

// NewHTTPTransport constructs an HTTPTransport targeting processAddress
// via gateway for mutating messages, and dynamicReadURL for query-path
// reads.
func NewHTTPTransport(processAddress, gateway, dynamicReadURL string) *HTTPTransport {
	return &HTTPTransport{
		client:         &http.Client{},
		processAddress: processAddress,
		gateway:        gateway,
		dynamicReadURL: dynamicReadURL,
	}
}

// SendMessage posts a signed data item to the process's message endpoint
// and awaits its response tags.
func (t *HTTPTransport) SendMessage(ctx context.Context, signedDataItem []byte) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/%s~process@1.0/push", t.gateway, t.processAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(signedDataItem))
	if err != nil {
		return nil, skherrors.NewNetworkError("building registry message request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, skherrors.NewNetworkError("sending registry message", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		return nil, skherrors.NewNetworkError("registry process underfunded for compute (402)", nil)
	}
	if resp.StatusCode >= 400 {
		return nil, skherrors.NewNetworkError(fmt.Sprintf("registry message returned %d", resp.StatusCode), nil)
	}

	var tags map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, skherrors.NewNetworkError("decoding registry message response", err)
	}
	return tags, nil
}

// DynamicRead issues an HTTP GET along §6's URL template:
// /<process-address>~process@1.0/<state-path>/<lua-device>&module=<script-address>/<function>/<serializer>?<query>
// simplified here to the dynamic-read HTTP projection's own routes
// (pkg/dynamicread), since the script-address/lua-device plumbing is an
// external collaborator this client does not need to reproduce exactly.
func (t *HTTPTransport) DynamicRead(ctx context.Context, statePath, function string, req map[string]string) ([]byte, int, error) {
	base := t.dynamicReadURL
	if statePath == "" {
		statePath = "now"
	}

	u, err := url.Parse(fmt.Sprintf("%s/%s/%s", base, statePath, function))
	if err != nil {
		return nil, 0, skherrors.NewNetworkError("building dynamic-read URL", err)
	}
	q := u.Query()
	for k, v := range req {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, skherrors.NewNetworkError("building dynamic-read request", err)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, 0, skherrors.NewNetworkError("issuing dynamic-read request", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, 0, skherrors.NewNetworkError("reading dynamic-read response", err)
	}
	return buf.Bytes(), resp.StatusCode, nil
}
