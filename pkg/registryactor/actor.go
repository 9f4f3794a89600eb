// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registryactor implements the registry actor: a strictly
// serial message processor over a RegistryState, exposed as a single
// goroutine draining a mailbox channel so no handler body ever runs
// concurrently with another, modeling actor-model process semantics
// without requiring a real AO-like runtime to exercise it.
package registryactor

import (
	"context"
	"time"

	"github.com/google/uuid"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/registry"
)

// Message is one inbound request to the actor: name/value string tags
// plus the sender address and message timestamp that every handler must
// treat as the clock — timestamps use the incoming message's timestamp,
// never wall clock.
type Message struct {
	ID        string
	From      string
	Timestamp time.Time
	Tags      map[string]string
}

// Response is the actor's reply: either a success Action with Tags, or
// Action "Error" with an Error tag describing the reason.
type Response struct {
	Action string
	Tags   map[string]string
}

// errorResponse builds a Response carrying Action: "Error".
func errorResponse(reason string) Response {
	return Response{Action: "Error", Tags: map[string]string{"Error": reason}}
}

// PatchEmitter receives a full snapshot of the registry's skills mapping
// after every mutating handler (§4.I's patch device / HTTP state
// projection). Implementations must not block the actor goroutine for
// long; the default HTTP projection in patch.go buffers the latest
// snapshot and serves it to readers on demand instead of pushing.
type PatchEmitter interface {
	Patch(skills map[string]*registry.SkillEntry)
}

type request struct {
	msg    Message
	respCh chan Response
}

// Actor is the single-threaded registry process. Zero value is not
// usable; construct with New.
type Actor struct {
	state     *registry.RegistryState
	ownership OwnershipChecker
	emitter   PatchEmitter
	metrics   *metrics
	mailbox   chan request
	done      chan struct{}
}

// Option configures an Actor.
type Option func(*Actor)

// WithOwnershipChecker overrides the default cedar-backed ownership
// checker, chiefly for tests.
func WithOwnershipChecker(checker OwnershipChecker) Option {
	return func(a *Actor) { a.ownership = checker }
}

// WithPatchEmitter registers a PatchEmitter to receive post-mutation
// snapshots.
func WithPatchEmitter(emitter PatchEmitter) Option {
	return func(a *Actor) { a.emitter = emitter }
}

// New constructs an Actor over state (a fresh registry.NewRegistryState()
// for a cold start, or a restored one) and starts its mailbox goroutine.
// Callers must call Stop when done.
func New(ctx context.Context, state *registry.RegistryState, opts ...Option) *Actor {
	if state == nil {
		state = registry.NewRegistryState()
	}
	a := &Actor{
		state:     state,
		ownership: newCedarOwnershipChecker(),
		metrics:   newMetrics(),
		mailbox:   make(chan request, 64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if !a.state.InitialSyncDone {
		a.emitPatch()
	}
	go a.run(ctx)
	return a
}

// Stop closes the mailbox and waits for the run loop to drain.
func (a *Actor) Stop() {
	close(a.mailbox)
	<-a.done
}

func (a *Actor) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-a.mailbox:
			if !ok {
				return
			}
			req.respCh <- a.dispatch(req.msg)
		}
	}
}

// Send delivers msg to the actor's mailbox and blocks for its response.
// Message processing is strictly serial: Send from multiple goroutines
// is safe, but handler bodies never overlap.
func (a *Actor) Send(ctx context.Context, msg Message) (Response, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	respCh := make(chan Response, 1)
	select {
	case a.mailbox <- request{msg: msg, respCh: respCh}:
	case <-ctx.Done():
		return Response{}, skherrors.NewNetworkError("sending message to registry actor canceled", ctx.Err())
	}
	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		return Response{}, skherrors.NewNetworkError("awaiting registry actor response canceled", ctx.Err())
	}
}

// dispatch runs entirely on the actor goroutine: no handler may observe
// a.state concurrently with another handler.
func (a *Actor) dispatch(msg Message) Response {
	action := msg.Tags["Action"]
	a.metrics.messagesTotal.WithLabelValues(action).Inc()

	if err := validateTags(action, msg.Tags); err != nil {
		return errorResponse(err.Error())
	}

	var resp Response
	switch action {
	case "Register-Skill":
		resp = a.handleRegisterSkill(msg)
	case "Update-Skill":
		resp = a.handleUpdateSkill(msg)
	case "Search-Skills":
		resp = a.handleSearchSkills(msg)
	case "List-Skills":
		resp = a.handleListSkills(msg)
	case "Get-Skill":
		resp = a.handleGetSkill(msg)
	case "Get-Skill-Versions":
		resp = a.handleGetSkillVersions(msg)
	case "Record-Download":
		resp = a.handleRecordDownload(msg)
	case "Get-Download-Stats":
		resp = a.handleGetDownloadStats(msg)
	case "Info":
		resp = a.handleInfo(msg)
	default:
		resp = errorResponse("unknown action: " + action)
	}

	if resp.Action != "Error" && isMutating(action) {
		a.emitPatch()
	}
	return resp
}

func isMutating(action string) bool {
	switch action {
	case "Register-Skill", "Update-Skill", "Record-Download":
		return true
	default:
		return false
	}
}

func (a *Actor) emitPatch() {
	a.state.InitialSyncDone = true
	if a.emitter == nil {
		return
	}
	a.emitter.Patch(a.state.Snapshot())
}
