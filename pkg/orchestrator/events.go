// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator wires together the manifest, bundler, storage,
// resolver, lockfile and registryclient packages into the two
// user-facing workflows a CLI invocation actually runs end to end:
// Publish (§4.H) and Install (§4.H). Each workflow is a fixed sequence
// of steps emitted as Events over a channel, so a caller (a CLI command
// or the progress package's bubbletea program) can render progress
// without the orchestrator importing any UI concern itself.
package orchestrator

// Phase names an Event's step within a Publish or Install run. Values
// are stable strings (not iota) since they are also used as progress's
// bubbletea Msg discriminant and may appear in log output.
type Phase string

const (
	PhaseValidateManifest  Phase = "validate-manifest"
	PhaseLoadSigner        Phase = "load-signer"
	PhaseCheckBalance      Phase = "check-balance"
	PhaseBuildBundle       Phase = "build-bundle"
	PhaseUploadBundle      Phase = "upload-bundle"
	PhaseConfirmUpload     Phase = "confirm-upload"
	PhaseRegisterSkill     Phase = "register-skill"
	PhasePublishComplete   Phase = "publish-complete"

	PhaseQueryRegistry     Phase = "query-registry"
	PhaseResolveDeps       Phase = "resolve-dependencies"
	PhaseDownloadBundle    Phase = "download-bundle"
	PhaseExtractBundle     Phase = "extract-bundle"
	PhaseUpdateLockFile    Phase = "update-lock-file"
	PhaseRecordDownload    Phase = "record-download"
	PhaseInstallComplete   Phase = "install-complete"
)

// Event is one step of progress within a Publish or Install run. Percent
// is meaningful only for phases that report sub-progress (upload,
// download); it is monotonic within a single phase but restarts at 0
// when Phase changes. Target carries the skill name a per-node Install
// phase (download/extract) applies to, since Install walks a plan with
// more than one node.
type Event struct {
	Phase   Phase
	Percent int
	Target  string
	Message string
}

// emit is a nil-safe send: a Publish/Install caller that passes a nil
// channel gets silent operation instead of a panic.
func emit(events chan<- Event, evt Event) {
	if events == nil {
		return
	}
	events <- evt
}
