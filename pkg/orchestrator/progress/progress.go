// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package progress renders a Publish or Install run's Event stream as a
// bubbletea program: a spinner while a phase has no measurable
// percentage, and a gradient progress bar once one does. It degrades to
// plain line-by-line logging when stdout isn't a terminal, so piping
// `skh install` output to a file or CI log never leaves raw escape
// codes behind.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/skillhive/skillhive/pkg/orchestrator"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	targetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3"))
)

// phaseLabel is the human-facing text for a Phase, shown beside the
// spinner or progress bar.
func phaseLabel(p orchestrator.Phase) string {
	switch p {
	case orchestrator.PhaseValidateManifest:
		return "Validating skill"
	case orchestrator.PhaseLoadSigner:
		return "Loading wallet"
	case orchestrator.PhaseCheckBalance:
		return "Checking balance"
	case orchestrator.PhaseBuildBundle:
		return "Building bundle"
	case orchestrator.PhaseUploadBundle:
		return "Uploading bundle"
	case orchestrator.PhaseConfirmUpload:
		return "Confirming upload"
	case orchestrator.PhaseRegisterSkill:
		return "Registering with registry"
	case orchestrator.PhasePublishComplete:
		return "Published"
	case orchestrator.PhaseQueryRegistry:
		return "Querying registry"
	case orchestrator.PhaseResolveDeps:
		return "Resolving dependencies"
	case orchestrator.PhaseDownloadBundle:
		return "Downloading bundle"
	case orchestrator.PhaseExtractBundle:
		return "Extracting bundle"
	case orchestrator.PhaseUpdateLockFile:
		return "Updating lock file"
	case orchestrator.PhaseRecordDownload:
		return "Recording download"
	case orchestrator.PhaseInstallComplete:
		return "Installed"
	default:
		return string(p)
	}
}

// hasPercent reports whether a Phase reports sub-progress that the
// progress bar should render instead of the spinner.
func hasPercent(p orchestrator.Phase) bool {
	return p == orchestrator.PhaseUploadBundle || p == orchestrator.PhaseDownloadBundle
}

type model struct {
	spinner  spinner.Model
	bar      progress.Model
	events   <-chan orchestrator.Event
	current  orchestrator.Event
	done     bool
	quitting bool
}

type eventMsg orchestrator.Event
type closedMsg struct{}

func newModel(events <-chan orchestrator.Event) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))

	bar := progress.New(progress.WithDefaultGradient())

	return model{spinner: sp, bar: bar, events: events}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(evt)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.current = orchestrator.Event(msg)
		return m, waitForEvent(m.events)
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		m.bar = updated.(progress.Model)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if m.done {
		return doneStyle.Render("done") + "\n"
	}

	label := labelStyle.Render(phaseLabel(m.current.Phase))
	if m.current.Target != "" {
		label += " " + targetStyle.Render(m.current.Target)
	}

	if hasPercent(m.current.Phase) {
		return fmt.Sprintf("%s\n%s\n", label, m.bar.ViewAs(float64(m.current.Percent)/100))
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), label)
}

// Run drives events to a terminal UI if stdout is a TTY, otherwise logs
// each phase transition as a plain line to out. It returns once events
// closes.
func Run(events <-chan orchestrator.Event, out io.Writer) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runPlain(events, out)
	}
	program := tea.NewProgram(newModel(events), tea.WithOutput(out))
	_, err := program.Run()
	return err
}

func runPlain(events <-chan orchestrator.Event, out io.Writer) error {
	for evt := range events {
		if hasPercent(evt.Phase) {
			fmt.Fprintf(out, "%s %s: %d%%\n", phaseLabel(evt.Phase), evt.Target, evt.Percent)
			continue
		}
		if evt.Target != "" {
			fmt.Fprintf(out, "%s: %s\n", phaseLabel(evt.Phase), evt.Target)
			continue
		}
		fmt.Fprintln(out, phaseLabel(evt.Phase))
	}
	return nil
}
