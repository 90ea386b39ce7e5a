package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/pipeline"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgBuildComplete
)

// buildOutcome carries the terminal state of a build from the worker
// goroutine back into the update loop.
type buildOutcome struct {
	result *models.PlaylistResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update pipeline.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// buildCompleteMsg is the constructor for [MsgBuildComplete]
func buildCompleteMsg(outcome buildOutcome) Msg {
	return Msg{kind: MsgBuildComplete, data: outcome}
}
