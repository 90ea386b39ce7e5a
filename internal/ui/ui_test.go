package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/festlist/internal/gate"
	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/pipeline"
	"github.com/desertthunder/festlist/internal/retry"
	"github.com/desertthunder/festlist/internal/shared"
	tu "github.com/desertthunder/festlist/internal/testing"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()

	// The mock catalog resolves nothing, so every build fails at playlist
	// creation with zero resolved artists.
	engine := pipeline.NewEngine(&tu.MockCatalog{}, nil, nil, nil, gate.New(gate.Options{}), retry.Policy{
		MaxAttempts: 1,
		CallTimeout: time.Second,
	}, pipeline.Options{Workers: 2})

	candidates := []models.ArtistCandidate{
		{Name: "Wooli", Confidence: 0.9},
		{Name: "GRIZ", Confidence: 0.85},
	}
	return NewModel(context.Background(), engine, candidates, pipeline.AssembleRequest{AccessToken: "tok", UserID: "u1"})
}

func keyMsg(t *testing.T, key string) tea.KeyMsg {
	t.Helper()
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

func TestBuildFlow(t *testing.T) {
	t.Run("Outcome Arrives Through The Update Loop", func(t *testing.T) {
		m := newTestModel(t)

		if _, _ = m.Update(keyMsg(t, "enter")); m.view != ConfirmView {
			t.Fatalf("expected confirm view, got %d", m.view)
		}
		_, cmd := m.Update(keyMsg(t, "y"))
		if m.view != BuildView {
			t.Fatalf("expected build view, got %d", m.view)
		}
		if cmd == nil {
			t.Fatal("expected a command waiting on build progress")
		}

		// Drain commands until the build reports completion. Progress and
		// completion both travel as messages; the worker goroutine itself
		// leaves the model alone.
		var complete Msg
		for i := 0; i < 100; i++ {
			msg, ok := cmd().(Msg)
			if !ok {
				t.Fatal("expected a ui message from the progress command")
			}
			if msg.kind == MsgBuildComplete {
				complete = msg
				break
			}
			_, cmd = m.Update(msg)
			if cmd == nil {
				t.Fatal("progress update should re-arm the wait command")
			}
		}
		if complete.data == nil {
			t.Fatal("build never completed")
		}

		// The goroutine has finished; nothing lands on the model until the
		// completion message is applied.
		if m.err != nil || m.result != nil {
			t.Errorf("model mutated before the completion message: err=%v result=%v", m.err, m.result)
		}
		if m.view != BuildView {
			t.Errorf("expected build view until completion applies, got %d", m.view)
		}

		if _, _ = m.Update(complete); m.view != ResultView {
			t.Errorf("expected result view after completion, got %d", m.view)
		}
		if !errors.Is(m.err, shared.ErrPlaylistCreateFailed) {
			t.Errorf("expected ErrPlaylistCreateFailed, got %v", m.err)
		}
		if !strings.Contains(m.View(), "Build failed") {
			t.Errorf("expected failure rendered, got %q", m.View())
		}
	})

	t.Run("Retry Clears The Failed Build", func(t *testing.T) {
		m := newTestModel(t)
		m.view = ResultView
		m.err = shared.ErrPlaylistCreateFailed

		if _, _ = m.Update(keyMsg(t, "r")); m.view != CandidateListView {
			t.Fatalf("expected candidate list view, got %d", m.view)
		}
		if m.err != nil || m.result != nil {
			t.Errorf("expected cleared build state, got err=%v result=%v", m.err, m.result)
		}
	})
}
