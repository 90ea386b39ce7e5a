package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/pipeline"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CandidateListView ViewState = iota
	ConfirmView
	BuildView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx           context.Context
	view          ViewState
	engine        *pipeline.Engine
	req           pipeline.AssembleRequest
	width         int
	height        int
	candidateList list.Model
	progressChan  chan pipeline.ProgressUpdate
	buildDone     chan buildOutcome
	progress      pipeline.ProgressUpdate
	result        *models.PlaylistResult
	err           error
	help          help.Model
	keys          keyMap
}

// NewModel creates a TUI model seeded with extracted artist candidates.
// All candidates start selected; the user deselects before building.
func NewModel(ctx context.Context, engine *pipeline.Engine, candidates []models.ArtistCandidate, req pipeline.AssembleRequest) *Model {
	items := make([]list.Item, len(candidates))
	for i, c := range candidates {
		items[i] = candidateItem{candidate: c, selected: true}
	}

	candidateList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	candidateList.Title = "Extracted Artists"

	return &Model{
		ctx:           ctx,
		view:          CandidateListView,
		engine:        engine,
		req:           req,
		candidateList: candidateList,
		help:          help.New(),
		keys:          newKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.candidateList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CandidateListView:
			return m.handleCandidateListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.progress = msg.data.(pipeline.ProgressUpdate)
			return m, m.waitForProgress()

		case MsgBuildComplete:
			outcome := msg.data.(buildOutcome)
			m.result = outcome.result
			m.err = outcome.err
			m.view = ResultView
			m.progressChan = nil
			m.buildDone = nil
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.view == CandidateListView {
		m.candidateList, cmd = m.candidateList.Update(msg)
	}
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case CandidateListView:
		return m.renderCandidateList()
	case ConfirmView:
		return m.renderConfirm()
	case BuildView:
		return m.renderBuild()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleCandidateListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		return m, m.toggleSelected()
	case "a":
		return m, m.setAll(true)
	case "A":
		return m, m.setAll(false)
	case "enter":
		if len(m.selectedNames()) == 0 {
			return m, nil
		}
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.candidateList, cmd = m.candidateList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = CandidateListView
		return m, nil
	case "y":
		m.view = BuildView
		return m, m.startBuild()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = CandidateListView
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) toggleSelected() tea.Cmd {
	index := m.candidateList.Index()
	item, ok := m.candidateList.SelectedItem().(candidateItem)
	if !ok {
		return nil
	}
	item.selected = !item.selected
	return m.candidateList.SetItem(index, item)
}

func (m *Model) setAll(selected bool) tea.Cmd {
	var cmds []tea.Cmd
	for i, raw := range m.candidateList.Items() {
		item, ok := raw.(candidateItem)
		if !ok || item.selected == selected {
			continue
		}
		item.selected = selected
		cmds = append(cmds, m.candidateList.SetItem(i, item))
	}
	return tea.Batch(cmds...)
}

func (m *Model) selectedNames() []string {
	var names []string
	for _, raw := range m.candidateList.Items() {
		if item, ok := raw.(candidateItem); ok && item.selected {
			names = append(names, item.candidate.Name)
		}
	}
	return names
}

// startBuild launches the pipeline in a goroutine. The goroutine never
// touches the model; its outcome travels over buildDone and lands in
// Update as a [MsgBuildComplete].
func (m *Model) startBuild() tea.Cmd {
	names := m.selectedNames()
	progress := make(chan pipeline.ProgressUpdate, 50)
	done := make(chan buildOutcome, 1)
	m.progressChan = progress
	m.buildDone = done

	go func() {
		outcome, err := m.engine.Resolve(m.ctx, progress, names)
		if err != nil {
			done <- buildOutcome{err: err}
			close(progress)
			return
		}

		result, err := m.engine.Assemble(m.ctx, progress, outcome, m.req)
		done <- buildOutcome{result: result, err: err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.buildDone
	return func() tea.Msg {
		if progress == nil {
			return nil
		}

		update, ok := <-progress
		if !ok {
			// The outcome is buffered and sent before the progress channel
			// closes, so this receive never blocks.
			return buildCompleteMsg(<-done)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderCandidateList() string {
	helpKeys := []key.Binding{m.keys.toggle, m.keys.all, m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.candidateList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	names := m.selectedNames()
	title := styles.title.Render(fmt.Sprintf("Build playlist from %d artists?", len(names)))

	playlistName := m.req.Name
	if playlistName == "" {
		playlistName = "Festival Playlist"
	}
	info := fmt.Sprintf("\nPlaylist: %s\nArtists: %d\n", playlistName, len(names))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderBuild() string {
	title := styles.title.Render("Building Playlist")

	var phase string
	switch m.progress.Phase {
	case pipeline.ResolveArtists, pipeline.FetchTracks:
		phase = fmt.Sprintf("Resolving artists (%d/%d)", m.progress.Step, m.progress.Total)
	case pipeline.CreatePlaylist:
		phase = "Creating playlist..."
	case pipeline.AddTracks:
		phase = fmt.Sprintf("Adding tracks (batch %d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Build failed: %v\n\nPress r to retry, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to retry, q to quit")
	}

	title := styles.ok.Render("✓ Playlist Created!")
	info := fmt.Sprintf(
		"\nPlaylist: %s (%s)\nTracks added: %d\nArtists: %d resolved, %d failed",
		m.result.Name,
		m.result.PlaylistID,
		m.result.TotalTracksAdded,
		len(m.result.SuccessfulArtists),
		len(m.result.FailedArtists),
	)

	var extra string
	if m.result.Partial {
		extra = fmt.Sprintf("\n\n%s", styles.warn.Render("Some track batches failed; the playlist is incomplete."))
	}
	if len(m.result.FailedArtists) > 0 {
		extra += fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("Could not resolve %d artists:", len(m.result.FailedArtists))))
		for _, name := range m.result.FailedArtists {
			extra += fmt.Sprintf("\n  • %s", name)
		}
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, extra, helpView)
}
