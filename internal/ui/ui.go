package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/services"
	"github.com/corsac-s/immich-tools/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	AlbumListView ViewState = iota
	ConfirmView
	SyncView
	ResultView
)

// EngineFactory builds a sync engine restricted to the given source albums. An empty slice means every album.
type EngineFactory func(albums []string) tasks.SyncEngine

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	source       services.Source
	newEngine    EngineFactory
	width        int
	height       int
	albumList    list.Model
	albums       []models.SourceAlbum
	selected     []string
	autoStart    bool
	progressChan chan tasks.ProgressUpdate
	doneChan     chan syncOutcome
	progress     tasks.ProgressUpdate
	albumStep    int
	albumTotal   int
	spinner      spinner.Model
	bar          progress.Model
	result       *tasks.SyncResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI model that lets the user pick source albums before syncing.
func NewModel(ctx context.Context, source services.Source, newEngine EngineFactory) *Model {
	return &Model{
		ctx:       ctx,
		view:      AlbumListView,
		source:    source,
		newEngine: newEngine,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.ok)),
		bar:       progress.New(progress.WithDefaultGradient()),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// NewSyncModel creates a TUI model that starts syncing albums immediately, skipping the album picker.
func NewSyncModel(ctx context.Context, source services.Source, newEngine EngineFactory, albums []string) *Model {
	m := NewModel(ctx, source, newEngine)
	m.selected = albums
	m.autoStart = true
	m.view = SyncView
	return m
}

// Init fetches source albums or starts the sync right away.
func (m *Model) Init() tea.Cmd {
	if m.autoStart {
		return m.startSync()
	}
	return m.fetchAlbums()
}

// Result returns the last sync result, if any.
func (m *Model) Result() *tasks.SyncResult { return m.result }

// Err returns the error that ended the last sync or album fetch.
func (m *Model) Err() error { return m.err }

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.albums != nil {
			m.albumList.SetSize(msg.Width-4, msg.Height-8)
		}
		m.bar.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case AlbumListView:
			return m.handleAlbumListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			if key.Matches(msg, m.keys.quit) {
				m.stopSync()
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgAlbumsFetched:
		data := msg.data.(albumsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.albums = data.albums
		if m.albums == nil {
			m.albums = []models.SourceAlbum{}
		}
		items := make([]list.Item, len(data.albums))
		for i, album := range data.albums {
			items[i] = albumItem{album: album}
		}
		m.albumList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.albumList.Title = fmt.Sprintf("%s Albums", m.source.Name())
		m.albumList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if update.Phase == tasks.MatchAlbum {
			m.albumStep = update.Step
			m.albumTotal = update.Total
		}
		return m, waitForProgress(m.progressChan, m.doneChan)

	case MsgSyncComplete:
		data := msg.data.(syncOutcome)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.doneChan = nil
		m.stopSync()
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case AlbumListView:
		return m.renderAlbumList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleAlbumListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.albums != nil && m.albumList.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.all):
		m.selected = nil
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.enter) && m.albums != nil:
		if item, ok := m.albumList.SelectedItem().(albumItem); ok {
			m.selected = []string{item.album.Name}
			m.view = ConfirmView
		}
		return m, nil
	}

	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = AlbumListView
		return m, nil
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = AlbumListView
		m.selected = nil
		m.result = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		m.albumStep, m.albumTotal = 0, 0
		if m.albums == nil {
			return m, m.fetchAlbums()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != AlbumListView || m.albums == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.albumList, cmd = m.albumList.Update(msg)
	return m, cmd
}

func (m *Model) fetchAlbums() tea.Cmd {
	return func() tea.Msg {
		albums, err := m.source.ListAlbums(m.ctx)
		return albumsFetchedMsg(albums, err)
	}
}

// startSync runs the engine in a goroutine. Progress flows through progressChan; the result
// arrives on doneChan once progressChan is closed.
func (m *Model) startSync() tea.Cmd {
	progressChan := make(chan tasks.ProgressUpdate, 50)
	doneChan := make(chan syncOutcome, 1)
	m.progressChan = progressChan
	m.doneChan = doneChan

	engine := m.newEngine(m.selected)
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	go func() {
		result, err := engine.Run(ctx, progressChan)
		close(progressChan)
		doneChan <- syncOutcome{result: result, err: err}
	}()

	return tea.Batch(m.spinner.Tick, waitForProgress(progressChan, doneChan))
}

// stopSync cancels the running engine, if any.
func (m *Model) stopSync() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func waitForProgress(progressChan <-chan tasks.ProgressUpdate, doneChan <-chan syncOutcome) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}
		update, ok := <-progressChan
		if !ok {
			outcome := <-doneChan
			return syncCompleteMsg(outcome.result, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

// percent estimates overall progress from the album counter and the file counter within it.
func (m *Model) percent() float64 {
	if m.albumTotal == 0 {
		return 0
	}
	done := float64(m.albumStep - 1)
	if m.progress.Phase == tasks.SearchAssets && m.progress.Total > 0 {
		done += float64(m.progress.Step) / float64(m.progress.Total)
	}
	if m.progress.Phase == tasks.AttachAssets {
		done = float64(m.albumStep)
	}
	return min(max(done/float64(m.albumTotal), 0), 1)
}

func (m *Model) renderAlbumList() string {
	if m.albums == nil {
		return fmt.Sprintf("%s Loading albums...", m.spinner.View())
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.all, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.albumList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	target := "all albums"
	if len(m.selected) > 0 {
		target = fmt.Sprintf("'%s'", strings.Join(m.selected, "', '"))
	}
	title := styles.title.Render(fmt.Sprintf("Sync %s to Immich?", target))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s", title, helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing Albums")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchSource, tasks.FetchDest:
		phase = "Listing albums..."
	case tasks.MatchAlbum, tasks.FetchFiles:
		phase = fmt.Sprintf("Album %d/%d: %s", m.albumStep, m.albumTotal, m.progress.Album)
	case tasks.SearchAssets:
		phase = fmt.Sprintf("Searching assets in %s (%d/%d)", m.progress.Album, m.progress.Step, m.progress.Total)
	case tasks.AttachAssets:
		phase = fmt.Sprintf("Attaching assets to %s", m.progress.Album)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s\n\n%s", title, m.spinner.View(), phase, m.bar.ViewAs(m.percent()),
		styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v\n\nPress r to restart, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to restart, q to quit")
	}

	heading := "✓ Sync Complete!"
	if m.result.DryRun {
		heading = "✓ Dry Run Complete!"
	}
	t := m.result.Totals()
	info := fmt.Sprintf(
		"\nAlbums: %d (%d created)\nFiles: %d\nMatched: %d\nAttached: %d",
		t.Albums, t.Created, t.Files, t.Matched, t.Attached,
	)

	var issues strings.Builder
	if t.Unresolved > 0 {
		fmt.Fprintf(&issues, "\n\n%s", styles.warn.Render(fmt.Sprintf("No asset found for %d files:", t.Unresolved)))
		for _, album := range m.result.Albums {
			for _, u := range album.Unresolved {
				fmt.Fprintf(&issues, "\n  • %s/%s", album.Name, u.File.Name)
			}
		}
	}
	if t.Failed > 0 {
		fmt.Fprintf(&issues, "\n\n%s", styles.err.Render(fmt.Sprintf("Failed to attach %d assets:", t.Failed)))
		for _, album := range m.result.Albums {
			for _, f := range album.Failures {
				fmt.Fprintf(&issues, "\n  • %s: %s (%s)", album.Name, f.ID, f.Error)
			}
		}
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", styles.ok.Render(heading), info, issues.String(), helpView)
}
