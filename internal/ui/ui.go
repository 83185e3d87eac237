package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/desertthunder/spx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	SyncView
	ResultView
)

// maxListed caps the unmatched and skipped tracks printed in the result view.
const maxListed = 15

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	source       services.Source
	engine       tasks.SyncEngine
	opts         tasks.SyncOpts
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	listsReady   [2]bool
	selected     services.Playlist
	tracks       []match.SourceTrack
	job          *syncJob
	progress     tasks.ProgressUpdate
	bar          progress.Model
	counts       [3]int
	result       *tasks.SyncResult
	err          error
	help         help.Model
	keys         keyMap
}

// syncJob carries one engine run. result and err are written before progress is closed.
type syncJob struct {
	progress chan tasks.ProgressUpdate
	result   *tasks.SyncResult
	err      error
}

// NewModel creates a new TUI model. opts supplies the destination name and mode;
// the source playlist is filled in from the selection.
func NewModel(ctx context.Context, source services.Source, engine tasks.SyncEngine, opts tasks.SyncOpts) *Model {
	return &Model{
		ctx:    ctx,
		view:   PlaylistListView,
		source: source,
		engine: engine,
		opts:   opts,
		bar:    progress.New(progress.WithDefaultGradient()),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Result returns the last completed sync, nil when none finished.
func (m *Model) Result() *tasks.SyncResult {
	return m.result
}

// Err returns the error that ended the last operation.
func (m *Model) Err() error {
	return m.err
}

// Init initializes the TUI by fetching playlists from the source.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.listsReady[PlaylistListView] {
			m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.listsReady[TrackListView] {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		m.bar.Width = max(msg.Width-8, 20)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && m.view != SyncView && !m.filtering() {
			return m, tea.Quit
		}
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.playlistList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
		m.playlistList.Title = fmt.Sprintf("%s Playlists", m.source.Name())
		m.listsReady[PlaylistListView] = true
		return m, nil

	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		if data.err != nil {
			m.err = data.err
			m.view = PlaylistListView
			return m, nil
		}
		m.err = nil
		m.selected = data.playlist
		m.tracks = data.tracks
		items := make([]list.Item, len(data.tracks))
		for i, track := range data.tracks {
			items[i] = trackItem{track: track}
		}
		m.trackList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
		m.trackList.Title = fmt.Sprintf("Tracks in '%s'", data.playlist.Name)
		m.listsReady[TrackListView] = true
		m.view = TrackListView
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		if o, ok := m.progress.Data.(match.Outcome); ok {
			m.counts[o.Status]++
		}
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.result = data.result
		m.err = data.err
		m.job = nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// filtering reports whether a list is capturing keystrokes for its filter.
func (m *Model) filtering() bool {
	switch m.view {
	case PlaylistListView:
		return m.playlistList.FilterState() == list.Filtering
	case TrackListView:
		return m.trackList.FilterState() == list.Filtering
	}
	return false
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
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

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.listsReady[PlaylistListView] {
		return m, nil
	}
	if key.Matches(msg, m.keys.enter) && !m.filtering() {
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.fetchTracks(pl.playlist)
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering() {
		switch {
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			return m, nil
		case key.Matches(msg, m.keys.enter):
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.dryRun):
		m.opts.DryRun = !m.opts.DryRun
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.restart) {
		m.view = PlaylistListView
		m.result = nil
		m.err = nil
		m.counts = [3]int{}
		m.progress = tasks.ProgressUpdate{}
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view > TrackListView || !m.listsReady[m.view] {
		return m, nil
	}
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.source.Playlists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(p services.Playlist) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.source.PlaylistTracks(m.ctx, p.ID)
		return tracksFetchedMsg(p, tracks, err)
	}
}

// destination is the playlist name the sync writes to.
func (m *Model) destination() string {
	if m.opts.PlaylistName != "" {
		return m.opts.PlaylistName
	}
	return m.selected.Name
}

func (m *Model) startSync() tea.Cmd {
	job := &syncJob{progress: make(chan tasks.ProgressUpdate, 64)}
	m.job = job
	m.counts = [3]int{}

	opts := m.opts
	opts.PlaylistID = m.selected.ID

	go func() {
		job.result, job.err = m.engine.Run(m.ctx, opts, job.progress)
		close(job.progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	job := m.job
	return func() tea.Msg {
		if job == nil {
			return nil
		}
		update, ok := <-job.progress
		if !ok {
			return syncCompleteMsg(job.result, job.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPlaylistList() string {
	if !m.listsReady[PlaylistListView] {
		return fmt.Sprintf("Loading %s playlists...", m.source.Name())
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTrackList() string {
	syncKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sync"))
	helpKeys := []key.Binding{syncKey, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	mode := m.opts.Mode
	if mode == "" {
		mode = shared.SyncFromScratch
	}

	title := styles.title.Render(fmt.Sprintf("Sync '%s' to Plex?", m.selected.Name))
	info := fmt.Sprintf("\nSource: %s (%d tracks)\nDestination: %s\nMode: %s\n",
		m.selected.Name, len(m.tracks), m.destination(), mode)
	if m.opts.DryRun {
		info += styles.warn.Render("Dry run: nothing will be written") + "\n"
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.dryRun, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSync() string {
	title := styles.title.Render(fmt.Sprintf("Syncing '%s'", m.selected.Name))

	var phase string
	switch m.progress.Phase {
	case tasks.FetchSource:
		phase = "Fetching source playlist..."
	case tasks.FetchDest:
		phase = "Checking destination playlist..."
	case tasks.ResolveTracks:
		phase = fmt.Sprintf("Resolving tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.WritePlaylist:
		phase = "Writing playlist to Plex..."
	default:
		phase = "Processing..."
	}

	var pct float64
	if m.progress.Phase == tasks.ResolveTracks && m.progress.Total > 0 {
		pct = float64(m.progress.Step) / float64(m.progress.Total)
	}
	if m.progress.Phase == tasks.WritePlaylist {
		pct = 1
	}

	counts := fmt.Sprintf("%s  %s  %s",
		styles.status(match.Matched, fmt.Sprintf("%d matched", m.counts[match.Matched])),
		styles.status(match.Unmatched, fmt.Sprintf("%d unmatched", m.counts[match.Unmatched])),
		styles.status(match.Skipped, fmt.Sprintf("%d skipped", m.counts[match.Skipped])),
	)

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s\n%s", title, phase, m.bar.ViewAs(pct), counts, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Sync failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	res := m.result.Result
	var title string
	switch {
	case m.err != nil:
		title = styles.err.Render(fmt.Sprintf("✗ Sync failed: %v", m.err))
	case m.opts.DryRun:
		title = styles.warn.Render("Dry run complete")
	default:
		title = styles.ok.Render("✓ Sync complete!")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nSource: %s (%d tracks)\n", m.result.Source.Name, len(res.Outcomes))
	fmt.Fprintf(&b, "Destination: %s (%s)\n", m.result.Destination, m.result.Mode)
	fmt.Fprintf(&b, "Matched: %d/%d (%.1f%%)\n", len(res.Matched), len(res.Outcomes)-len(res.Skipped), res.MatchPercentage())
	fmt.Fprintf(&b, "Added: %d", len(m.result.Added))
	if m.result.Present > 0 {
		fmt.Fprintf(&b, " (%d already present)", m.result.Present)
	}
	fmt.Fprintf(&b, "\nTook: %s\n", shared.FormatDuration(m.result.Elapsed))

	writeOutcomes(&b, styles.status(match.Unmatched, fmt.Sprintf("Unmatched (%d):", len(res.Unmatched))), res.Unmatched)
	writeOutcomes(&b, styles.status(match.Skipped, fmt.Sprintf("Skipped (%d):", len(res.Skipped))), res.Skipped)

	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func writeOutcomes(b *strings.Builder, heading string, outcomes []match.Outcome) {
	if len(outcomes) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s", heading)
	for i, o := range outcomes {
		if i == maxListed {
			fmt.Fprintf(b, "\n  … and %d more", len(outcomes)-maxListed)
			break
		}
		fmt.Fprintf(b, "\n  • %s", o.Source)
	}
	b.WriteString("\n")
}
