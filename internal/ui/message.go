package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/tasks"
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
	MsgAlbumsFetched MsgKind = iota
	MsgProgressUpdate
	MsgSyncComplete
)

type albumsFetched struct {
	albums []models.SourceAlbum
	err    error
}

type syncOutcome struct {
	result *tasks.SyncResult
	err    error
}

// albumsFetchedMsg is the constructor for [MsgAlbumsFetched]
func albumsFetchedMsg(albums []models.SourceAlbum, err error) Msg {
	return Msg{kind: MsgAlbumsFetched, data: albumsFetched{albums, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.SyncResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncOutcome{result, err}}
}
