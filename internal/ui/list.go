package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/corsac-s/immich-tools/internal/models"
)

var _ list.Item = albumItem{}

// albumItem wraps [models.SourceAlbum] to implement [list.Item].
type albumItem struct {
	album models.SourceAlbum
}

func (i albumItem) FilterValue() string { return i.album.Name }
func (i albumItem) Title() string       { return i.album.Name }
func (i albumItem) Description() string { return i.album.Path }
