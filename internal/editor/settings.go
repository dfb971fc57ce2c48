package editor

import (
	"github.com/eukleia/eukleia/internal/history"
	"github.com/eukleia/eukleia/internal/snap"
	"github.com/eukleia/eukleia/internal/viewport"
)

// Settings configures a new editor.
type Settings struct {
	HistoryLimit int             `json:"historyLimit" yaml:"history_limit"`
	Width        float64         `json:"width" yaml:"width"`
	Height       float64         `json:"height" yaml:"height"`
	Viewport     viewport.Config `json:"viewport" yaml:"viewport"`
	Snap         snap.Config     `json:"snap" yaml:"snap"`
}

func DefaultSettings() Settings {
	return Settings{
		HistoryLimit: history.DefaultLimit,
		Width:        1280,
		Height:       800,
		Viewport:     viewport.DefaultConfig(),
		Snap:         snap.DefaultConfig(),
	}
}
