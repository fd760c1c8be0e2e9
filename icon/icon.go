// Package icon renders CLI status symbols in the variant selected by configuration.
package icon

import (
	"github.com/reel-cli/reel/key"
	"github.com/spf13/viper"
)

const (
	emoji = "emoji"
	nerd  = "nerd"
	plain = "plain"
)

// AvailableVariants returns all registered icon style identifiers.
func AvailableVariants() []string {
	return []string{emoji, nerd, plain}
}

// Icon identifies a symbol in the registry.
type Icon int

const (
	Success Icon = iota
	Fail
	Progress
	Play
	Pause
	Resume
)

type iconDef struct {
	emoji string
	nerd  string
	plain string
}

var icons = map[Icon]*iconDef{
	Success:  {emoji: "🎉", nerd: "\uf00c", plain: "+"},
	Fail:     {emoji: "💥", nerd: "\uf00d", plain: "x"},
	Progress: {emoji: "⏳", nerd: "\uf110", plain: "~"},
	Play:     {emoji: "▶️", nerd: "\uf04b", plain: ">"},
	Pause:    {emoji: "⏸️", nerd: "\uf04c", plain: "="},
	Resume:   {emoji: "⏩", nerd: "\uf04e", plain: ">>"},
}

func (d *iconDef) get() string {
	switch viper.GetString(key.IconsVariant) {
	case emoji:
		return d.emoji
	case nerd:
		return d.nerd
	case plain:
		return d.plain
	default:
		return ""
	}
}

// Get returns the rendered symbol for i, or an empty string for unknown icons or variants.
func Get(i Icon) string {
	d, ok := icons[i]
	if !ok {
		return ""
	}
	return d.get()
}
