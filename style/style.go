// Package style provides a functional API for composing lipgloss styles for CLI output.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/reel-cli/reel/color"
)

// New returns an empty lipgloss.Style used as a foundation for visual composition.
func New() lipgloss.Style {
	return lipgloss.NewStyle()
}

// Fg returns a rendering function that applies the specified foreground color to a string.
func Fg(c lipgloss.Color) func(string) string {
	return func(s string) string { return New().Foreground(c).Render(s) }
}

var (
	Faint = func(s string) string { return New().Faint(true).Render(s) }
	Bold  = func(s string) string { return New().Bold(true).Render(s) }
)

// Tag renders s as a padded, colored label, used for play methods and resume states.
func Tag(fg, bg lipgloss.Color) func(string) string {
	return func(s string) string { return New().Foreground(fg).Background(bg).Padding(0, 1).Render(s) }
}

// MethodTag renders a play method label with a color per method.
func MethodTag(method string) string {
	switch method {
	case "DirectPlay":
		return Tag(color.New("0"), color.Green)(method)
	case "DirectStream":
		return Tag(color.New("0"), color.Cyan)(method)
	default:
		return Tag(color.New("0"), color.Yellow)(method)
	}
}
