package style

import "github.com/charmbracelet/lipgloss"

// Palette defines the application's color scheme for boxed messages.
var (
	Text        = lipgloss.Color("#cdd6f4")
	Mauve       = lipgloss.Color("#cba6f7")
	Red         = lipgloss.Color("#f38ba8")
	AccentColor = Mauve
	HiRed       = Red
)
