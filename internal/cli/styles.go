package cli

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all text output.
const (
	ColorPrimary = lipgloss.Color("#7C3AED")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorSuccess = lipgloss.Color("#10B981")
	ColorError   = lipgloss.Color("#EF4444")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorVerbose = lipgloss.Color("#9CA3AF")
)

var (
	// TitleStyle is for report headers.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary text such as paths and run IDs.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	VerboseStyle = lipgloss.NewStyle().
			Foreground(ColorVerbose)

	// nameStyle pads dependency names so report columns line up.
	nameStyle = lipgloss.NewStyle().
			Width(28)
)
