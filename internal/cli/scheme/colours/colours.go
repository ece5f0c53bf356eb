package colours

import "github.com/fatih/color"

// Color scheme for the CLI
var (
	Title       = color.New(color.FgCyan, color.Bold)
	Lesson      = color.New(color.FgMagenta, color.Bold)
	Phrase      = color.New(color.FgWhite, color.Bold)
	Translation = color.New(color.FgMagenta)
	Gesture     = color.New(color.FgHiBlack)
	Prompt      = color.New(color.FgGreen, color.Bold)
	Error       = color.New(color.FgRed, color.Bold)
	Success     = color.New(color.FgGreen)
	Info        = color.New(color.FgBlue)
	Warning     = color.New(color.FgYellow)
	// Degraded marks narration spoken in a voice that does not match the
	// lesson language.
	Degraded = color.New(color.FgYellow, color.Italic)
)
