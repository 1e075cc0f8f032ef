package cli

import "github.com/fatih/color"

// Terminal styles for command output. color disables them when stdout is
// not a terminal or NO_COLOR is set.
var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)
