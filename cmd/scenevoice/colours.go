package main

import "github.com/fatih/color"

// Terminal colour scheme.
var (
	colourTitle   = color.New(color.FgCyan, color.Bold)
	colourPhase   = color.New(color.FgMagenta, color.Bold)
	colourLabel   = color.New(color.FgBlue)
	colourSuccess = color.New(color.FgGreen)
	colourWarning = color.New(color.FgYellow)
	colourError   = color.New(color.FgRed, color.Bold)
)
