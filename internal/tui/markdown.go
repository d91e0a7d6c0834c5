package tui

import (
	"strings"

	"charm.land/glamour/v2"
	"charm.land/lipgloss/v2"
)

const welcomeText = `# Welcome to TwinaOS

This installer sets up TwinaOS on this machine. It will ask for:

- your **language**, **keyboard layout** and **timezone**
- an optional **Wi-Fi** connection
- the **disk** to install to
- your **user account**

Nothing is written to disk until you confirm the summary.`

const completeText = `# Installation complete

TwinaOS is installed. Remove the installation media and reboot to start
using your new system.`

// renderMarkdown renders markdown with glamour, falling back to plain
// wrapped text if rendering fails.
func renderMarkdown(content string, width int) string {
	width = min(max(width, 20), 100)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return wrapText(content, width)
	}
	rendered, err := r.Render(content)
	if err != nil {
		return wrapText(content, width)
	}
	return strings.Trim(rendered, "\n")
}

func wrapText(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}
