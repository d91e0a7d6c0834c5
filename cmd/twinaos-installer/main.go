package main

import (
	"context"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/twinaos/installer/internal/config"
	"github.com/twinaos/installer/internal/logger"
	"github.com/twinaos/installer/internal/tui/theme"
)

const (
	logoText1 = "▀█▀ █ █ █ █ █▄ █ ▄▀█ █▀█ █▀"
	logoText2 = " █  ▀▄▀▄▀ █ █ ▀█ █▀█ █▄█ ▄█"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "twinaos-installer",
	Short: "Guided TwinaOS installer with an embedded provisioning backend",
}

// renderLogo shades the logo from the primary to the secondary color.
func renderLogo() string {
	t := theme.NewCatppuccinMocha()
	return strings.Join([]string{
		gradient(logoText1, t.Primary, t.Secondary),
		gradient(logoText2, t.Primary, t.Secondary),
	}, "\n")
}

func gradient(text, from, to string) string {
	runes := []rune(text)
	var b strings.Builder
	for i, r := range runes {
		pos := float64(i) / float64(max(1, len(runes)-1))
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Blend(from, to, pos))).Render(string(r)))
	}
	return b.String()
}

// loadConfig reads the layered configuration and points the logger at it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Default.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

func init() {
	rootCmd.Long = renderLogo() + `

twinaos-installer walks through language, keyboard, timezone, network,
disk and account setup, then hands the collected configuration to the
provisioning backend and follows its progress until the system is ready
to reboot.

The wizard talks to the backend over NATS. Without a nats_url it starts an
embedded server and a simulated backend in-process.`

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
}
