package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner to stderr and logs the same facts.
func PrintBanner(config *Config, logger arbor.ILogger) {
	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	hr := lineColor + strings.Repeat("═", 64) + banner.ColorReset

	art := []string{
		`  _____ _      _    _____`,
		` |_   _(_) ___| | _|__  /___ _ __`,
		`   | | | |/ __| |/ / / // _ \ '_ \`,
		`   | | | | (__|   < / /|  __/ | | |`,
		`   |_| |_|\___|_|\_\____\___|_| |_|`,
	}

	profiles := 0
	for _, u := range config.Users {
		profiles += len(u.Profiles)
	}
	schedule := config.Publishing.Schedule
	if schedule == "" {
		schedule = "manual"
	}

	fmt.Fprintf(os.Stderr, "\n%s\n\n", hr)
	for _, line := range art {
		fmt.Fprintf(os.Stderr, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n%s  WordPress auto-publishing%s\n\n%s\n\n", textColor, banner.ColorReset, hr)

	kvLines := [][2]string{
		{"Version", Version},
		{"Build", Build},
		{"Commit", GitCommit},
		{"Environment", config.Environment},
		{"Service URL", serviceURL},
		{"Storage", config.Storage.Address},
		{"Profiles", fmt.Sprintf("%d across %d users", profiles, len(config.Users))},
		{"Schedule", schedule},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(os.Stderr, "%s  %-14s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n%s\n\n", hr)

	logger.Info().
		Str("version", Version).
		Str("environment", config.Environment).
		Str("service_url", serviceURL).
		Str("storage_address", config.Storage.Address).
		Int("profiles", profiles).
		Msg("Application started")
}

// PrintShutdownBanner displays the shutdown banner to stderr.
func PrintShutdownBanner(logger arbor.ILogger) {
	hr := banner.ColorCyan + strings.Repeat("═", 40) + banner.ColorReset
	fmt.Fprintf(os.Stderr, "\n%s\n%s  TICKZEN SHUTTING DOWN%s\n%s\n\n", hr, banner.ColorBold+banner.ColorWhite, banner.ColorReset, hr)
	logger.Info().Msg("Application shutting down")
}
