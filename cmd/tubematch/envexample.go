package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type envSection struct {
	title string
	flags []envFlag
}

type envFlag struct {
	name    string
	example string
	comment string
}

var envSections = []envSection{
	{
		title: "YouTube Configuration",
		flags: []envFlag{
			{name: "youtube-backend", comment: "data-api (needs an API key) or scrape"},
			{name: "youtube-api-key", example: "AIzaSy...", comment: "Google Cloud API key with the YouTube Data API v3 enabled"},
			{name: "youtube-base-url", comment: "Data API base URL"},
			{name: "youtube-page-size", comment: "Playlist items per page (max 50)"},
			{name: "youtube-requests-per-second", comment: "Client-side rate limit"},
		},
	},
	{
		title: "Spotify Configuration (client credentials)",
		flags: []envFlag{
			{name: "spotify-client-id", example: "your_spotify_client_id", comment: "From https://developer.spotify.com/dashboard"},
			{name: "spotify-client-secret", example: "your_spotify_client_secret", comment: "From https://developer.spotify.com/dashboard"},
			{name: "spotify-market", example: "", comment: "Optional market, e.g. US or SE"},
			{name: "spotify-token-url", comment: "Token endpoint"},
			{name: "spotify-api-base-url", comment: "Web API base URL"},
			{name: "spotify-requests-per-second", comment: "Client-side rate limit"},
		},
	},
	{
		title: "Resolver Configuration",
		flags: []envFlag{
			{name: "resolver-workers", comment: "Items resolved in parallel"},
			{name: "resolver-call-timeout", comment: "Timeout of every upstream call"},
			{name: "resolver-match-strategy", comment: "containment or similarity"},
			{name: "resolver-similarity-threshold", comment: "Used by the similarity strategy"},
		},
	},
	{
		title: "Retry Configuration (429 and 5xx only)",
		flags: []envFlag{
			{name: "retry-max-attempts", comment: "Attempts per call"},
			{name: "retry-initial-interval", comment: "First backoff"},
			{name: "retry-max-interval", comment: "Backoff cap"},
		},
	},
	{
		title: "Description Cache",
		flags: []envFlag{
			{name: "cache-description-size", comment: "0 disables the cache"},
			{name: "cache-description-ttl", comment: "Entry lifetime"},
		},
	},
	{
		title: "HTTP Server",
		flags: []envFlag{
			{name: "server-host", comment: "Listen address"},
			{name: "server-port", comment: "Listen port"},
			{name: "server-read-timeout", comment: "Read timeout"},
			{name: "server-write-timeout", comment: "Write timeout, must cover a whole playlist"},
			{name: "server-flood-limit", comment: "Requests per client per window, 0 disables"},
			{name: "server-flood-window", comment: "Sliding window of the per-client limit"},
			{name: "server-trust-forwarded-for", comment: "Key the limit on X-Forwarded-For behind a proxy"},
		},
	},
	{
		title: "Logging",
		flags: []envFlag{
			{name: "log-level", comment: "debug, info, warn, error"},
			{name: "log-format", comment: "json or console"},
		},
	},
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# tubematch Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SECTION>_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<section>-<setting>\n")
	content.WriteString("# =============================================================================\n\n")

	for _, section := range envSections {
		writeEnvSection(&content, cmd, section)
	}

	return content.String()
}

func writeEnvSection(content *strings.Builder, cmd *cobra.Command, section envSection) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", section.title)
	content.WriteString("# -----------------------------------------------------------------------------\n")

	names := make([]string, 0, len(section.flags))
	for _, f := range section.flags {
		names = append(names, "--"+f.name)
	}
	fmt.Fprintf(content, "# CLI: %s\n", strings.Join(names, ", "))

	for _, f := range section.flags {
		value := f.example
		if value == "" {
			value = getDefaultValueString(cmd, f.name)
		}
		fmt.Fprintf(content, "%s=%s  # %s\n", flagToEnvVar(f.name), value, f.comment)
	}
	content.WriteString("\n")
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	if f := cmd.PersistentFlags().Lookup(flagName); f != nil {
		return f.DefValue
	}
	return ""
}
