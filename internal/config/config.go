// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// webhookPattern matches a Discord webhook URL, including the canary and PTB
// client hosts.
var webhookPattern = regexp.MustCompile(`^https://(canary\.|ptb\.)?discord\.com/api/webhooks/\d+/[A-Za-z0-9_-]+$`)

// Config holds the application configuration.
type Config struct {
	// WebhookURL is empty when DISCORD_WEBHOOK_URL is unset or does not match
	// the webhook pattern. An empty value disables the reconciliation
	// scheduler; it is not a load error.
	WebhookURL string

	RedditClientID     string
	RedditClientSecret string
	RedditRefreshToken string
	RedditSubreddit    string
	RedditFeedURL      string

	DatabasePath string
	LogLevel     string
	UserAgent    string
	IngestAddr   string

	PollIntervalSeconds int
	QueueLimit          int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditRefreshToken: os.Getenv("REDDIT_REFRESH_TOKEN"),
		RedditSubreddit:    os.Getenv("REDDIT_SUBREDDIT"),
		RedditFeedURL:      os.Getenv("REDDIT_FEED_URL"),
		IngestAddr:         os.Getenv("INGEST_ADDR"),
	}

	if url := os.Getenv("DISCORD_WEBHOOK_URL"); webhookPattern.MatchString(url) {
		cfg.WebhookURL = url
	}

	cfg.DatabasePath = os.Getenv("DATABASE_PATH")
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "./data/bot.db"
	}

	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.UserAgent = os.Getenv("USER_AGENT")
	if cfg.UserAgent == "" {
		cfg.UserAgent = "modqueue-relay/1.0"
	}

	var err error
	cfg.PollIntervalSeconds, err = intEnv("POLL_INTERVAL", 30)
	if err != nil {
		return nil, err
	}

	cfg.QueueLimit, err = intEnv("QUEUE_LIMIT", 1000)
	if err != nil {
		return nil, err
	}
	if cfg.QueueLimit > 1000 {
		cfg.QueueLimit = 1000
	}

	return cfg, nil
}

// HasWebhook reports whether a valid Discord webhook destination is configured.
func (c *Config) HasWebhook() bool {
	return c.WebhookURL != ""
}

// HasRedditAPI reports whether OAuth credentials for the Reddit API are present.
func (c *Config) HasRedditAPI() bool {
	return c.RedditClientID != "" && c.RedditClientSecret != "" &&
		c.RedditRefreshToken != "" && c.RedditSubreddit != ""
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}
