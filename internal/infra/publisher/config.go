package publisher

import (
	pkgconfig "digest-feed/internal/pkg/config"
)

// FeedConfig holds the channel-level metadata of the rendered feed.
type FeedConfig struct {
	Title       string
	Link        string
	Description string
}

// DefaultFeedConfig returns the default channel metadata.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		Title:       "Digest Feed",
		Link:        "",
		Description: "Layered summaries of subscribed feeds",
	}
}

// LoadFeedConfigFromEnv loads channel metadata from environment variables.
//
// Environment variables:
//   - FEED_TITLE: channel title (default: "Digest Feed")
//   - FEED_LINK: channel link (default: empty)
//   - FEED_DESCRIPTION: channel description
func LoadFeedConfigFromEnv() FeedConfig {
	cfg := DefaultFeedConfig()
	cfg.Title = pkgconfig.LoadEnvString("FEED_TITLE", cfg.Title)
	cfg.Link = pkgconfig.LoadEnvString("FEED_LINK", cfg.Link)
	cfg.Description = pkgconfig.LoadEnvString("FEED_DESCRIPTION", cfg.Description)
	return cfg
}
