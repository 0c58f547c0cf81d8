// Package feedwatch monitors health-publisher feeds for new guidance
// documents and reports which items the article library already covers.
package feedwatch

// FeedConfig identifies a single monitored feed.
type FeedConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FeedPresets maps friendly keys to health-publisher feeds.
var FeedPresets = map[string]FeedConfig{
	"cdc": {
		Name: "CDC Newsroom",
		URL:  "https://tools.cdc.gov/api/v2/resources/media/316422.rss",
	},
	"who": {
		Name: "WHO News",
		URL:  "https://www.who.int/rss-feeds/news-english.xml",
	},
	"nih": {
		Name: "NIH News Releases",
		URL:  "https://www.nih.gov/news-events/news-releases/feed",
	},
	"mlp": {
		Name: "MedlinePlus What's New",
		URL:  "https://medlineplus.gov/feeds/whatsnew.xml",
	},
}

// Default configuration values
const (
	DefaultFeedPreset = "cdc"
	DefaultCount      = 10
)

// ResolveFeed resolves a feed identifier to its configuration. If the input
// is a preset name the preset is returned; otherwise the input is treated as
// a direct feed URL.
func ResolveFeed(feedInput string) FeedConfig {
	if config, exists := FeedPresets[feedInput]; exists {
		return config
	}
	return FeedConfig{Name: feedInput, URL: feedInput}
}
