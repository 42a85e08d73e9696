package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// StripRule removes boilerplate from an item description before any other
// classification step runs. Rules apply in file order.
type StripRule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Replace string `yaml:"replace" json:"replace"`
}

// KeywordEmoji maps a substring to a marker glyph. Tables are ordered lists,
// not maps: the first matching entry wins, so priority is the file order and
// classification stays deterministic.
type KeywordEmoji struct {
	Keyword string `yaml:"keyword" json:"keyword"`
	Emoji   string `yaml:"emoji" json:"emoji"`
}

// ChannelURL maps a bracket content (channel name) to its reference URL.
type ChannelURL struct {
	Channel string `yaml:"channel" json:"channel"`
	URL     string `yaml:"url" json:"url"`
}

// ClassifyConfig holds the classification tables injected into the
// classifier at construction time.
type ClassifyConfig struct {
	// DefaultTime is applied when an item carries no H:MM prefix, in
	// "HH:MM" form. Such records are still treated as all-day occurrences.
	DefaultTime string `yaml:"default_time" json:"default_time"`

	// HolidayKeyword drops an item entirely when present in its description.
	HolidayKeyword string `yaml:"holiday_keyword" json:"holiday_keyword"`

	// StripPatterns are boilerplate removals applied before time and tag
	// extraction.
	StripPatterns []StripRule `yaml:"strip_patterns" json:"strip_patterns"`

	// SpecialKeywords take priority over every other marker source.
	SpecialKeywords []KeywordEmoji `yaml:"special_keywords" json:"special_keywords"`

	// CategoryEmojis are keyed by the category label attached to an item.
	CategoryEmojis []KeywordEmoji `yaml:"category_emojis" json:"category_emojis"`

	// PersonEmojis are keyed by a person name appearing in the description.
	PersonEmojis []KeywordEmoji `yaml:"person_emojis" json:"person_emojis"`

	// ChannelEmojis are keyed by channel names found in bracket contents.
	ChannelEmojis []KeywordEmoji `yaml:"channel_emojis" json:"channel_emojis"`

	// ChannelURLs resolve an item's source link from its bracket contents.
	ChannelURLs []ChannelURL `yaml:"channel_urls" json:"channel_urls"`

	// MembershipNames are the individual names recognized by the
	// membership + person marker combination.
	MembershipNames []string `yaml:"membership_names" json:"membership_names"`

	// MembershipKeyword marks members-only items.
	MembershipKeyword string `yaml:"membership_keyword" json:"membership_keyword"`
}

// CalendarConfig identifies the remote calendar and its credentials.
type CalendarConfig struct {
	// CalendarID is the target calendar, e.g. "xxxx@group.calendar.google.com".
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`

	// CredentialsFile is the OAuth client secret JSON.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`

	// TokenFile is a previously provisioned user token. Interactive token
	// acquisition is out of scope; only refresh happens automatically.
	TokenFile string `yaml:"token_file" json:"token_file"`
}

// SyncConfig tunes the reconciliation engine.
type SyncConfig struct {
	// DeleteChunkSize / CreateChunkSize bound one logical batch request.
	// Deletes use smaller chunks to bound per-call latency. Both are capped
	// by the remote API's hard per-batch limit.
	DeleteChunkSize int `yaml:"delete_chunk_size" json:"delete_chunk_size"`
	CreateChunkSize int `yaml:"create_chunk_size" json:"create_chunk_size"`

	// MinSuccessRatio, when > 0, fails a run whose per-item success ratio
	// falls below it. 0 keeps the lenient policy: success when at least one
	// operation succeeded or there was nothing to do.
	MinSuccessRatio float64 `yaml:"min_success_ratio" json:"min_success_ratio"`

	// ReplaceUnrecognized widens the full-replace fallback to delete every
	// in-window entry instead of only entries recognizable as ours.
	ReplaceUnrecognized bool `yaml:"replace_unrecognized" json:"replace_unrecognized"`
}

// Config is the top-level application configuration.
type Config struct {
	// TargetURL is the schedule page to scrape.
	TargetURL string `yaml:"target_url" json:"target_url"`

	// FallbackURL is assigned as a record's source link when no channel
	// mapping applies.
	FallbackURL string `yaml:"fallback_url" json:"fallback_url"`

	// Timezone is the IANA timezone of the published schedule (e.g. "Asia/Tokyo").
	Timezone string `yaml:"timezone" json:"timezone"`

	// SyncCron is a cron-style schedule (e.g. "0 */6 * * *") for the
	// automatic mode. One-shot runs ignore it.
	SyncCron string `yaml:"sync_cron" json:"sync_cron"`

	// RenderJS fetches the page through headless Chromium instead of a
	// plain HTTP GET, for markup that only materializes client-side.
	RenderJS bool `yaml:"render_js" json:"render_js"`

	// CacheDir is the disk-backed HTTP cache location.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Listen, when non-empty, enables the status HTTP server.
	Listen string `yaml:"listen" json:"listen"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Sync     SyncConfig     `yaml:"sync" json:"sync"`
	Classify ClassifyConfig `yaml:"classify" json:"classify"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		TargetURL:   "https://aikatsu-academy.com/schedule/",
		FallbackURL: "https://aikatsu-academy.com/ https://aikatsu-academy.com/schedule/",
		Timezone:    "Asia/Tokyo",
		SyncCron:    "0 */6 * * *",
		RenderJS:    false,
		CacheDir:    "./var/page-cache",
		Listen:      "",
		Calendar: CalendarConfig{
			CalendarID:      "",
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
		},
		Sync: SyncConfig{
			DeleteChunkSize: 25,
			CreateChunkSize: 50,
			MinSuccessRatio: 0,
		},
		Classify: ClassifyConfig{
			DefaultTime:    "12:00",
			HolidayKeyword: "祝日",
			StripPatterns: []StripRule{
				{Pattern: "「アイカツアカデミー！配信部」", Replace: ""},
				{Pattern: "アイカツアカデミー！", Replace: ""},
				{Pattern: "【アイカツアカデミー！カード", Replace: "【カード"},
			},
			SpecialKeywords: []KeywordEmoji{
				{Keyword: "デミカツ通信", Emoji: "📰"},
			},
			CategoryEmojis: []KeywordEmoji{
				{Keyword: "配信", Emoji: "📡"},
				{Keyword: "動画", Emoji: "🎬"},
				{Keyword: "グッズ", Emoji: "🛍️"},
				{Keyword: "イベント", Emoji: "🎪"},
			},
			PersonEmojis: []KeywordEmoji{
				{Keyword: "たいむ", Emoji: "⏰"},
				{Keyword: "メエ", Emoji: "🐑"},
				{Keyword: "パリン", Emoji: "🎀"},
				{Keyword: "みえる", Emoji: "🔮"},
			},
			ChannelEmojis: []KeywordEmoji{},
			ChannelURLs:   []ChannelURL{},
			MembershipNames: []string{
				"たいむ", "メエ", "パリン", "みえる",
			},
			MembershipKeyword: "メンバーシップ",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.TargetURL == "" {
		c.TargetURL = def.TargetURL
	}
	if c.FallbackURL == "" {
		c.FallbackURL = def.FallbackURL
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.SyncCron == "" {
		c.SyncCron = def.SyncCron
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Calendar.CredentialsFile == "" {
		c.Calendar.CredentialsFile = def.Calendar.CredentialsFile
	}
	if c.Calendar.TokenFile == "" {
		c.Calendar.TokenFile = def.Calendar.TokenFile
	}

	if c.Sync.DeleteChunkSize <= 0 {
		c.Sync.DeleteChunkSize = def.Sync.DeleteChunkSize
	}
	if c.Sync.CreateChunkSize <= 0 {
		c.Sync.CreateChunkSize = def.Sync.CreateChunkSize
	}
	if c.Sync.MinSuccessRatio < 0 || c.Sync.MinSuccessRatio > 1 {
		c.Sync.MinSuccessRatio = 0
	}

	cl := &c.Classify
	if cl.DefaultTime == "" {
		cl.DefaultTime = def.Classify.DefaultTime
	}
	if cl.HolidayKeyword == "" {
		cl.HolidayKeyword = def.Classify.HolidayKeyword
	}
	if cl.MembershipKeyword == "" {
		cl.MembershipKeyword = def.Classify.MembershipKeyword
	}
	if cl.StripPatterns == nil {
		cl.StripPatterns = def.Classify.StripPatterns
	}
	if cl.SpecialKeywords == nil {
		cl.SpecialKeywords = def.Classify.SpecialKeywords
	}
	if cl.CategoryEmojis == nil {
		cl.CategoryEmojis = def.Classify.CategoryEmojis
	}
	if cl.PersonEmojis == nil {
		cl.PersonEmojis = def.Classify.PersonEmojis
	}
	if cl.ChannelEmojis == nil {
		cl.ChannelEmojis = []KeywordEmoji{}
	}
	if cl.ChannelURLs == nil {
		cl.ChannelURLs = []ChannelURL{}
	}
	if cl.MembershipNames == nil {
		cl.MembershipNames = def.Classify.MembershipNames
	}
}

// Validate checks for settings that would make a sync run fail in a
// confusing way: sample calendar IDs and missing token files.
func (c *Config) Validate() error {
	id := c.Calendar.CalendarID
	if id == "" || id == "your_calendar_id@group.calendar.google.com" {
		return errors.New("calendar.calendar_id is unset or still the sample value")
	}
	if !strings.Contains(id, "@") {
		return fmt.Errorf("calendar.calendar_id %q does not look like a calendar ID", id)
	}
	if _, err := os.Stat(c.Calendar.TokenFile); err != nil {
		return fmt.Errorf("calendar token file %q: %w", c.Calendar.TokenFile, err)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".aikatsusync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
