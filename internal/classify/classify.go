// Package classify turns raw schedule items into canonical EventRecords.
//
// Classification is a strict priority cascade over an immutable table set
// injected at construction time. It never fails: malformed input degrades to
// documented defaults, and only the holiday and empty-title filters drop an
// item.
package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/config"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/model"
)

// Candidate is one raw schedule item as produced by the extractor.
type Candidate struct {
	Year  int
	Month int
	Day   int

	// RawText is the full text content of the item element.
	RawText string

	// Description is the text of the item's description paragraph.
	Description string

	// Categories are the texts of the item's category tag elements, in
	// document order.
	Categories []string
}

// demikatsuKeyword names the recurring evening segment whose start time is
// fixed regardless of what the item text says.
const demikatsuKeyword = "デミカツ通信"

const (
	demikatsuHour   = 20
	demikatsuMinute = 0
)

// crownEmoji marks members-only items for a named individual.
const crownEmoji = "👑"

var (
	timeRe           = regexp.MustCompile(`(\d{1,2}):(\d{2})〜?\s*`)
	personalStreamRe = regexp.MustCompile(`\[[^\]]*個人配信\]`)
	personalVideoRe  = regexp.MustCompile(`\[[^\]]*個人ch\]`)
	streamClubRe     = regexp.MustCompile(`\[[^\]]*配信部\]`)
	streamVideoTagRe = regexp.MustCompile(`\[(配信|動画)\]`)
	anyBracketRe     = regexp.MustCompile(`\[([^\]]+)\]`)
)

// Classifier assigns time, title, marker glyphs, type tag and source link to
// candidates. It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	cfg         config.ClassifyConfig
	fallbackURL string

	defaultHour   int
	defaultMinute int
}

// New builds a Classifier from the given tables. fallbackURL is assigned
// when no channel mapping applies.
func New(cfg config.ClassifyConfig, fallbackURL string) (*Classifier, error) {
	h, m, err := parseClock(cfg.DefaultTime)
	if err != nil {
		return nil, fmt.Errorf("classify: bad default_time %q: %w", cfg.DefaultTime, err)
	}
	return &Classifier{
		cfg:           cfg,
		fallbackURL:   fallbackURL,
		defaultHour:   h,
		defaultMinute: m,
	}, nil
}

func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil {
		return 0, 0, err
	}
	minute, err = strconv.Atoi(m)
	if err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q out of range", s)
	}
	return hour, minute, nil
}

// Classify turns one candidate into an EventRecord. ok is false when the
// item is filtered out (holiday notice or empty title).
func (c *Classifier) Classify(cand Candidate) (rec model.EventRecord, ok bool) {
	description := cand.Description

	// 1. Boilerplate removal, in table order.
	for _, rule := range c.cfg.StripPatterns {
		description = strings.ReplaceAll(description, rule.Pattern, rule.Replace)
	}

	// 2. Time extraction. The first H:MM (optionally followed by a wave
	// dash) decides the start; all such prefixes are removed from the text.
	hour, minute := c.defaultHour, c.defaultMinute
	timeSpecified := false
	if m := timeRe.FindStringSubmatch(description); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		timeSpecified = true
		description = timeRe.ReplaceAllString(description, "")
	}
	if strings.Contains(description, demikatsuKeyword) {
		hour, minute = demikatsuHour, demikatsuMinute
		timeSpecified = true
	}

	// 3. Bracket tag extraction. Known patterns are rewritten to the
	// canonical stream/video tags; everything else is kept verbatim and
	// re-appended after the title, deduplicated in first-seen order.
	title := description
	var tags []string
	if personalStreamRe.MatchString(title) {
		tags = append(tags, "[配信]")
		title = personalStreamRe.ReplaceAllString(title, "")
	} else if personalVideoRe.MatchString(title) {
		tags = append(tags, "[動画]")
		title = personalVideoRe.ReplaceAllString(title, "")
	}
	if streamClubRe.MatchString(title) {
		tags = append(tags, "[配信]")
		title = streamClubRe.ReplaceAllString(title, "")
	}
	for _, m := range streamVideoTagRe.FindAllString(title, -1) {
		tags = append(tags, m)
	}
	title = streamVideoTagRe.ReplaceAllString(title, "")
	tags = append(tags, anyBracketRe.FindAllString(title, -1)...)
	title = anyBracketRe.ReplaceAllString(title, "")
	title = strings.TrimSpace(title)

	seen := make(map[string]bool, len(tags))
	var unique []string
	for _, tag := range tags {
		if !seen[tag] {
			unique = append(unique, tag)
			seen[tag] = true
		}
	}
	typeTag := strings.Join(unique, "")

	// 4. Marker cascade, first match wins.
	emoji := c.assignMarker(cand, description)

	// 5. Holiday notices never become records.
	if c.cfg.HolidayKeyword != "" && strings.Contains(description, c.cfg.HolidayKeyword) {
		return model.EventRecord{}, false
	}

	// 6. Source link from bracket contents, exact match, first wins.
	sourceLink := c.resolveSourceLink(cand.RawText)

	// 7. Records with nothing left as a title are dropped.
	if title == "" {
		return model.EventRecord{}, false
	}

	return model.EventRecord{
		Year:          cand.Year,
		Month:         cand.Month,
		Day:           cand.Day,
		Hour:          hour,
		Minute:        minute,
		TimeSpecified: timeSpecified,
		Title:         title,
		Category:      emoji,
		TypeTag:       typeTag,
		RawText:       strings.TrimSpace(cand.RawText),
		SourceLink:    sourceLink,
	}, true
}

// assignMarker walks the marker priority cascade:
//
//	special keyword > channel (+special secondary) > person+category /
//	membership+person > lone person > lone category > none
func (c *Classifier) assignMarker(cand Candidate, description string) string {
	// Special keywords match against the cleaned description and the full
	// raw item text, and beat every other source.
	for _, kw := range c.cfg.SpecialKeywords {
		if kw.Keyword == "" {
			continue
		}
		if strings.Contains(description, kw.Keyword) || strings.Contains(cand.RawText, kw.Keyword) {
			return kw.Emoji
		}
	}

	// Channel glyph keyed by bracket content, with special glyphs appended
	// as secondary markers.
	if ch := c.channelEmoji(cand.RawText); ch != "" {
		var secondary strings.Builder
		for _, kw := range c.cfg.SpecialKeywords {
			if kw.Keyword != "" && strings.Contains(description, kw.Keyword) {
				secondary.WriteString(kw.Emoji)
			}
		}
		return ch + secondary.String()
	}

	personEmoji := ""
	for _, p := range c.cfg.PersonEmojis {
		if p.Keyword != "" && strings.Contains(description, p.Keyword) {
			personEmoji = p.Emoji
			break
		}
	}
	categoryEmoji := ""
	for _, cat := range cand.Categories {
		if e, found := c.lookupCategory(cat); found {
			categoryEmoji = e
			break
		}
	}

	if personEmoji != "" && categoryEmoji != "" {
		return personEmoji + categoryEmoji
	}
	if personEmoji != "" && c.isMembership(cand) {
		return personEmoji + crownEmoji
	}
	if personEmoji != "" {
		return personEmoji
	}
	return categoryEmoji
}

// isMembership reports whether the item carries the members-only category
// tag and names one of the recognized individuals.
func (c *Classifier) isMembership(cand Candidate) bool {
	tagged := false
	for _, cat := range cand.Categories {
		if strings.Contains(cat, c.cfg.MembershipKeyword) {
			tagged = true
			break
		}
	}
	if !tagged {
		return false
	}
	for _, name := range c.cfg.MembershipNames {
		if name != "" && strings.Contains(cand.RawText, name) {
			return true
		}
	}
	return false
}

func (c *Classifier) lookupCategory(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, entry := range c.cfg.CategoryEmojis {
		if entry.Keyword == label {
			return entry.Emoji, true
		}
	}
	return "", false
}

func (c *Classifier) channelEmoji(rawText string) string {
	for _, content := range bracketContents(rawText) {
		for _, entry := range c.cfg.ChannelEmojis {
			if entry.Keyword != "" && strings.Contains(content, entry.Keyword) {
				return entry.Emoji
			}
		}
	}
	return ""
}

func (c *Classifier) resolveSourceLink(rawText string) string {
	for _, content := range bracketContents(rawText) {
		for _, entry := range c.cfg.ChannelURLs {
			if entry.Channel == content {
				return entry.URL
			}
		}
	}
	return c.fallbackURL
}

func bracketContents(s string) []string {
	matches := anyBracketRe.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
