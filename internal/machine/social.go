package machine

import (
	"fmt"
	"strings"
	"time"
)

// Platform is the network a social section is written for.
type Platform string

const (
	// PlatformLinkedIn is the long-form professional network.
	PlatformLinkedIn Platform = "linkedin"
	// PlatformX is the microblog.
	PlatformX Platform = "x"
)

// Days recognised as section headers, in posting order starting with the blog day.
var Days = []string{"Saturday", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// Section is one day's post for one platform.
type Section struct {
	Day      string   `json:"day"`
	Platform Platform `json:"platform"`
	Label    string   `json:"label"`
	Content  string   `json:"content"`
}

// SocialWeek is a parsed social calendar plus the text it came from.
type SocialWeek struct {
	Sections []Section `json:"sections"`
	Raw      string    `json:"-"`
}

// For returns the sections of one platform in order.
func (w SocialWeek) For(p Platform) []Section {
	var out []Section
	for _, s := range w.Sections {
		if s.Platform == p {
			out = append(out, s)
		}
	}
	return out
}

// ParseSocial splits a combined LinkedIn + X response into day sections.
// Text before any platform header is treated as LinkedIn.
func ParseSocial(text string) []Section {
	return ParseSocialAs(text, PlatformLinkedIn)
}

// ParseSocialAs splits text into day sections, starting on platform.
//
// "## LINKEDIN" and "## X" / "## TWITTER" headers switch platform, "### <Day>" starts a
// section, any other heading closes it, and "## POSTING SCHEDULE" ends parsing.
// Separator lines are kept inside a section but trimmed from its edges. Sections with
// an unrecognised day are dropped, repeated (platform, day) headers are merged and
// empty sections discarded. Text without day headers yields an empty result.
func ParseSocialAs(text string, platform Platform) []Section {
	sections := []Section{}
	index := make(map[string]int)

	var (
		current *Section
		lines   []string
	)
	flush := func() {
		if current != nil {
			if body := trimSeparators(strings.Join(lines, "\n")); body != "" {
				key := string(current.Platform) + "/" + current.Day
				if i, ok := index[key]; ok {
					sections[i].Content += "\n\n" + body
				} else {
					current.Content = body
					index[key] = len(sections)
					sections = append(sections, *current)
				}
			}
		}
		current = nil
		lines = nil
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "### "):
			flush()
			label := strings.TrimSpace(strings.TrimPrefix(trimmed, "### "))
			if day, ok := dayOf(label); ok {
				current = &Section{Day: day, Platform: platform, Label: label}
			}
		case strings.HasPrefix(trimmed, "## ") || trimmed == "##":
			flush()
			heading := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(trimmed, "##")))
			switch {
			case strings.HasPrefix(heading, "POSTING SCHEDULE"):
				return sections
			case strings.HasPrefix(heading, "LINKEDIN"):
				platform = PlatformLinkedIn
			case heading == "X" || strings.HasPrefix(heading, "X ") || strings.HasPrefix(heading, "X/") ||
				strings.HasPrefix(heading, "TWITTER"):
				platform = PlatformX
			}
		case strings.HasPrefix(trimmed, "# "):
			flush()
		default:
			if current != nil {
				lines = append(lines, line)
			}
		}
	}
	flush()
	return sections
}

// dayOf matches headers such as "Monday", "Tuesday (Thread)" or "**Friday** — vision".
func dayOf(label string) (string, bool) {
	word := strings.TrimLeft(label, "*_ ")
	for _, day := range Days {
		if len(word) >= len(day) && strings.EqualFold(word[:len(day)], day) {
			rest := word[len(day):]
			if rest == "" || !isLetter(rest[0]) {
				return day, true
			}
		}
	}
	return "", false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func trimSeparators(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for len(lines) > 0 && isSeparator(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && isSeparator(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isSeparator(line string) bool {
	t := strings.TrimSpace(line)
	return t == "" || (len(t) >= 3 && strings.Trim(t, "-") == "")
}

// RenderSections writes sections back as "### Day" Markdown.
func RenderSections(sections []Section) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := s.Label
		if label == "" {
			label = s.Day
		}
		fmt.Fprintf(&b, "### %s\n\n%s", label, s.Content)
	}
	return b.String()
}

// CombinedText renders a week in the combined "## LINKEDIN" / "## X / TWITTER" layout.
func CombinedText(week SocialWeek) string {
	return "## LINKEDIN\n\n" + RenderSections(week.For(PlatformLinkedIn)) +
		"\n\n## X / TWITTER\n\n" + RenderSections(week.For(PlatformX))
}

var postingSchedule = []struct{ day, platform, kind string }{
	{"Saturday", "X", "Blog promo (2 tweets)"},
	{"Sunday", "X", "Personal reflection"},
	{"Monday", "LinkedIn + X", "Market philosophy"},
	{"Tuesday", "X", "Full thread"},
	{"Wednesday", "LinkedIn + X", "Mechanism/platform angle"},
	{"Thursday", "X", "Member win"},
	{"Friday", "LinkedIn + X", "Platform evolution"},
}

// RenderSchedule produces the social calendar file stored next to a post.
func RenderSchedule(title, slug string, week SocialWeek, now time.Time) string {
	linkedIn := week.For(PlatformLinkedIn)
	x := week.For(PlatformX)

	var b strings.Builder
	fmt.Fprintf(&b, "# Social Content: %s\n", title)
	fmt.Fprintf(&b, "Generated from: content/%s.mdx\n", slug)
	fmt.Fprintf(&b, "Date: %s\n\n---\n\n", now.Format("January 2, 2006"))
	fmt.Fprintf(&b, "## LINKEDIN (%d posts)\n\n%s\n\n---\n\n", len(linkedIn), RenderSections(linkedIn))
	fmt.Fprintf(&b, "## X / TWITTER (%d posts)\n\n%s\n\n---\n\n", len(x), RenderSections(x))
	b.WriteString("## POSTING SCHEDULE\n\n| Day | Platform | Type |\n|-----|----------|------|\n")
	for _, row := range postingSchedule {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", row.day, row.platform, row.kind)
	}
	return b.String()
}
