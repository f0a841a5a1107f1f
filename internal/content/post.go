// Package content models generated blog posts and the one-file-per-post store they live in.
package content

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Errors returned by ParsePost.
var (
	ErrNoFrontMatter = errors.New("content: no front matter block")
	ErrMissingTitle  = errors.New("content: front matter has no title")
)

// DateLayout is the front matter date format.
const DateLayout = "2006-01-02"

// Category is the editorial bucket a post is filed under.
type Category string

const (
	MarketPhilosophy  Category = "Market Philosophy"
	OperatorReality   Category = "Operator Reality"
	PlatformEvolution Category = "Platform Evolution"
	BuildingInPublic  Category = "Building in Public"
	Thoughts          Category = "Thoughts"
)

// DefaultCategory is used whenever the classification is missing or unknown.
const DefaultCategory = MarketPhilosophy

// Categories lists every valid category.
var Categories = []Category{MarketPhilosophy, OperatorReality, PlatformEvolution, BuildingInPublic, Thoughts}

// ParseCategory maps s case-insensitively onto a known category, falling back to the default.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return DefaultCategory
}

// Post is a parsed long-form post.
type Post struct {
	Slug           string
	Title          string
	MetaTitle      string
	Description    string
	TargetKeywords string
	Date           string
	Category       Category
	Body           string
}

var (
	quotedField = regexp.MustCompile(`^(\w+):\s*"(.*)"\s*$`)
	plainField  = regexp.MustCompile(`^(\w+):\s*(.*?)\s*$`)
)

// ParsePost splits raw model output into front matter and body.
// A surrounding Markdown code fence is tolerated. The body is returned trimmed and unescaped.
func ParsePost(raw string) (Post, error) {
	lines := strings.Split(stripFence(strings.ReplaceAll(raw, "\r\n", "\n")), "\n")

	open, close := -1, -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "---" {
			continue
		}
		if open < 0 {
			open = i
			continue
		}
		close = i
		break
	}
	if open < 0 || close < 0 {
		return Post{}, ErrNoFrontMatter
	}

	fields := make(map[string]string)
	for _, line := range lines[open+1 : close] {
		line = strings.TrimSpace(line)
		if m := quotedField.FindStringSubmatch(line); m != nil {
			fields[m[1]] = collapseSpace(m[2])
			continue
		}
		if m := plainField.FindStringSubmatch(line); m != nil {
			fields[m[1]] = collapseSpace(strings.Trim(m[2], `'`))
		}
	}

	post := Post{
		Title:          fields["title"],
		MetaTitle:      fields["meta_title"],
		Description:    fields["description"],
		TargetKeywords: fields["target_keywords"],
		Date:           fields["date"],
		Category:       ParseCategory(fields["category"]),
		Body:           strings.TrimSpace(strings.Join(lines[close+1:], "\n")),
	}
	if post.Title == "" {
		return Post{}, ErrMissingTitle
	}
	if _, err := time.Parse(DateLayout, post.Date); err != nil {
		post.Date = time.Now().Format(DateLayout)
	}
	post.Slug = Slugify(post.Title)
	return post, nil
}

func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		return s
	}
	t = strings.TrimRightFunc(t, unicode.IsSpace)
	return strings.TrimSuffix(t, "```")
}

// Render serialises the post in the content file format.
func (p Post) Render() string {
	var b strings.Builder
	b.WriteString("---\n")
	writeField(&b, "title", p.Title)
	writeField(&b, "meta_title", p.MetaTitle)
	writeField(&b, "description", p.Description)
	writeField(&b, "target_keywords", p.TargetKeywords)
	writeField(&b, "date", p.Date)
	writeField(&b, "category", string(p.Category))
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(p.Body))
	b.WriteString("\n")
	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s: \"%s\"\n", key, collapseSpace(value))
}

// collapseSpace trims a front matter value and folds inner whitespace runs to one space.
func collapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// Tags derives up to max lower-case alphanumeric tags from the target keywords.
func (p Post) Tags(max int) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, kw := range strings.Split(p.TargetKeywords, ",") {
		tag := strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return unicode.ToLower(r)
			}
			return -1
		}, kw)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if max > 0 && len(tags) == max {
			break
		}
	}
	return tags
}

// ReadingMinutes estimates reading time at 200 words per minute, at least one.
func (p Post) ReadingMinutes() int {
	words := len(strings.Fields(p.Body))
	minutes := (words + 199) / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}
