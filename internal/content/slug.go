package content

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxSlugLen bounds the length of derived slugs.
const MaxSlugLen = 60

var (
	slugInvalid    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugHyphens    = regexp.MustCompile(`-+`)
)

// Slugify derives a URL-safe identifier from title.
// A title with no usable characters yields post-<unix millis>.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLen {
		s = strings.TrimRight(s[:MaxSlugLen], "-")
	}
	if s == "" {
		return fmt.Sprintf("post-%d", time.Now().UnixMilli())
	}
	return s
}

var validSlug = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a well-formed slug. Store paths are only built from valid slugs.
func ValidSlug(s string) bool {
	return len(s) <= MaxSlugLen && validSlug.MatchString(s)
}
