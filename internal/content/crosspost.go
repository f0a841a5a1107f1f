package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var localImage = regexp.MustCompile(`!\[.*?\]\(/.*?\)\n?`)

// CanonicalURL joins the site base URL and slug.
func CanonicalURL(siteURL, slug string) string {
	return strings.TrimRight(siteURL, "/") + "/" + url.PathEscape(slug)
}

// CrosspostBody prepares a post body for syndication: site-relative images are
// dropped and a back-link to the canonical copy is appended.
func CrosspostBody(post Post, siteURL string) string {
	body := strings.TrimSpace(localImage.ReplaceAllString(post.Body, ""))
	canonical := CanonicalURL(siteURL, post.Slug)
	host := canonical
	if u, err := url.Parse(siteURL); err == nil && u.Host != "" {
		host = strings.TrimPrefix(u.Host, "www.")
	}
	return fmt.Sprintf("%s\n\n---\n\n*Originally published on [%s](%s)*", body, host, canonical)
}
