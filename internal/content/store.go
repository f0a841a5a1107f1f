package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when no post exists for a slug.
var ErrNotFound = errors.New("content: post not found")

const postExt = ".mdx"

// Store keeps one .mdx file per post in Dir.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the file path for slug.
func (s *Store) Path(slug string) string {
	return filepath.Join(s.Dir, slug+postExt)
}

// SocialPath returns where the social calendar for slug is written, next to the content directory.
func (s *Store) SocialPath(slug string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(s.Dir)), slug+"-social.md")
}

// Save renders post into its slug's file, overwriting any previous version.
func (s *Store) Save(post Post) (string, error) {
	return s.WriteRaw(post.Slug, post.Render())
}

// WriteRaw stores mdx verbatim under slug.
func (s *Store) WriteRaw(slug, mdx string) (string, error) {
	if !ValidSlug(slug) {
		return "", fmt.Errorf("content: invalid slug %q", slug)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("content: create dir: %w", err)
	}
	path := s.Path(slug)
	if err := os.WriteFile(path, []byte(mdx), 0o644); err != nil {
		return "", fmt.Errorf("content: write %s: %w", path, err)
	}
	return path, nil
}

// ReadRaw returns the stored file for slug.
func (s *Store) ReadRaw(slug string) (string, error) {
	if !ValidSlug(slug) {
		return "", fmt.Errorf("content: invalid slug %q", slug)
	}
	data, err := os.ReadFile(s.Path(slug))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	if err != nil {
		return "", fmt.Errorf("content: read %s: %w", slug, err)
	}
	return string(data), nil
}

// Load parses the stored post for slug. The slug comes from the file name, not the title.
func (s *Store) Load(slug string) (Post, error) {
	raw, err := s.ReadRaw(slug)
	if err != nil {
		return Post{}, err
	}
	post, err := ParsePost(raw)
	if err != nil {
		return Post{}, fmt.Errorf("content: parse %s: %w", slug, err)
	}
	post.Slug = slug
	return post, nil
}

// List returns every parseable post, newest first. Unparseable files are skipped.
func (s *Store) List() ([]Post, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("content: list: %w", err)
	}

	var posts []Post
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, postExt) {
			continue
		}
		post, err := s.Load(strings.TrimSuffix(name, postExt))
		if err != nil {
			continue
		}
		posts = append(posts, post)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].Date != posts[j].Date {
			return posts[i].Date > posts[j].Date
		}
		return posts[i].Slug < posts[j].Slug
	})
	return posts, nil
}

// WriteSocial stores the rendered social calendar for slug.
func (s *Store) WriteSocial(slug, text string) (string, error) {
	if !ValidSlug(slug) {
		return "", fmt.Errorf("content: invalid slug %q", slug)
	}
	path := s.SocialPath(slug)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("content: create dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("content: write %s: %w", path, err)
	}
	return path, nil
}
