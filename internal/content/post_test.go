package content

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePost = `---
title: "Own the Middle"
meta_title: "Own the Middle — Saad Belcaid"
description: "Why the middle of a market is where the money sits."
target_keywords: "market maker, two-sided, Market Maker"
date: "2026-03-07"
category: "Operator Reality"
---

## The gap

Nobody owns the middle. {Yet}.
`

func TestParsePost(t *testing.T) {
	post, err := ParsePost(samplePost)
	require.NoError(t, err)

	assert.Equal(t, "own-the-middle", post.Slug)
	assert.Equal(t, "Own the Middle", post.Title)
	assert.Equal(t, "Own the Middle — Saad Belcaid", post.MetaTitle)
	assert.Equal(t, "2026-03-07", post.Date)
	assert.Equal(t, OperatorReality, post.Category)
	assert.True(t, strings.HasPrefix(post.Body, "## The gap"))
}

func TestParsePostStripsCodeFence(t *testing.T) {
	post, err := ParsePost("```mdx\n" + samplePost + "```\n")
	require.NoError(t, err)
	assert.Equal(t, "Own the Middle", post.Title)
	assert.NotContains(t, post.Body, "```")
}

func TestParsePostDefaults(t *testing.T) {
	raw := "---\ntitle: Market Maker\ncategory: \"Poetry\"\n---\nbody"
	post, err := ParsePost(raw)
	require.NoError(t, err)

	assert.Equal(t, "Market Maker", post.Title)
	assert.Equal(t, DefaultCategory, post.Category)
	assert.Equal(t, time.Now().Format(DateLayout), post.Date)
	assert.Equal(t, "body", post.Body)
}

func TestParsePostErrors(t *testing.T) {
	_, err := ParsePost("just some text")
	assert.ErrorIs(t, err, ErrNoFrontMatter)

	_, err = ParsePost("---\ndate: \"2026-01-01\"\n---\nbody")
	assert.ErrorIs(t, err, ErrMissingTitle)
}

func TestParsePostBodyKeepsHorizontalRules(t *testing.T) {
	raw := "---\ntitle: \"Rules\"\n---\nfirst\n\n---\n\nsecond"
	post, err := ParsePost(raw)
	require.NoError(t, err)
	assert.Equal(t, "first\n\n---\n\nsecond", post.Body)
}

func TestRenderRoundTrip(t *testing.T) {
	inputs := []string{
		samplePost,
		"---\ntitle: \"Quote \"inside\" title\"\ndate: \"2025-12-31\"\n---\n\nBody with: colons",
		"---\ntitle: Infinite Player\ndescription: unquoted value\n---\n\n## H2\n\ntext",
		"---\ntitle: \"Own the Middle\"\nmeta_title: \"Own  the Middle \"\ndescription: \"Two  spaces\"\n---\n\nBody",
	}
	for _, raw := range inputs {
		first, err := ParsePost(raw)
		require.NoError(t, err)
		second, err := ParsePost(first.Render())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestParsePostCollapsesWhitespace(t *testing.T) {
	post, err := ParsePost("---\ntitle: \" Own   the Middle\"\nmeta_title: \"Own  the Middle \"\ndescription: \"Two \t spaces\"\n---\n\nBody")
	require.NoError(t, err)
	assert.Equal(t, "Own the Middle", post.Title)
	assert.Equal(t, "Own the Middle", post.MetaTitle)
	assert.Equal(t, "Two spaces", post.Description)
	assert.Equal(t, "own-the-middle", post.Slug)
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, BuildingInPublic, ParseCategory("building in public"))
	assert.Equal(t, Thoughts, ParseCategory(" Thoughts "))
	assert.Equal(t, MarketPhilosophy, ParseCategory(""))
	assert.Equal(t, MarketPhilosophy, ParseCategory("Uncategorized"))
}

func TestTags(t *testing.T) {
	post := Post{TargetKeywords: "market maker, two-sided, Market Maker, b2b, sales, ops, extra"}
	assert.Equal(t, []string{"marketmaker", "twosided", "b2b", "sales"}, post.Tags(4))
	assert.Len(t, post.Tags(0), 6)
}

func TestReadingMinutes(t *testing.T) {
	assert.Equal(t, 1, Post{}.ReadingMinutes())
	assert.Equal(t, 2, Post{Body: strings.Repeat("word ", 201)}.ReadingMinutes())
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "own-the-middle", Slugify("Own the Middle"))
	assert.Equal(t, "bouncer-to-operator", Slugify("  Bouncer → to -- Operator!  "))
	assert.Equal(t, "192k-mrr", Slugify("$192K MRR"))
}

func TestSlugifyProperties(t *testing.T) {
	shape := regexp.MustCompile(`^[a-z0-9-]+$`)
	titles := []string{
		"",
		"!!!",
		"---",
		"Own the Middle",
		strings.Repeat("abc ", 40),
		strings.Repeat("a", 59) + " b",
		"Ünïcödé Títlé",
		"\t\nTabs\tand\nnewlines\n",
	}
	for _, title := range titles {
		slug := Slugify(title)
		assert.Regexp(t, shape, slug, title)
		assert.LessOrEqual(t, len(slug), MaxSlugLen, title)
		assert.False(t, strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-"), title)
		assert.True(t, ValidSlug(slug), title)
	}
}

func TestEscapeBraces(t *testing.T) {
	cases := map[string]string{
		"plain {word} here":             `plain \{word\} here`,
		"arrow {() => x} stays":         "arrow {() => x} stays",
		"call {fn(x)} stays":            "call {fn(x)} stays",
		"import {import x from 'y'}":    "import {import x from 'y'}",
		`already \{done\}`:              `already \{done\}`,
		"code `{inline}` and {outside}": "code `{inline}` and \\{outside\\}",
		"no braces":                     "no braces",
		"unbalanced { brace":            "unbalanced { brace",
	}
	for in, want := range cases {
		assert.Equal(t, want, EscapeBraces(in), in)
	}
}

func TestEscapeBracesSkipsFences(t *testing.T) {
	body := "before {a}\n```go\nfunc f() {x}\n```\nafter {b}"
	want := "before \\{a\\}\n```go\nfunc f() {x}\n```\nafter \\{b\\}"
	assert.Equal(t, want, EscapeBraces(body))
}

func TestEscapeBracesIdempotent(t *testing.T) {
	body := "one {two} three `{four}` {five(6)}"
	once := EscapeBraces(body)
	assert.Equal(t, once, EscapeBraces(once))
}

func TestCrosspostBody(t *testing.T) {
	post := Post{Slug: "own-the-middle", Body: "intro\n![chart](/images/chart.png)\nmore\n![remote](https://x.test/a.png)"}
	body := CrosspostBody(post, "https://www.saadbelcaid.me/blog/")

	assert.NotContains(t, body, "/images/chart.png")
	assert.Contains(t, body, "https://x.test/a.png")
	assert.True(t, strings.HasSuffix(body, "*Originally published on [saadbelcaid.me](https://www.saadbelcaid.me/blog/own-the-middle)*"))
}
