package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentmachine/internal/content"
	"contentmachine/internal/publish"
)

type fakePublisher struct {
	name string
	err  error
}

func (f fakePublisher) Name() string { return f.name }

func (f fakePublisher) Publish(ctx context.Context, item publish.Item) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://" + f.name + ".example/" + item.Slug, nil
}

func seededStore(t *testing.T) *content.Store {
	t.Helper()
	store := content.NewStore(t.TempDir())
	for _, title := range []string{"Own the Middle", "Liquidity First"} {
		_, err := store.Save(content.Post{Title: title, Slug: content.Slugify(title), Date: "2026-03-07", Body: "Body."})
		require.NoError(t, err)
	}
	return store
}

func TestSelectPosts(t *testing.T) {
	store := seededStore(t)

	all, err := selectPosts(store, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := selectPosts(store, []string{"own-the-middle"})
	require.NoError(t, err)
	assert.Equal(t, "Own the Middle", one[0].Title)

	_, err = selectPosts(store, []string{"missing"})
	assert.ErrorIs(t, err, content.ErrNotFound)

	_, err = selectPosts(content.NewStore(t.TempDir()), nil)
	assert.Error(t, err)
}

func TestCrosspostCountsFailures(t *testing.T) {
	store := seededStore(t)
	posts, err := selectPosts(store, nil)
	require.NoError(t, err)

	d := publish.NewDispatcher(nil, nil,
		fakePublisher{name: publish.DestinationMedium},
		fakePublisher{name: publish.DestinationDevTo, err: errors.New("devto: status 422")})

	var out bytes.Buffer
	err = crosspost(context.Background(), &out, d, "https://example.com/blog", posts, defaultTargets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 4 cross-posts failed")
	assert.Contains(t, out.String(), "https://medium.example/own-the-middle")
}
