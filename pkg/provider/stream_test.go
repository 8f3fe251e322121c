package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamProviderSupports(t *testing.T) {
	p := NewStreamProvider(nil)

	assert.True(t, p.Supports("https://radio.example/live.mp3"))
	assert.True(t, p.Supports("http://mirror.example/album/track.opus"))
	assert.True(t, p.Supports("https://files.example/a.FLAC"))
	assert.False(t, p.Supports("https://www.youtube.com/watch?v=abc"))
	assert.False(t, p.Supports("https://example.com/page.html"))
	assert.False(t, p.Supports("ftp://example.com/track.mp3"))
}

func TestStreamProviderLocatorIsCanonical(t *testing.T) {
	p := NewStreamProvider(nil)

	canonical := "https://radio.example/live.mp3"
	locator, err := p.ResolveLocator(context.Background(), canonical)
	require.NoError(t, err)
	assert.Equal(t, canonical, locator.URL)
	assert.Equal(t, "mp3", locator.Format)
	assert.True(t, locator.ExpiresAt.IsZero())
}
