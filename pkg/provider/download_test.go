package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchToFile(t *testing.T) {
	payload := []byte("fake audio payload")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.com/", r.Header.Get("Referer"))
		w.Write(payload)
	}))
	defer server.Close()

	locator := &Locator{URL: server.URL, Format: "mp3"}
	headers := map[string]string{"Referer": "https://example.com/"}

	var lastWritten int64
	artifact, err := fetchToFile(context.Background(), locator, "test", headers, func(written, total int64) {
		lastWritten = written
	})
	require.NoError(t, err)
	defer os.Remove(artifact.Path)

	assert.Equal(t, int64(len(payload)), artifact.Size)
	assert.Equal(t, int64(len(payload)), lastWritten)
	assert.Equal(t, "mp3", artifact.Format)

	data, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFetchToFileForbiddenIsExpirySignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := fetchToFile(context.Background(), &Locator{URL: server.URL}, "test", nil, nil)
	require.Error(t, err)
	assert.True(t, IsExpirySignal(err))
}

func TestFetchToFileRejectsExpiredLocator(t *testing.T) {
	locator := &Locator{
		URL:       "http://unreachable.invalid/",
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	_, err := fetchToFile(context.Background(), locator, "test", nil, nil)
	assert.True(t, IsExpirySignal(err))
}
