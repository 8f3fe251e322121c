package provider

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/latoulicious/Kitasan/pkg/queue"
)

var audioExtensions = map[string]string{
	".mp3":  "mp3",
	".ogg":  "ogg",
	".oga":  "ogg",
	".opus": "opus",
	".m4a":  "m4a",
	".aac":  "aac",
	".flac": "flac",
	".wav":  "wav",
}

// StreamProvider handles direct audio URLs and net radio mounts. There
// is no separate identity here: the canonical URL is the locator, and
// it never expires.
type StreamProvider struct {
	httpClient *http.Client
	logger     *log.Logger
}

// NewStreamProvider creates the provider.
func NewStreamProvider(logger *log.Logger) *StreamProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &StreamProvider{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With("provider", "stream"),
	}
}

// Name implements Provider.
func (p *StreamProvider) Name() string { return "stream" }

// Supports implements Provider. Claims plain http(s) URLs whose path
// names an audio file. Registered last so the platform providers get
// first claim on their own hosts.
func (p *StreamProvider) Supports(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	_, ok := audioExtensions[strings.ToLower(path.Ext(parsed.Path))]
	return ok
}

// Extract implements Provider. A HEAD request confirms the source
// answers; duration stays unknown since raw streams carry no metadata.
func (p *StreamProvider) Extract(ctx context.Context, rawURL string) (*queue.AudioDescriptor, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(ErrExtractionFailed, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(ErrExtractionFailed, err.Error())
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrExtractionFailed, "probe: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, errors.Wrapf(ErrExtractionFailed, "probe status %d", resp.StatusCode)
	}

	name := path.Base(parsed.Path)
	ext := strings.ToLower(path.Ext(name))

	return &queue.AudioDescriptor{
		Title:        strings.TrimSuffix(name, ext),
		Uploader:     parsed.Host,
		FileFormat:   audioExtensions[ext],
		CanonicalURL: rawURL,
		SourceTag:    p.Name(),
	}, nil
}

// ResolveLocator implements Provider. Identity and locator coincide.
func (p *StreamProvider) ResolveLocator(_ context.Context, canonicalURL string) (*Locator, error) {
	parsed, err := url.Parse(canonicalURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse canonical URL")
	}
	return &Locator{
		URL:    canonicalURL,
		Format: audioExtensions[strings.ToLower(path.Ext(parsed.Path))],
	}, nil
}

// Download implements Provider.
func (p *StreamProvider) Download(ctx context.Context, locator *Locator, progress ProgressFunc) (*Artifact, error) {
	return fetchToFile(ctx, locator, "stream", nil, progress)
}
