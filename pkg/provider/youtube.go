package provider

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	ytdl "github.com/kkdai/youtube/v2"
	"github.com/lrstanley/go-ytdlp"
	"github.com/pkg/errors"
	"github.com/ppalone/ytsearch"
	"golang.org/x/time/rate"

	"github.com/latoulicious/Kitasan/pkg/queue"
)

// videoIDPattern is the 11-character YouTube video ID, used as a last
// resort when a URL defeats structured parsing.
var videoIDPattern = regexp.MustCompile(`[a-zA-Z0-9_-]{11}`)

// YouTubeProvider resolves YouTube videos. Metadata and stream URLs
// come from the innertube client; when that client is blocked the
// provider falls back to yt-dlp. Stream URLs are signed with an expiry,
// so a resolved locator only survives a few hours.
type YouTubeProvider struct {
	client  ytdl.Client
	search  *ytsearch.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewYouTubeProvider creates the provider with a modest rate limit on
// innertube calls.
func NewYouTubeProvider(logger *log.Logger) *YouTubeProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &YouTubeProvider{
		search:  ytsearch.NewClient(nil),
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
		logger:  logger.With("provider", "youtube"),
	}
}

// Name implements Provider.
func (p *YouTubeProvider) Name() string { return "youtube" }

// Supports implements Provider.
func (p *YouTubeProvider) Supports(rawURL string) bool {
	return IsYouTubeURL(rawURL)
}

// IsYouTubeURL checks if a URL appears to be from YouTube.
func IsYouTubeURL(rawURL string) bool {
	return strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be")
}

// ExtractVideoID extracts the video ID from a YouTube URL.
func ExtractVideoID(youtubeURL string) string {
	if strings.Contains(youtubeURL, "youtube.com") {
		parsedURL, err := url.Parse(youtubeURL)
		if err != nil {
			return ""
		}

		if videoID := parsedURL.Query().Get("v"); videoID != "" {
			return videoID
		}

		// Embed URLs like /embed/VIDEO_ID and shorts like /shorts/VIDEO_ID
		for _, prefix := range []string{"/embed/", "/shorts/", "/live/"} {
			if strings.Contains(parsedURL.Path, prefix) {
				rest := strings.SplitN(parsedURL.Path, prefix, 2)[1]
				return strings.SplitN(rest, "/", 2)[0]
			}
		}
	}

	if strings.Contains(youtubeURL, "youtu.be") {
		parsedURL, err := url.Parse(youtubeURL)
		if err != nil {
			return ""
		}
		videoID := strings.TrimPrefix(parsedURL.Path, "/")
		return strings.SplitN(videoID, "/", 2)[0]
	}

	if match := videoIDPattern.FindString(youtubeURL); match != "" {
		return match
	}
	return ""
}

// CanonicalURL rebuilds the stable watch URL for a video ID.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ThumbnailURL generates a thumbnail URL from a video ID.
func ThumbnailURL(videoID string) string {
	if videoID == "" {
		return ""
	}
	return fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", videoID)
}

// Extract implements Provider. Two extractions of the same video at
// different times agree on the canonical URL; only the stream address
// changes between resolutions.
func (p *YouTubeProvider) Extract(ctx context.Context, rawURL string) (*queue.AudioDescriptor, error) {
	videoID := ExtractVideoID(rawURL)
	if videoID == "" {
		return nil, errors.Wrap(ErrExtractionFailed, "no video ID in URL")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	video, err := p.client.GetVideoContext(ctx, videoID)
	if err != nil {
		p.logger.Warn("innertube metadata failed, falling back to yt-dlp", "video_id", videoID, "error", err)
		return p.extractWithYtdlp(ctx, videoID)
	}

	format := "opus"
	if f := pickAudioFormat(video); f != nil {
		format = mimeExtension(f.MimeType)
	}

	return &queue.AudioDescriptor{
		Title:        video.Title,
		Duration:     video.Duration,
		Uploader:     video.Author,
		ThumbnailURL: ThumbnailURL(videoID),
		FileFormat:   format,
		CanonicalURL: CanonicalURL(videoID),
		SourceTag:    p.Name(),
	}, nil
}

// extractWithYtdlp asks yt-dlp for the same metadata when the innertube
// client is blocked or outdated.
func (p *YouTubeProvider) extractWithYtdlp(ctx context.Context, videoID string) (*queue.AudioDescriptor, error) {
	res, err := ytdlp.New().
		Print("%(title)s\t%(uploader)s\t%(duration)s\t%(ext)s").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "--skip-download", CanonicalURL(videoID))
	if err != nil {
		return nil, errors.Wrapf(ErrExtractionFailed, "yt-dlp: %v", err)
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 4 {
			continue
		}
		duration, _ := time.ParseDuration(parts[2] + "s")
		return &queue.AudioDescriptor{
			Title:        parts[0],
			Duration:     duration,
			Uploader:     parts[1],
			ThumbnailURL: ThumbnailURL(videoID),
			FileFormat:   parts[3],
			CanonicalURL: CanonicalURL(videoID),
			SourceTag:    p.Name(),
		}, nil
	}
	return nil, errors.Wrap(ErrExtractionFailed, "yt-dlp printed nothing usable")
}

// ResolveLocator implements Provider. The returned stream URL is
// signed; its expire query parameter becomes the locator deadline.
func (p *YouTubeProvider) ResolveLocator(ctx context.Context, canonicalURL string) (*Locator, error) {
	videoID := ExtractVideoID(canonicalURL)
	if videoID == "" {
		return nil, errors.New("canonical URL carries no video ID")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	video, err := p.client.GetVideoContext(ctx, videoID)
	if err == nil {
		if format := pickAudioFormat(video); format != nil {
			streamURL, streamErr := p.client.GetStreamURLContext(ctx, video, format)
			if streamErr == nil {
				return &Locator{
					URL:       streamURL,
					Format:    mimeExtension(format.MimeType),
					ExpiresAt: streamExpiry(streamURL),
				}, nil
			}
			err = streamErr
		} else {
			err = errors.New("no audio format available")
		}
	}

	p.logger.Warn("innertube resolution failed, falling back to yt-dlp", "video_id", videoID, "error", err)
	return p.resolveWithYtdlp(ctx, videoID)
}

func (p *YouTubeProvider) resolveWithYtdlp(ctx context.Context, videoID string) (*Locator, error) {
	res, err := ytdlp.New().
		Format("bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio").
		Print("%(url)s\t%(ext)s").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "--skip-download", CanonicalURL(videoID))
	if err != nil {
		return nil, errors.Wrap(err, "yt-dlp stream resolution")
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		return &Locator{
			URL:       parts[0],
			Format:    parts[1],
			ExpiresAt: streamExpiry(parts[0]),
		}, nil
	}
	return nil, errors.New("yt-dlp returned no stream URL")
}

// Download implements Provider.
func (p *YouTubeProvider) Download(ctx context.Context, locator *Locator, progress ProgressFunc) (*Artifact, error) {
	return fetchToFile(ctx, locator, "youtube", nil, progress)
}

// Search finds videos for a free-text query and returns their
// canonical URLs, best match first.
func (p *YouTubeProvider) Search(ctx context.Context, query string, limit int) ([]string, error) {
	result, err := p.search.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "youtube search")
	}

	urls := make([]string, 0, limit)
	for _, video := range result.Results {
		if video.VideoID == "" {
			continue
		}
		urls = append(urls, CanonicalURL(video.VideoID))
		if len(urls) >= limit {
			break
		}
	}
	return urls, nil
}

// pickAudioFormat prefers audio-only formats, highest bitrate first.
func pickAudioFormat(video *ytdl.Video) *ytdl.Format {
	formats := video.Formats.WithAudioChannels().Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return nil
	}

	best := &formats[0]
	for i := range formats {
		if formats[i].Bitrate > best.Bitrate {
			best = &formats[i]
		}
	}
	return best
}

// mimeExtension maps a format MIME type to a file extension.
func mimeExtension(mimeType string) string {
	base := strings.SplitN(mimeType, ";", 2)[0]
	switch base {
	case "audio/webm", "video/webm":
		return "webm"
	case "audio/mp4", "video/mp4":
		return "m4a"
	default:
		if idx := strings.Index(base, "/"); idx >= 0 {
			return base[idx+1:]
		}
		return "bin"
	}
}

// streamExpiry pulls the expire query parameter off a signed
// googlevideo URL. A zero time means no advertised deadline.
func streamExpiry(streamURL string) time.Time {
	parsed, err := url.Parse(streamURL)
	if err != nil {
		return time.Time{}
	}
	expire := parsed.Query().Get("expire")
	if expire == "" {
		return time.Time{}
	}
	seconds, err := strconv.ParseInt(expire, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(seconds, 0)
}
