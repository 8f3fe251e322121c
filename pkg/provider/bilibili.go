package provider

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/latoulicious/Kitasan/pkg/queue"
)

const (
	biliViewAPI    = "https://api.bilibili.com/x/web-interface/view"
	biliPlayURLAPI = "https://api.bilibili.com/x/player/playurl"
	biliReferer    = "https://www.bilibili.com"
)

var bvidPattern = regexp.MustCompile(`BV[0-9A-Za-z]{10}`)

// BilibiliProvider resolves Bilibili uploads. A single upload can hold
// many parts ("pages"); the canonical URL carries a p query parameter
// selecting one playable part, and extraction reports that part's
// title and duration rather than the whole container's. Play URLs from
// the CDN are signed with a deadline and expire.
type BilibiliProvider struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewBilibiliProvider creates the provider.
func NewBilibiliProvider(logger *log.Logger) *BilibiliProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &BilibiliProvider{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(300*time.Millisecond), 2),
		logger:     logger.With("provider", "bilibili"),
	}
}

// Name implements Provider.
func (p *BilibiliProvider) Name() string { return "bilibili" }

// Supports implements Provider.
func (p *BilibiliProvider) Supports(rawURL string) bool {
	if !strings.Contains(rawURL, "bilibili.com") && !strings.Contains(rawURL, "b23.tv") {
		return false
	}
	return bvidPattern.MatchString(rawURL) || strings.Contains(rawURL, "b23.tv/")
}

// ExtractBVID pulls the BV identifier out of a Bilibili URL.
func ExtractBVID(rawURL string) string {
	return bvidPattern.FindString(rawURL)
}

// ExtractPart returns the 1-based part selector from a Bilibili URL,
// defaulting to 1.
func ExtractPart(rawURL string) int {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 1
	}
	part, err := strconv.Atoi(parsed.Query().Get("p"))
	if err != nil || part < 1 {
		return 1
	}
	return part
}

// BilibiliCanonicalURL rebuilds the stable video URL, tagging the part
// only when it selects past the first.
func BilibiliCanonicalURL(bvid string, part int) string {
	canonical := "https://www.bilibili.com/video/" + bvid
	if part > 1 {
		canonical += "?p=" + strconv.Itoa(part)
	}
	return canonical
}

type biliPage struct {
	cid      int64
	title    string
	duration time.Duration
}

type biliVideo struct {
	bvid     string
	title    string
	uploader string
	cover    string
	pages    []biliPage
}

func (p *BilibiliProvider) fetchView(ctx context.Context, bvid string) (*biliVideo, error) {
	js, err := p.fetchJSON(ctx, biliViewAPI+"?bvid="+url.QueryEscape(bvid))
	if err != nil {
		return nil, err
	}

	data := js.Get("data")
	video := &biliVideo{
		bvid:     bvid,
		title:    data.Get("title").MustString(),
		uploader: data.Get("owner").Get("name").MustString(),
		cover:    data.Get("pic").MustString(),
	}

	pages := data.Get("pages")
	for i := 0; i < len(pages.MustArray()); i++ {
		page := pages.GetIndex(i)
		video.pages = append(video.pages, biliPage{
			cid:      page.Get("cid").MustInt64(),
			title:    page.Get("part").MustString(),
			duration: time.Duration(page.Get("duration").MustInt()) * time.Second,
		})
	}
	if len(video.pages) == 0 {
		return nil, errors.Wrap(ErrExtractionFailed, "video has no pages")
	}
	return video, nil
}

// selectPage picks the 1-based part, falling back to the first part
// when the selector is out of range instead of failing the extraction.
func (p *BilibiliProvider) selectPage(video *biliVideo, part int) (biliPage, int) {
	if part < 1 || part > len(video.pages) {
		if part != 1 {
			p.logger.Warn("part selector out of range, using first part", "bvid", video.bvid, "part", part, "pages", len(video.pages))
		}
		return video.pages[0], 1
	}
	return video.pages[part-1], part
}

// Extract implements Provider. For multi-part uploads the descriptor
// reflects the selected part: downstream duration checks must apply to
// what will actually be played.
func (p *BilibiliProvider) Extract(ctx context.Context, rawURL string) (*queue.AudioDescriptor, error) {
	bvid := ExtractBVID(rawURL)
	if bvid == "" {
		return nil, errors.Wrap(ErrExtractionFailed, "no BV identifier in URL")
	}

	video, err := p.fetchView(ctx, bvid)
	if err != nil {
		return nil, err
	}

	page, part := p.selectPage(video, ExtractPart(rawURL))

	title := video.title
	segment := 0
	if len(video.pages) > 1 {
		title = video.title + " · " + page.title
		segment = part
	}

	return &queue.AudioDescriptor{
		Title:        title,
		Duration:     page.duration,
		Uploader:     video.uploader,
		ThumbnailURL: video.cover,
		FileFormat:   "m4a",
		CanonicalURL: BilibiliCanonicalURL(bvid, part),
		SourceTag:    p.Name(),
		SegmentIndex: segment,
	}, nil
}

// ResolveLocator implements Provider. The canonical URL is re-derived
// into the part's cid, then exchanged for a fresh signed play URL.
func (p *BilibiliProvider) ResolveLocator(ctx context.Context, canonicalURL string) (*Locator, error) {
	bvid := ExtractBVID(canonicalURL)
	if bvid == "" {
		return nil, errors.New("canonical URL carries no BV identifier")
	}

	video, err := p.fetchView(ctx, bvid)
	if err != nil {
		return nil, err
	}
	page, _ := p.selectPage(video, ExtractPart(canonicalURL))

	query := url.Values{}
	query.Set("bvid", bvid)
	query.Set("cid", strconv.FormatInt(page.cid, 10))
	query.Set("fnval", "16")

	js, err := p.fetchJSON(ctx, biliPlayURLAPI+"?"+query.Encode())
	if err != nil {
		return nil, err
	}

	streamURL := firstBiliStreamURL(js)
	if streamURL == "" {
		return nil, errors.New("playurl response carries no stream")
	}

	return &Locator{
		URL:       streamURL,
		Format:    "m4a",
		ExpiresAt: biliDeadline(streamURL),
	}, nil
}

// Download implements Provider. The CDN rejects requests without a
// bilibili Referer.
func (p *BilibiliProvider) Download(ctx context.Context, locator *Locator, progress ProgressFunc) (*Artifact, error) {
	return fetchToFile(ctx, locator, "bilibili", map[string]string{"Referer": biliReferer}, progress)
}

func (p *BilibiliProvider) fetchJSON(ctx context.Context, requestURL string) (*simplejson.Json, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build API request")
	}
	req.Header.Set("Referer", biliReferer)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "bilibili API request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: requestURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read API response")
	}

	js, err := simplejson.NewJson(body)
	if err != nil {
		return nil, errors.Wrap(err, "parse API response")
	}
	if code := js.Get("code").MustInt(); code != 0 {
		return nil, errors.Errorf("bilibili API error %d: %s", code, js.Get("message").MustString())
	}
	return js, nil
}

// firstBiliStreamURL prefers the DASH audio stream, falling back to the
// muxed durl form older endpoints return.
func firstBiliStreamURL(js *simplejson.Json) string {
	audio := js.Get("data").Get("dash").Get("audio")
	if len(audio.MustArray()) > 0 {
		if streamURL := audio.GetIndex(0).Get("baseUrl").MustString(); streamURL != "" {
			return streamURL
		}
		return audio.GetIndex(0).Get("base_url").MustString()
	}

	durl := js.Get("data").Get("durl")
	if len(durl.MustArray()) > 0 {
		return durl.GetIndex(0).Get("url").MustString()
	}
	return ""
}

// biliDeadline reads the CDN deadline query parameter off a signed play
// URL.
func biliDeadline(streamURL string) time.Time {
	parsed, err := url.Parse(streamURL)
	if err != nil {
		return time.Time{}
	}
	deadline := parsed.Query().Get("deadline")
	if deadline == "" {
		return time.Time{}
	}
	seconds, err := strconv.ParseInt(deadline, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(seconds, 0)
}
