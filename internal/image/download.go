package imagepkg

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/patrickmn/go-cache"
	"github.com/youruser/instagrid/internal/util"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

var ErrUnsupportedURL = errors.New("unsupported image url")

// Loader resolves an image url (data URI or http(s) URL) to decoded pixels.
type Loader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// FetcherOptions tune a Fetcher. Zero values pick the defaults.
type FetcherOptions struct {
	Timeout   time.Duration
	RateLimit rate.Limit
	Burst     int
	CacheTTL  time.Duration
}

// Fetcher is the default Loader. Remote fetches share one rate limiter,
// and decoded images are cached by a digest of their url, so an edited
// image (new url) is never served from a stale entry. Cached images are
// shared and must not be mutated.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Inf
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	return &Fetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		cache:   cache.New(opts.CacheTTL, 2*opts.CacheTTL),
	}
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Load decodes url, consulting the cache first.
func (f *Fetcher) Load(ctx context.Context, url string) (image.Image, error) {
	key := cacheKey(url)
	if v, ok := f.cache.Get(key); ok {
		return v.(image.Image), nil
	}

	b, err := f.bytes(ctx, url)
	if err != nil {
		return nil, err
	}
	img, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ShortURL(url), err)
	}
	f.cache.SetDefault(key, img)
	klog.V(1).Infof("loaded %s (%dx%d)", ShortURL(url), img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

func (f *Fetcher) bytes(ctx context.Context, url string) ([]byte, error) {
	if IsDataURI(url) {
		_, b, err := DecodeDataURI(url)
		return b, err
	}
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, ShortURL(url))
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return util.GetBytes(ctx, f.client, url)
}

// Decode decodes png, jpeg, gif, bmp or tiff bytes, applying any EXIF
// orientation the way browsers do.
func Decode(b []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(true))
}
