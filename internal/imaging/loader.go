package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sync"
)

// Cache keeps decoded page images so that repeated tool calls on the same
// document do not re-read it from disk.
//
// Entries are keyed by the cleaned absolute path, so "./page.png" and
// "/work/page.png" share one entry. The cache lives in the server only; the
// layout pipeline itself never holds on to an image between calls.
//
// Cache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewCache()
//	page, err := cache.Load("scan-001.png")
//	if err != nil {
//	    return err
//	}
//	result := pipeline.Analyze(ctx, page.Image)
type Cache struct {
	mu    sync.RWMutex
	pages map[string]*Page
}

// Page is a decoded document image together with what was learned while
// loading it.
type Page struct {
	Path   string
	Format string
	Image  image.Image
	Size   int64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		pages: make(map[string]*Page),
	}
}

func cacheKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Load returns the page at path, decoding it on first use.
//
// Supported formats are PNG, JPEG and GIF. The format is taken from the file
// contents, not its extension.
//
// # Errors
//
//   - the file does not exist or cannot be read
//   - the contents are not a supported image
//   - the image has zero width or height
func (c *Cache) Load(path string) (*Page, error) {
	key := cacheKey(path)

	c.mu.RLock()
	if p, ok := c.pages[key]; ok {
		c.mu.RUnlock()
		return p, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("image %s has no pixels", path)
	}

	p := &Page{Path: key, Format: format, Image: img, Size: stat.Size()}

	c.mu.Lock()
	// Another goroutine may have won the race; keep the first entry.
	if existing, ok := c.pages[key]; ok {
		p = existing
	} else {
		c.pages[key] = p
	}
	c.mu.Unlock()

	return p, nil
}

// Len reports how many pages are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// Clear drops every cached page and reports how many there were.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.pages)
	c.pages = make(map[string]*Page)
	return n
}

// Evict drops the page loaded from path and reports whether it was cached.
func (c *Cache) Evict(path string) bool {
	key := cacheKey(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pages[key]
	delete(c.pages, key)
	return ok
}

// PageInfo is the metadata reported by the image_load tool.
type PageInfo struct {
	// Path is the absolute path the page is cached under.
	Path string `json:"path"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder that read the file: "png", "jpeg" or "gif".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the decoded image carries an alpha channel.
	// The layout pipeline ignores alpha.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadPageInfo loads path through the cache and describes it.
//
// Color depth is derived from the decoded Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - all other types -> "8-bit"
func LoadPageInfo(cache *Cache, path string) (*PageInfo, error) {
	p, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	hasAlpha := false
	colorDepth := "8-bit"
	switch p.Image.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	b := p.Image.Bounds()
	return &PageInfo{
		Path:          p.Path,
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        p.Format,
		ColorDepth:    colorDepth,
		HasAlpha:      hasAlpha,
		FileSizeBytes: p.Size,
	}, nil
}

// Dimensions is the lightweight width/height answer.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns only the size of the page at path.
func GetDimensions(cache *Cache, path string) (*Dimensions, error) {
	p, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	b := p.Image.Bounds()
	return &Dimensions{Width: b.Dx(), Height: b.Dy()}, nil
}
