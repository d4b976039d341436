package model

import (
	"encoding/json"
	"sync"
)

// SeedPath is the path every crawl starts from.
const SeedPath = "/"

// DiscoveredSite is the map of a target site built by one crawl.
//
// Pages and assets are disjoint sets of origin-relative paths (path plus
// optional query string, never a scheme, host or fragment). Insertion order
// is preserved so that uniform draws by index are reproducible under a
// seeded random source.
//
// A DiscoveredSite is mutable only until Seal is called. The crawler seals
// the site when traversal ends; every Add* call after that is rejected.
type DiscoveredSite struct {
	// Origin is the scheme and host (plus port) of the crawled site,
	// e.g. "https://docs.example.com".
	Origin string

	mu       sync.RWMutex
	pages    []string
	pageSet  map[string]struct{}
	assets   []string
	assetSet map[string]struct{}
	sealed   bool
}

// NewDiscoveredSite creates an empty site map for the given origin.
func NewDiscoveredSite(origin string) *DiscoveredSite {
	return &DiscoveredSite{
		Origin:   origin,
		pages:    make([]string, 0),
		pageSet:  make(map[string]struct{}),
		assets:   make([]string, 0),
		assetSet: make(map[string]struct{}),
	}
}

// SeedOnlySite returns a sealed site map containing only the seed path.
// It is the fallback used when a crawl discovered nothing at all.
func SeedOnlySite(origin string) *DiscoveredSite {
	s := NewDiscoveredSite(origin)
	s.AddPage(SeedPath)
	s.Seal()
	return s
}

// AddPage records path as a page. It returns false if the site is sealed,
// or the path is already known as either a page or an asset.
func (s *DiscoveredSite) AddPage(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return false
	}
	if _, ok := s.pageSet[path]; ok {
		return false
	}
	if _, ok := s.assetSet[path]; ok {
		return false
	}
	s.pageSet[path] = struct{}{}
	s.pages = append(s.pages, path)
	return true
}

// AddAsset records path as a static asset. It returns false if the site is
// sealed, or the path is already known as either a page or an asset.
// A path first discovered as a page is never demoted to an asset.
func (s *DiscoveredSite) AddAsset(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return false
	}
	if _, ok := s.assetSet[path]; ok {
		return false
	}
	if _, ok := s.pageSet[path]; ok {
		return false
	}
	s.assetSet[path] = struct{}{}
	s.assets = append(s.assets, path)
	return true
}

// Seal freezes the site map.
func (s *DiscoveredSite) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
}

// Sealed reports whether Seal has been called.
func (s *DiscoveredSite) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// HasPage reports whether path is a known page.
func (s *DiscoveredSite) HasPage(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pageSet[path]
	return ok
}

// HasAsset reports whether path is a known static asset.
func (s *DiscoveredSite) HasAsset(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.assetSet[path]
	return ok
}

// Knows reports whether path is known as either a page or an asset.
func (s *DiscoveredSite) Knows(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.pageSet[path]; ok {
		return true
	}
	_, ok := s.assetSet[path]
	return ok
}

// PageCount returns the number of pages.
func (s *DiscoveredSite) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// AssetCount returns the number of static assets.
func (s *DiscoveredSite) AssetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}

// PageAt returns the i-th page in discovery order.
func (s *DiscoveredSite) PageAt(i int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages[i]
}

// AssetAt returns the i-th asset in discovery order.
func (s *DiscoveredSite) AssetAt(i int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assets[i]
}

// Pages returns a copy of all pages in discovery order.
func (s *DiscoveredSite) Pages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.pages))
	copy(out, s.pages)
	return out
}

// Assets returns a copy of all assets in discovery order.
func (s *DiscoveredSite) Assets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.assets))
	copy(out, s.assets)
	return out
}

// siteJSON is the wire form of DiscoveredSite.
type siteJSON struct {
	Origin string   `json:"origin"`
	Pages  []string `json:"pages"`
	Assets []string `json:"assets"`
}

// MarshalJSON implements json.Marshaler.
func (s *DiscoveredSite) MarshalJSON() ([]byte, error) {
	return json.Marshal(siteJSON{
		Origin: s.Origin,
		Pages:  s.Pages(),
		Assets: s.Assets(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The decoded site is sealed.
func (s *DiscoveredSite) UnmarshalJSON(data []byte) error {
	var raw siteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded := NewDiscoveredSite(raw.Origin)
	for _, p := range raw.Pages {
		decoded.AddPage(p)
	}
	for _, a := range raw.Assets {
		decoded.AddAsset(a)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Origin = decoded.Origin
	s.pages = decoded.pages
	s.pageSet = decoded.pageSet
	s.assets = decoded.assets
	s.assetSet = decoded.assetSet
	s.sealed = true
	return nil
}
