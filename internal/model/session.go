package model

import (
	"math/rand/v2"
	"sync"
)

// UserSession is the state owned by one simulated user. Nothing in it is
// shared with other users; the mutex only guards the counters that the
// report builder reads while the user is still running.
type UserSession struct {
	// ID is the 1-based user number.
	ID int

	// Origin is the base origin of the target.
	Origin string

	// Site is the map built by the user's crawl. Nil until the crawl step ran.
	Site *DiscoveredSite

	// Search is the detector result. Zero value until the detect step ran.
	Search SearchInfo

	// Crawled holds one record per crawl fetch.
	Crawled []Page

	// Rand is the user's own random source.
	Rand *rand.Rand

	mu           sync.Mutex
	fingerprints map[string]string
	freshLinks   int
	turns        int
	failures     int
	err          error
}

// NewUserSession creates a session for user id against origin.
func NewUserSession(id int, origin string, rng *rand.Rand) *UserSession {
	return &UserSession{
		ID:           id,
		Origin:       origin,
		Rand:         rng,
		Crawled:      make([]Page, 0),
		fingerprints: make(map[string]string),
	}
}

// Fingerprint returns the last body fingerprint seen for path.
func (s *UserSession) Fingerprint(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.fingerprints[path]
	return fp, ok
}

// SetFingerprint stores the body fingerprint for path.
func (s *UserSession) SetFingerprint(path, fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprints[path] = fp
}

// AddFreshLinks accumulates links found by rediscover turns that were not
// part of the crawled site map.
func (s *UserSession) AddFreshLinks(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshLinks += n
}

// RecordTurn counts an executed turn.
func (s *UserSession) RecordTurn(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns++
	if !success {
		s.failures++
	}
}

// SetError records a fatal error for this user.
func (s *UserSession) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Summary returns a snapshot of the session for reporting.
func (s *UserSession) Summary() UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := UserSummary{
		ID:          s.ID,
		HasSearch:   s.Search.HasSearch,
		SearchPaths: s.Search.SearchPaths,
		CrawlFetch:  len(s.Crawled),
		Turns:       s.turns,
		Failures:    s.failures,
		FreshLinks:  s.freshLinks,
	}
	if s.Site != nil {
		sum.Pages = s.Site.PageCount()
		sum.Assets = s.Site.AssetCount()
	}
	if s.err != nil {
		sum.Error = s.err.Error()
	}
	return sum
}
