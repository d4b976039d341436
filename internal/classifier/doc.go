// Package classifier decides what a discovered URL is.
//
// It answers three questions for the crawler:
//   - Is a path a static asset or a page? (ClassifyPath)
//   - Does a URL belong to the crawled origin? (IsInternal)
//   - What is the canonical origin-relative form of an href? (Normalize)
//
// Every function here is pure: no I/O, no shared state.
package classifier
