// Package crawler discovers the structure of a target site.
//
// A Spider walks the site breadth-first from the seed path, bounded by a
// page budget and a queue capacity, and produces a model.DiscoveredSite:
// the set of internal pages and the disjoint set of static assets.
//
// # Components
//
//   - Frontier: visited set plus bounded FIFO queue
//   - Spider: fetch loop, link classification and soft failure handling
//   - Parser: HTML parser that extracts anchors, resource references and forms
//
// # Failures
//
// Network errors, non-2xx statuses, non-HTML bodies and malformed HTML are
// soft failures. They are logged at debug level and reported to the
// Recorder under the "crawler" label; traversal continues with the next
// queued path. Only an unparseable origin or a cancelled context is
// returned as an error.
//
// # Usage
//
//	spider := crawler.NewSpider(httpClient, crawler.WithMaxPages(50))
//	site, pages, err := spider.Crawl(ctx, "https://docs.example.com")
package crawler
