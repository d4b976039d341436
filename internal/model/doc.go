// Package model defines the data structures shared by the crawler, the
// search detector, the behavior model and the load-generation harness.
//
// This package contains the following main types:
//   - DiscoveredSite: the deduplicated map of pages and static assets a
//     simulated user found while crawling its target
//   - SearchInfo: what the search detector inferred from a DiscoveredSite
//   - Turn: one scheduling decision of the behavior model
//   - Outcome: the result of executing a Turn (or a crawl fetch)
//   - UserSession: the state owned by one simulated user
//   - RunReport: the aggregated result of a load-test run
//
// The models are serializable to JSON for report output and database storage.
package model
