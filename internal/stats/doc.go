// Package stats aggregates request outcomes into per-label load-test
// statistics: throughput, latency percentiles, failure rate and failure
// reasons.
//
// A Collector is the failure-reporting sink shared by all simulated users.
// It is safe for concurrent use.
package stats
