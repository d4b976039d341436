// Package pipeline runs simulated users.
//
// Each user executes a Pipeline of steps over its own model.UserSession:
// crawl the target, detect its search endpoint, then browse by repeatedly
// drawing turns from the behavior model. The steps run strictly in order,
// so a user never browses before its crawl finished.
//
// A Swarm starts many users at a bounded spawn rate, runs them
// concurrently with errgroup, and assembles the run report from the
// shared stats collector and the per-user sessions.
package pipeline
