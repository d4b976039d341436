// Package probe performs a single preflight request against a target before
// a run starts.
//
// The probe reports whether the seed page answers, how long it took, the
// Server banner and, for HTTPS targets, the negotiated TLS version and the
// leaf certificate. It never fails a run on its own; callers decide what to
// do with an unreachable or misconfigured target.
package probe
