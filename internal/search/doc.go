// Package search infers whether a discovered site exposes a search
// endpoint and what shape its requests take.
package search
