// Package main provides the entry point for the webswarm CLI.
//
// webswarm is a load generator that behaves like a crowd of real visitors.
// Every simulated user first crawls the target site, looks for a search
// feature, and then browses it with a weighted mix of page views, asset
// fetches, searches and re-crawls.
//
// Usage:
//
//	webswarm run https://shop.example.com --users 50 --duration 5m
//	webswarm crawl https://shop.example.com
//	webswarm history https://shop.example.com --compare
//
// See --help for all available options.
package main

func main() {
	Execute()
}
