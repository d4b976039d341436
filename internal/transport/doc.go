// Package transport builds the HTTP clients simulated users issue their
// requests through.
//
// Every client enforces a connect timeout on dialing and a read timeout on
// waiting for response headers, with an overall request deadline covering
// both. Requests can optionally be routed through a SOCKS5 proxy, either
// one given by address or the one of an embedded Tor daemon, so that onion
// services can be load tested too. Configured headers and cookies are
// injected into every request, including redirects.
package transport
