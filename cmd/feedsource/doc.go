// Package main (cmd/feedsource) resolves the sources of a feed configuration.
//
// Commands:
//
//   - resolve --source NAME: builds the storage handle of NAME and prints its
//     absolute path, base URI and, for object stores, the credential strategy
//   - sources: lists the configured source names
//   - serve: runs the inspection API (see package httpserver)
//
// The configuration is read from --config (or SLEET_CONFIG), defaulting to
// the nearest sleet.json above the working directory.
//
// Example usage:
//
//	feedsource --config ./sleet.json resolve --source feed
//	feedsource --log-debug serve --listen-addr 127.0.0.1:8080
package main
