//go:build integration

// Package integration provides end-to-end tests for the strm library.
//
// These tests drive large archives through build, save, open, edit, and
// extract using only the public API.
// Run with: go test -tags=integration ./integration/...
package integration
