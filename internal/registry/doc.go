// Package registry provides the sources interface documents are fetched
// from.
//
// Client talks to the program registry over HTTP. Dir reads documents laid
// out on disk as <root>/<network>/<name>/<version>.json, and Memory holds
// them in a map for tests and scenarios. All three resolve the version
// "latest" themselves and report a missing program or version as
// ErrNotFound.
package registry
