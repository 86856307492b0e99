//go:build !unix

package manifest

// fsyncDir is a no-op where directories cannot be opened for syncing.
func fsyncDir(string) error { return nil }
