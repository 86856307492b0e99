// Package manifest reads and writes the dependency manifest.
//
// The manifest records which program interfaces a project depends on, in
// two groups: regular dependencies ("programs") and development-only ones
// ("devPrograms"). Each record pins a version, a program address, a network
// and optionally where the cached interface document lives.
//
// Every mutation goes through Store, which takes an advisory lock, loads
// the current document, applies the change and rewrites the whole file
// atomically. Readers therefore observe either the old or the new manifest,
// never a partial write.
package manifest
