// Package ir provides the in-memory Schema Model for program interface documents.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Type references, type bodies and seed components are closed variants
//     (sealed interfaces); consumers switch exhaustively over them
//   - Declared order is preserved everywhere (types, instructions, args,
//     accounts, seeds); nothing is sorted by name
//   - A Program is built fresh from a document on every pass and is treated
//     as immutable once validated
//   - Canonical JSON and domain-separated digests identify documents
package ir
