// Package typemap maps schema type references to Go type expressions and
// serialization descriptors.
//
// Mapping is a total function over the closed set of ir.TypeRef variants.
// Named types are declared lazily and memoized per Mapper, so each nested
// struct, enum or alias is mapped once per generation pass no matter how
// many instructions reference it. Unknown primitive names produce an
// *UnknownPrimitiveError, which callers treat as a per-owner skip rather
// than a fatal failure.
package typemap
