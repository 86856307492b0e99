// Package emit renders one Go client package per validated program
// interface.
//
// A generated package holds, in order: the program address, error code
// constants, type declarations with Borsh encoders, instruction
// discriminators, derived-address functions and one constructor per
// instruction. Instructions are processed in declared order and output is
// gofmt'ed, so identical documents produce byte-identical packages.
//
// An instruction whose argument or account types cannot be mapped is
// skipped with a warning; the rest of the package is still generated.
// Anything else that cannot be rendered from a validated document is an
// internal consistency error and fails the whole package.
package emit
