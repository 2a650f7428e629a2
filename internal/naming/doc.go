// Package naming provides case conversion utilities for controller bindings.
//
// This internal package derives the default controller module and function
// names used by the contract package when a contract carries no explicit
// x-controller or x-operation overrides.
//
// As an internal package, these functions are not part of the public API
// and may change without notice.
package naming
