// Package testmodel holds the recorded UI test and execution report shapes
// that the storage layer persists, plus the reader, writer and reporter
// contracts a host test runner plugs storage into.
//
// Tests and reports are filed under an owner: a named grouping such as a
// device profile, tenant or suite. Callers attach the owner to the context
// with WithOwner; adapters read it back with OwnerFromContext.
package testmodel
