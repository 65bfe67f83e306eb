// Package stores persists recorded UI tests and execution reports in an
// embedded SQLite database.
//
// Three tables back the store: owners (named groupings), tests (one JSON
// payload per test name and owner, overwritten in place with a bumped
// version) and reports (append-only execution records). Schema is managed
// with golang-migrate from templated, embedded migrations so that table
// names can be overridden per store.
//
// SQLiteStore exposes typed operations that take the owner explicitly and
// return errors. Adapter wraps a store in the best-effort reader, writer
// and reporter contracts of package testmodel, which log failures and
// degrade to an empty list or false.
package stores
