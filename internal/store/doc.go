// Package store provides the SQLite-backed implementation of the
// conversation directory's Store interface. It exists so a deployment can
// keep thread continuity across restarts; the in-memory store in package
// directory remains the default.
package store
