// Package directory owns the process-wide mapping from chat participants to
// provider conversation threads. The directory is the only shared mutable
// state in the gateway; everything else is scoped to a single webhook
// delivery.
package directory
