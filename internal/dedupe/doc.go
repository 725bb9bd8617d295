// Package dedupe provides a time-bounded seen-cache used to drop webhook
// deliveries the messaging provider re-posts after a slow acknowledgment.
package dedupe
