// Package webhook handles the messaging provider's two inbound surfaces:
// the one-time verification handshake and ongoing delivery notifications.
//
// Delivery handling follows a never-fail policy: whatever arrives, the
// provider gets a 200 so it does not enter a retry storm. Internally the
// result is classified as processed, ignored, or malformed.
package webhook
