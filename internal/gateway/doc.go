// Package gateway assembles the relay's components and serves its HTTP
// surface: the provider webhook (handshake and deliveries), a health
// endpoint, and a service banner. Listeners are plain TCP or a Tailscale
// tsnet node, optionally with Funnel for public HTTPS.
package gateway
