// Package markdown converts assistant output into WhatsApp's limited text
// formatting before delivery.
package markdown
