// Package relay contains the message orchestrator. It is the only component
// that touches all three collaborators: the conversation directory, the
// assistant provider, and the outbound chat client.
package relay
