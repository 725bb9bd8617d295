// Package assistant wraps the hosted conversational-AI provider's REST API.
//
// A conversation lives in a provider-side thread. Each user message is
// appended to the thread, then a run is started and polled until it reaches
// a terminal status. The poll loop uses a fixed interval and a fixed attempt
// budget; runs that outlive the budget are dropped without a reply.
package assistant
