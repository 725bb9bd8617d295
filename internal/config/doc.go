// Package config handles configuration loading for relay-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. When no file exists, the flat environment variables used by
// container deployments (ACCESS_TOKEN, PHONE_NUMBER_ID, OPENAI_API_KEY,
// OPENAI_ASSISTANT_ID, ...) are read directly.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	whatsapp:
//	  access_token: "${ACCESS_TOKEN}"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: ":8000"
//
// WhatsApp Business credentials:
//
//	whatsapp:
//	  access_token: "${ACCESS_TOKEN}"      # required
//	  phone_number_id: "${PHONE_NUMBER_ID}" # required
//	  verify_token: "shared-secret"         # handshake secret, default "12345"
//
// Assistant provider:
//
//	assistant:
//	  api_key: "${OPENAI_API_KEY}"          # required
//	  assistant_id: "${OPENAI_ASSISTANT_ID}" # required
//	  poll_interval: "1s"
//	  poll_attempts: 10
//
// Conversation directory:
//
//	directory:
//	  backend: "memory"   # memory or sqlite
//	  path: "relay.db"    # sqlite only
//	  max_entries: 0      # 0 = unbounded (memory only)
//	  ttl: "0s"           # 0 = entries never expire (memory only)
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "relay-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  funnel: true        # public HTTPS for the webhook endpoint
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() aborts unless all four required credentials are present, and
// checks directory backend and tailscale settings for consistency.
package config
