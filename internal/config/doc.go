// Package config handles configuration loading for courier-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion, then a fixed set of environment variables override the file.
// Unset fields get defaults and the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COURIER_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/courier/gateway.yaml
//  3. ~/.config/courier/gateway.yaml
//
// A missing file is not an error for "serve": defaults plus environment
// overrides are enough to run against the default downstream.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	session:
//	  secret: "${COURIER_SESSION_SECRET}"
//
// # Environment Overrides
//
//	BACKEND_API_URL          downstream.url
//	COURIER_HTTP_ADDR        server.http_addr
//	COURIER_SESSION_SECRET   session.secret
//	COURIER_DB_PATH          database.path
//	COURIER_LOG_LEVEL        logging.level
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//
//	downstream:
//	  url: "https://agent.example.com/langgraph/ask"
//	  timeout: "30s"
//
//	session:
//	  strategy: "jwt"            # jwt | database | none
//	  secret: "${COURIER_SESSION_SECRET}"
//	  cookie_name: "courier.session-token"
//	  ttl: "720h"                # lifetime of sessions minted by mint-session
//
//	database:
//	  path: "~/.local/share/courier/sessions.db"
//
//	tailscale:
//	  enabled: false
//	  hostname: "courier"
//	  https: false
//	  funnel: false
//
//	logging:
//	  level: "info"              # debug | info | warn | error
//	  format: "text"             # text | json
//
//	telemetry:
//	  enabled: false
//	  endpoint: "http://localhost:4318"
package config
