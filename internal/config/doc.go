// Package config handles configuration loading for travelmind-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension) on
// top of Default(), with environment variable expansion, a small set of
// environment overrides, and validation.
//
// # Configuration File
//
// DefaultPath resolves, in order:
//
//  1. Path from TRAVELMIND_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/travelmind/gateway.yaml
//  3. ~/.config/travelmind/gateway.yaml
//
// LoadOrDefault runs on Default() when the file does not exist.
//
// # Environment Variables
//
// Values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${TRAVELMIND_JWT_SECRET}"
//
// These variables override the file when set and non-empty:
//
//	PROJECT_ID            agent.vertex.project
//	LOCATION              agent.vertex.location
//	DATA_STORE_ID         agent.vertex.data_store
//	TRAVELMIND_DB_PATH    database.path
//	TRAVELMIND_DB_URL     database.url
//	PORT                  server.http_addr as 0.0.0.0:$PORT
//	TRAVELMIND_HTTP_ADDR  server.http_addr
//	API_URL               web.api_url
//
// # Sections
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//
//	database:
//	  driver: "sqlite"        # sqlite, postgres, firestore, memory
//	  path: "./travelmind.db"
//
//	idempotency:
//	  ttl: "10m"
//	  max_entries: 10000
//
//	agent:
//	  backend: "vertex"       # vertex, ark, remote, echo
//	  timeout: "60s"
//	  vertex:
//	    project: "${PROJECT_ID}"
//	    location: "us-central1"
//	    data_store: "${DATA_STORE_ID}"
//	    model: "gemini-2.5-pro"
//
//	logging:
//	  level: "info"           # debug, info, warn, error
//	  format: "text"          # text, json
//
// Durations use time.ParseDuration syntax.
package config
