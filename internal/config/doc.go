// Package config handles configuration loading for the storage agent and the
// crawl coordinator.
//
// # Overview
//
// One file format serves both binaries: the agent reads the server section,
// the coordinator reads the crawl section. Both read logging. Values from
// the file are overridden by command-line flags in cmd/.
//
// YAML and TOML are both accepted; the format is picked from the file
// extension (.toml for TOML, anything else is parsed as YAML).
//
// # Environment Variable Expansion
//
//	crawl:
//	  agents: ["${AGENT_A}", "${AGENT_B}"]
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Agent server:
//
//	server:
//	  listen: "0.0.0.0"
//	  port: 9999
//	  max_connections: 50       # worker pool size and admission queue bound
//	  backlog: 50
//	  replace_path:
//	    remote: "/mnt/share"    # prefix used by coordinators
//	    local: "/ifs/data"      # where it lives on this agent
//	  report_skipped: false     # emit "name*" lines for symlinks etc.
//	  read_timeout: "10s"
//	  write_timeout: "30s"
//
// Coordinator:
//
//	crawl:
//	  agents: ["10.0.0.5", "10.0.0.6"]
//	  port: 9999
//	  workers: 8
//	  root: "/mnt/share"
//	  strategy: "random"        # random, round_robin
//	  request_timeout: "30s"
//	  dedupe: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
//	cfg, err := config.Load("/etc/storage-agent/agent.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Server.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
