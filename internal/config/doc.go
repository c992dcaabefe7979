// Package config loads the server configuration.
//
// Configuration is merged from layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command line flags      │  ← Highest priority
//	├─────────────────────────────┤
//	│  3. Environment (QUILL_*)   │
//	├─────────────────────────────┤
//	│  2. Config file (toml/yaml) │
//	├─────────────────────────────┤
//	│  1. Built-in defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Environment variables follow QUILL_<SECTION>_<KEY>, so QUILL_HOST_COMMAND
// sets host.command and QUILL_HIGHLIGHT_DELAY sets highlight.delay.
// Durations are written as strings like "150ms".
//
// # Basic Usage
//
//	cfg, err := config.Load(config.Options{Path: "quill.toml"})
//	if err != nil {
//	    return err
//	}
//	srv := server.New(ed, server.WithPath(cfg.Server.Path))
package config
