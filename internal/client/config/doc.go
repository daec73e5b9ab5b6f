// Package config loads runtime configuration for the pdfsigner CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via flags: -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-s string   base URL of the signing server
//	-t int      request timeout (seconds)
//
// # JSON schema
//
// Durations may be strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://localhost:5000",
//	  "request_timeout": "30s",
//	  "view_width": 800,
//	  "view_height": 1035
//	}
//
// ViewWidth and ViewHeight describe the rendered page the user measures
// pixel positions against when placing a signature.
package config
