package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pdfsigner/internal/flagx"
	"github.com/dmitrijs2005/pdfsigner/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Zero values
// leave the corresponding Config field untouched.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	ViewWidth      float64        `json:"view_width"`
	ViewHeight     float64        `json:"view_height"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config, args []string) {
	jsonConfigFile := flagx.ConfigFileFlag(args)
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.ViewWidth > 0 {
		cfg.ViewWidth = jc.ViewWidth
	}
	if jc.ViewHeight > 0 {
		cfg.ViewHeight = jc.ViewHeight
	}
}
