// Package config holds the settings of the command-line client. Values come
// from defaults, then an optional JSON/JSONC file (-c), then flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/dmitrijs2005/buildingkeeper/internal/flagx"
	"github.com/dmitrijs2005/buildingkeeper/internal/timex"
)

// Config holds runtime settings for the BuildingKeeper client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the gRPC token service.
//   - HTTPBaseURL: base URL of the HTTP API, used for building uploads.
//   - SessionDB: path of the SQLite file that keeps the current session.
//   - RequestTimeout: deadline applied to every RPC.
type Config struct {
	ServerEndpointAddr string
	HTTPBaseURL        string
	SessionDB          string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.HTTPBaseURL = "http://127.0.0.1:8080"
	c.SessionDB = "session.db"
	c.RequestTimeout = 5 * time.Second
}

type fileConfig struct {
	ServerEndpointAddr *string         `json:"server_endpoint_addr"`
	HTTPBaseURL        *string         `json:"http_base_url"`
	SessionDB          *string         `json:"session_db"`
	RequestTimeout     *timex.Duration `json:"request_timeout"`
}

func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *fc.ServerEndpointAddr
	}
	if fc.HTTPBaseURL != nil {
		cfg.HTTPBaseURL = *fc.HTTPBaseURL
	}
	if fc.SessionDB != nil {
		cfg.SessionDB = *fc.SessionDB
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	return nil
}

func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "--address", "-u", "--http-url", "-d", "--session-db", "-t", "--timeout"})

	fs := pflag.NewFlagSet("client", pflag.ContinueOnError)
	fs.StringVarP(&cfg.ServerEndpointAddr, "address", "a", cfg.ServerEndpointAddr, "address and port of the token service")
	fs.StringVarP(&cfg.HTTPBaseURL, "http-url", "u", cfg.HTTPBaseURL, "base URL of the HTTP API")
	fs.StringVarP(&cfg.SessionDB, "session-db", "d", cfg.SessionDB, "path to the session database")
	fs.DurationVarP(&cfg.RequestTimeout, "timeout", "t", cfg.RequestTimeout, "per-request timeout")

	return fs.Parse(args)
}

// LoadConfig builds a Config from defaults, the optional file named by -c and
// the flags in args. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if configFile, _ := flagx.FilePaths(args); configFile != "" {
		if err := parseFile(cfg, configFile); err != nil {
			return nil, err
		}
	}

	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	return cfg, nil
}
