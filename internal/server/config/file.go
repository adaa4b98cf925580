package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/buildingkeeper/internal/timex"
)

// fileConfig is the on-disk shape of the configuration. It is seeded from the
// current Config before decoding, so keys absent from the file keep their
// previous values. Durations use timex.Duration to accept "15m" or nanoseconds.
type fileConfig struct {
	HTTPAddr    string `json:"http_addr" yaml:"http_addr"`
	GRPCAddr    string `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	SecretKey         string `json:"secret_key" yaml:"secret_key"`
	JWTAlgorithm      string `json:"jwt_algorithm" yaml:"jwt_algorithm"`
	JWTPrivateKey     string `json:"jwt_private_key" yaml:"jwt_private_key"`
	JWTPublicKey      string `json:"jwt_public_key" yaml:"jwt_public_key"`
	JWTPrivateKeyFile string `json:"jwt_private_key_file" yaml:"jwt_private_key_file"`
	JWTPublicKeyFile  string `json:"jwt_public_key_file" yaml:"jwt_public_key_file"`

	AccessTokenTTL  timex.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshTokenTTL timex.Duration `json:"refresh_token_ttl" yaml:"refresh_token_ttl"`

	RefreshCookieName     string `json:"refresh_cookie_name" yaml:"refresh_cookie_name"`
	RefreshCookiePath     string `json:"refresh_cookie_path" yaml:"refresh_cookie_path"`
	RefreshCookieSecure   bool   `json:"refresh_cookie_secure" yaml:"refresh_cookie_secure"`
	RefreshCookieSameSite string `json:"refresh_cookie_samesite" yaml:"refresh_cookie_samesite"`

	S3RootUser     string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`

	ShutdownTimeout timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// parseFile overlays the config file at path onto config. The format is
// picked by extension: .json and .jsonc (comments and trailing commas
// allowed), .yaml and .yml.
func parseFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := toFile(config)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fromFile(config, fc)
	return nil
}

func toFile(c *Config) *fileConfig {
	return &fileConfig{
		HTTPAddr:              c.HTTPAddr,
		GRPCAddr:              c.GRPCAddr,
		DatabaseDSN:           c.DatabaseDSN,
		LogLevel:              c.LogLevel,
		SecretKey:             c.SecretKey,
		JWTAlgorithm:          c.JWTAlgorithm,
		JWTPrivateKey:         c.JWTPrivateKey,
		JWTPublicKey:          c.JWTPublicKey,
		JWTPrivateKeyFile:     c.JWTPrivateKeyFile,
		JWTPublicKeyFile:      c.JWTPublicKeyFile,
		AccessTokenTTL:        timex.Duration{Duration: c.AccessTokenTTL},
		RefreshTokenTTL:       timex.Duration{Duration: c.RefreshTokenTTL},
		RefreshCookieName:     c.RefreshCookieName,
		RefreshCookiePath:     c.RefreshCookiePath,
		RefreshCookieSecure:   c.RefreshCookieSecure,
		RefreshCookieSameSite: c.RefreshCookieSameSite,
		S3RootUser:            c.S3RootUser,
		S3RootPassword:        c.S3RootPassword,
		S3Bucket:              c.S3Bucket,
		S3Region:              c.S3Region,
		S3BaseEndpoint:        c.S3BaseEndpoint,
		ShutdownTimeout:       timex.Duration{Duration: c.ShutdownTimeout},
	}
}

func fromFile(c *Config, f *fileConfig) {
	c.HTTPAddr = f.HTTPAddr
	c.GRPCAddr = f.GRPCAddr
	c.DatabaseDSN = f.DatabaseDSN
	c.LogLevel = f.LogLevel
	c.SecretKey = f.SecretKey
	c.JWTAlgorithm = f.JWTAlgorithm
	c.JWTPrivateKey = f.JWTPrivateKey
	c.JWTPublicKey = f.JWTPublicKey
	c.JWTPrivateKeyFile = f.JWTPrivateKeyFile
	c.JWTPublicKeyFile = f.JWTPublicKeyFile
	c.AccessTokenTTL = f.AccessTokenTTL.Duration
	c.RefreshTokenTTL = f.RefreshTokenTTL.Duration
	c.RefreshCookieName = f.RefreshCookieName
	c.RefreshCookiePath = f.RefreshCookiePath
	c.RefreshCookieSecure = f.RefreshCookieSecure
	c.RefreshCookieSameSite = f.RefreshCookieSameSite
	c.S3RootUser = f.S3RootUser
	c.S3RootPassword = f.S3RootPassword
	c.S3Bucket = f.S3Bucket
	c.S3Region = f.S3Region
	c.S3BaseEndpoint = f.S3BaseEndpoint
	c.ShutdownTimeout = f.ShutdownTimeout.Duration
}
