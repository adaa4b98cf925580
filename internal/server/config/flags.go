package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// parseFlags populates Config fields from command-line flags. Defaults are
// the values accumulated from the lower layers, so an absent flag never
// resets a setting.
//
// Supported flags:
//
//	-c, --config string          config file (consumed earlier by flagx.FilePaths)
//	    --env-file string        .env file (consumed earlier by flagx.FilePaths)
//	-a, --http-addr string       HTTP bind address
//	-g, --grpc-addr string       gRPC bind address
//	-d, --database-dsn string    PostgreSQL DSN or "memory"
//	-s, --secret-key string      HS256 secret
//	    --jwt-algorithm string   RS256, RS384, RS512 or EdDSA
//	    --jwt-private-key-file   PEM private key
//	    --jwt-public-key-file    PEM public key
//	-t, --access-ttl duration    access token lifetime
//	-r, --refresh-ttl duration   refresh token lifetime
//	    --log-level string       debug, info, warn or error
//	plus --refresh-cookie-* and --s3-* settings.
func parseFlags(config *Config, args []string) error {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)

	var ignored string
	fs.StringVarP(&ignored, "config", "c", "", "path to config file")
	fs.StringVar(&ignored, "env-file", "", "path to .env file")

	fs.StringVarP(&config.HTTPAddr, "http-addr", "a", config.HTTPAddr, "address and port to serve HTTP")
	fs.StringVarP(&config.GRPCAddr, "grpc-addr", "g", config.GRPCAddr, "address and port to serve gRPC")
	fs.StringVarP(&config.DatabaseDSN, "database-dsn", "d", config.DatabaseDSN, "database DSN, or \"memory\"")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	fs.StringVarP(&config.SecretKey, "secret-key", "s", config.SecretKey, "HS256 secret key")
	fs.StringVar(&config.JWTAlgorithm, "jwt-algorithm", config.JWTAlgorithm, "primary signing algorithm")
	fs.StringVar(&config.JWTPrivateKeyFile, "jwt-private-key-file", config.JWTPrivateKeyFile, "PEM private key file")
	fs.StringVar(&config.JWTPublicKeyFile, "jwt-public-key-file", config.JWTPublicKeyFile, "PEM public key file")

	fs.DurationVarP(&config.AccessTokenTTL, "access-ttl", "t", config.AccessTokenTTL, "access token validity")
	fs.DurationVarP(&config.RefreshTokenTTL, "refresh-ttl", "r", config.RefreshTokenTTL, "refresh token validity")

	fs.StringVar(&config.RefreshCookieName, "refresh-cookie-name", config.RefreshCookieName, "refresh cookie name")
	fs.StringVar(&config.RefreshCookiePath, "refresh-cookie-path", config.RefreshCookiePath, "refresh cookie path")
	fs.BoolVar(&config.RefreshCookieSecure, "refresh-cookie-secure", config.RefreshCookieSecure, "mark refresh cookie Secure")
	fs.StringVar(&config.RefreshCookieSameSite, "refresh-cookie-samesite", config.RefreshCookieSameSite, "refresh cookie SameSite (lax, strict, none)")

	fs.StringVar(&config.S3RootUser, "s3-user", config.S3RootUser, "S3 access key")
	fs.StringVar(&config.S3RootPassword, "s3-password", config.S3RootPassword, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "s3-bucket", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")

	fs.DurationVar(&config.ShutdownTimeout, "shutdown-timeout", config.ShutdownTimeout, "graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
