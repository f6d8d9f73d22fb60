package config

import (
	"errors"
	"os"
	"strings"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	// PROMIS Assessment Center credentials. Both are required; the service
	// refuses to start without them.
	PromisRegistration string
	PromisToken        string
	PromisBaseURL      string
	PromisAPIVersion   string

	// Result log database (optional).
	EnableResultLog bool
	DBDriver        string
	DBDSN           string

	AuthSecret string

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string
}

// ErrMissingPromisCredentials is fatal at startup; the core cannot recover
// from an unconfigured provider.
var ErrMissingPromisCredentials = errors.New("config: PROMIS_REGISTRATION and PROMIS_TOKEN are required")

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeDev
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		PromisRegistration: os.Getenv("PROMIS_REGISTRATION"),
		PromisToken:        os.Getenv("PROMIS_TOKEN"),
		PromisBaseURL:      envOr("PROMIS_BASE_URL", "https://www.assessmentcenter.net/ac_api"),
		PromisAPIVersion:   envOr("PROMIS_API_VERSION", "2014-01"),

		EnableResultLog: envBool("ENABLE_RESULT_LOG", true),
		DBDriver:        envOr("DB_DRIVER", "sqlite"),
		DBDSN:           envOr("DB_DSN", ""),

		AuthSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),

		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: os.Getenv("ADMIN_PASS_HASH"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
	}
}

func (c Config) Validate() error {
	if c.PromisRegistration == "" || c.PromisToken == "" {
		return ErrMissingPromisCredentials
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
