package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prabhakardwivedi/corpsite/internal/log"
)

// EnvPrefix is prepended to upper-cased flag names when reading the environment
const EnvPrefix = "CORPSITE_"

type App struct {
	EnvFile           string
	LogJSON           bool
	LogLevel          string
	LogBackend        string
	HTTPPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	EnableTracing     bool
	PyroServer        string
	PyroTenantID      string
	OTLPEndpoint      string
	TraceSample       float64
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int
	TrustedProxyHops  int
	SiteDir           string
	DrainDelay        time.Duration

	DBDriver  string
	DBMigrate bool

	SupabaseURL           string
	AdminEmails           string
	PasswordResetRedirect string
	SessionCheckInterval  time.Duration
	SecureCookies         bool

	RedisAddr    string
	RedisChannel string

	RateLimitRPS   float64
	RateLimitBurst int

	MediaKitBucket string
	MediaKitPrefix string
	MediaKitURLTTL time.Duration

	SecretsSSMPrefix string
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt/console (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.LogBackend, "log-backend", log.BackendSlog, "slog|zap")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "ops listen TCP port for metrics, health and pprof (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 1, "number of reverse proxies in front of the server (0 trusts no X-Forwarded-For)")

	fs.StringVar(&c.SiteDir, "site-dir", "", "directory holding the built SPA (empty serves the embedded development shell)")

	fs.DurationVar(&c.DrainDelay, "drain-delay", 15*time.Second, "how long readiness fails before listeners close on shutdown")

	fs.StringVar(&c.DBDriver, "db-driver", "postgres", "postgres|sqlite")
	fs.BoolVar(&c.DBMigrate, "db-migrate", false, "apply embedded schema migrations at startup")

	fs.StringVar(&c.SupabaseURL, "supabase-url", "", "base URL of the hosted backend (https://<ref>.supabase.co)")
	fs.StringVar(&c.AdminEmails, "admin-emails", "", "comma separated allowlist of admin emails (empty allows any authenticated user)")
	fs.StringVar(&c.PasswordResetRedirect, "password-reset-redirect", "/admin/update-password", "path or URL the password reset email links back to")
	fs.DurationVar(&c.SessionCheckInterval, "session-check-interval", 60*time.Second, "periodic admin session re-validation interval")
	fs.BoolVar(&c.SecureCookies, "secure-cookies", true, "mark session cookies Secure even when TLS terminates upstream")

	fs.StringVar(&c.RedisAddr, "redis-addr", "", "redis host:port for cross-instance session signals (empty disables)")
	fs.StringVar(&c.RedisChannel, "redis-channel", "corpsite:session", "redis pub/sub channel for session signals")

	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 0.2, "sustained requests per second per client ip on contact and login routes")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 5, "burst size per client ip on contact and login routes")

	fs.StringVar(&c.MediaKitBucket, "mediakit-bucket", "", "s3 bucket holding media kit assets (empty disables downloads)")
	fs.StringVar(&c.MediaKitPrefix, "mediakit-prefix", "media-kit", "s3 key prefix of media kit assets")
	fs.DurationVar(&c.MediaKitURLTTL, "mediakit-url-ttl", 15*time.Minute, "lifetime of presigned media kit download urls")

	fs.StringVar(&c.SecretsSSMPrefix, "secrets-ssm-prefix", "", "ssm parameter path holding secrets missing from the environment")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// AdminEmailList splits the allowlist, lower-cased and without blanks
func (c App) AdminEmailList() []string {
	var out []string
	for _, e := range strings.Split(c.AdminEmails, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	switch c.LogBackend {
	case log.BackendSlog, log.BackendZap:
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_BACKEND %q (must be slog|zap)", c.LogBackend))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}
	if c.TrustedProxyHops < 0 || c.TrustedProxyHops > 8 {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXY_HOPS must be 0..8 (got %d)", c.TrustedProxyHops))
	}

	if c.DrainDelay < 0 || c.DrainDelay > 5*time.Minute {
		errs = append(errs, fmt.Errorf("DRAIN_DELAY must be 0..5m (got %s)", c.DrainDelay))
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("invalid DB_DRIVER %q (must be postgres|sqlite)", c.DBDriver))
	}

	if c.SupabaseURL == "" {
		errs = append(errs, fmt.Errorf("SUPABASE_URL is required"))
	} else if u, err := url.Parse(c.SupabaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SUPABASE_URL must be a URL (got %q)", c.SupabaseURL))
	}
	if c.SessionCheckInterval < time.Second {
		errs = append(errs, fmt.Errorf("SESSION_CHECK_INTERVAL must be at least 1s (got %s)", c.SessionCheckInterval))
	}
	if c.RedisAddr != "" {
		if _, _, err := net.SplitHostPort(c.RedisAddr); err != nil {
			errs = append(errs, fmt.Errorf("REDIS_ADDR must be host:port (got %q): %v", c.RedisAddr, err))
		}
		if c.RedisChannel == "" {
			errs = append(errs, fmt.Errorf("REDIS_CHANNEL required when REDIS_ADDR is set"))
		}
	}

	if c.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be > 0 (got %g)", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be >= 1 (got %d)", c.RateLimitBurst))
	}

	if c.MediaKitBucket != "" && (c.MediaKitURLTTL < time.Minute || c.MediaKitURLTTL > 7*24*time.Hour) {
		errs = append(errs, fmt.Errorf("MEDIAKIT_URL_TTL must be 1m..168h (got %s)", c.MediaKitURLTTL))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
