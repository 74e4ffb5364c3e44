package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/prabhakardwivedi/corpsite/internal/adminhttp"
	"github.com/prabhakardwivedi/corpsite/internal/cfg"
	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/health"
	"github.com/prabhakardwivedi/corpsite/internal/httpmw"
	"github.com/prabhakardwivedi/corpsite/internal/httpserver"
	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/mediakit"
	"github.com/prabhakardwivedi/corpsite/internal/metrics"
	"github.com/prabhakardwivedi/corpsite/internal/opshttp"
	"github.com/prabhakardwivedi/corpsite/internal/otelx"
	"github.com/prabhakardwivedi/corpsite/internal/prof"
	"github.com/prabhakardwivedi/corpsite/internal/ratelimit"
	"github.com/prabhakardwivedi/corpsite/internal/session"
	"github.com/prabhakardwivedi/corpsite/internal/sitehandler"
	"github.com/prabhakardwivedi/corpsite/internal/sitehttp"
	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/supabase"
	v "github.com/prabhakardwivedi/corpsite/internal/version"
	"github.com/prabhakardwivedi/corpsite/internal/webassets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (commit=%s, commit_date=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.App, vi.Version, vi.Commit, vi.CommitDate, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// .env first so it takes part in the env overlay, real env vars still win
	if err := cfg.LoadDotEnv(conf.EnvFile); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		Backend:           conf.LogBackend,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSONFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"commit_date", vi.CommitDate,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"log_backend", conf.LogBackend,
		"db_driver", conf.DBDriver,
		"supabase_url", conf.SupabaseURL,
		"session_check_interval", conf.SessionCheckInterval,
		"redis_enabled", conf.RedisAddr != "",
		"mediakit_bucket", conf.MediaKitBucket,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"trace_sample", conf.TraceSample,
		"trusted_proxy_hops", conf.TrustedProxyHops,
	)

	// AWS is optional: only SSM secrets and media kit downloads need it
	var awsCfg *aws.Config
	if conf.SecretsSSMPrefix != "" || conf.MediaKitBucket != "" {
		c, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config")
			os.Exit(1)
		}
		awsCfg = &c
	}

	secrets, err := cfg.ParseSecrets()
	if err != nil {
		L.Error(ctx, err, "failed to parse secrets from environment")
		os.Exit(1)
	}
	if conf.SecretsSSMPrefix != "" {
		if err := secrets.ResolveFromSSM(ctx, ssm.NewFromConfig(*awsCfg), conf.SecretsSSMPrefix); err != nil {
			L.Error(ctx, err, "failed to resolve secrets from SSM", "prefix", conf.SecretsSSMPrefix)
			os.Exit(1)
		}
	}
	if err := secrets.Validate(); err != nil {
		L.Error(ctx, err, "missing required secrets")
		os.Exit(1)
	}

	stopProf, profErr := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"source":    "go-agent",
		},
	})
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// Insecure is true because we only export to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)
	m.SetProfilingActive(conf.EnablePyroscope && profErr == nil)

	// backing store
	dialect, _ := store.DialectFor(conf.DBDriver)
	db, err := store.Open(ctx, dialect, secrets.DatabaseURL)
	if err != nil {
		L.Error(ctx, err, "failed to open database", "driver", conf.DBDriver)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	if conf.DBMigrate {
		if err := store.Migrate(ctx, db, dialect); err != nil {
			L.Error(ctx, err, "database migration failed")
			os.Exit(1)
		}
	}
	backend := store.New(db, dialect, store.WithObserver(m))

	// auth provider and session guard
	auth, err := supabase.New(supabase.Options{
		BaseURL:   conf.SupabaseURL,
		AnonKey:   secrets.SupabaseAnonKey,
		JWTSecret: secrets.SupabaseJWTSecret,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create auth client")
		os.Exit(1)
	}

	var (
		relay      session.Relay
		redisProbe health.Probe
	)
	if conf.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: secrets.RedisPassword,
		})
		defer func() { _ = rdb.Close() }()
		relay = session.NewRedisRelay(rdb, conf.RedisChannel, L.With("component", "session_relay"))
		redisProbe = health.Ping("redis", health.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}), time.Second)
	}

	guard := session.New(session.Options{
		Provider:      auth,
		Logger:        L.With("component", "session"),
		Metrics:       m,
		Interval:      conf.SessionCheckInterval,
		AllowedEmails: conf.AdminEmailList(),
		Relay:         relay,
	})
	go func() {
		_ = guard.RunRelay(ctx)
	}()

	svc := content.NewService(backend, content.Options{
		Logger:  L.With("component", "content"),
		Metrics: m,
	})

	kitOpts := mediakit.Options{
		Logger:  L.With("component", "mediakit"),
		Bucket:  conf.MediaKitBucket,
		Prefix:  conf.MediaKitPrefix,
		URLTTL:  conf.MediaKitURLTTL,
		Metrics: m,
	}
	if conf.MediaKitBucket != "" {
		presigner, err := mediakit.NewS3Presigner(ctx, awsCfg)
		if err != nil {
			L.Error(ctx, err, "failed to create media kit presigner")
			os.Exit(1)
		}
		kitOpts.Presigner = presigner
	}
	kit := mediakit.New(kitOpts)

	// SPA build from disk, or the embedded shell for local development
	var site sitehandler.Source = sitehandler.FSSource{FS: webassets.SeedSiteFS()}
	if conf.SiteDir != "" {
		site = sitehandler.DirSource(conf.SiteDir)
	}
	siteHandler, err := sitehandler.New(sitehandler.Options{
		Logger:     L,
		Site:       site,
		FallbackFS: webassets.FallbackFS(),
	})
	if err != nil {
		L.Error(ctx, err, "failed to create site handler")
		os.Exit(1)
	}

	leadLimiter := newLimiter(ctx, L, m, "leads", conf)
	authLimiter := newLimiter(ctx, L, m, "admin_auth", conf)

	siteAPI := sitehttp.New(sitehttp.Options{
		Logger:    L,
		Content:   svc,
		MediaKit:  kit,
		LeadLimit: leadLimiter.Middleware,
	})
	adminAPI := adminhttp.New(adminhttp.Options{
		Logger:        L,
		Guard:         guard,
		Content:       svc,
		Screens:       siteHandler,
		Metrics:       m,
		AuthLimit:     authLimiter.Middleware,
		SecureCookie:  conf.SecureCookies,
		ResetRedirect: conf.PasswordResetRedirect,
	})

	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.Ping("database", db, 2*time.Second),
		redisProbe,
	)

	// the base context outlives ctx so in-flight requests finish during the
	// drain; cancelling it ends long-lived session sockets
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()

	siteHTTPStop, err := httpserver.Start(baseCtx, &httpserver.Options{
		Logger:       L,
		Addr:         ":" + strconv.Itoa(conf.HTTPPort),
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		Routes:       []func(chi.Router){siteAPI.Register, adminAPI.Register},
		SiteHandler:  siteHandler,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener")
		os.Exit(1)
	}

	// ops listener serves metrics, health checks and pprof. It must stay off
	// the public load balancer; pprof additionally refuses public peers.
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Addr:        ":" + strconv.Itoa(conf.AdminPort),
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}

	if err := notifySystemd(); err != nil {
		// worst case systemd kills the process after its start timeout
		L.Debug(ctx, "systemd readiness notify skipped", "reason", err)
	}

	<-ctx.Done()
	stop()

	bg := context.WithoutCancel(ctx)
	L.Info(bg, "shutdown signal received")

	// fail readiness so the load balancer stops routing to us
	gate.Set("draining")
	if conf.DrainDelay > 0 {
		L.Info(bg, "draining before closing listeners", "drain_delay", conf.DrainDelay)
		forceCh := make(chan os.Signal, 1)
		signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-time.After(conf.DrainDelay):
			L.Info(bg, "drain period complete")
		case <-forceCh:
			L.Warn(bg, "second signal received, skipping drain")
		}
		signal.Stop(forceCh)
	}

	shutdownCtx, cancel := context.WithTimeout(bg, 10*time.Second)
	defer cancel()

	// session sockets never go idle on their own
	cancelBase()
	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "otel shutdown")
	}
	stopProf()

	L.Info(bg, "shutdown complete")
}

// newLimiter builds a per-ip limiter for one route family. Denials are
// counted; only the first per visitor is logged.
func newLimiter(ctx context.Context, L log.Logger, m *metrics.ServerMetrics, name string, conf cfg.App) *ratelimit.IPLimiter {
	return ratelimit.New(ctx,
		ratelimit.WithName(name),
		ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
		ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied(name) }),
		ratelimit.WithOnFirstDenied(func(ip string) {
			m.IncRateLimitFirstDenied(name)
			L.Warn(ctx, "rate limit triggered", "limiter", name, "client.address", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted", "limiter", name)
		}),
	)
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when started with Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: dial: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		_ = conn.Close()
		return fmt.Errorf("systemd notify: write: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify: close: %w", err)
	}
	return nil
}
