package cfg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

// Secrets are never exposed as flags so they stay out of process listings
type Secrets struct {
	DatabaseURL        string `env:"DATABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret  string `env:"SUPABASE_JWT_SECRET"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already present win. A missing file is not an error.
func LoadDotEnv(p string) error {
	if p == "" {
		return nil
	}
	if err := godotenv.Load(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return xerrors.Wrapf(err, "load env file %s", p)
	}
	return nil
}

// ParseSecrets reads Secrets from the environment
func ParseSecrets() (Secrets, error) {
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// ParameterGetter is the subset of the SSM client used to resolve secrets
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// secretFields pairs each Secrets field with its SSM leaf name
func (s *Secrets) secretFields() []struct {
	name string
	dst  *string
} {
	return []struct {
		name string
		dst  *string
	}{
		{"database-url", &s.DatabaseURL},
		{"supabase-anon-key", &s.SupabaseAnonKey},
		{"supabase-service-key", &s.SupabaseServiceKey},
		{"supabase-jwt-secret", &s.SupabaseJWTSecret},
		{"redis-password", &s.RedisPassword},
	}
}

// ResolveFromSSM fills every empty secret from <prefix>/<name>. Parameters
// that do not exist are skipped; any other failure is returned.
func (s *Secrets) ResolveFromSSM(ctx context.Context, c ParameterGetter, prefix string) error {
	if c == nil || prefix == "" {
		return nil
	}
	prefix = "/" + strings.Trim(prefix, "/")
	for _, f := range s.secretFields() {
		if *f.dst != "" {
			continue
		}
		name := path.Join(prefix, f.name)
		out, err := c.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			var nf interface{ ErrorCode() string }
			if errors.As(err, &nf) && nf.ErrorCode() == "ParameterNotFound" {
				continue
			}
			return xerrors.Wrapf(err, "get SSM parameter %s", name)
		}
		if out.Parameter != nil && out.Parameter.Value != nil {
			*f.dst = strings.TrimSpace(*out.Parameter.Value)
		}
	}
	return nil
}

// Validate reports secrets the server cannot start without
func (s Secrets) Validate() error {
	var errs []error
	if s.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}
	if s.SupabaseAnonKey == "" {
		errs = append(errs, fmt.Errorf("SUPABASE_ANON_KEY is required"))
	}
	return errors.Join(errs...)
}
