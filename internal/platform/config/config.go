// Package config loads runtime configuration from defaults, a .env file, the
// process environment and explicit overrides, resolving secret references.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultDatasetTTL          = 5 * time.Minute
	defaultDatasetFetchTimeout = 10 * time.Second
	defaultDatasetRetryBackoff = 30 * time.Second
	defaultEnvironment         = "local"
	defaultSecretsFallbackFile = ".secrets.local"
	defaultComparePerMinute    = 60
	defaultCompareConcurrency  = 8
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Dataset     DatasetConfig
	GCP         GCPConfig
	Divergence  DivergenceConfig
	Secrets     SecretsConfig
	RateLimits  RateLimitConfig
	Build       BuildConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatasetConfig selects where the destiny dataset is read from and how it is cached.
// At most one of URL, GCS and File may be set; none means formula-only resolution.
type DatasetConfig struct {
	URL          string
	AuthToken    string
	GCSBucket    string
	GCSObject    string
	File         string
	TTL          time.Duration
	FetchTimeout time.Duration
	RetryBackoff time.Duration
}

// DatasetSource names the configured dataset source kind.
type DatasetSource string

const (
	DatasetSourceNone DatasetSource = ""
	DatasetSourceHTTP DatasetSource = "http"
	DatasetSourceGCS  DatasetSource = "gcs"
	DatasetSourceFile DatasetSource = "file"
)

// Source reports which dataset source is configured.
func (c DatasetConfig) Source() DatasetSource {
	switch {
	case c.URL != "":
		return DatasetSourceHTTP
	case c.GCSBucket != "" || c.GCSObject != "":
		return DatasetSourceGCS
	case c.File != "":
		return DatasetSourceFile
	}
	return DatasetSourceNone
}

// GCPConfig holds Google Cloud project settings.
type GCPConfig struct {
	ProjectID       string
	CredentialsFile string
}

// DivergenceConfig controls publication of dataset/formula disagreements.
type DivergenceConfig struct {
	Topic              string
	CompareConcurrency int
}

// SecretsConfig controls the secret resolver.
type SecretsConfig struct {
	FallbackFile string
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	ComparePerMinute int
}

// BuildConfig carries build metadata surfaced on health endpoints.
type BuildConfig struct {
	Version   string
	CommitSHA string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map. Values in the map take
// precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// EnvironmentValues returns the effective key/value map after applying the same
// precedence as Load (dotenv < OS env < explicit map). Callers use it to build
// dependencies, such as the secret resolver, before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the application configuration.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	p := parser{values: values}

	cfg := Config{
		Environment: strings.ToLower(p.str("FORTUNE_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         p.str("FORTUNE_SERVER_PORT", defaultPort),
			ReadTimeout:  p.duration("FORTUNE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: p.duration("FORTUNE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  p.duration("FORTUNE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Dataset: DatasetConfig{
			URL:          p.str("FORTUNE_DATASET_URL", ""),
			AuthToken:    p.str("FORTUNE_DATASET_AUTH_TOKEN", ""),
			GCSBucket:    p.str("FORTUNE_DATASET_GCS_BUCKET", ""),
			GCSObject:    p.str("FORTUNE_DATASET_GCS_OBJECT", ""),
			File:         p.str("FORTUNE_DATASET_FILE", ""),
			TTL:          p.duration("FORTUNE_DATASET_TTL", defaultDatasetTTL),
			FetchTimeout: p.duration("FORTUNE_DATASET_FETCH_TIMEOUT", defaultDatasetFetchTimeout),
			RetryBackoff: p.duration("FORTUNE_DATASET_RETRY_BACKOFF", defaultDatasetRetryBackoff),
		},
		GCP: GCPConfig{
			ProjectID:       p.str("FORTUNE_GCP_PROJECT_ID", ""),
			CredentialsFile: p.str("FORTUNE_GCP_CREDENTIALS_FILE", ""),
		},
		Divergence: DivergenceConfig{
			Topic:              p.str("FORTUNE_DIVERGENCE_TOPIC", ""),
			CompareConcurrency: p.integer("FORTUNE_COMPARE_CONCURRENCY", defaultCompareConcurrency),
		},
		Secrets: SecretsConfig{
			FallbackFile: p.str("FORTUNE_SECRETS_FALLBACK_FILE", defaultSecretsFallbackFile),
		},
		RateLimits: RateLimitConfig{
			ComparePerMinute: p.integer("FORTUNE_RATELIMIT_COMPARE_PER_MIN", defaultComparePerMinute),
		},
		Build: BuildConfig{
			Version:   p.str("FORTUNE_BUILD_VERSION", "dev"),
			CommitSHA: p.str("FORTUNE_BUILD_COMMIT_SHA", "unknown"),
		},
	}

	token, err := resolveSecret(ctx, cfg.Dataset.AuthToken, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.Dataset.AuthToken = token

	if err := validateConfig(cfg, p.invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parser reads typed values and remembers keys whose values failed to parse.
type parser struct {
	values  map[string]string
	invalid []string
}

func (p *parser) lookup(key string) (string, bool) {
	value, ok := p.values[key]
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (p *parser) str(key, fallback string) string {
	if value, ok := p.lookup(key); ok {
		return value
	}
	return fallback
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	value, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return d
}

func (p *parser) integer(key string, fallback int) int {
	value, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return n
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config, invalid []string) error {
	fields := append([]string(nil), invalid...)

	if cfg.Server.Port == "" {
		fields = append(fields, "Server.Port")
	}
	if cfg.Dataset.TTL <= 0 {
		fields = append(fields, "Dataset.TTL")
	}
	if cfg.Dataset.FetchTimeout <= 0 {
		fields = append(fields, "Dataset.FetchTimeout")
	}
	if cfg.Dataset.RetryBackoff < 0 {
		fields = append(fields, "Dataset.RetryBackoff")
	}

	sources := 0
	if cfg.Dataset.URL != "" {
		sources++
		if u, err := url.Parse(cfg.Dataset.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			fields = append(fields, "Dataset.URL")
		}
	}
	if cfg.Dataset.GCSBucket != "" || cfg.Dataset.GCSObject != "" {
		sources++
		if cfg.Dataset.GCSBucket == "" {
			fields = append(fields, "Dataset.GCSBucket")
		}
		if cfg.Dataset.GCSObject == "" {
			fields = append(fields, "Dataset.GCSObject")
		}
	}
	if cfg.Dataset.File != "" {
		sources++
	}
	if sources > 1 {
		fields = append(fields, "Dataset.Source")
	}

	if cfg.Divergence.Topic != "" && cfg.GCP.ProjectID == "" {
		fields = append(fields, "GCP.ProjectID")
	}
	if cfg.Divergence.CompareConcurrency <= 0 {
		fields = append(fields, "Divergence.CompareConcurrency")
	}
	if cfg.RateLimits.ComparePerMinute < 0 {
		fields = append(fields, "RateLimits.ComparePerMinute")
	}

	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}
