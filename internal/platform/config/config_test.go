package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Dataset.TTL != 5*time.Minute {
		t.Errorf("expected default dataset ttl 5m, got %s", cfg.Dataset.TTL)
	}
	if cfg.Dataset.FetchTimeout != 10*time.Second {
		t.Errorf("expected default fetch timeout 10s, got %s", cfg.Dataset.FetchTimeout)
	}
	if cfg.Dataset.Source() != DatasetSourceNone {
		t.Errorf("expected no dataset source, got %q", cfg.Dataset.Source())
	}
	if cfg.Environment != "local" {
		t.Errorf("expected environment local, got %s", cfg.Environment)
	}
	if cfg.Secrets.FallbackFile != defaultSecretsFallbackFile {
		t.Errorf("unexpected fallback file %s", cfg.Secrets.FallbackFile)
	}
	if cfg.RateLimits.ComparePerMinute != defaultComparePerMinute {
		t.Errorf("unexpected compare rate limit %d", cfg.RateLimits.ComparePerMinute)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"FORTUNE_ENVIRONMENT":               "PROD",
		"FORTUNE_SERVER_PORT":               "9090",
		"FORTUNE_SERVER_WRITE_TIMEOUT":      "25s",
		"FORTUNE_DATASET_URL":               "https://data.example.com/destiny.csv",
		"FORTUNE_DATASET_AUTH_TOKEN":        "sm://dataset_token",
		"FORTUNE_DATASET_TTL":               "1m",
		"FORTUNE_DATASET_FETCH_TIMEOUT":     "3s",
		"FORTUNE_DATASET_RETRY_BACKOFF":     "0s",
		"FORTUNE_GCP_PROJECT_ID":            "fortune-prod",
		"FORTUNE_DIVERGENCE_TOPIC":          "sixstar-divergence",
		"FORTUNE_COMPARE_CONCURRENCY":       "4",
		"FORTUNE_RATELIMIT_COMPARE_PER_MIN": "0",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://dataset_token" {
			return "token-value", nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want := Config{
		Environment: "prod",
		Server: ServerConfig{
			Port:         "9090",
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: 25 * time.Second,
			IdleTimeout:  defaultIdleTimeout,
		},
		Dataset: DatasetConfig{
			URL:          "https://data.example.com/destiny.csv",
			AuthToken:    "token-value",
			TTL:          time.Minute,
			FetchTimeout: 3 * time.Second,
			RetryBackoff: 0,
		},
		GCP:        GCPConfig{ProjectID: "fortune-prod"},
		Divergence: DivergenceConfig{Topic: "sixstar-divergence", CompareConcurrency: 4},
		Secrets:    SecretsConfig{FallbackFile: defaultSecretsFallbackFile},
		RateLimits: RateLimitConfig{ComparePerMinute: 0},
		Build:      BuildConfig{Version: "dev", CommitSHA: "unknown"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Dataset.Source() != DatasetSourceHTTP {
		t.Fatalf("expected http source, got %q", cfg.Dataset.Source())
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local\nexport FORTUNE_SERVER_PORT=7070\nFORTUNE_DATASET_FILE=\"./destiny.csv\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Dataset.File != "./destiny.csv" || cfg.Dataset.Source() != DatasetSourceFile {
		t.Errorf("expected file source from dotenv, got %+v", cfg.Dataset)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		fields []string
	}{
		{
			name:   "unparseable duration",
			env:    map[string]string{"FORTUNE_DATASET_TTL": "soon"},
			fields: []string{"FORTUNE_DATASET_TTL"},
		},
		{
			name:   "non-positive ttl",
			env:    map[string]string{"FORTUNE_DATASET_TTL": "0s"},
			fields: []string{"Dataset.TTL"},
		},
		{
			name:   "half gcs config",
			env:    map[string]string{"FORTUNE_DATASET_GCS_BUCKET": "bucket"},
			fields: []string{"Dataset.GCSObject"},
		},
		{
			name: "multiple sources",
			env: map[string]string{
				"FORTUNE_DATASET_URL":  "https://data.example.com/d.csv",
				"FORTUNE_DATASET_FILE": "d.csv",
			},
			fields: []string{"Dataset.Source"},
		},
		{
			name:   "bad url",
			env:    map[string]string{"FORTUNE_DATASET_URL": "ftp://data.example.com/d.csv"},
			fields: []string{"Dataset.URL"},
		},
		{
			name:   "topic without project",
			env:    map[string]string{"FORTUNE_DIVERGENCE_TOPIC": "divergence"},
			fields: []string{"GCP.ProjectID"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), WithEnvMap(tc.env), WithoutSystemEnv(), WithEnvFile(""))
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if diff := cmp.Diff(tc.fields, validationErr.Fields()); diff != "" {
				t.Fatalf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"FORTUNE_DATASET_URL":        "https://data.example.com/d.csv",
		"FORTUNE_DATASET_AUTH_TOKEN": "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Errorf("expected unconfigured resolver cause, got %v", secretErr.Err)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "FORTUNE_GCP_PROJECT_ID=dot-project\nFORTUNE_SECRETS_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("FORTUNE_GCP_PROJECT_ID", "os-project")
	t.Setenv("FORTUNE_ENVIRONMENT", "staging")

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(map[string]string{
		"FORTUNE_GCP_PROJECT_ID": "override-project",
	}))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["FORTUNE_GCP_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["FORTUNE_SECRETS_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["FORTUNE_ENVIRONMENT"]; got != "staging" {
		t.Fatalf("expected system env value, got %s", got)
	}
}
