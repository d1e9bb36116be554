package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"cpq-engine-api/internal/execqueue"
	"cpq-engine-api/internal/model"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	Environment Environment

	AppPort  string
	MongoURI string
	MongoDB  string

	// JWTSecret signs actor session tokens at the HTTP boundary.
	JWTSecret string

	// LedgerSigningKey is the active HMAC-SHA256 key used to sign new
	// ledger entries, decoded from 64 hex chars (32 bytes).
	LedgerSigningKey []byte
	// LedgerSigningKeyID identifies LedgerSigningKey for key-rotation
	// verification of entries signed under a retired key.
	LedgerSigningKeyID string
	// LedgerPriorKeys holds retired signing keys, keyed by id, still
	// accepted for verifying historical entries after rotation.
	LedgerPriorKeys map[string][]byte

	// Execution queue tuning.
	ExecClaimTTL       time.Duration
	ExecBackoffBase    time.Duration
	ExecBackoffMaxWait time.Duration
	ExecMaxAttempts    int

	// PolicyVersionDrift governs how the snapshot store reacts when a
	// quote is priced against a rule set or policy version older than
	// the one most recently recorded for that quote.
	PolicyVersionDrift model.PolicyVersionPolicy
}

// Load reads configuration from environment variables with sensible defaults.
// It loads the appropriate .env file based on APP_ENV:
//   - APP_ENV=local      -> .env.local (fallback: .env)
//   - APP_ENV=staging    -> .env.staging
//   - APP_ENV=production -> .env.production
func Load() *Config {
	// Load environment-specific .env file
	env := LoadEnvFile()

	signingKey, signingKeyID := loadLedgerSigningKey(env)
	priorKeys := loadLedgerPriorKeys()

	// Determine MongoDB database name based on environment
	baseDBName := getEnv("MONGO_DB_NAME", "cpq_engine")
	mongoDB := GetMongoDBName(env, baseDBName)

	cfg := &Config{
		Environment: env,

		AppPort:  getEnv("APP_PORT", "8080"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  mongoDB,

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),

		LedgerSigningKey:   signingKey,
		LedgerSigningKeyID: signingKeyID,
		LedgerPriorKeys:    priorKeys,

		ExecClaimTTL:       getEnvDuration("EXEC_CLAIM_TTL", 30*time.Second),
		ExecBackoffBase:    getEnvDuration("EXEC_BACKOFF_BASE", execqueue.DefaultBackoffBase),
		ExecBackoffMaxWait: getEnvDuration("EXEC_BACKOFF_MAX_DELAY", execqueue.DefaultMaxDelay),
		ExecMaxAttempts:    getEnvInt("EXEC_MAX_ATTEMPTS", execqueue.DefaultMaxAttempts),

		PolicyVersionDrift: parsePolicyVersionDrift(getEnv("POLICY_VERSION_DRIFT", "reject")),
	}

	log.Printf("Config loaded: env=%s, port=%s, mongo_db=%s, ledger_key_id=%s, policy_version_drift=%s",
		env, cfg.AppPort, cfg.MongoDB, cfg.LedgerSigningKeyID, cfg.PolicyVersionDrift)

	return cfg
}

// loadLedgerSigningKey decodes LEDGER_SIGNING_KEY (64 hex chars / 32 bytes)
// and LEDGER_SIGNING_KEY_ID. In production a missing or malformed key is
// fatal: an unsigned ledger cannot be trusted. Outside production a
// deterministic development key fills the gap so the module runs without
// extra setup.
func loadLedgerSigningKey(env Environment) ([]byte, string) {
	keyHex := getEnv("LEDGER_SIGNING_KEY", "")
	keyID := getEnv("LEDGER_SIGNING_KEY_ID", "dev")

	if keyHex == "" {
		if env.IsProduction() {
			log.Fatal("LEDGER_SIGNING_KEY is required in production")
		}
		log.Printf("Warning: LEDGER_SIGNING_KEY not set, using insecure development key")
		return []byte("insecure-development-ledger-signing-key-00"), keyID
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		if env.IsProduction() {
			log.Fatalf("LEDGER_SIGNING_KEY invalid (must be 64 hex chars / 32 bytes): %v", err)
		}
		log.Printf("Warning: LEDGER_SIGNING_KEY invalid, using insecure development key")
		return []byte("insecure-development-ledger-signing-key-00"), keyID
	}

	return key, keyID
}

// loadLedgerPriorKeys parses LEDGER_PRIOR_KEYS as a comma-separated list of
// id:hexkey pairs, e.g. "2026-q1:aa..,2026-q2:bb..". These remain valid for
// verifying entries signed before a rotation, never for signing new ones.
func loadLedgerPriorKeys() map[string][]byte {
	raw := getEnv("LEDGER_PRIOR_KEYS", "")
	if raw == "" {
		return nil
	}

	keys := make(map[string][]byte)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			log.Printf("Warning: malformed LEDGER_PRIOR_KEYS entry %q, skipping", pair)
			continue
		}
		id, hexKey := parts[0], parts[1]
		key, err := hex.DecodeString(hexKey)
		if err != nil || len(key) != 32 {
			log.Printf("Warning: malformed LEDGER_PRIOR_KEYS key for id %q, skipping", id)
			continue
		}
		keys[id] = key
	}
	return keys
}

func parsePolicyVersionDrift(value string) model.PolicyVersionPolicy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "allow_with_warning", "allow-with-warning":
		return model.PolicyVersionPolicyAllowWithWarning
	case "reject", "":
		return model.PolicyVersionPolicyReject
	default:
		log.Printf("Warning: unrecognized POLICY_VERSION_DRIFT %q, defaulting to reject", value)
		return model.PolicyVersionPolicyReject
	}
}

// ValidateEnvironment fails fast on configuration that cannot be trusted in
// the current environment.
func (c *Config) ValidateEnvironment() error {
	if c.Environment.IsProduction() {
		if len(c.LedgerSigningKey) != 32 {
			return fmt.Errorf("production requires a valid 32-byte LEDGER_SIGNING_KEY")
		}
		if c.JWTSecret == "" || c.JWTSecret == "dev-secret-change-me" {
			return fmt.Errorf("production requires a non-default JWT_SECRET")
		}
	}
	return nil
}

// Summary renders the resolved configuration for operator-facing output. It
// reports presence and mode only, never secret bytes: a signing key shows as
// configured/insecure-dev-fallback, never its hex value, and LedgerPriorKeys
// shows a count rather than key material.
func (c *Config) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "environment: %s\n", c.Environment)
	fmt.Fprintf(&b, "app_port: %s\n", c.AppPort)
	fmt.Fprintf(&b, "mongo_db: %s\n", c.MongoDB)
	fmt.Fprintf(&b, "mongo_uri: %s\n", redactURI(c.MongoURI))

	if c.JWTSecret == "dev-secret-change-me" {
		fmt.Fprintf(&b, "jwt_secret: INSECURE default (set JWT_SECRET)\n")
	} else {
		fmt.Fprintf(&b, "jwt_secret: configured\n")
	}

	if string(c.LedgerSigningKey) == "insecure-development-ledger-signing-key-00" {
		fmt.Fprintf(&b, "ledger_signing_key: INSECURE development fallback (set LEDGER_SIGNING_KEY)\n")
	} else {
		fmt.Fprintf(&b, "ledger_signing_key: configured (id=%s)\n", c.LedgerSigningKeyID)
	}
	fmt.Fprintf(&b, "ledger_prior_keys: %d retired key(s)\n", len(c.LedgerPriorKeys))

	fmt.Fprintf(&b, "policy_version_drift: %s\n", c.PolicyVersionDrift)
	fmt.Fprintf(&b, "exec_claim_ttl: %s\n", c.ExecClaimTTL)
	fmt.Fprintf(&b, "exec_backoff: base=%s max=%s attempts=%d\n", c.ExecBackoffBase, c.ExecBackoffMaxWait, c.ExecMaxAttempts)

	return b.String()
}

// redactURI strips userinfo (username:password@) from a connection string
// before it is ever printed.
func redactURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return uri
	}
	return uri[:scheme+3] + "***@" + uri[at+1:]
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a valid duration, using default %s", key, v, fallback)
		return fallback
	}
	return d
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a valid integer, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
