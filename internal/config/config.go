package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"time"    // time parses the engine's duration settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for the
// engine's timing knobs.
type Config struct {
	Env           string        // application environment (e.g. "dev", "prod")
	Port          string        // HTTP port to listen on
	DBUser        string        // database username
	DBPass        string        // database password (optional)
	DBHost        string        // database host address
	DBPort        string        // database port number
	DBName        string        // database name
	JWTSecret     string        // secret used to verify JWTs issued by the identity service
	HoldTTL       time.Duration // how long a placed hold keeps capacity before expiring
	ClaimWindow   time.Duration // how long a notified waitlist user may claim the spot
	SweepInterval time.Duration // how often the background sweeps run
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Duration knobs are
// optional and fall back to the engine defaults.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),    // environment (dev/test/prod)
		Port:          must("APP_PORT"),   // port to bind the HTTP server
		DBUser:        must("DB_USER"),    // database user
		DBPass:        os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:        must("DB_HOST"),    // database host
		DBPort:        must("DB_PORT"),    // database port
		DBName:        must("DB_NAME"),    // database name
		JWTSecret:     must("JWT_SECRET"), // secret used for verifying JWTs
		HoldTTL:       durationOr("HOLD_TTL", 10*time.Minute),
		ClaimWindow:   durationOr("WAITLIST_CLAIM_WINDOW", 30*time.Minute),
		SweepInterval: durationOr("SWEEP_INTERVAL", time.Minute),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// durationOr parses an optional duration variable such as "15m" or "1h30m".
// An unset or empty variable yields the default; a malformed value is fatal
// so a typo never silently changes expiry behaviour.
func durationOr(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	if d <= 0 {
		log.Fatalf("duration for %s must be positive, got %q", key, s)
	}
	return d
}
