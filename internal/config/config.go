package config // package config loads kiosk configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings" // strings normalises URLs and environment names
	"time"    // time parses the timer durations

	"github.com/joho/godotenv" // godotenv reads the optional .env file
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations drive the page timers; the backend
// fields point the hold transport and checkout client at the booking API.
type Config struct {
	Env              string        // application environment (e.g. "dev", "prod")
	Port             string        // HTTP port the kiosk API listens on
	BackendBaseURL   string        // base URL of the booking backend
	BackendTimeout   time.Duration // per-request timeout for backend calls
	JWTSecret        string        // optional; when set, access tokens are verified locally
	MaxSelection     int           // seats a single page may select (0 = unlimited)
	SeatMapRefresh   time.Duration // seat-map polling interval
	PaymentPoll      time.Duration // payment status polling interval
	HoldSyncDebounce time.Duration // delay between a selection change and the hold sync
	RedirectDelay    time.Duration // delay before redirecting to the confirmation page
	PosterURL        string        // poster thumbnail painted on taken seats
	HoldJournalTTL   time.Duration // lifetime of the persisted hold record
	PageIdleTimeout  time.Duration // pages untouched this long are torn down
	LogLevel         string        // debug, info, warn, error
}

// Load reads the optional .env file and then builds a Config from the
// environment.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
	LoadDotEnv()
	return Config{
		Env:              getenv("APP_ENV", "dev"), // environment (dev/test/prod)
		Port:             must("APP_PORT"), // port to bind the kiosk API
		BackendBaseURL:   strings.TrimRight(must("BACKEND_BASE_URL"), "/"), // booking API, no trailing slash
		BackendTimeout:   envDur("BACKEND_TIMEOUT", 10*time.Second), // per-request timeout
		JWTSecret:        os.Getenv("JWT_SECRET"), // empty: tokens are read unverified
		MaxSelection:     envInt("MAX_SELECTION", 8), // seats per booking
		SeatMapRefresh:   envDur("SEAT_MAP_REFRESH_INTERVAL", 3*time.Second), // seat-map poll
		PaymentPoll:      envDur("PAYMENT_POLL_INTERVAL", 5*time.Second), // payment status poll
		HoldSyncDebounce: envDur("HOLD_SYNC_DEBOUNCE", 250*time.Millisecond), // 0 syncs immediately
		RedirectDelay:    envDur("REDIRECT_DELAY", 2*time.Second), // pause before the confirmation page
		PosterURL:        os.Getenv("POSTER_URL"), // optional poster thumbnail
		HoldJournalTTL:   envDur("HOLD_JOURNAL_TTL", 30*time.Minute), // persisted hold record lifetime
		PageIdleTimeout:  envDur("PAGE_IDLE_TIMEOUT", 30*time.Minute), // idle pages are swept after this
		LogLevel:         getenv("LOG_LEVEL", "info"), // debug, info, warn, error
	}
}

// LoadDotEnv loads variables from ./.env when the file exists.  Variables
// already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) { // a missing file is fine
		log.Printf("config: .env not loaded: %v", err) // report unreadable files only
	}
}

// IsDev reports whether the kiosk runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key) // exit with a clear message
	}
	return v // non-empty value
}
