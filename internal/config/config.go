// Package config loads the course admin settings from an optional YAML
// file, an optional .env file and COURSEADMIN_* environment variables.
// Later sources win: defaults, then file, then environment.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"courseadmin/internal/domain/reference"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "COURSEADMIN_"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// csrfKeyBytes is the gorilla/csrf auth key length.
const csrfKeyBytes = 32

// Default app ids, one record namespace per kind.
const (
	DefaultCoursesApp      = "65f0a1b2c3d4e5f6a7b8c901"
	DefaultInstructorsApp  = "65f0a1b2c3d4e5f6a7b8c902"
	DefaultParticipantsApp = "65f0a1b2c3d4e5f6a7b8c903"
	DefaultRoomsApp        = "65f0a1b2c3d4e5f6a7b8c904"
	DefaultEnrollmentsApp  = "65f0a1b2c3d4e5f6a7b8c905"
)

// ErrInvalid marks a configuration value that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// AppIDs holds the record namespace of each entity kind.
type AppIDs struct {
	Courses      string `yaml:"courses"`
	Instructors  string `yaml:"instructors"`
	Participants string `yaml:"participants"`
	Rooms        string `yaml:"rooms"`
	Enrollments  string `yaml:"enrollments"`
}

// ByKind returns the ids keyed by entity kind.
func (a AppIDs) ByKind() map[reference.Kind]string {
	return map[reference.Kind]string{
		reference.KindCourse:      a.Courses,
		reference.KindInstructor:  a.Instructors,
		reference.KindParticipant: a.Participants,
		reference.KindRoom:        a.Rooms,
		reference.KindEnrollment:  a.Enrollments,
	}
}

// Resend configures confirmation mail delivery. An empty APIKey disables it.
type Resend struct {
	APIKey  string `yaml:"api_key"`
	From    string `yaml:"from"`
	ReplyTo string `yaml:"reply_to"`
}

// Emulator configures the local record API.
type Emulator struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
}

// Config holds every runtime setting.
type Config struct {
	APIBaseURL  string        `yaml:"api_base_url"`
	APIKey      string        `yaml:"api_key"`
	Apps        AppIDs        `yaml:"apps"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	ListenAddr     string   `yaml:"listen_addr"`
	Env            string   `yaml:"env"`
	CSRFKey        string   `yaml:"csrf_key"` // hex, 32 bytes
	TrustedOrigins []string `yaml:"trusted_origins"`
	RateLimit      int      `yaml:"rate_limit"` // requests per second per IP; 0 disables
	StaticDir      string   `yaml:"static_dir"`
	LogLevel       string   `yaml:"log_level"`

	Resend   Resend   `yaml:"resend"`
	Emulator Emulator `yaml:"emulator"`
}

// Default returns the settings used when nothing is configured. They point
// the admin tool at a local emulator.
func Default() Config {
	return Config{
		APIBaseURL: "http://localhost:8081/rest",
		Apps: AppIDs{
			Courses:      DefaultCoursesApp,
			Instructors:  DefaultInstructorsApp,
			Participants: DefaultParticipantsApp,
			Rooms:        DefaultRoomsApp,
			Enrollments:  DefaultEnrollmentsApp,
		},
		HTTPTimeout: 15 * time.Second,
		ListenAddr:  ":8080",
		Env:         EnvDevelopment,
		RateLimit:   20,
		LogLevel:    "info",
		Resend: Resend{
			From: "Kursverwaltung <noreply@example.com>",
		},
		Emulator: Emulator{
			Addr:   ":8081",
			DBPath: "courseadmin.db",
		},
	}
}

// Load reads .env (if present), then path (if non-empty), then the
// environment, and validates the result.
// PRE: none
// POST: Returns a validated config, or an error naming the bad source or value
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.APIBaseURL = envOrDefault("API_BASE_URL", c.APIBaseURL)
	c.APIKey = envOrDefault("API_KEY", c.APIKey)
	c.Apps.Courses = envOrDefault("APP_COURSES", c.Apps.Courses)
	c.Apps.Instructors = envOrDefault("APP_INSTRUCTORS", c.Apps.Instructors)
	c.Apps.Participants = envOrDefault("APP_PARTICIPANTS", c.Apps.Participants)
	c.Apps.Rooms = envOrDefault("APP_ROOMS", c.Apps.Rooms)
	c.Apps.Enrollments = envOrDefault("APP_ENROLLMENTS", c.Apps.Enrollments)
	c.ListenAddr = envOrDefault("ADDR", c.ListenAddr)
	c.Env = envOrDefault("ENV", c.Env)
	c.CSRFKey = envOrDefault("CSRF_KEY", c.CSRFKey)
	c.StaticDir = envOrDefault("STATIC_DIR", c.StaticDir)
	c.LogLevel = envOrDefault("LOG_LEVEL", c.LogLevel)
	c.Resend.APIKey = envOrDefault("RESEND_KEY", c.Resend.APIKey)
	c.Resend.From = envOrDefault("RESEND_FROM", c.Resend.From)
	c.Resend.ReplyTo = envOrDefault("REPLY_TO", c.Resend.ReplyTo)
	c.Emulator.Addr = envOrDefault("EMULATOR_ADDR", c.Emulator.Addr)
	c.Emulator.DBPath = envOrDefault("EMULATOR_DB", c.Emulator.DBPath)

	if v := os.Getenv(EnvPrefix + "TRUSTED_ORIGINS"); v != "" {
		c.TrustedOrigins = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sHTTP_TIMEOUT %q: %v", ErrInvalid, EnvPrefix, v, err)
		}
		c.HTTPTimeout = d
	}
	if v := os.Getenv(EnvPrefix + "RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sRATE_LIMIT %q: %v", ErrInvalid, EnvPrefix, v, err)
		}
		c.RateLimit = n
	}
	return nil
}

// Validate checks every value that would otherwise fail late.
// PRE: none
// POST: Returns nil, or an error wrapping ErrInvalid for the first bad value
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api_base_url %q must be an absolute URL", ErrInvalid, c.APIBaseURL)
	}
	for _, k := range reference.Kinds {
		if id := c.Apps.ByKind()[k]; !reference.IsID(id) {
			return fmt.Errorf("%w: app id for %s must be 24 hex characters, got %q", ErrInvalid, k, id)
		}
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http_timeout must be positive", ErrInvalid)
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("%w: env %q must be %s or %s", ErrInvalid, c.Env, EnvDevelopment, EnvProduction)
	}
	if c.CSRFKey != "" {
		if _, err := decodeKey(c.CSRFKey); err != nil {
			return err
		}
	} else if c.IsProduction() {
		return fmt.Errorf("%w: csrf_key is required in production", ErrInvalid)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalid)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// IsProduction reports whether the production environment is configured.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// CSRFAuthKey returns the decoded CSRF key. Outside production a missing key
// is replaced by a random one, so tokens do not survive a restart.
// PRE: c passed Validate
// POST: Returns 32 bytes
func (c Config) CSRFAuthKey() ([]byte, error) {
	if c.CSRFKey != "" {
		return decodeKey(c.CSRFKey)
	}
	key := make([]byte, csrfKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate csrf key: %w", err)
	}
	slog.Warn("config_event", "event", "csrf_key_generated", "env", c.Env)
	return key, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(key) != csrfKeyBytes {
		return nil, fmt.Errorf("%w: csrf_key must be %d hex-encoded bytes", ErrInvalid, csrfKeyBytes)
	}
	return key, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, s)
	}
	return lvl, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
