package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	// Config holds all the static parameters of the app. It is loaded once at
	// startup and never mutated afterwards.
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string // DEV (default), TEST, QA, PROD
		Build            string
		AppName          string
		WorkDir          string
		LogLevel         string
		SecretKey        string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string
		FrontendBaseURL  string

		// FrontendBuildPath points at the bundled dashboard assets; serving them
		// is the static collaborator's job, we only carry the knob.
		FrontendBuildPath string

		Server     ServerConfig
		Database   DatabaseConfig
		Code       CodeConfig
		Presence   PresenceConfig
		RateLimits RateLimitConfig
	}

	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		// URL, when set, wins over the discrete fields below.
		URL           string
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		DisableTLS    bool
		Timeout       time.Duration
		MaxOpenConns  int
	}

	// CodeConfig drives the confirmation-code engine.
	// Alphabet drops O/0/I/1: codes are read off a projector and typed by hand.
	CodeConfig struct {
		Lifetime time.Duration
		Length   int
		Alphabet string
	}

	PresenceConfig struct {
		PingInterval time.Duration
		PongTimeout  time.Duration
	}

	RateLimitConfig struct {
		RequestsPerMinute int
		Burst             int
	}
)

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Conf is set by NewConfig. Test bootstraps may assign it directly.
var Conf *Config

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Mahudhurio")
	v.SetDefault("build", "develop")
	v.SetDefault("logLevel", "info")
	v.SetDefault("secretKey", "w3lc0me-cl@ss-m2x(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("frontendBuildPath", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "mahudhurio")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.timeout", 5*time.Second)
	v.SetDefault("database.maxOpenConns", 25)

	v.SetDefault("code.lifetime", 300*time.Second)
	v.SetDefault("code.length", 6)
	v.SetDefault("code.alphabet", "ABCDEFGHJKLMNPQRSTUVWXYZ23456789")

	v.SetDefault("presence.pingInterval", 10*time.Second)
	v.SetDefault("presence.pongTimeout", 20*time.Second)

	v.SetDefault("rateLimits.requestsPerMinute", 60)
	v.SetDefault("rateLimits.burst", 5)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	// the knobs a classroom deployment is expected to touch keep their plain,
	// unprefixed names
	bindings := map[string]string{
		"database.url":      "DATABASE_URL",
		"server.host":       "SERVER_HOST",
		"server.port":       "SERVER_PORT",
		"frontendBuildPath": "FRONTEND_BUILD_PATH",
		"code.lifetime":     "CONFIRMATION_CODE_DURATION_SECONDS",
		"logLevel":          "LOG_LEVEL",
		"debug":             "DEBUG",
		"build":             "BUILD",
		"secretKey":         "SECRET_KEY",
		"sendgridApiKey":    "SENDGRID_API_KEY",
		"rollbarToken":      "ROLLBAR_TOKEN",
		"defaultFromEmail":  "DEFAULT_FROM_EMAIL",
		"frontendBaseURL":   "FRONTEND_BASE_URL",

		"database.engine":        "DATABASE_ENGINE",
		"database.name":          "DATABASE_NAME",
		"database.user":          "DATABASE_USER",
		"database.password":      "DATABASE_PASSWORD",
		"database.adminUser":     "DATABASE_ADMIN_USER",
		"database.adminPassword": "DATABASE_ADMIN_PASSWORD",
		"database.host":          "DATABASE_HOST",
		"database.port":          "DATABASE_PORT",
		"database.disableTLS":    "DATABASE_DISABLE_TLS",
		"database.maxOpenConns":  "DATABASE_MAX_OPEN_CONNS",
	}
	for key, envVar := range bindings {
		_ = v.BindEnv(key, envVar)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:             v.GetBool("debug"),
		TestMode:          v.GetBool("testMode"),
		Env:               env,
		Build:             v.GetString("build"),
		AppName:           v.GetString("appName"),
		WorkDir:           wd,
		LogLevel:          v.GetString("logLevel"),
		SecretKey:         v.GetString("secretKey"),
		DefaultFromEmail:  mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:    v.GetString("sendgridApiKey"),
		RollbarToken:      v.GetString("rollbarToken"),
		FrontendBaseURL:   v.GetString("frontendBaseURL"),
		FrontendBuildPath: v.GetString("frontendBuildPath"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			URL:           v.GetString("database.url"),
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Timeout:       v.GetDuration("database.timeout"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
		},
		Code: CodeConfig{
			Lifetime: codeLifetime(v),
			Length:   v.GetInt("code.length"),
			Alphabet: v.GetString("code.alphabet"),
		},
		Presence: PresenceConfig{
			PingInterval: v.GetDuration("presence.pingInterval"),
			PongTimeout:  v.GetDuration("presence.pongTimeout"),
		},
		RateLimits: RateLimitConfig{
			RequestsPerMinute: v.GetInt("rateLimits.requestsPerMinute"),
			Burst:             v.GetInt("rateLimits.burst"),
		},
	}

	Conf = conf
	return conf
}

// codeLifetime reads the code lifetime, accepting a bare number of seconds
// (the documented form of CONFIRMATION_CODE_DURATION_SECONDS) as well as a
// duration string.
func codeLifetime(v *viper.Viper) time.Duration {
	if secs := v.GetInt64("code.lifetime"); secs > 0 && secs < int64(time.Second) {
		return time.Duration(secs) * time.Second
	}
	return v.GetDuration("code.lifetime")
}
