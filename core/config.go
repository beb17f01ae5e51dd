package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimitPerMin           int
	}

	DatabaseConfig struct {
		Engine           string // postgres | pgx | firestore | memory
		Host             string
		Port             string
		Name             string
		User             string
		Password         string
		AdminUser        string
		AdminPassword    string
		DisableTLS       bool
		FirestoreProject string
		CredentialsFile  string
	}

	StorageConfig struct {
		Backend string // disk | firebase
		Dir     string
		BaseURL string
		Bucket  string
	}

	NotifyConfig struct {
		Email        bool
		OnAttendance bool
		OnResults    bool
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		Build    string
		WorkDir  string

		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultPassword           string
		SendgridApiKey            string
		RollbarToken              string
		RedisAddr                 string
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Notify   NotifyConfig

		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig reads the configuration from defaults, an optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the upper-cased env name, eg. `PROD_SECRETKEY`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Shule")
	v.SetDefault("secretKey", "k2#x8$wq-b9m!e4r&zt7)up3=h6(vy5n+c0s*a1d@fgj")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("defaultPassword", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("redisAddr", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.rateLimitPerMin", 30)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "shule")
	v.SetDefault("database.user", "shule")
	v.SetDefault("database.password", "shule")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.firestoreProject", "")
	v.SetDefault("database.credentialsFile", "")

	v.SetDefault("storage.backend", "disk")
	v.SetDefault("storage.dir", "media")
	v.SetDefault("storage.baseURL", "http://localhost:8000/media")
	v.SetDefault("storage.bucket", "")

	v.SetDefault("notify.email", false)
	v.SetDefault("notify.onAttendance", true)
	v.SetDefault("notify.onResults", true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.Getwd: %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		Env:      env,
		Build:    v.GetString("build"),
		WorkDir:  wd,

		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		DefaultPassword:           v.GetString("defaultPassword"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		RedisAddr:                 v.GetString("redisAddr"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),

		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			RateLimitPerMin:           v.GetInt("server.rateLimitPerMin"),
		},
		Database: DatabaseConfig{
			Engine:           v.GetString("database.engine"),
			Host:             v.GetString("database.host"),
			Port:             v.GetString("database.port"),
			Name:             v.GetString("database.name"),
			User:             v.GetString("database.user"),
			Password:         v.GetString("database.password"),
			AdminUser:        v.GetString("database.adminUser"),
			AdminPassword:    v.GetString("database.adminPassword"),
			DisableTLS:       v.GetBool("database.disableTLS"),
			FirestoreProject: v.GetString("database.firestoreProject"),
			CredentialsFile:  v.GetString("database.credentialsFile"),
		},
		Storage: StorageConfig{
			Backend: v.GetString("storage.backend"),
			Dir:     v.GetString("storage.dir"),
			BaseURL: v.GetString("storage.baseURL"),
			Bucket:  v.GetString("storage.bucket"),
		},
		Notify: NotifyConfig{
			Email:        v.GetBool("notify.email"),
			OnAttendance: v.GetBool("notify.onAttendance"),
			OnResults:    v.GetBool("notify.onResults"),
		},

		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests: no IO, in-memory storage.
func NewTestConfig() *Config {
	return &Config{
		Debug:                     false,
		TestMode:                  true,
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   "Shule",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultPassword:           "Welc0me!Shule",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			RateLimitPerMin:           1000,
		},
		Database: DatabaseConfig{Engine: "memory"},
		Storage:  StorageConfig{Backend: "disk", BaseURL: "http://localhost:8000/media"},
		Notify:   NotifyConfig{OnAttendance: true, OnResults: true},

		defaultFromEmail: "noreply@localhost",
	}
}
