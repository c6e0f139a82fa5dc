package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	defaultPort               = "8080"
	defaultDBPath             = "sitecal.db"
	defaultMaxExpansionCycles = 1200
	defaultFeedHorizonDays    = 60
	defaultFeedRateLimit      = 30
	defaultMaintenanceCron    = "*/5 * * * *"
)

type Runtime struct {
	ConfigFile string

	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	Location  *time.Location

	MaxExpansionCycles int
	FeedHorizon        time.Duration
	FeedRateLimit      int // requests per minute per client IP

	// MaintenanceCron is a standard five-field cron schedule for the
	// housekeeping job.
	MaintenanceCron string
}

// Load reads SITECAL_* environment variables, optionally layered over the
// file named by SITECAL_CONFIG_FILE (yaml, toml, json or env by extension).
// Out-of-range numbers fall back to their defaults.
func Load() (Runtime, error) {
	v := viper.New()
	v.SetEnvPrefix("SITECAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", defaultPort)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("max_expansion_cycles", defaultMaxExpansionCycles)
	v.SetDefault("feed_horizon_days", defaultFeedHorizonDays)
	v.SetDefault("feed_rate_limit", defaultFeedRateLimit)
	v.SetDefault("maintenance_cron", defaultMaintenanceCron)

	configFile := strings.TrimSpace(os.Getenv("SITECAL_CONFIG_FILE"))
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Runtime{}, fmt.Errorf("read config file %s: %w", configFile, err)
			}
		}
	}

	port := strings.TrimSpace(v.GetString("port"))
	if port == "" {
		port = defaultPort
	}

	dbPath := strings.TrimSpace(v.GetString("db_path"))
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	logFormat := strings.ToLower(strings.TrimSpace(v.GetString("log_format")))
	if logFormat != "json" {
		logFormat = "text"
	}

	tz := strings.TrimSpace(v.GetString("timezone"))
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Runtime{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	maxCycles := v.GetInt("max_expansion_cycles")
	if maxCycles <= 0 {
		maxCycles = defaultMaxExpansionCycles
	}

	horizonDays := v.GetInt("feed_horizon_days")
	if horizonDays <= 0 {
		horizonDays = defaultFeedHorizonDays
	}

	rateLimit := v.GetInt("feed_rate_limit")
	if rateLimit <= 0 {
		rateLimit = defaultFeedRateLimit
	}

	schedule := strings.TrimSpace(v.GetString("maintenance_cron"))
	if schedule == "" {
		schedule = defaultMaintenanceCron
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return Runtime{}, fmt.Errorf("parse maintenance_cron %q: %w", schedule, err)
	}

	return Runtime{
		ConfigFile:         configFile,
		Port:               port,
		DBPath:             dbPath,
		LogLevel:           v.GetString("log_level"),
		LogFormat:          logFormat,
		Location:           loc,
		MaxExpansionCycles: maxCycles,
		FeedHorizon:        time.Duration(horizonDays) * 24 * time.Hour,
		FeedRateLimit:      rateLimit,
		MaintenanceCron:    schedule,
	}, nil
}
