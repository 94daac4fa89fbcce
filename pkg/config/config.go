package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	iso8601 "github.com/senseyeio/duration"
	"github.com/travigo/punctuality/pkg/calendar"
	"github.com/travigo/punctuality/pkg/digitraffic"
	"github.com/travigo/punctuality/pkg/planner"
	"github.com/travigo/punctuality/pkg/trains"
	"github.com/travigo/punctuality/pkg/util"
	"gopkg.in/yaml.v3"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

const defaultRequestTimeout = "PT8S"

type Config struct {
	Store      string
	SQLitePath string

	APIBaseURL     string
	GraphQLURL     string
	RequestTimeout time.Duration

	MaxAPICalls int
	Timezone    string

	Route    trains.Leg
	Outbound trains.TrainConfig
	Return   trains.TrainConfig
}

// RouteFile is the YAML layout of PUNCTUALITY_ROUTE_FILE
type RouteFile struct {
	Route struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
	} `yaml:"route"`
	Trains struct {
		Outbound *trains.TrainConfig `yaml:"outbound"`
		Return   *trains.TrainConfig `yaml:"return"`
	} `yaml:"trains"`
	Timezone string `yaml:"timezone"`
}

// stationCode matches Digitraffic station short codes such as LPÄ or HKI
var stationCode = regexp.MustCompile(`^[A-ZÄÖÅ]{2,4}$`)

var ErrInvalidStation = errors.New("invalid station short code")

// getEnvironmentVariable returns the named variable or the fallback when unset or empty
func getEnvironmentVariable(env map[string]string, name string, fallback string) string {
	if value := env[name]; value != "" {
		return value
	}
	return fallback
}

func DefaultSQLitePath() string {
	return filepath.Join(xdg.DataHome, "punctuality", "cache.db")
}

func Load() (*Config, error) {
	return FromEnvironment(util.GetEnvironmentVariables())
}

func FromEnvironment(env map[string]string) (*Config, error) {
	cfg := &Config{
		Store:       getEnvironmentVariable(env, "PUNCTUALITY_STORE", StoreSQLite),
		SQLitePath:  getEnvironmentVariable(env, "PUNCTUALITY_SQLITE_PATH", DefaultSQLitePath()),
		APIBaseURL:  getEnvironmentVariable(env, "PUNCTUALITY_API_BASE", digitraffic.DefaultBaseURL),
		GraphQLURL:  getEnvironmentVariable(env, "PUNCTUALITY_GRAPHQL_URL", digitraffic.DefaultGraphQLURL),
		MaxAPICalls: planner.DefaultMaxAPICalls,
		Timezone:    calendar.DefaultTimezone,
		Route:       trains.Leg{From: trains.DefaultOutbound.From, To: trains.DefaultOutbound.To, Direction: trains.DirectionOutbound},
		Outbound:    trains.DefaultOutbound,
		Return:      trains.DefaultReturn,
	}

	if cfg.Store != StoreSQLite && cfg.Store != StoreRedis {
		return nil, fmt.Errorf("unknown store %q, expected %s or %s", cfg.Store, StoreSQLite, StoreRedis)
	}

	timeout, err := ParseTimeout(getEnvironmentVariable(env, "PUNCTUALITY_REQUEST_TIMEOUT", defaultRequestTimeout))
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout = timeout

	if value := env["PUNCTUALITY_MAX_API_CALLS"]; value != "" {
		maxAPICalls, err := strconv.Atoi(value)
		if err != nil || maxAPICalls <= 0 {
			return nil, fmt.Errorf("PUNCTUALITY_MAX_API_CALLS must be a positive integer, got %q", value)
		}
		cfg.MaxAPICalls = maxAPICalls
	}

	if path := env["PUNCTUALITY_ROUTE_FILE"]; path != "" {
		if err := cfg.loadRouteFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ParseTimeout reads an ISO 8601 duration such as PT8S
func ParseTimeout(value string) (time.Duration, error) {
	duration, err := iso8601.ParseISO8601(value)
	if err != nil {
		return 0, fmt.Errorf("parse request timeout %q: %w", value, err)
	}

	reference := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	timeout := duration.Shift(reference).Sub(reference)
	if timeout <= 0 {
		return 0, fmt.Errorf("request timeout %q must be positive", value)
	}

	return timeout, nil
}

func (c *Config) loadRouteFile(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read route file: %w", err)
	}

	var routeFile RouteFile
	if err := yaml.Unmarshal(contents, &routeFile); err != nil {
		return fmt.Errorf("decode route file %s: %w", path, err)
	}

	if routeFile.Route.From != "" && routeFile.Route.To != "" {
		c.Route = trains.Leg{From: routeFile.Route.From, To: routeFile.Route.To, Direction: trains.DirectionOutbound}
	}
	if routeFile.Trains.Outbound != nil {
		c.Outbound = *routeFile.Trains.Outbound
	}
	if routeFile.Trains.Return != nil {
		c.Return = *routeFile.Trains.Return
	}
	if routeFile.Timezone != "" {
		c.Timezone = routeFile.Timezone
	}

	if err := c.validateStations(); err != nil {
		return err
	}

	return c.DefaultPair().Validate()
}

func (c *Config) validateStations() error {
	stations := []string{c.Route.From, c.Route.To}
	for _, train := range []trains.TrainConfig{c.Outbound, c.Return} {
		if train.From != "" {
			stations = append(stations, train.From)
		}
		if train.To != "" {
			stations = append(stations, train.To)
		}
	}

	for _, station := range stations {
		if !stationCode.MatchString(station) {
			return fmt.Errorf("%w: %q", ErrInvalidStation, station)
		}
	}

	return nil
}

// DefaultPair is the train pair used when a request names no trains
func (c *Config) DefaultPair() trains.TrainPair {
	return trains.TrainPair{c.Outbound.Number, c.Return.Number}
}
