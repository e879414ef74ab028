// Package config reads the getapplyset command line. Every flag can also be
// given as a GAS_* environment variable; flags win.
package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pborman/getopt/v2"

	gas "github.com/unkn0wn-root/getapplyset"
	"github.com/unkn0wn-root/getapplyset/codec"
)

const EnvPrefix = "GAS_"

var (
	backends = []string{"bigcache", "memcache", "redis", "ristretto"}
	loggers  = []string{"logrus", "slog", "zap"}

	defaultPorts = map[string]string{"memcache": "11211", "redis": "6379"}
)

// ErrHelp is returned by Load when --help was given.
var ErrHelp = errors.New("config: help requested")

type Config struct {
	Host        string
	Port        string
	Key         string
	Iterations  int
	Method      string
	Backend     string
	Concurrency int
	Codec       string
	TTL         time.Duration
	MaxAttempts int
	Logger      string
	LogLevel    string
	Verbose     bool
}

func Default() Config {
	return Config{
		Host:        "127.0.0.1",
		Backend:     "memcache",
		Concurrency: gas.DefaultConcurrency,
		Codec:       codec.DefaultName,
		TTL:         gas.DefaultTTL,
		Logger:      "zap",
		LogLevel:    "warn",
	}
}

// Load layers defaults, then env (through getenv), then args. args[0] is the
// program name. The returned Set prints usage even when err != nil.
func Load(args []string, getenv func(string) string) (Config, *getopt.Set, error) {
	c := Default()
	envErr := c.fromEnv(getenv)

	s := getopt.New()
	if len(args) > 0 {
		s.SetProgram(args[0])
	}
	s.SetParameters("")
	help := c.register(s)
	if envErr != nil {
		return c, s, envErr
	}
	if err := s.Getopt(args, nil); err != nil {
		return c, s, err
	}
	if *help {
		return c, s, ErrHelp
	}
	if rest := s.Args(); len(rest) > 0 {
		return c, s, fmt.Errorf("config: unexpected arguments %q", rest)
	}
	return c, s, c.Validate()
}

func (c *Config) register(s *getopt.Set) *bool {
	s.FlagLong(&c.Host, "host", 0, "server host", "host")
	s.FlagLong(&c.Port, "port", 0, "server port (default per backend)", "port")
	s.FlagLong(&c.Key, "key", 0, "key to race on", "key")
	s.FlagLong(&c.Iterations, "iter", 0, "updates per worker", "iterations")
	s.FlagLong(&c.Method, "method", 0, "update strategy", gas.StrategyNames())
	s.FlagLong(&c.Backend, "backend", 0, "store backend", strings.Join(backends, "|"))
	s.FlagLong(&c.Concurrency, "concurrency", 'c', "number of workers", "n")
	s.FlagLong(&c.Codec, "codec", 0, "value encoding", codec.Names())
	s.FlagLong(&c.TTL, "ttl", 0, "expiry written with each update; 0 = none", "duration")
	s.FlagLong(&c.MaxAttempts, "max-attempts", 0, "atomic retry cap; 0 = unbounded", "n")
	s.FlagLong(&c.Logger, "logger", 0, "log backend", strings.Join(loggers, "|"))
	s.FlagLong(&c.LogLevel, "log-level", 0, "debug|info|warn|error", "level")
	s.FlagLong(&c.Verbose, "verbose", 'v', "log CAS events and print retry stats")
	return s.BoolLong("help", 'h', "show usage")
}

func (c *Config) fromEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	strs := map[string]*string{
		"HOST": &c.Host, "PORT": &c.Port, "KEY": &c.Key, "METHOD": &c.Method,
		"BACKEND": &c.Backend, "CODEC": &c.Codec, "LOGGER": &c.Logger, "LOG_LEVEL": &c.LogLevel,
	}
	for name, p := range strs {
		if v := getenv(EnvPrefix + name); v != "" {
			*p = v
		}
	}

	ints := map[string]*int{"ITER": &c.Iterations, "CONCURRENCY": &c.Concurrency, "MAX_ATTEMPTS": &c.MaxAttempts}
	for name, p := range ints {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
		}
		*p = n
	}

	if v := getenv(EnvPrefix + "TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sTTL: %w", EnvPrefix, err)
		}
		c.TTL = d
	}
	if v := getenv(EnvPrefix + "VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sVERBOSE: %w", EnvPrefix, err)
		}
		c.Verbose = b
	}
	return nil
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	switch {
	case c.Method == "":
		return fmt.Errorf("config: --method is required (%s)", gas.StrategyNames())
	case !slices.Contains(strings.Split(gas.StrategyNames(), "|"), c.Method):
		return fmt.Errorf("config: unknown method %q (want %s)", c.Method, gas.StrategyNames())
	case c.Key == "":
		return fmt.Errorf("config: --key is required")
	case c.Iterations < 1:
		return fmt.Errorf("config: --iter must be >= 1, got %d", c.Iterations)
	case c.Concurrency < 1:
		return fmt.Errorf("config: --concurrency must be >= 1, got %d", c.Concurrency)
	case c.MaxAttempts < 0:
		return fmt.Errorf("config: --max-attempts must be >= 0, got %d", c.MaxAttempts)
	case c.TTL < 0:
		return fmt.Errorf("config: --ttl must be >= 0, got %s", c.TTL)
	case !slices.Contains(backends, c.Backend):
		return fmt.Errorf("config: unknown backend %q (want %s)", c.Backend, strings.Join(backends, "|"))
	case !slices.Contains(loggers, c.Logger):
		return fmt.Errorf("config: unknown logger %q (want %s)", c.Logger, strings.Join(loggers, "|"))
	case c.Remote() && c.Host == "":
		return fmt.Errorf("config: --host is required for %s", c.Backend)
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	if c.Port != "" {
		if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("config: bad --port %q", c.Port)
		}
	}
	return nil
}

// Remote reports whether the backend is a network server.
func (c Config) Remote() bool {
	_, ok := defaultPorts[c.Backend]
	return ok
}

// Addr is host:port, with the backend's well-known port when none was given.
func (c Config) Addr() string {
	port := c.Port
	if port == "" {
		port = defaultPorts[c.Backend]
	}
	return net.JoinHostPort(c.Host, port)
}
