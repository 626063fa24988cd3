package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadEnv.
const (
	EnvMonitorPort = "COSIM_MONITOR_PORT"
	EnvOutput      = "COSIM_OUTPUT"
	EnvThreads     = "COSIM_THREADS"
	EnvDelay       = "COSIM_DELAY"
)

// Env holds the settings taken from the environment. Zero values mean the
// variable was not set.
type Env struct {
	MonitorPort int
	Output      string
	Threads     int
	Delay       time.Duration
}

// LoadEnv loads the given dotenv files into the environment, without
// overriding variables that are already set, and then reads the cosim
// variables. Missing files are skipped.
func LoadEnv(files ...string) (Env, error) {
	for _, file := range files {
		err := godotenv.Load(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return Env{}, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	return readEnv()
}

func readEnv() (Env, error) {
	env := Env{Output: os.Getenv(EnvOutput)}

	var err error

	if env.MonitorPort, err = intVar(EnvMonitorPort); err != nil {
		return Env{}, err
	}

	if env.Threads, err = intVar(EnvThreads); err != nil {
		return Env{}, err
	}

	if v := os.Getenv(EnvDelay); v != "" {
		env.Delay, err = time.ParseDuration(v)
		if err != nil {
			return Env{}, fmt.Errorf("%s: %w", EnvDelay, err)
		}
	}

	return env, nil
}

func intVar(name string) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}

	return n, nil
}

// Apply overrides the scenario with every setting present in env.
func (e Env) Apply(s *Scenario) {
	if e.Output != "" {
		s.Output = e.Output
	}

	if e.Threads > 0 {
		s.Threads = e.Threads
	}

	if e.Delay > 0 {
		s.Delay = e.Delay
	}
}

func dirOf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Dir(path)
	}

	return filepath.Dir(abs)
}
