package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds a single solver request.
const DefaultTimeout = 60 * time.Second

// DefaultGracePeriod is how long a closing solver may take to exit before it is killed.
const DefaultGracePeriod = 5 * time.Second

// Config describes an external solver executable.
type Config struct {
	Name        string            `mapstructure:"name" json:"name"`
	Command     string            `mapstructure:"command" json:"command"`
	Args        []string          `mapstructure:"args" json:"args"`
	Environment map[string]string `mapstructure:"env" json:"env"`
	Description string            `mapstructure:"description" json:"description"`
	// Timeout bounds each request ("30s", "2m"). Zero means DefaultTimeout.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	// Retries is how many times a request is resent after the process dies or hangs.
	Retries int `mapstructure:"retries" json:"retries"`
	// WorkDir is the working directory of the process.
	WorkDir string `mapstructure:"work_dir" json:"work_dir"`
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// ConfigFile represents the structure of solvers.yaml.
type ConfigFile struct {
	Solvers []Config `mapstructure:"solvers"`
}

// LoadSolvers reads a configuration file (YAML or JSON) and returns a map of
// solver names to configs. A missing file yields no solvers.
func LoadSolvers(path string) (map[string]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Config{}, nil
		}
		return nil, fmt.Errorf("failed to read solvers config: %w", err)
	}

	var raw map[string]any
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	var cfg ConfigFile
	if err := decode(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid solvers config: %w", err)
	}

	solvers := make(map[string]Config, len(cfg.Solvers))
	for _, s := range cfg.Solvers {
		if s.Name == "" {
			continue
		}
		if s.Command == "" {
			return nil, fmt.Errorf("solver %q has no command", s.Name)
		}
		solvers[s.Name] = s
	}
	return solvers, nil
}

// decode maps generic YAML/JSON data onto a tagged struct, parsing durations
// from strings.
func decode(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
