package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configDir    string = "setproctitle"
	configDotDir string = ".setproctitle"
	configFile   string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Verify reads the argument region back after patching it.
	Verify bool `yaml:"verify"`
	// Dump logs a hex dump of the argument region before and after patching
	// it. It is only visible with --log.
	Dump bool `yaml:"dump"`
	// SplitArgs splits the title into separate arguments using shell
	// quoting rules.
	SplitArgs bool `yaml:"split-args"`
	// Timeout bounds the wait for the target to stop after attaching, as a
	// Go duration string ("5s"). Empty means no timeout.
	Timeout string `yaml:"timeout,omitempty"`
	// ProcRoot is the mount point of procfs.
	ProcRoot string `yaml:"proc-root,omitempty"`
	// LogOutput is the default value of --log-output.
	LogOutput string `yaml:"log-output,omitempty"`
}

// TimeoutDuration parses Timeout. It returns zero if Timeout is empty.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q in %s: %v", c.Timeout, configFile, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q in %s", c.Timeout, configFile)
	}
	return d, nil
}

// LoadConfig attempts to populate a Config object from the config.yml file.
// Problems are reported on stderr and the default configuration is used.
func LoadConfig() *Config {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to get config file path: %v.\n", err)
		return &Config{}
	}
	c, err := LoadConfigFrom(fullConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return &Config{}
	}
	return c
}

// LoadConfigFrom reads the configuration file at path. A missing file is
// not an error, the default configuration is returned.
func LoadConfigFrom(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("unable to open config file: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config file: %v", err)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return nil, err
	}
	return &c, nil
}

// WriteDefaultConfig creates the configuration file with every option
// documented and disabled. It fails if the file already exists.
func WriteDefaultConfig() (string, error) {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullConfigFile), 0700); err != nil {
		return "", err
	}
	f, err := os.OpenFile(fullConfigFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("unable to create config file: %v", err)
	}
	defer f.Close()
	if err := writeDefaultConfig(f); err != nil {
		return "", fmt.Errorf("unable to write default configuration: %v", err)
	}
	return fullConfigFile, nil
}

func writeDefaultConfig(w io.Writer) error {
	_, err := io.WriteString(w,
		`# Configuration file for setproctitle.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.
# Command line flags override the values in this file.

# Read the argument region back after writing it and fail if it differs.
# verify: true

# Log a hex dump of the argument region before and after the patch (needs --log).
# dump: true

# Split the title into separate arguments using shell quoting rules.
# split-args: true

# Give up waiting for the target to stop after this long.
# timeout: 5s

# Where procfs is mounted.
# proc-root: /proc

# Default value of --log-output.
# log-output: patcher
`)
	return err
}

// GetConfigFilePath gets the full path to the given config file name.
//
// $XDG_CONFIG_HOME/setproctitle is used if XDG_CONFIG_HOME is set,
// $HOME/.setproctitle otherwise.
func GetConfigFilePath(file string) (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDir, file), nil
	}

	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return filepath.Join(userHomeDir, configDotDir, file), nil
}
