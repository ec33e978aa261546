package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/go-delve/nativedbg/pkg/args"
	"github.com/go-delve/nativedbg/pkg/settings"
)

const (
	configDir    string = ".ndbg"
	configDirXdg string = "ndbg"
	configFile   string = "config.yml"
)

// SubstitutePathRule describes a rule for substitution of path to source code file.
type SubstitutePathRule struct {
	// Directory path will be substituted if it matches `From`.
	From string
	// Path to which substitution is performed.
	To string
}

// SubstitutePathRules is a slice of source code path substitution rules.
type SubstitutePathRules []SubstitutePathRule

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Settings are assigned to the debugger settings at start up, keys
	// are dotted setting paths.
	Settings map[string]interface{} `yaml:"settings"`
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`
	// Source code path substitution rules.
	SubstitutePath SubstitutePathRules `yaml:"substitute-path"`

	// DebugInfoDirectories is the list of directories searched for
	// separate debug info files.
	DebugInfoDirectories []string `yaml:"debug-info-directories"`

	// TSanTimeout overrides the timeout, in microseconds, of the
	// expression retrieving thread sanitizer reports.
	TSanTimeout *uint64 `yaml:"tsan-timeout,omitempty"`

	// HistorySize is the number of lines kept in the terminal history.
	HistorySize int `yaml:"history-size,omitempty"`
}

// Apply assigns the configured settings to props. Errors are reported for
// every setting that could not be assigned, the others are applied
// anyway.
func (c *Config) Apply(props *settings.Properties) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if len(c.Settings) > 0 {
		keep(props.ApplyMap(c.Settings))
	}
	if len(c.SubstitutePath) > 0 {
		a := args.New("")
		for _, r := range c.SubstitutePath {
			a.Append(r.From+"="+r.To, '"')
		}
		keep(props.SetSubValue(settings.OpAssign, settings.TargetSourceMap, a.CommandString()))
	}
	if len(c.DebugInfoDirectories) > 0 {
		a := args.New("")
		for _, dir := range c.DebugInfoDirectories {
			a.Append(dir, '"')
		}
		keep(props.SetSubValue(settings.OpAssign, settings.TargetDebugFileSearchPaths, a.CommandString()))
	}
	if c.TSanTimeout != nil {
		keep(props.SetSubValue(settings.OpAssign, settings.TSanReportTimeout, strconv.FormatUint(*c.TSanTimeout, 10)))
	}
	return firstErr
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		fmt.Printf("Unable to read config data: %v.", err)
		return &Config{}
	}

	c, err := Parse(data)
	if err != nil {
		fmt.Printf("Unable to decode config file: %v.", err)
		return &Config{}
	}
	return c
}

// Parse decodes a configuration file.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the ndbg debugger.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Settings assigned at start up, see 'ndbg settings show' for the list.
settings:
  # target.max-children-count: 256
  # target.experimental.inject-local-vars: false

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Define sources path substitution rules. Can be used to rewrite a source path stored
# in program's debug information, if the sources were moved to a different place
# between compilation and debugging.
substitute-path:
  # - {from: path, to: path}

# Timeout, in microseconds, of the expression that retrieves a thread sanitizer report.
# tsan-timeout: 2000000

# Number of lines kept in the terminal history.
# history-size: 1000

# List of directories to use when searching for separate debug info files.
debug-info-directories: ["/usr/lib/debug/.build-id"]
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return path.Join(xdg, configDirXdg, file), nil
	}

	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
