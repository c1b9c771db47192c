package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caffeineduck/gofaas/hostfunc"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// validate is shared; validator caches struct metadata.
var validate = validator.New()

// Config is the YAML config file read with --config. Command line flags
// override it.
type Config struct {
	Timeout       Duration      `json:"timeout,omitempty" yaml:"timeout" validate:"gte=0" jsonschema:"description=Invocation timeout; 0 disables it"`
	MaxConcurrent int           `json:"max_concurrent,omitempty" yaml:"max_concurrent" validate:"gte=1" jsonschema:"description=Max invocations running at once,default=64"`
	PoolSize      int           `json:"pool_size,omitempty" yaml:"pool_size" validate:"gte=0" jsonschema:"description=Warm instances kept ready,default=4"`
	Mounts        []MountConfig `json:"mounts,omitempty" yaml:"mounts" validate:"dive" jsonschema:"description=Filesystem mounts; without any the file ops reach the whole host filesystem"`
	Limits        LimitsConfig  `json:"limits,omitempty" yaml:"limits"`
	Server        ServerConfig  `json:"server,omitempty" yaml:"server"`
}

// MountConfig maps a virtual path seen by handlers to a host directory.
type MountConfig struct {
	Virtual string `json:"virtual" yaml:"virtual" validate:"required,startswith=/" jsonschema:"required,description=Path as seen by handler code"`
	Host    string `json:"host" yaml:"host" validate:"required" jsonschema:"required,description=Host directory"`
	Mode    string `json:"mode" yaml:"mode" validate:"required,oneof=ro rw rwc" jsonschema:"required,enum=ro,enum=rw,enum=rwc"`
}

// LimitsConfig bounds the file ops. Zero means unlimited.
type LimitsConfig struct {
	MaxFileSize   int64 `json:"max_file_size,omitempty" yaml:"max_file_size" validate:"gte=0" jsonschema:"description=Max file read size in bytes"`
	MaxWriteSize  int64 `json:"max_write_size,omitempty" yaml:"max_write_size" validate:"gte=0" jsonschema:"description=Max file write size in bytes"`
	MaxPathLength int   `json:"max_path_length,omitempty" yaml:"max_path_length" validate:"gte=0" jsonschema:"description=Max path length"`
}

// ServerConfig holds settings for gofaas serve.
type ServerConfig struct {
	Port      int    `json:"port,omitempty" yaml:"port" validate:"gte=1,lte=65535" jsonschema:"default=8080"`
	Functions string `json:"functions,omitempty" yaml:"functions" jsonschema:"description=Directory of handler files deployed at startup"`
	Watch     bool   `json:"watch,omitempty" yaml:"watch" jsonschema:"description=Redeploy when files in the functions directory change"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Timeout:       Duration(30 * time.Second),
		MaxConcurrent: 64,
		PoolSize:      4,
		Limits: LimitsConfig{
			MaxFileSize:   10 * 1024 * 1024,
			MaxWriteSize:  10 * 1024 * 1024,
			MaxPathLength: 4096,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// LoadConfigFromPath reads the config file at path over the defaults and
// validates the result. An empty path returns the defaults.
func LoadConfigFromPath(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c Config) mounts() ([]hostfunc.Mount, error) {
	out := make([]hostfunc.Mount, 0, len(c.Mounts))
	for _, m := range c.Mounts {
		mode, err := hostfunc.ParseMountMode(m.Mode)
		if err != nil {
			return nil, err
		}
		out = append(out, hostfunc.Mount{VirtualPath: m.Virtual, HostPath: m.Host, Mode: mode})
	}
	return out, nil
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "string",
		Examples: []any{"30s", "1m30s"},
	}
}

// GenerateSchema renders the JSON schema of the config file.
func GenerateSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration file format",
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := GenerateSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	configCmd.AddCommand(configSchemaCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
