package flcoord

import (
	"fmt"
	"os"

	"github.com/absmach/flcoord/pkg/artifact"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/trainer"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"
)

const DefDataRoot = "./data"

// Config describes the federation. Values come from an optional TOML file and
// may be overridden from the environment with ApplyEnv.
type Config struct {
	Clients   []string        `toml:"clients"`
	DataRoot  string          `toml:"data_root"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
	Trainer   TrainerConfig   `toml:"trainer"`
	Model     ModelConfig     `toml:"model"`
}

type ArtifactsConfig struct {
	Initial  string `toml:"initial"  env:"FLCOORD_ARTIFACT_INITIAL"`
	Updated  string `toml:"updated"  env:"FLCOORD_ARTIFACT_UPDATED"`
	Deployed string `toml:"deployed" env:"FLCOORD_ARTIFACT_DEPLOYED"`
	Local    string `toml:"local"    env:"FLCOORD_ARTIFACT_LOCAL"`
	Script   string `toml:"script"   env:"FLCOORD_ARTIFACT_SCRIPT"`
}

type TrainerConfig struct {
	Command    string `toml:"command"     env:"FLCOORD_TRAINER_COMMAND"`
	SamplesEnv string `toml:"samples_env" env:"FLCOORD_TRAINER_SAMPLES_ENV"`
}

// ModelConfig shapes the initial global model, one tensor per entry.
type ModelConfig struct {
	Tensors []TensorConfig `toml:"tensors"`
	Seed    int64          `toml:"seed"`
}

type TensorConfig struct {
	Shape []int64 `toml:"shape"`
}

// DefModelTensors is a small binary image classifier: two 3x3 convolutions
// over a single channel followed by a dense head.
var DefModelTensors = []TensorConfig{
	{Shape: []int64{3, 3, 1, 32}}, {Shape: []int64{32}},
	{Shape: []int64{3, 3, 32, 64}}, {Shape: []int64{64}},
	{Shape: []int64{64, 128}}, {Shape: []int64{128}},
	{Shape: []int64{128, 1}}, {Shape: []int64{1}},
}

func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()

	return cfg
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

type envOverrides struct {
	Clients  []string `env:"FLCOORD_CLIENTS"    envSeparator:","`
	DataRoot string   `env:"FLCOORD_DATA_ROOT"`
	Seed     *int64   `env:"FLCOORD_MODEL_SEED"`
}

// ApplyEnv overrides configured values with any FLCOORD_ variables that are
// set and validates the result.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(&c.Artifacts); err != nil {
		return fmt.Errorf("error parsing artifact overrides: %w", err)
	}
	if err := env.Parse(&c.Trainer); err != nil {
		return fmt.Errorf("error parsing trainer overrides: %w", err)
	}

	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("error parsing overrides: %w", err)
	}
	if len(o.Clients) > 0 {
		c.Clients = o.Clients
	}
	if o.DataRoot != "" {
		c.DataRoot = o.DataRoot
	}
	if o.Seed != nil {
		c.Model.Seed = *o.Seed
	}

	return c.Validate()
}

func (c *Config) applyDefaults() {
	if len(c.Clients) == 0 {
		c.Clients = append([]string(nil), status.DefaultClientIDs...)
	}
	if c.DataRoot == "" {
		c.DataRoot = DefDataRoot
	}
	if c.Artifacts.Initial == "" {
		c.Artifacts.Initial = artifact.DefInitialName
	}
	if c.Artifacts.Updated == "" {
		c.Artifacts.Updated = artifact.DefUpdatedName
	}
	if c.Artifacts.Deployed == "" {
		c.Artifacts.Deployed = artifact.DefDeployedName
	}
	if c.Artifacts.Local == "" {
		c.Artifacts.Local = artifact.DefLocalName
	}
	if c.Artifacts.Script == "" {
		c.Artifacts.Script = artifact.DefScriptName
	}
	if c.Trainer.Command == "" {
		c.Trainer.Command = trainer.DefCommand
	}
	if c.Trainer.SamplesEnv == "" {
		c.Trainer.SamplesEnv = trainer.DefSamplesEnv
	}
	if len(c.Model.Tensors) == 0 {
		c.Model.Tensors = DefModelTensors
	}
}

// Validate checks client ids, artifact names and tensor dimensions.
func (c Config) Validate() error {
	for _, id := range c.Clients {
		if err := artifact.ValidateClientID(id); err != nil {
			return fmt.Errorf("invalid client %q: %w", id, err)
		}
	}
	names := []string{c.Artifacts.Initial, c.Artifacts.Updated, c.Artifacts.Deployed, c.Artifacts.Local, c.Artifacts.Script}
	for _, name := range names {
		if err := artifact.ValidateName(name); err != nil {
			return fmt.Errorf("invalid artifact name %q: %w", name, err)
		}
	}
	for i, t := range c.Model.Tensors {
		if len(t.Shape) == 0 {
			return fmt.Errorf("model tensor %d has no shape", i)
		}
		for _, d := range t.Shape {
			if d <= 0 {
				return fmt.Errorf("invalid shape for model tensor %d: %v", i, t.Shape)
			}
		}
	}

	return nil
}

func (c Config) Layout() artifact.Layout {
	l := artifact.NewLayout(c.DataRoot)
	l.InitialName = c.Artifacts.Initial
	l.UpdatedName = c.Artifacts.Updated
	l.DeployedName = c.Artifacts.Deployed
	l.LocalName = c.Artifacts.Local
	l.ScriptName = c.Artifacts.Script

	return l
}

func (c Config) ModelShapes() [][]int {
	shapes := make([][]int, len(c.Model.Tensors))
	for i, t := range c.Model.Tensors {
		shapes[i] = make([]int, len(t.Shape))
		for j, d := range t.Shape {
			shapes[i][j] = int(d)
		}
	}

	return shapes
}

func (c Config) TrainerConfig() trainer.Config {
	return trainer.Config{
		Command:    c.Trainer.Command,
		SamplesEnv: c.Trainer.SamplesEnv,
	}
}
