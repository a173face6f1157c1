// Package config loads and validates vowpipe configuration files.
//
// Configuration is YAML for the humans writing it, validated against an
// embedded CUE schema so bad values fail at load time with a position and
// a reason, not at runtime inside the engine.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"vowpipe/internal/engine"
)

//go:embed schema.cue
var schemaCUE string

var configPath = cue.ParsePath("#Config")

// Config is the full configuration surface of both engine variants.
type Config struct {
	Binary          string   `yaml:"binary"`
	Args            []string `yaml:"args"`
	BatchSize       int      `yaml:"batch_size"`
	MaxPendingLines int      `yaml:"max_pending_lines"`
	WriteMarginMS   float64  `yaml:"write_margin_ms"`
	PipeBufferBytes int      `yaml:"pipe_buffer_bytes"`
	AuditMode       bool     `yaml:"audit_mode"`
	WriteOnly       bool     `yaml:"write_only"`
	Database        string   `yaml:"database"` // optional run-log SQLite path
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Binary:          engine.DefaultBinary,
		BatchSize:       engine.DefaultBatchSize,
		MaxPendingLines: engine.DefaultMaxPendingLines,
		WriteMarginMS:   float64(engine.DefaultWriteMargin) / float64(time.Millisecond),
	}
}

// Load reads, validates and decodes a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes YAML config bytes.
func Parse(data []byte) (*Config, error) {
	// Decode generically first so the CUE schema sees unknown keys too.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// validate unifies the decoded document with the embedded #Config schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(configPath)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal: config schema: %w", err)
	}
	value := schema.Unify(ctx.Encode(raw))
	if err := value.Validate(); err != nil {
		var msgs []string
		for _, e := range errors.Errors(err) {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("invalid config: %s", joinLines(msgs))
	}
	return nil
}

// Options translates the config into engine construction options.
func (c *Config) Options() []engine.Option {
	opts := []engine.Option{
		engine.WithBinary(c.Binary),
		engine.WithBatchSize(c.BatchSize),
		engine.WithMaxPendingLines(c.MaxPendingLines),
		engine.WithWriteMargin(time.Duration(c.WriteMarginMS * float64(time.Millisecond))),
	}
	if c.PipeBufferBytes > 0 {
		opts = append(opts, engine.WithPipeBufferSize(c.PipeBufferBytes))
	}
	if c.AuditMode {
		opts = append(opts, engine.WithAuditMode())
	}
	if c.WriteOnly {
		opts = append(opts, engine.WithWriteOnly())
	}
	return opts
}

func joinLines(msgs []string) string {
	out := ""
	for i, m := range msgs {
		if i > 0 {
			out += "; "
		}
		out += m
	}
	return out
}
