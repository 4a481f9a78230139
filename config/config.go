// Package config holds the generator settings that are not part of an
// instruction set description: the target machine, the names used in
// generated code, and how the tree is built.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/decgen/insts"
	"github.com/sarchlab/decgen/plan"
	"github.com/sarchlab/decgen/tree"
)

// Config holds generator settings.
type Config struct {
	// TargetBigEndian is the byte order of the machine running the decoder.
	TargetBigEndian bool `json:"target_big_endian"`

	// HandlerPrefix is prepended to mnemonics to name decode handlers.
	// Default: "gen_".
	HandlerPrefix string `json:"handler_prefix"`

	// IllegalHandler is called for unmatched bit patterns.
	// Default: "gen_illegal".
	IllegalHandler string `json:"illegal_handler"`

	// LengthVar receives the instruction length. Empty disables it.
	LengthVar string `json:"length_var"`

	// BranchVar is assigned BranchValue after branch handlers. Empty
	// disables it.
	BranchVar   string `json:"branch_var"`
	BranchValue string `json:"branch_value"`

	// PrintFunc is the disassembler's print function. Default: "print".
	PrintFunc string `json:"print_func"`

	// Workers is the number of sibling subtrees built concurrently.
	// Default: the number of CPUs.
	Workers int `json:"workers"`

	// ParallelDepth is the number of tree levels built concurrently.
	// Default: 2.
	ParallelDepth int `json:"parallel_depth"`

	// Size overrides the size discipline of the description: "any",
	// "fixed" or "variable". Empty keeps the description's.
	Size string `json:"size"`

	// LogLevel is a logrus level name. Default: "warning".
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns a Config with the conventional names.
func DefaultConfig() *Config {
	return &Config{
		HandlerPrefix:  "gen_",
		IllegalHandler: "gen_illegal",
		LengthVar:      "length",
		BranchVar:      "bstate",
		BranchValue:    "BS_BRANCH",
		PrintFunc:      "print",
		Workers:        runtime.NumCPU(),
		ParallelDepth:  2,
		LogLevel:       "warning",
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.IllegalHandler == "" {
		return fmt.Errorf("illegal_handler must be set")
	}
	if c.PrintFunc == "" {
		return fmt.Errorf("print_func must be set")
	}
	if c.BranchVar != "" && c.BranchValue == "" {
		return fmt.Errorf("branch_value must be set when branch_var is")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.ParallelDepth < 0 {
		return fmt.Errorf("parallel_depth must be >= 0")
	}
	if _, err := insts.ParseSizeExpectation(c.Size); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// SizeExpectation returns the size discipline to check, falling back to the
// description's when Size is empty.
func (c *Config) SizeExpectation(fromDescription insts.SizeExpectation) insts.SizeExpectation {
	if c.Size == "" {
		return fromDescription
	}
	s, err := insts.ParseSizeExpectation(c.Size)
	if err != nil {
		return fromDescription
	}
	return s
}

// Logger returns a logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	l.SetLevel(level)
	return l
}

// Layout completes a description's fetch layout with the target byte order.
func (c *Config) Layout(readSize int, descBigEndian bool) insts.Layout {
	return insts.Layout{
		ReadSize:        readSize,
		DescBigEndian:   descBigEndian,
		TargetBigEndian: c.TargetBigEndian,
	}
}

// Planner returns the planner settings for a layout.
func (c *Config) Planner(layout insts.Layout) plan.Config {
	return plan.Config{
		Layout:         layout,
		HandlerPrefix:  c.HandlerPrefix,
		IllegalHandler: c.IllegalHandler,
		LengthVar:      c.LengthVar,
		BranchVar:      c.BranchVar,
		BranchValue:    c.BranchValue,
		PrintFunc:      c.PrintFunc,
	}
}

// BuilderOptions returns the tree builder options for these settings.
func (c *Config) BuilderOptions(logger logrus.FieldLogger) []tree.Option {
	return []tree.Option{
		tree.WithLogger(logger),
		tree.WithWorkers(c.Workers),
		tree.WithParallelDepth(c.ParallelDepth),
	}
}
