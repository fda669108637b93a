package config

import (
	"fmt"

	"modernc.org/libqbe"
)

type Feature int

const (
	FeatFold Feature = iota
	FeatCopyProp
	FeatComments
	FeatCount
)

type Warning int

const (
	WarnUnknownInstr Warning = iota
	WarnDivByZero
	WarnMixedParams
	WarnFrameOverflow
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	TargetArch     string
	BackendTarget  string
	BackendName    string
	WordSize       int
	StackAlignment int
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		BackendName: "amd64",
	}

	features := map[Feature]Info{
		FeatFold:     {"fold", true, "Fold constant arithmetic before code generation."},
		FeatCopyProp: {"copy-prop", true, "Propagate constants assigned to variables forward."},
		FeatComments: {"comments", false, "Emit each IR instruction as a comment above its lowering."},
	}

	warnings := map[Warning]Info{
		WarnUnknownInstr:  {"unknown-instr", true, "Warn when a malformed IR instruction is lowered to a placeholder."},
		WarnDivByZero:     {"div-by-zero", true, "Warn when folding skips a division by a constant zero."},
		WarnMixedParams:   {"mixed-params", true, "Warn when a call mixes integer and floating arguments (shared register counter)."},
		WarnFrameOverflow: {"frame-overflow", true, "Warn when a function's locals exceed the fixed stack frame reservation."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget resolves the backend target for the given host, defaulting via
// libqbe's target table when none is requested. Code generation only supports
// the Linux System V x86-64 ABI, so anything else is rejected up front.
func (c *Config) SetTarget(goos, goarch, target string) error {
	if target == "" {
		target = libqbe.DefaultTarget(goos, goarch)
	}
	if target != "amd64_sysv" {
		return fmt.Errorf("unsupported target '%s': only amd64_sysv is implemented", target)
	}
	c.BackendTarget = target
	c.TargetArch = "amd64"
	c.WordSize, c.StackAlignment = 8, 16
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

func (c *Config) SetAllWarnings(enabled bool) {
	for i := Warning(0); i < WarnCount; i++ {
		c.SetWarning(i, enabled)
	}
}
