package config

import (
	"fmt"
)

// ValidationResult carries validation findings by severity. Errors make
// the subject unusable; warnings and info are advisory.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Info     []string `json:"info,omitempty"`
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.IsValid = false
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) addInfo(format string, args ...any) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// Validator applies schema-like rules to presets, full configurations,
// and custom override maps, and produces starter templates.
type Validator struct {
	presets *PresetManager
}

// NewValidator creates a validator backed by the built-in presets.
func NewValidator() *Validator {
	return &Validator{presets: NewPresetManager()}
}

// ValidateConfig checks a full configuration.
func (v *Validator) ValidateConfig(cfg Config) ValidationResult {
	return cfg.Validate()
}

// ValidatePreset checks a preset definition: its metadata and the
// configuration it carries.
func (v *Validator) ValidatePreset(p Preset) ValidationResult {
	res := ValidationResult{IsValid: true}

	if p.Name == "" {
		res.addError("preset name is required")
	}
	if p.Description == "" {
		res.addWarning("preset %q has no description", p.Name)
	}
	switch p.Strategy {
	case StrategyFast, StrategyBalanced, StrategyRobust, StrategyAIOptimized:
	case "":
		res.addError("preset %q has no strategy", p.Name)
	default:
		res.addError("preset %q has unknown strategy %q", p.Name, p.Strategy)
	}

	if p.Disabled {
		// A disabled preset never constructs an engine, so its carried
		// config is not validated further.
		return res
	}

	cfgRes := p.Config.Validate()
	res.Errors = append(res.Errors, cfgRes.Errors...)
	res.Warnings = append(res.Warnings, cfgRes.Warnings...)
	res.Info = append(res.Info, cfgRes.Info...)
	res.IsValid = res.IsValid && cfgRes.IsValid
	return res
}

// ValidateOverrides checks a custom override map against a base preset:
// the overrides must route cleanly through the parameter mapper and the
// merged result must validate.
func (v *Validator) ValidateOverrides(presetName string, overrides map[string]any) ValidationResult {
	res := ValidationResult{IsValid: true}

	preset, err := v.presets.Get(presetName)
	if err != nil {
		res.addError("%v", err)
		return res
	}

	merged, err := preset.ToConfig().ApplyOverrides(overrides)
	if err != nil {
		res.addError("%v", err)
		return res
	}
	cfgRes := merged.Validate()
	res.Errors = append(res.Errors, cfgRes.Errors...)
	res.Warnings = append(res.Warnings, cfgRes.Warnings...)
	res.Info = append(res.Info, cfgRes.Info...)
	res.IsValid = cfgRes.IsValid
	return res
}

// Template names.
const (
	TemplateFastDevelopment  = "fast_development"
	TemplateRobustProduction = "robust_production"
)

// Templates returns ready-to-edit configurations for bootstrapping a
// deployment-specific config file.
func (v *Validator) Templates() map[string]Config {
	fast := Default()
	fast.DefaultTTL = 300
	fast.CompressionLevel = 1
	fast.CompressionThreshold = 4096
	fast.L1CacheSize = 500
	fast.Strategy = StrategyFast

	robust := Default()
	robust.DefaultTTL = 14400
	robust.CompressionLevel = 9
	robust.CompressionThreshold = 256
	robust.L1CacheSize = 5000
	robust.FailOnConnectionError = true
	robust.Strategy = StrategyRobust

	return map[string]Config{
		TemplateFastDevelopment:  fast,
		TemplateRobustProduction: robust,
	}
}
