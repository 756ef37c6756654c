package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Preset is a named, complete configuration bundle for a deployment
// scenario. Converting a preset to a Config is deterministic.
type Preset struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Strategy    Strategy `yaml:"strategy" json:"strategy"`
	Config      Config   `yaml:"config" json:"config"`
	// Disabled presets produce a no-op cache instead of a real one.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// ToConfig returns the preset's configuration.
func (p Preset) ToConfig() Config {
	cfg := p.Config
	cfg.Strategy = p.Strategy
	return cfg
}

// Preset names.
const (
	PresetDisabled      = "disabled"
	PresetSimple        = "simple"
	PresetDevelopment   = "development"
	PresetProduction    = "production"
	PresetAIDevelopment = "ai-development"
	PresetAIProduction  = "ai-production"
)

func builtinPresets() map[string]Preset {
	base := Default()

	development := base
	development.DefaultTTL = 300
	development.L1CacheSize = 200
	development.CompressionLevel = 1
	development.OperationTTLs = map[string]int{
		"summarize": 600, "sentiment": 1800, "key_points": 600, "questions": 300, "qa": 120,
	}

	production := base
	production.DefaultTTL = 7200
	production.L1CacheSize = 2000
	production.CompressionLevel = 9
	production.CompressionThreshold = 512

	aiDevelopment := development
	aiDevelopment.TextHashThreshold = 500
	aiDevelopment.TextSizeTiers = SizeTiers{Small: 200, Medium: 2000, Large: 20000}

	aiProduction := production
	aiProduction.TextHashThreshold = 2000
	aiProduction.OperationTTLs = map[string]int{
		"summarize": 14400, "sentiment": 86400, "key_points": 14400, "questions": 7200, "qa": 3600,
	}

	return map[string]Preset{
		PresetDisabled: {
			Name:        PresetDisabled,
			Description: "No-op cache: all operations succeed trivially, every get misses",
			Strategy:    StrategyFast,
			Config:      base,
			Disabled:    true,
		},
		PresetSimple: {
			Name:        PresetSimple,
			Description: "Memory-only cache with balanced defaults, no remote tier",
			Strategy:    StrategyBalanced,
			Config:      base,
		},
		PresetDevelopment: {
			Name:        PresetDevelopment,
			Description: "Short TTLs and cheap compression for fast iteration",
			Strategy:    StrategyFast,
			Config:      development,
		},
		PresetProduction: {
			Name:        PresetProduction,
			Description: "Long TTLs, strong compression, large L1 for serving traffic",
			Strategy:    StrategyRobust,
			Config:      production,
		},
		PresetAIDevelopment: {
			Name:        PresetAIDevelopment,
			Description: "Development tuning plus aggressive text hashing for AI workloads",
			Strategy:    StrategyAIOptimized,
			Config:      aiDevelopment,
		},
		PresetAIProduction: {
			Name:        PresetAIProduction,
			Description: "Production tuning with per-operation TTLs for AI workloads",
			Strategy:    StrategyAIOptimized,
			Config:      aiProduction,
		},
	}
}

// PresetManager resolves presets by name and recommends one for an
// environment. Construct it once at startup and inject it; it has no
// global state.
type PresetManager struct {
	presets map[string]Preset
}

// NewPresetManager returns a manager over the built-in presets.
func NewPresetManager() *PresetManager {
	return &PresetManager{presets: builtinPresets()}
}

// Get returns a preset by name.
func (m *PresetManager) Get(name string) (Preset, error) {
	p, ok := m.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("preset %q not found (available: %s)", name, strings.Join(m.List(), ", "))
	}
	return p, nil
}

// List returns the available preset names, sorted.
func (m *PresetManager) List() []string {
	names := make([]string, 0, len(m.presets))
	for name := range m.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a preset's description.
func (m *PresetManager) Describe(name string) (string, error) {
	p, err := m.Get(name)
	if err != nil {
		return "", err
	}
	return p.Description, nil
}

// Recommendation is a preset suggestion with a confidence score.
type Recommendation struct {
	Preset     Preset  `json:"preset"`
	Confidence float64 `json:"confidence"` // 0..1
	Reasoning  string  `json:"reasoning"`
}

// Environment variables consulted when no explicit environment is given,
// in priority order.
var envHints = []string{"AICACHE_ENV", "DEPLOY_ENV", "ENVIRONMENT", "ENV"}

// Recommend suggests a preset for the named environment. With an empty
// environment the deployment hints above are consulted; conflicting
// hints lower the confidence.
func (m *PresetManager) Recommend(environment string) Recommendation {
	explicit := environment != ""
	conflict := false

	if !explicit {
		var seen []string
		for _, hint := range envHints {
			if v := os.Getenv(hint); v != "" {
				seen = append(seen, v)
			}
		}
		if len(seen) > 0 {
			environment = seen[0]
			for _, v := range seen[1:] {
				if !strings.EqualFold(v, environment) {
					conflict = true
				}
			}
		}
	}

	name, confidence, reasoning := classifyEnvironment(environment, explicit)
	if conflict {
		confidence -= 0.2
		reasoning += "; conflicting deployment hints lowered confidence"
	}
	if confidence < 0 {
		confidence = 0
	}

	preset := m.presets[name]
	return Recommendation{Preset: preset, Confidence: confidence, Reasoning: reasoning}
}

func classifyEnvironment(environment string, explicit bool) (string, float64, string) {
	env := strings.ToLower(strings.TrimSpace(environment))

	base := 0.75
	if explicit {
		base = 0.90
	}

	switch {
	case env == "":
		return PresetDevelopment, 0.40, "no environment signal, defaulting to development"
	case env == "production" || env == "prod":
		return PresetAIProduction, base, fmt.Sprintf("environment %q matches production", environment)
	case env == "development" || env == "dev" || env == "local":
		return PresetAIDevelopment, base, fmt.Sprintf("environment %q matches development", environment)
	case env == "test" || env == "testing" || env == "ci":
		return PresetSimple, base, fmt.Sprintf("environment %q matches testing, memory-only is enough", environment)
	case strings.Contains(env, "prod"):
		return PresetAIProduction, base - 0.15, fmt.Sprintf("environment %q resembles production", environment)
	case strings.Contains(env, "stag"):
		return PresetProduction, base - 0.15, fmt.Sprintf("environment %q resembles staging, using production tuning", environment)
	case strings.Contains(env, "dev"):
		return PresetAIDevelopment, base - 0.15, fmt.Sprintf("environment %q resembles development", environment)
	default:
		return PresetDevelopment, 0.35, fmt.Sprintf("environment %q is unrecognized, defaulting to development", environment)
	}
}
