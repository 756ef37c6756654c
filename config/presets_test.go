package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetManager_GetAndList(t *testing.T) {
	m := NewPresetManager()

	names := m.List()
	assert.Equal(t, []string{
		PresetAIDevelopment, PresetAIProduction, PresetDevelopment,
		PresetDisabled, PresetProduction, PresetSimple,
	}, names)

	for _, name := range names {
		p, err := m.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)

		desc, err := m.Describe(name)
		require.NoError(t, err)
		assert.NotEmpty(t, desc)
	}

	_, err := m.Get("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPresets_AllValid(t *testing.T) {
	m := NewPresetManager()
	v := NewValidator()

	for _, name := range m.List() {
		p, err := m.Get(name)
		require.NoError(t, err)
		res := v.ValidatePreset(p)
		assert.True(t, res.IsValid, "preset %s: %v", name, res.Errors)
	}
}

func TestPresets_Deterministic(t *testing.T) {
	m := NewPresetManager()

	p1, err := m.Get(PresetAIProduction)
	require.NoError(t, err)
	p2, err := m.Get(PresetAIProduction)
	require.NoError(t, err)

	assert.Equal(t, p1.ToConfig(), p2.ToConfig(), "applying the same preset twice yields equal configurations")
}

func TestPresets_ProductionFavorsLongerTTLs(t *testing.T) {
	m := NewPresetManager()

	dev, err := m.Get(PresetDevelopment)
	require.NoError(t, err)
	prod, err := m.Get(PresetProduction)
	require.NoError(t, err)

	assert.Greater(t, prod.ToConfig().DefaultTTL, dev.ToConfig().DefaultTTL)
	assert.Greater(t, prod.ToConfig().CompressionLevel, dev.ToConfig().CompressionLevel)
}

func TestRecommend_ExplicitEnvironments(t *testing.T) {
	m := NewPresetManager()

	cases := []struct {
		env    string
		preset string
	}{
		{"production", PresetAIProduction},
		{"prod", PresetAIProduction},
		{"development", PresetAIDevelopment},
		{"dev", PresetAIDevelopment},
		{"test", PresetSimple},
		{"ci", PresetSimple},
		{"staging", PresetProduction},
		{"preprod-eu", PresetAIProduction},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			rec := m.Recommend(tc.env)
			assert.Equal(t, tc.preset, rec.Preset.Name)
			assert.Greater(t, rec.Confidence, 0.5)
			assert.LessOrEqual(t, rec.Confidence, 1.0)
			assert.NotEmpty(t, rec.Reasoning)
		})
	}
}

func TestRecommend_UnknownEnvironmentLowConfidence(t *testing.T) {
	m := NewPresetManager()

	rec := m.Recommend("purple")
	assert.Equal(t, PresetDevelopment, rec.Preset.Name)
	assert.Less(t, rec.Confidence, 0.5)
}

func TestRecommend_EnvVarHint(t *testing.T) {
	t.Setenv("AICACHE_ENV", "production")

	rec := NewPresetManager().Recommend("")
	assert.Equal(t, PresetAIProduction, rec.Preset.Name)
	assert.Greater(t, rec.Confidence, 0.5)
}

func TestRecommend_ConflictingHintsLowerConfidence(t *testing.T) {
	t.Setenv("AICACHE_ENV", "production")
	t.Setenv("ENVIRONMENT", "development")

	rec := NewPresetManager().Recommend("")
	clean := NewPresetManager()
	t.Setenv("ENVIRONMENT", "production")
	assert.Less(t, rec.Confidence, clean.Recommend("").Confidence)
}

func TestValidator_Overrides(t *testing.T) {
	v := NewValidator()

	res := v.ValidateOverrides(PresetProduction, map[string]any{"default_ttl": 600})
	assert.True(t, res.IsValid, "errors: %v", res.Errors)

	res = v.ValidateOverrides(PresetProduction, map[string]any{"default_ttl": 0})
	assert.False(t, res.IsValid)

	res = v.ValidateOverrides(PresetProduction, map[string]any{"no_such": 1})
	assert.False(t, res.IsValid)

	res = v.ValidateOverrides("nope", nil)
	assert.False(t, res.IsValid)
}

func TestValidator_Templates(t *testing.T) {
	v := NewValidator()
	templates := v.Templates()

	require.Contains(t, templates, TemplateFastDevelopment)
	require.Contains(t, templates, TemplateRobustProduction)
	for name, cfg := range templates {
		res := cfg.Validate()
		assert.True(t, res.IsValid, "template %s: %v", name, res.Errors)
	}
	assert.True(t, templates[TemplateRobustProduction].FailOnConnectionError)
}

func TestValidator_PresetRules(t *testing.T) {
	v := NewValidator()

	res := v.ValidatePreset(Preset{Name: "", Strategy: StrategyFast, Config: Default()})
	assert.False(t, res.IsValid)

	res = v.ValidatePreset(Preset{Name: "x", Strategy: "warp", Config: Default()})
	assert.False(t, res.IsValid)

	res = v.ValidatePreset(Preset{Name: "x", Strategy: StrategyFast, Config: Default(), Description: "d"})
	assert.True(t, res.IsValid)
}
