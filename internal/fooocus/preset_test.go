package fooocus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPreset(t *testing.T) {
	preset := `
performance = "Speed"
styles = ["Fooocus Sharp"]
guidance = 7.0
Seed = 99

[[loras]]
enabled = true
model = "detail.safetensors"
weight = 0.5

[freeu]
enabled = true
b1 = 1.01
`
	base := DefaultParams()
	p, err := LoadPreset(strings.NewReader(preset), base)
	require.NoError(t, err)

	assert.Equal(t, PerformanceSpeed, p.Performance)
	assert.Equal(t, []string{"Fooocus Sharp"}, p.Styles)
	assert.Equal(t, 7.0, p.Guidance)
	assert.EqualValues(t, 99, p.Seed)
	assert.Equal(t, []LoRA{{Enabled: true, Model: "detail.safetensors", Weight: 0.5}}, p.LoRAs)
	assert.True(t, p.FreeU.Enabled)
	assert.Equal(t, 1.01, p.FreeU.B1)

	// untouched fields keep the base values
	assert.Equal(t, base.BaseModel, p.BaseModel)
	assert.Equal(t, base.Sampler, p.Sampler)
	assert.Equal(t, base.FreeU.S1, p.FreeU.S1)
	assert.Equal(t, DefaultStyles, base.Styles, "base must not be modified")
}

func TestLoadPresetErrors(t *testing.T) {
	for name, preset := range map[string]string{
		"syntax":      "performance = ",
		"unknown key": "performence = \"Speed\"",
		"invalid":     "performance = \"Turbo\"",
		"wrong type":  "guidance = \"high\"",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPreset(strings.NewReader(preset), DefaultParams())
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestLoadPresetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fast.toml")
	require.NoError(t, os.WriteFile(path, []byte("performance = \"Lightning\"\n"), 0o644))
	p, err := LoadPresetFile(path, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, PerformanceLightning, p.Performance)

	_, err = LoadPresetFile(filepath.Join(t.TempDir(), "missing.toml"), DefaultParams())
	assert.Error(t, err)
}
