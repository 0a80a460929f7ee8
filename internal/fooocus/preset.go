package fooocus

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadPreset decodes a TOML preset over base and validates the result.
// Keys are Params field names, matched without regard to case:
//
//	performance = "Speed"
//	styles = ["Fooocus V2", "Fooocus Sharp"]
//	guidance = 7.0
//
//	[[loras]]
//	enabled = true
//	model = "sd_xl_offset_example-lora_1.0.safetensors"
//	weight = 0.1
//
// A list in the preset sets the list length; its entries decode over the
// base entries at the same index. Unknown keys are an error.
func LoadPreset(r io.Reader, base Params) (Params, error) {
	p := base
	// the decoder writes into existing backing arrays
	p.Styles = slices.Clone(base.Styles)
	p.LoRAs = slices.Clone(base.LoRAs)
	p.OutpaintSelections = slices.Clone(base.OutpaintSelections)
	md, err := toml.NewDecoder(r).Decode(&p)
	if err != nil {
		return Params{}, fmt.Errorf("%w: preset: %v", ErrInvalidParams, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Params{}, fmt.Errorf("%w: unknown preset keys %s", ErrInvalidParams, strings.Join(keys, ", "))
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// LoadPresetFile is LoadPreset on the named file.
func LoadPresetFile(path string, base Params) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, err
	}
	defer f.Close()
	p, err := LoadPreset(f, base)
	if err != nil {
		return Params{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
