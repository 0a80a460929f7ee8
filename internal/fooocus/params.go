package fooocus

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/example/fooocanvas/internal/resolution"
)

// ArgCount is the length of the get_task argument vector.
const ArgCount = 151

// MaxSeed is the largest seed the app accepts.
const MaxSeed = 1<<30 - 2

// Performance presets understood by the app.
const (
	PerformanceQuality      = "Quality"
	PerformanceSpeed        = "Speed"
	PerformanceExtremeSpeed = "Extreme Speed"
	PerformanceLightning    = "Lightning"
	PerformanceHyperSD      = "Hyper-SD"
)

var performances = []string{
	PerformanceQuality, PerformanceSpeed, PerformanceExtremeSpeed,
	PerformanceLightning, PerformanceHyperSD,
}

var outputFormats = []string{"png", "jpeg", "webp"}

// ErrInvalidParams wraps every Validate failure.
var ErrInvalidParams = errors.New("invalid generation parameters")

// LoRA is one LoRA slot.
type LoRA struct {
	Enabled bool
	Model   string
	Weight  float64
}

// ImagePrompt is one image-prompt slot. Image is a data URI or empty.
type ImagePrompt struct {
	Image  string
	Stop   float64
	Weight float64
	Type   string
}

// EnhanceTab mirrors one of the app's enhancement tabs.
type EnhanceTab struct {
	Enabled                     bool
	MaskPrompt                  string
	Prompt                      string
	NegativePrompt              string
	MaskModel                   string
	ClothCategory               string
	SAMModel                    string
	TextThreshold               float64
	BoxThreshold                float64
	SAMMaxDetections            int
	InpaintDisableInitialLatent bool
	InpaintEngine               string
	InpaintStrength             float64
	InpaintRespectiveField      float64
	InpaintErodeOrDilate        int
	InvertMask                  bool
}

// Overwrites replace model defaults when not -1.
type Overwrites struct {
	Step            int
	Switch          int
	Width           int
	Height          int
	VaryStrength    float64
	UpscaleStrength float64
}

// FreeU holds the FreeU backbone and skip factors.
type FreeU struct {
	Enabled bool
	B1, B2  float64
	S1, S2  float64
}

// Params names every input the generate pipeline takes. Args flattens it
// into the positional form the app expects.
type Params struct {
	GenerateImageGrid    bool
	Prompt               string
	NegativePrompt       string
	Styles               []string
	Performance          string
	ImageNumber          int
	OutputFormat         string
	Seed                 int64 // -1 picks a random seed per call
	ReadWildcardsInOrder bool
	Sharpness            float64
	Guidance             float64
	BaseModel            string
	RefinerModel         string
	RefinerSwitch        float64
	LoRAs                []LoRA

	InputImage                 bool
	CurrentTab                 string
	UOVMethod                  string
	OutpaintSelections         []string
	InpaintAdditionalPrompt    string
	DisablePreview             bool
	DisableIntermediateResults bool
	DisableSeedIncrement       bool
	BlackOutNSFW               bool

	ADMScalerPositive float64
	ADMScalerNegative float64
	ADMScalerEnd      float64
	AdaptiveCFG       float64
	ClipSkip          int
	Sampler           string
	Scheduler         string
	VAE               string
	Overwrite         Overwrites

	MixingImagePromptAndVaryUpscale bool
	MixingImagePromptAndInpaint     bool
	DebuggingCNPreprocessor         bool
	SkippingCNPreprocessor          bool
	CannyLow                        int
	CannyHigh                       int
	RefinerSwapMethod               string
	ControlNetSoftness              float64
	FreeU                           FreeU

	DebuggingInpaintPreprocessor bool
	InpaintDisableInitialLatent  bool
	InpaintEngine                string
	InpaintStrength              float64
	InpaintRespectiveField       float64
	InpaintMaskUpload            bool
	InvertMask                   bool
	InpaintErodeOrDilate         int
	SaveMetadata                 bool
	MetadataScheme               string

	ImagePrompts [4]ImagePrompt

	DebuggingDino             bool
	DinoErodeOrDilate         int
	DebuggingEnhanceMasks     bool
	Enhance                   bool
	EnhanceUOVMethod          string
	EnhanceUOVProcessingOrder string
	EnhanceUOVPromptType      string
	EnhanceTabs               [3]EnhanceTab
}

// DefaultStyles are applied when no styles are configured.
var DefaultStyles = []string{
	"Fooocus V2",
	"Fooocus Enhance",
	"Fooocus Sharp",
	"Fooocus Semi Realistic",
	"SAI Anime",
}

func defaultEnhanceTab() EnhanceTab {
	return EnhanceTab{
		MaskModel:              "sam",
		ClothCategory:          "full",
		SAMModel:               "vit_b",
		TextThreshold:          0.25,
		BoxThreshold:           0.3,
		InpaintEngine:          "v2.6",
		InpaintStrength:        1,
		InpaintRespectiveField: 0.618,
	}
}

// DefaultParams returns the settings the editor submits for an inpaint
// request: Extreme Speed on juggernautXL with the offset LoRA.
func DefaultParams() Params {
	p := Params{
		Styles:        slices.Clone(DefaultStyles),
		Performance:   PerformanceExtremeSpeed,
		ImageNumber:   1,
		OutputFormat:  "png",
		Seed:          -1,
		Sharpness:     2,
		Guidance:      4,
		BaseModel:     "juggernautXL_v8Rundiffusion.safetensors",
		RefinerModel:  "None",
		RefinerSwitch: 0.5,
		LoRAs: []LoRA{
			{Enabled: true, Model: "sd_xl_offset_example-lora_1.0.safetensors", Weight: 0.1},
		},

		InputImage: true,
		CurrentTab: "inpaint",
		UOVMethod:  "Disabled",

		ADMScalerPositive: 1.5,
		ADMScalerNegative: 0.8,
		ADMScalerEnd:      0.3,
		AdaptiveCFG:       7,
		ClipSkip:          2,
		Sampler:           "dpmpp_2m_sde_gpu",
		Scheduler:         "karras",
		VAE:               "Default (model)",
		Overwrite:         Overwrites{Step: -1, Switch: -1, Width: -1, Height: -1, VaryStrength: -1, UpscaleStrength: -1},

		CannyLow:           64,
		CannyHigh:          128,
		RefinerSwapMethod:  "joint",
		ControlNetSoftness: 0.25,
		FreeU:              FreeU{B1: 1.01, B2: 1.02, S1: 0.99, S2: 0.95},

		InpaintEngine:          "v2.6",
		InpaintStrength:        1,
		InpaintRespectiveField: 0.618,
		MetadataScheme:         "fooocus",

		EnhanceUOVMethod:          "Disabled",
		EnhanceUOVProcessingOrder: "Before First Enhancement",
		EnhanceUOVPromptType:      "Original Prompts",
	}
	for i := range p.ImagePrompts {
		p.ImagePrompts[i] = ImagePrompt{Stop: 0.5, Weight: 0.6, Type: "ImagePrompt"}
	}
	for i := range p.EnhanceTabs {
		p.EnhanceTabs[i] = defaultEnhanceTab()
	}
	return p
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// Validate reports the first out-of-range field.
func (p Params) Validate() error {
	if !slices.Contains(performances, p.Performance) {
		return invalid("unknown performance %q", p.Performance)
	}
	if p.ImageNumber < 1 || p.ImageNumber > 32 {
		return invalid("image number %d outside 1..32", p.ImageNumber)
	}
	if p.Sharpness < 0 || p.Sharpness > 30 {
		return invalid("sharpness %g outside 0..30", p.Sharpness)
	}
	if p.Guidance < 1 || p.Guidance > 30 {
		return invalid("guidance %g outside 1..30", p.Guidance)
	}
	if p.RefinerSwitch < 0.1 || p.RefinerSwitch > 1 {
		return invalid("refiner switch %g outside 0.1..1", p.RefinerSwitch)
	}
	if !slices.Contains(outputFormats, p.OutputFormat) {
		return invalid("unknown output format %q", p.OutputFormat)
	}
	if len(p.LoRAs) > 5 {
		return invalid("%d loras, at most 5", len(p.LoRAs))
	}
	for i, l := range p.LoRAs {
		if l.Weight < -2 || l.Weight > 2 {
			return invalid("lora %d weight %g outside -2..2", i+1, l.Weight)
		}
	}
	if p.Seed != -1 && (p.Seed < 0 || p.Seed > MaxSeed) {
		return invalid("seed %d outside 0..%d", p.Seed, MaxSeed)
	}
	return nil
}

func (p Params) seed() string {
	if p.Seed >= 0 {
		return strconv.FormatInt(p.Seed, 10)
	}
	return strconv.FormatInt(rand.Int64N(MaxSeed+1), 10)
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Args flattens p into the get_task argument vector for res. inpaint may be
// nil.
func (p Params) Args(res resolution.Resolution, inpaint *InpaintInput) []any {
	styles := p.Styles
	if styles == nil {
		styles = []string{}
	}
	outpaint := p.OutpaintSelections
	if outpaint == nil {
		outpaint = []string{}
	}
	var inpaintArg any
	if inpaint != nil {
		inpaintArg = inpaint
	}

	args := make([]any, 0, ArgCount)
	args = append(args,
		p.GenerateImageGrid,
		p.Prompt,
		p.NegativePrompt,
		styles,
		p.Performance,
		res.Label(),
		p.ImageNumber,
		p.OutputFormat,
		p.seed(),
		p.ReadWildcardsInOrder,
		p.Sharpness,
		p.Guidance,
		p.BaseModel,
		p.RefinerModel,
		p.RefinerSwitch,
	)
	for i := range 5 {
		l := LoRA{Enabled: true, Model: "None", Weight: 1}
		if i < len(p.LoRAs) {
			l = p.LoRAs[i]
		}
		args = append(args, l.Enabled, l.Model, l.Weight)
	}
	args = append(args,
		p.InputImage,
		p.CurrentTab,
		p.UOVMethod,
		nil, // uov input image
		outpaint,
		inpaintArg,
		p.InpaintAdditionalPrompt,
		nil, // inpaint mask upload
		p.DisablePreview,
		p.DisableIntermediateResults,
		p.DisableSeedIncrement,
		p.BlackOutNSFW,
		p.ADMScalerPositive,
		p.ADMScalerNegative,
		p.ADMScalerEnd,
		p.AdaptiveCFG,
		p.ClipSkip,
		p.Sampler,
		p.Scheduler,
		p.VAE,
		p.Overwrite.Step,
		p.Overwrite.Switch,
		p.Overwrite.Width,
		p.Overwrite.Height,
		p.Overwrite.VaryStrength,
		p.Overwrite.UpscaleStrength,
		p.MixingImagePromptAndVaryUpscale,
		p.MixingImagePromptAndInpaint,
		p.DebuggingCNPreprocessor,
		p.SkippingCNPreprocessor,
		p.CannyLow,
		p.CannyHigh,
		p.RefinerSwapMethod,
		p.ControlNetSoftness,
		p.FreeU.Enabled,
		p.FreeU.B1,
		p.FreeU.B2,
		p.FreeU.S1,
		p.FreeU.S2,
		p.DebuggingInpaintPreprocessor,
		p.InpaintDisableInitialLatent,
		p.InpaintEngine,
		p.InpaintStrength,
		p.InpaintRespectiveField,
		p.InpaintMaskUpload,
		p.InvertMask,
		p.InpaintErodeOrDilate,
		p.SaveMetadata,
		p.MetadataScheme,
	)
	for _, ip := range p.ImagePrompts {
		args = append(args, orNil(ip.Image), ip.Stop, ip.Weight, ip.Type)
	}
	args = append(args,
		p.DebuggingDino,
		p.DinoErodeOrDilate,
		p.DebuggingEnhanceMasks,
		nil, // enhance input image
		p.Enhance,
		p.EnhanceUOVMethod,
		p.EnhanceUOVProcessingOrder,
		p.EnhanceUOVPromptType,
	)
	for _, t := range p.EnhanceTabs {
		args = append(args,
			t.Enabled,
			t.MaskPrompt,
			t.Prompt,
			t.NegativePrompt,
			t.MaskModel,
			t.ClothCategory,
			t.SAMModel,
			t.TextThreshold,
			t.BoxThreshold,
			t.SAMMaxDetections,
			t.InpaintDisableInitialLatent,
			t.InpaintEngine,
			t.InpaintStrength,
			t.InpaintRespectiveField,
			t.InpaintErodeOrDilate,
			t.InvertMask,
		)
	}
	return args
}
