package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/fooocanvas/internal/fooocus"
)

// Notify holds notification settings.
type Notify struct {
	Generate bool
	Save     bool
	Copy     bool
}

// Generate holds the request defaults a user may want to pin. Zero values
// leave the built-in defaults alone.
type Generate struct {
	Performance string
	Styles      []string
	Negative    string
	BaseModel   string
	Sampler     string
	Scheduler   string
	Seed        int64
	Feather     int
	Timeout     time.Duration
	// Preset is a TOML file of fooocus.Params overrides.
	Preset string
}

// Config holds the application configuration.
type Config struct {
	Host      string
	SaveDir   string
	SentryDSN string
	Notify    Notify
	Generate  Generate
}

// New creates a new Config with defaults.
func New() *Config {
	return &Config{
		Host: fooocus.DefaultHost,
		Generate: Generate{
			Seed:    -1,
			Feather: 4,
			Timeout: 5 * time.Minute,
		},
	}
}

// Params layers the [generate] settings over fooocus.DefaultParams.
func (c *Config) Params() fooocus.Params {
	p := fooocus.DefaultParams()
	g := c.Generate
	if g.Performance != "" {
		p.Performance = g.Performance
	}
	if len(g.Styles) > 0 {
		p.Styles = append([]string(nil), g.Styles...)
	}
	if g.Negative != "" {
		p.NegativePrompt = g.Negative
	}
	if g.BaseModel != "" {
		p.BaseModel = g.BaseModel
	}
	if g.Sampler != "" {
		p.Sampler = g.Sampler
	}
	if g.Scheduler != "" {
		p.Scheduler = g.Scheduler
	}
	p.Seed = g.Seed
	return p
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	// Root section
	if c.Host != "" {
		fmt.Fprintf(&sb, "host = %s\n", c.Host)
	}
	if c.SaveDir != "" {
		fmt.Fprintf(&sb, "save_dir = %s\n", c.SaveDir)
	}
	if c.SentryDSN != "" {
		fmt.Fprintf(&sb, "sentry_dsn = %s\n", c.SentryDSN)
	}
	sb.WriteString("\n")

	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "generate = %v\n", c.Notify.Generate)
	fmt.Fprintf(&sb, "save = %v\n", c.Notify.Save)
	fmt.Fprintf(&sb, "copy = %v\n", c.Notify.Copy)
	sb.WriteString("\n")

	g := c.Generate
	sb.WriteString("[generate]\n")
	writeIf := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%s = %s\n", key, value)
		}
	}
	writeIf("performance", g.Performance)
	writeIf("styles", strings.Join(g.Styles, ", "))
	writeIf("negative", g.Negative)
	writeIf("base_model", g.BaseModel)
	writeIf("sampler", g.Sampler)
	writeIf("scheduler", g.Scheduler)
	writeIf("preset", g.Preset)
	fmt.Fprintf(&sb, "seed = %d\n", g.Seed)
	fmt.Fprintf(&sb, "feather = %d\n", g.Feather)
	fmt.Fprintf(&sb, "timeout = %s\n", g.Timeout)

	return sb.String()
}
