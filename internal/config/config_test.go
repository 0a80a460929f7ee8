package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	input := `
host = http://gpu-box:7865/
save_dir = /tmp/canvases

[notify]
generate = true
save = false
copy = true

[generate]
performance = Quality
styles = Fooocus V2, SAI Anime
negative: blurry
seed = 42
feather = 8
timeout = 90s
`
	r := strings.NewReader(input)
	cfg, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Host != "http://gpu-box:7865" {
		t.Errorf("Expected host 'http://gpu-box:7865', got '%s'", cfg.Host)
	}
	if cfg.SaveDir != "/tmp/canvases" {
		t.Errorf("Expected save_dir '/tmp/canvases', got '%s'", cfg.SaveDir)
	}

	if !cfg.Notify.Generate {
		t.Error("Expected notify.generate to be true")
	}
	if cfg.Notify.Save {
		t.Error("Expected notify.save to be false")
	}
	if !cfg.Notify.Copy {
		t.Error("Expected notify.copy to be true")
	}

	g := cfg.Generate
	if g.Performance != "Quality" || g.Negative != "blurry" || g.Seed != 42 || g.Feather != 8 {
		t.Errorf("Unexpected generate section: %+v", g)
	}
	if !reflect.DeepEqual(g.Styles, []string{"Fooocus V2", "SAI Anime"}) {
		t.Errorf("Unexpected styles: %q", g.Styles)
	}
	if g.Timeout != 90*time.Second {
		t.Errorf("Expected timeout 90s, got %s", g.Timeout)
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"[notify]\nsave = maybe\n",
		"[generate]\nseed = lots\n",
		"[generate]\nfeather = -1\n",
		"[generate]\ntimeout = soon\n",
	} {
		if _, err := Parse(strings.NewReader(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestParams(t *testing.T) {
	cfg := New()
	cfg.Generate.Performance = "Speed"
	cfg.Generate.Seed = 7
	p := cfg.Params()
	if p.Performance != "Speed" || p.Seed != 7 {
		t.Errorf("Unexpected params: performance=%q seed=%d", p.Performance, p.Seed)
	}
	if p.BaseModel == "" || len(p.Styles) == 0 {
		t.Error("Expected defaults to survive")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestCircular(t *testing.T) {
	input := `host = http://localhost:7865
save_dir = /home/user/canvases
sentry_dsn = https://key@sentry.example/1

[notify]
generate = true
save = true
copy = false

[generate]
performance = Lightning
styles = Fooocus Sharp
preset = /home/user/fast.toml
seed = -1
feather = 2
timeout = 1m0s
`
	// 1. Parse initial input
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Initial parse failed: %v", err)
	}

	// 2. Generate string representation
	generated := cfg.String()

	// 3. Parse generated string
	cfg2, err := Parse(strings.NewReader(generated))
	if err != nil {
		t.Fatalf("Circular parse failed: %v", err)
	}

	// 4. Compare
	if !reflect.DeepEqual(cfg, cfg2) {
		t.Errorf("Config mismatch:\n%+v\nvs\n%+v", cfg, cfg2)
	}
}

func TestLoaderEnv(t *testing.T) {
	dir := t.TempDir()
	rc := filepath.Join(dir, "config.rc")
	if err := os.WriteFile(rc, []byte("host = http://from-config:1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("FOOOCUS_HOST=http://from-dotenv:2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader("test", rc)
	l.EnvFiles = []string{filepath.Join(dir, "missing.env")}
	t.Setenv(HostEnv, "")
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Host != "http://from-config:1" {
		t.Errorf("Expected config host, got %q", cfg.Host)
	}

	t.Setenv(HostEnv, "http://from-env:3/")
	cfg, err = l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Host != "http://from-env:3" {
		t.Errorf("Expected env host, got %q", cfg.Host)
	}

	os.Unsetenv(HostEnv)
	l.EnvFiles = []string{envFile}
	cfg, err = l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Host != "http://from-dotenv:2" {
		t.Errorf("Expected .env host, got %q", cfg.Host)
	}
}

func TestLoaderDefaultsReadsEnvFiles(t *testing.T) {
	dir := t.TempDir()
	rc := filepath.Join(dir, "broken.rc")
	if err := os.WriteFile(rc, []byte("[generate]\nseed = not-a-number\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("FOOOCUS_HOST=http://from-dotenv:4/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader("test", rc)
	l.EnvFiles = []string{envFile}
	t.Setenv(HostEnv, "")
	os.Unsetenv(HostEnv)
	if _, err := l.Load(); err == nil {
		t.Fatal("Expected Load to fail on a broken config file")
	}

	cfg, err := l.Defaults()
	if err != nil {
		t.Fatalf("Defaults failed: %v", err)
	}
	if cfg.Host != "http://from-dotenv:4" {
		t.Errorf("Expected .env host on fallback, got %q", cfg.Host)
	}
	if !reflect.DeepEqual(cfg.Generate, New().Generate) {
		t.Errorf("Expected default generate settings, got %+v", cfg.Generate)
	}
}

func TestApplyEnvSentry(t *testing.T) {
	t.Setenv(SentryDSNEnv, " https://key@sentry.example/2 ")
	cfg := New()
	ApplyEnv(cfg)
	if cfg.SentryDSN != "https://key@sentry.example/2" {
		t.Errorf("Expected env DSN, got %q", cfg.SentryDSN)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.rc")
	cfg := New()
	cfg.SaveDir = "/tmp/out"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	back, err := Parse(f)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, back) {
		t.Errorf("Saved config mismatch:\n%+v\nvs\n%+v", cfg, back)
	}
}
