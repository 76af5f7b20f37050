package cli

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"badgeetl/internal/config"
	"badgeetl/internal/etlerr"
)

func TestParseAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "p.json")
	body := `{"job":"from_file","source":{"file":{"path":"a.xml"}},"export":{"path":"out_a"}}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	f, err := Parse("x", []string{"-config", cfgPath, "-input", "b.xml", "-output", "out_b", "-v"}, io.Discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.Verbose {
		t.Fatal("-v not parsed")
	}
	p, err := LoadConfig(f, "default_job")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if p.Job != "from_file" || p.Source.File.Path != "b.xml" || p.Export.Path != "out_b" {
		t.Fatalf("pipeline=%+v", p)
	}
	if p.Export.PartitionBy != config.DefaultPartitionBy {
		t.Fatalf("defaults not applied: %+v", p.Export)
	}
}

func TestLoadConfigURLInput(t *testing.T) {
	t.Chdir(t.TempDir())
	p, err := LoadConfig(Flags{Input: "https://example.org/Badges.xml"}, "j")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if p.Source.Kind != "http" || p.Source.HTTP.URL != "https://example.org/Badges.xml" {
		t.Fatalf("source=%+v", p.Source)
	}
}

func TestParseBadFlag(t *testing.T) {
	_, err := Parse("x", []string{"-nope"}, io.Discard)
	if !errors.Is(err, etlerr.ErrConfig) {
		t.Fatalf("err=%v; want ErrConfig", err)
	}
	if got := Exit(err, zap.NewNop()); got != etlerr.ExitConfig {
		t.Fatalf("exit=%d; want %d", got, etlerr.ExitConfig)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(Flags{Config: filepath.Join(t.TempDir(), "missing.json")}, "j")
	if !errors.Is(err, etlerr.ErrConfig) {
		t.Fatalf("err=%v; want ErrConfig", err)
	}
}

func TestCheckConfig(t *testing.T) {
	p := config.Default("j")
	if err := CheckConfig(p, true, zap.NewNop()); !errors.Is(err, etlerr.ErrConfig) {
		t.Fatalf("missing input/output accepted: %v", err)
	}
	p.Source.File.Path = "Badges.xml"
	p.Export.Path = "out"
	if err := CheckConfig(p, true, zap.NewNop()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestSetupMetrics(t *testing.T) {
	t.Setenv("METRICS_BACKEND", "")
	for _, f := range []Flags{
		{MetricsBackend: "none"},
		{MetricsBackend: "bogus"},
		{},
	} {
		flush := SetupMetrics(f, "j", zap.NewNop())
		flush()
	}
	flush := SetupMetrics(Flags{MetricsBackend: "pushgateway", PushgatewayURL: "http://127.0.0.1:1"}, "j", zap.NewNop())
	flush() // push fails; logged, not fatal
}

func TestExit(t *testing.T) {
	log := zap.NewNop()
	cases := []struct {
		err  error
		want int
	}{
		{nil, etlerr.ExitOK},
		{etlerr.ErrCastFailure, etlerr.ExitOK},
		{etlerr.ErrRoundTripMismatch, etlerr.ExitValidation},
		{etlerr.ErrSourceNotFound, etlerr.ExitFatal},
	}
	for _, c := range cases {
		if got := Exit(c.err, log); got != c.want {
			t.Errorf("Exit(%v)=%d; want %d", c.err, got, c.want)
		}
	}
}
