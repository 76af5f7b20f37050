package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPipeline_Decode(t *testing.T) {
	t.Parallel()

	const js = `{
	  "job": "badges-clean",
	  "source": { "kind": "file", "file": { "path": "Badges.xml" } },
	  "parser": { "kind": "xml", "options": { "record_tag": "row", "attribute_prefix": "_", "zero_copy": "true" } },
	  "engine": { "memory_limit_mb": 512, "max_conns": 2 },
	  "profile": { "sample_size": 5, "top_n": 3, "valid_classes": [1, 2] },
	  "clean": { "sentinels": ["nan", "-"], "anomaly_columns": ["_Name"] },
	  "export": { "path": "out", "partition_by": "badge_year", "compression": "zstd" },
	  "storage": { "kind": "postgres", "db": { "dsn": "postgres://x", "table": "public.badges", "key_columns": ["id"], "replace": false } },
	  "runtime": { "reader_workers": 2, "writers": 3, "batch_size": 100 }
	}`

	var p Pipeline
	if err := json.Unmarshal([]byte(js), &p); err != nil {
		t.Fatalf("json.Unmarshal(Pipeline): %v", err)
	}
	if p.Source.File.Path != "Badges.xml" {
		t.Fatalf("source.file.path=%q; want Badges.xml", p.Source.File.Path)
	}
	if got := p.Parser.Options.Bool("zero_copy", false); !got {
		t.Fatalf("zero_copy=%v; want true (string coerced)", got)
	}
	if p.Engine.MemoryLimitMB != 512 || p.Engine.MaxConns != 2 {
		t.Fatalf("engine=%+v", p.Engine)
	}
	if !reflect.DeepEqual(p.Profile.ValidClasses, []int{1, 2}) {
		t.Fatalf("valid_classes=%v", p.Profile.ValidClasses)
	}
	if !reflect.DeepEqual(p.Clean.AnomalyColumns, []string{"_Name"}) {
		t.Fatalf("anomaly_columns=%v", p.Clean.AnomalyColumns)
	}
	if p.Export.Compression != "zstd" || p.Runtime.Writers != 3 {
		t.Fatalf("export=%+v runtime=%+v", p.Export, p.Runtime)
	}
	if p.Storage.DB.ReplaceOrDefault() {
		t.Fatal("replace=false decoded as true")
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	p := Default("badges-profile")
	if p.Source.Kind != "file" || p.Parser.Kind != "xml" {
		t.Fatalf("kinds=%q/%q", p.Source.Kind, p.Parser.Kind)
	}
	if got := p.Parser.Options.String("record_tag", ""); got != "row" {
		t.Fatalf("record_tag=%q; want row", got)
	}
	if got := p.Parser.Options.String("attribute_prefix", "?"); got != "_" {
		t.Fatalf("attribute_prefix=%q; want _", got)
	}
	if p.Profile.SampleSize != 10 || p.Profile.TopN != 20 {
		t.Fatalf("profile=%+v", p.Profile)
	}
	if len(p.Clean.Sentinels) != 7 {
		t.Fatalf("sentinels=%v; want 7", p.Clean.Sentinels)
	}
	if p.Export.PartitionBy != "badge_year" || p.Export.Compression != "snappy" {
		t.Fatalf("export=%+v", p.Export)
	}
	if !p.Storage.DB.ReplaceOrDefault() {
		t.Fatal("replace default should be true")
	}

	// Explicit empty sentinel list is kept.
	q := Pipeline{Clean: Clean{Sentinels: []string{}}}
	ApplyDefaults(&q)
	if len(q.Clean.Sentinels) != 0 {
		t.Fatalf("explicit empty sentinels replaced: %v", q.Clean.Sentinels)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"BADGES_INPUT":       " /data/Badges.xml ",
		"BADGES_OUTPUT":      "/data/out",
		"BADGES_MEMORY_MB":   "2048",
		"BADGES_TOP_N":       "5",
		"BADGES_COMPRESSION": "gzip",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	var p Pipeline
	if err := ApplyEnv(&p, lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if p.Source.File.Path != "/data/Badges.xml" || p.Export.Path != "/data/out" {
		t.Fatalf("paths=%q/%q", p.Source.File.Path, p.Export.Path)
	}
	if p.Engine.MemoryLimitMB != 2048 || p.Profile.TopN != 5 || p.Export.Compression != "gzip" {
		t.Fatalf("pipeline=%+v", p)
	}

	env["BADGES_SAMPLE_SIZE"] = "ten"
	if err := ApplyEnv(&p, lookup); err == nil {
		t.Fatal("ApplyEnv accepted a non-numeric sample size")
	}
}

func TestLoad_FileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.json")
	if err := os.WriteFile(path, []byte(`{"source":{"kind":"file","file":{"path":"in.xml"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BADGES_OUTPUT", "envout")

	p, err := Load(path, "badges-clean")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Job != "badges-clean" || p.Source.File.Path != "in.xml" || p.Export.Path != "envout" {
		t.Fatalf("p=%+v", p)
	}
	if _, err := Load(filepath.Join(dir, "missing.json"), "x"); err == nil {
		t.Fatal("Load of a missing file returned nil error")
	}
}

func TestOptions_Getters(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":    "x",
		"b":    "true",
		"n":    float64(7),
		"ns":   "8",
		"bad":  []any{1},
		"m":    map[string]any{"a": "1", "b": 2},
		"list": []any{"a", 3, "b"},
	}
	if got := o.String("s", "d"); got != "x" {
		t.Fatalf("String=%q", got)
	}
	if got := o.String("missing", "d"); got != "d" {
		t.Fatalf("String default=%q", got)
	}
	if !o.Bool("b", false) {
		t.Fatal("Bool(\"true\") = false")
	}
	if got := o.Int("n", 0); got != 7 {
		t.Fatalf("Int=%d", got)
	}
	if got := o.Int("ns", 0); got != 8 {
		t.Fatalf("Int(string)=%d", got)
	}
	if got := o.Int("bad", 3); got != 3 {
		t.Fatalf("Int(bad)=%d; want default", got)
	}
}

func TestOptions_UnmarshalJSON_NullYieldsEmptyMap(t *testing.T) {
	t.Parallel()

	var p Parser
	if err := json.Unmarshal([]byte(`{"kind":"xml","options":null}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Options == nil || len(p.Options) != 0 {
		t.Fatalf("options=%#v; want empty non-nil", p.Options)
	}
}

func TestLoad_ShippedPipeline(t *testing.T) {
	for _, k := range []string{"BADGES_JOB", "BADGES_INPUT", "BADGES_OUTPUT", "BADGES_COMPRESSION"} {
		t.Setenv(k, "")
	}
	p, err := Load(filepath.Join("..", "..", "configs", "pipelines", "badges.json"), "badges_profile")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Job != "badges_cleaning" || p.Export.PartitionBy != "badge_year" {
		t.Fatalf("p=%+v", p)
	}
	if issues := ValidatePipeline(p, true); HasErrors(issues) {
		t.Fatalf("issues: %v", issues)
	}
}
