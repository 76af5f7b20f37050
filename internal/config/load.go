package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Defaults used when a pipeline file leaves a key unset.
const (
	DefaultRecordTag       = "row"
	DefaultAttributePrefix = "_"
	DefaultSampleSize      = 10
	DefaultTopN            = 20
	DefaultAnomalySamples  = 5
	DefaultPartitionBy     = "badge_year"
	DefaultCompression     = "snappy"
	DefaultBatchSize       = 5000
	DefaultChannelBuffer   = 1024
	DefaultWriters         = 4
)

// DefaultSentinels are the placeholder strings treated as anomalous values.
var DefaultSentinels = []string{"nan", "null", "n/a", "na", "none", "-", ""}

// DefaultValidClasses is the badge class domain.
var DefaultValidClasses = []int{1, 2, 3}

// Default returns a pipeline with every default applied for job.
func Default(job string) Pipeline {
	p := Pipeline{Job: job}
	ApplyDefaults(&p)
	return p
}

// ApplyDefaults fills zero-valued keys of p in place.
func ApplyDefaults(p *Pipeline) {
	if p.Source.Kind == "" {
		p.Source.Kind = "file"
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "xml"
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if _, ok := p.Parser.Options["record_tag"]; !ok {
		p.Parser.Options["record_tag"] = DefaultRecordTag
	}
	if _, ok := p.Parser.Options["attribute_prefix"]; !ok {
		p.Parser.Options["attribute_prefix"] = DefaultAttributePrefix
	}
	if p.Profile.SampleSize <= 0 {
		p.Profile.SampleSize = DefaultSampleSize
	}
	if p.Profile.TopN <= 0 {
		p.Profile.TopN = DefaultTopN
	}
	if len(p.Profile.ValidClasses) == 0 {
		p.Profile.ValidClasses = append([]int(nil), DefaultValidClasses...)
	}
	if p.Clean.Sentinels == nil {
		p.Clean.Sentinels = append([]string(nil), DefaultSentinels...)
	}
	if p.Clean.AnomalySamples <= 0 {
		p.Clean.AnomalySamples = DefaultAnomalySamples
	}
	if p.Clean.SampleSize <= 0 {
		p.Clean.SampleSize = DefaultSampleSize
	}
	if p.Export.PartitionBy == "" {
		p.Export.PartitionBy = DefaultPartitionBy
	}
	if p.Export.Compression == "" {
		p.Export.Compression = DefaultCompression
	}
	if p.Runtime.BatchSize <= 0 {
		p.Runtime.BatchSize = DefaultBatchSize
	}
	if p.Runtime.ChannelBuffer <= 0 {
		p.Runtime.ChannelBuffer = DefaultChannelBuffer
	}
	if p.Runtime.Writers <= 0 {
		p.Runtime.Writers = DefaultWriters
	}
}

// Load reads the pipeline file at path (optional), loads .env if present,
// applies BADGES_* overrides, then defaults. job is used when neither the
// file nor the environment names one.
func Load(path, job string) (Pipeline, error) {
	var p Pipeline
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := json.Unmarshal(b, &p); err != nil {
			return p, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return p, fmt.Errorf("config: load .env: %w", err)
	}
	if err := ApplyEnv(&p, os.LookupEnv); err != nil {
		return p, err
	}
	if p.Job == "" {
		p.Job = job
	}
	ApplyDefaults(&p)
	return p, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// ApplyEnv overrides keys of p from environment variables.
func ApplyEnv(p *Pipeline, lookup LookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := cast.ToIntE(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", name, v, err)
		}
		*dst = n
		return nil
	}

	str("BADGES_JOB", &p.Job)
	str("BADGES_INPUT", &p.Source.File.Path)
	str("BADGES_OUTPUT", &p.Export.Path)
	str("BADGES_COMPRESSION", &p.Export.Compression)
	for name, dst := range map[string]*int{
		"BADGES_MEMORY_MB":   &p.Engine.MemoryLimitMB,
		"BADGES_SAMPLE_SIZE": &p.Profile.SampleSize,
		"BADGES_TOP_N":       &p.Profile.TopN,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	return nil
}
