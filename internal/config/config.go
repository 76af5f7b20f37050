// Package config defines the JSON-serializable configuration model for the
// badge jobs. A pipeline file is decoded into Pipeline, defaults fill the
// gaps, and BADGES_* environment variables (optionally from a .env file)
// override individual keys.
//
// Example (trimmed):
//
//	{
//	  "job":     "badges-clean",
//	  "source":  { "kind": "file", "file": { "path": "Badges.xml" } },
//	  "parser":  { "kind": "xml", "options": { "record_tag": "row", "attribute_prefix": "_" } },
//	  "export":  { "path": "out/badges_cleaned", "partition_by": "badge_year", "compression": "snappy" },
//	  "storage": { "kind": "sqlite", "db": { "dsn": "file:badges.db", "table": "badges", "auto_create_table": true } }
//	}
package config

import (
	"encoding/json"

	"github.com/spf13/cast"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels metrics and log lines for a run.
	Job string `json:"job"`

	Source Source `json:"source"`
	Parser Parser `json:"parser"`
	Engine Engine `json:"engine"`

	Profile Profile `json:"profile"`
	Clean   Clean   `json:"clean"`
	Export  Export  `json:"export"`

	// Storage configures the optional database mirror of the cleaned table.
	// An empty kind disables it.
	Storage Storage       `json:"storage"`
	Runtime RuntimeConfig `json:"runtime"`
}

// RuntimeConfig controls internal parallelism and batching.
type RuntimeConfig struct {
	ReaderWorkers int `json:"reader_workers"`
	Writers       int `json:"writers"`
	BatchSize     int `json:"batch_size"`
	ChannelBuffer int `json:"channel_buffer"`
}

// Source identifies the data source: "file" or "http".
type Source struct {
	Kind string     `json:"kind"`
	File SourceFile `json:"file"`
	HTTP SourceHTTP `json:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	MaxRetries     *int              `json:"max_retries"`
	Insecure       bool              `json:"insecure_skip_verify"`
}

// Location returns the path or URL the source reads from.
func (s Source) Location() string {
	if s.Kind == "http" {
		return s.HTTP.URL
	}
	return s.File.Path
}

// Parser selects how the raw file is turned into rows.
type Parser struct {
	// Kind selects the parser implementation. Current value: "xml".
	Kind string `json:"kind"`

	// Options is interpreted by the parser. For XML:
	//   record_tag (string), attribute_prefix (string), zero_copy (bool),
	//   fast_path (bool), fields (object of column -> path)
	Options Options `json:"options"`
}

// Engine configures the embedded SQL session.
type Engine struct {
	// DSN of the session database. Empty means a private in-memory database.
	DSN           string `json:"dsn"`
	MemoryLimitMB int    `json:"memory_limit_mb"`
	MaxConns      int    `json:"max_conns"`
}

// Profile configures the read-only quality report.
type Profile struct {
	SampleSize   int   `json:"sample_size"`
	TopN         int   `json:"top_n"`
	ValidClasses []int `json:"valid_classes"`
}

// Clean configures the cleaning step.
type Clean struct {
	Sentinels      []string `json:"sentinels"`
	AnomalyColumns []string `json:"anomaly_columns"`
	AnomalySamples int      `json:"anomaly_samples"`
	SampleSize     int      `json:"sample_size"`
}

// Export configures the partitioned Parquet output.
type Export struct {
	Path        string `json:"path"`
	PartitionBy string `json:"partition_by"`
	Compression string `json:"compression"`
}

// Storage selects the database mirror sink.
type Storage struct {
	// Kind is one of "sqlite", "postgres", "mssql", or empty for none.
	Kind string   `json:"kind"`
	DB   DBConfig `json:"db"`
}

// DBConfig configures the mirror table.
type DBConfig struct {
	DSN string `json:"dsn"`

	// Table is the destination table name, optionally schema-qualified.
	Table string `json:"table"`

	// Columns restricts the mirrored columns. Empty means all clean columns.
	Columns []string `json:"columns"`

	// KeyColumns become the primary key when the table is auto-created.
	KeyColumns []string `json:"key_columns"`

	AutoCreateTable bool `json:"auto_create_table"`

	// Replace deletes existing rows before loading so reruns do not append.
	Replace *bool `json:"replace"`
}

// ReplaceOrDefault reports whether the mirror table is emptied before a load.
func (d DBConfig) ReplaceOrDefault() bool {
	if d.Replace == nil {
		return true
	}
	return *d.Replace
}

// Options fetches typed values from free-form JSON maps. Values are coerced
// with spf13/cast so "true", 1 and true all read as booleans; def is returned
// when a key is absent or cannot be coerced.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, err := cast.ToStringE(v); err == nil {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return def
}

// UnmarshalJSON decodes a missing or null options object to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
