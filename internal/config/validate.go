package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config (e.g. "export.compression").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Compressions lists the accepted export.compression values.
var Compressions = []string{"snappy", "gzip", "zstd", "lz4", "none"}

// ValidatePipeline performs static validation of p without mutating it.
// needExport is true for jobs that write Parquet output.
func ValidatePipeline(p Pipeline, needExport bool) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateEngine(p.Engine)...)
	issues = append(issues, validateProfile(p.Profile)...)
	if needExport {
		issues = append(issues, validateExport(p.Export)...)
		issues = append(issues, validateStorage(p.Storage)...)
	}
	issues = append(issues, validateRuntime(p.Runtime)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path (-input or BADGES_INPUT)",
			})
		}
	case "http":
		u := strings.TrimSpace(s.HTTP.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  fmt.Sprintf("http source requires an http(s) URL, got %q", u),
			})
		}
		if s.HTTP.Insecure {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source.http.insecure_skip_verify",
				Message:  "TLS certificate verification is disabled",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unsupported source kind %q; want \"file\" or \"http\"", s.Kind),
		})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if p.Kind != "xml" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q; only \"xml\" is available", p.Kind),
		})
		return issues
	}
	if strings.TrimSpace(p.Options.String("record_tag", "")) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.record_tag",
			Message:  "record_tag must not be empty",
		})
	}
	if p.Options.Bool("zero_copy", false) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.zero_copy",
			Message:  "zero_copy reads the whole file into memory",
		})
	}
	return issues
}

func validateEngine(e Engine) []Issue {
	var issues []Issue
	if e.MemoryLimitMB < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "engine.memory_limit_mb",
			Message:  "memory_limit_mb must not be negative",
		})
	}
	if e.MaxConns < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "engine.max_conns",
			Message:  "max_conns must not be negative",
		})
	}
	return issues
}

func validateProfile(p Profile) []Issue {
	var issues []Issue
	if p.SampleSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "profile.sample_size",
			Message:  "sample_size must not be negative",
		})
	}
	if p.TopN < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "profile.top_n",
			Message:  "top_n must not be negative",
		})
	}
	return issues
}

func validateExport(e Export) []Issue {
	var issues []Issue
	if strings.TrimSpace(e.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.path",
			Message:  "export.path must not be empty (-output or BADGES_OUTPUT)",
		})
	}
	ok := false
	for _, c := range Compressions {
		if strings.EqualFold(e.Compression, c) {
			ok = true
			break
		}
	}
	if !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.compression",
			Message:  fmt.Sprintf("unknown compression %q; want one of %s", e.Compression, strings.Join(Compressions, ", ")),
		})
	}
	if strings.TrimSpace(e.PartitionBy) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "export.partition_by",
			Message:  "no partition column; output is written as a single directory",
		})
	}
	return issues
}

// validateStorage checks the optional mirror. An empty kind disables it.
func validateStorage(s Storage) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		return nil
	}

	known := map[string]struct{}{
		"postgres": {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; non-positive batch sizes may hurt throughput", r.BatchSize),
		})
	}
	if r.ReaderWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.reader_workers",
			Message:  "reader_workers must not be negative",
		})
	}
	if r.Writers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.writers",
			Message:  "writers must not be negative",
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}
	return issues
}
