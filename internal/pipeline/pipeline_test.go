package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"badgeetl/internal/config"
	"badgeetl/internal/datasource"
	"badgeetl/internal/engine"
	"badgeetl/internal/etlerr"
	"badgeetl/internal/export"
	"badgeetl/internal/loader"
	"badgeetl/internal/storage"
	_ "badgeetl/internal/storage/all"
	"badgeetl/internal/table"
)

const badgesXML = `<?xml version="1.0" encoding="utf-8"?>
<badges>
  <row Id="1" UserId="2" Name="Autobiographer" Date="2008-07-31T21:42:52.667" Class="3" TagBased="False" />
  <row Id="2" UserId="-1" Name="  Nice Answer  " Date="2008-07-31T21:42:52.667" Class="2" TagBased="True" />
  <row Id="3" UserId="4" Name="NaN" Date="2009-01-02T03:04:05.000" Class="99" TagBased="True" />
  <row Id="3" UserId="5" Name="java" Date="2010-05-06T07:08:09.000" Class="1" TagBased="False" />
</badges>`

func pipelineFor(t *testing.T) config.Pipeline {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "Badges.xml")
	if err := os.WriteFile(in, []byte(badgesXML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p := config.Default("badges_test")
	p.Source.File.Path = in
	p.Export.Path = filepath.Join(dir, "badges_cleaned")
	return p
}

// restore resets every seam when the test ends.
func restore(t *testing.T) {
	t.Helper()
	o, l, e, v, m := openSessionFn, loadFn, exportFn, validateFn, mirrorFn
	t.Cleanup(func() {
		openSessionFn, loadFn, exportFn, validateFn, mirrorFn = o, l, e, v, m
	})
}

func TestRunProfile(t *testing.T) {
	var out bytes.Buffer
	rep, err := RunProfile(context.Background(), pipelineFor(t), &out, zap.NewNop())
	if err != nil {
		t.Fatalf("RunProfile: %v", err)
	}
	if rep.TotalRows != 4 || rep.Classes.InvalidCount != 1 || rep.Users.NegativeCount != 1 {
		t.Fatalf("report total=%d invalid=%d negative=%d", rep.TotalRows, rep.Classes.InvalidCount, rep.Users.NegativeCount)
	}
	if rep.Duplicates.Count != 1 {
		t.Fatalf("duplicates=%d; want 1", rep.Duplicates.Count)
	}
	if !strings.Contains(out.String(), "PROFILING SUMMARY") {
		t.Fatalf("report not rendered:\n%s", out.String())
	}
}

func TestRunProfileMissingSource(t *testing.T) {
	p := pipelineFor(t)
	p.Source.File.Path = filepath.Join(t.TempDir(), "nope.xml")
	_, err := RunProfile(context.Background(), p, &bytes.Buffer{}, nil)
	if !errors.Is(err, etlerr.ErrSourceNotFound) {
		t.Fatalf("err=%v; want ErrSourceNotFound", err)
	}
	if etlerr.ExitCode(err) != etlerr.ExitFatal {
		t.Fatalf("exit code=%d", etlerr.ExitCode(err))
	}
}

func TestRunSessionFailure(t *testing.T) {
	restore(t)
	openSessionFn = func(context.Context, engine.Options) (*engine.Session, error) {
		return nil, fmt.Errorf("engine: %w: no memory", etlerr.ErrResourceAcquisition)
	}
	loadFn = func(context.Context, datasource.Source, loader.Options) (*table.Table, error) {
		t.Fatal("load must not run without a session")
		return nil, nil
	}
	for name, run := range map[string]func() error{
		"profile": func() error {
			_, err := RunProfile(context.Background(), pipelineFor(t), &bytes.Buffer{}, nil)
			return err
		},
		"clean": func() error {
			_, err := RunClean(context.Background(), pipelineFor(t), &bytes.Buffer{}, nil)
			return err
		},
	} {
		if err := run(); !errors.Is(err, etlerr.ErrResourceAcquisition) {
			t.Fatalf("%s: err=%v; want ErrResourceAcquisition", name, err)
		}
	}
}

func TestRunClean(t *testing.T) {
	p := pipelineFor(t)
	var out bytes.Buffer
	res, err := RunClean(context.Background(), p, &out, zap.NewNop())
	if err != nil {
		t.Fatalf("RunClean: %v", err)
	}
	if res.Clean.FinalCount != 4 || res.Clean.CountDelta != 0 {
		t.Fatalf("counts final=%d delta=%d", res.Clean.FinalCount, res.Clean.CountDelta)
	}
	if !res.Validation.OK() || res.Validation.Actual != 4 {
		t.Fatalf("validation=%+v", res.Validation)
	}
	if len(res.Validation.Partitions) != 3 {
		t.Fatalf("partitions=%+v", res.Validation.Partitions)
	}
	if !errors.Is(res.Warnings, etlerr.ErrAnomalyDetected) || !errors.Is(res.Warnings, etlerr.ErrSchemaDomainViolation) {
		t.Fatalf("warnings=%v", res.Warnings)
	}
	if etlerr.ExitCode(err) != etlerr.ExitOK {
		t.Fatalf("exit code=%d", etlerr.ExitCode(err))
	}
	if _, err := os.Stat(filepath.Join(p.Export.Path, export.SuccessMarker)); err != nil {
		t.Fatalf("no success marker: %v", err)
	}
	for _, want := range []string{"YEAR DISTRIBUTION", "EXPORT VALIDATION", "nice answer", "Sample of read-back rows (4)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
	if res.Mirrored != 0 {
		t.Fatalf("mirror ran without storage.kind")
	}

	// A second run replaces the output instead of appending to it.
	res, err = RunClean(context.Background(), p, &bytes.Buffer{}, nil)
	if err != nil || res.Validation.Actual != 4 {
		t.Fatalf("rerun: err=%v actual=%d", err, res.Validation.Actual)
	}
}

func TestRunCleanPrintsSummary(t *testing.T) {
	p := pipelineFor(t)
	var out bytes.Buffer
	if _, err := RunClean(context.Background(), p, &out, nil); err != nil {
		t.Fatalf("RunClean: %v", err)
	}
	got := out.String()
	i := strings.Index(got, "CLEANING COMPLETE")
	if i < 0 || i < strings.Index(got, "EXPORT VALIDATION") {
		t.Fatalf("summary missing or not last:\n%s", got)
	}
	summary := got[i:]
	for _, want := range []string{
		"Input:             " + p.Source.File.Path,
		"Output:            " + p.Export.Path,
		"Format:            parquet (snappy)",
		"Partitioned by:    badge_year",
		"Records processed: 4",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q", want)
		}
	}
	mapping := []string{
		"_Id -> id (long)",
		"_UserId -> user_id (long)",
		"_Name -> name (string)",
		"_Date -> date (timestamp)",
		"_Class -> badge_class (short)",
		"_TagBased -> tag_based (boolean)",
		"[NEW] badge_year (int)",
	}
	last := -1
	for _, m := range mapping {
		j := strings.Index(summary, m)
		if j <= last {
			t.Fatalf("mapping line %q missing or out of order:\n%s", m, summary)
		}
		last = j
	}
}

func TestRunCleanRoundTripMismatch(t *testing.T) {
	restore(t)
	validateFn = func(ctx context.Context, path string, expected int64, opts export.Options) (*export.Validation, error) {
		v, _ := export.Validate(ctx, path, expected, opts)
		v.Expected = expected + 1
		return v, fmt.Errorf("export: %w: wrote %d rows, read back %d", etlerr.ErrRoundTripMismatch, v.Expected, v.Actual)
	}
	res, err := RunClean(context.Background(), pipelineFor(t), &bytes.Buffer{}, nil)
	if !errors.Is(err, etlerr.ErrRoundTripMismatch) {
		t.Fatalf("err=%v; want ErrRoundTripMismatch", err)
	}
	if res == nil || res.Validation == nil {
		t.Fatal("result dropped on mismatch")
	}
	if etlerr.ExitCode(err) != etlerr.ExitValidation {
		t.Fatalf("exit code=%d; want %d", etlerr.ExitCode(err), etlerr.ExitValidation)
	}
}

func TestRunCleanExportFailure(t *testing.T) {
	restore(t)
	exportFn = func(context.Context, *table.Table, export.Options) (*export.Result, error) {
		return nil, errors.New("disk full")
	}
	validateFn = func(context.Context, string, int64, export.Options) (*export.Validation, error) {
		t.Fatal("validate must not run after a failed export")
		return nil, nil
	}
	_, err := RunClean(context.Background(), pipelineFor(t), &bytes.Buffer{}, nil)
	if err == nil || !strings.Contains(err.Error(), "disk full") || !etlerr.IsFatal(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestRunCleanMirrorsToSQLite(t *testing.T) {
	p := pipelineFor(t)
	dbPath := filepath.Join(t.TempDir(), "badges.db")
	p.Storage.Kind = "sqlite"
	p.Storage.DB.DSN = "file:" + dbPath
	p.Storage.DB.Table = "badges"
	p.Storage.DB.AutoCreateTable = true
	p.Storage.DB.KeyColumns = []string{"id", "user_id"}

	for i := 0; i < 2; i++ {
		res, err := RunClean(context.Background(), p, &bytes.Buffer{}, nil)
		if err != nil {
			t.Fatalf("RunClean #%d: %v", i, err)
		}
		if res.Mirrored != 4 {
			t.Fatalf("mirrored=%d; want 4", res.Mirrored)
		}
	}

	db, err := sql.Open("sqlite", p.Storage.DB.DSN)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "badges"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Fatalf("rows in mirror=%d; want 4", n)
	}
}

func TestRunCleanMirrorSeam(t *testing.T) {
	restore(t)
	var got storage.MirrorOptions
	mirrorFn = func(_ context.Context, opts storage.MirrorOptions, tbl *table.Table, _ *zap.Logger) (int64, error) {
		got = opts
		return int64(tbl.Len()), nil
	}
	p := pipelineFor(t)
	p.Storage.Kind = "postgres"
	p.Storage.DB.DSN = "postgres://u:p@localhost/db"
	p.Storage.DB.Table = "public.badges"
	res, err := RunClean(context.Background(), p, &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("RunClean: %v", err)
	}
	if got.Kind != "postgres" || got.Table != "public.badges" || !got.Replace || got.Job != "badges_test" {
		t.Fatalf("mirror options=%+v", got)
	}
	if res.Mirrored != 4 {
		t.Fatalf("mirrored=%d", res.Mirrored)
	}
}

func TestRunProfileOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, badgesXML)
	}))
	defer srv.Close()

	p := pipelineFor(t)
	p.Source.Kind = "http"
	p.Source.HTTP.URL = srv.URL + "/Badges.xml"
	rep, err := RunProfile(context.Background(), p, &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("RunProfile: %v", err)
	}
	if rep.TotalRows != 4 {
		t.Fatalf("rows=%d; want 4", rep.TotalRows)
	}
}

func TestRunProfileHTTPNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := pipelineFor(t)
	p.Source.Kind = "http"
	p.Source.HTTP.URL = srv.URL + "/missing.xml"
	_, err := RunProfile(context.Background(), p, &bytes.Buffer{}, nil)
	if !errors.Is(err, etlerr.ErrSourceNotFound) {
		t.Fatalf("err=%v; want ErrSourceNotFound", err)
	}
}
