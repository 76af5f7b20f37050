package export

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/zeebo/xxh3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"badgeetl/internal/etlerr"
	"badgeetl/internal/table"
)

// Partition is the read-back row count of one partition directory.
type Partition struct {
	Dir   string
	Value string // "null" for the default partition
	Rows  int64
	Files int
}

// Validation is what Validate read back.
type Validation struct {
	Path     string
	Expected int64
	Actual   int64
	Files    int
	// Schema is the read-back schema: the data columns in writer order, then
	// the partition column with its type inferred from the directory names.
	Schema table.Schema
	// Sample holds the first rows read back, aligned to Schema.
	Sample     [][]any
	Partitions []Partition
	// ChecksumMismatches lists part files whose ids no longer hash to the
	// checksum recorded at write time.
	ChecksumMismatches []string
}

// OK reports whether the read-back matched on every count and checksum.
func (v *Validation) OK() bool {
	return v.Expected == v.Actual && len(v.ChecksumMismatches) == 0
}

// Validate re-reads every part file footer under path, sums row counts per
// partition, re-verifies id checksums and reads back a sample of rows. A count or checksum mismatch is
// returned as etlerr.ErrRoundTripMismatch alongside the populated report.
func Validate(ctx context.Context, path string, expected int64, opts Options) (*Validation, error) {
	opts = opts.withDefaults()
	if _, err := os.Stat(filepath.Join(path, SuccessMarker)); err != nil {
		return nil, fmt.Errorf("export: %s is not a complete output: %w", path, err)
	}
	files, err := partFiles(path)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	v := &Validation{Path: path, Expected: expected, Files: len(files)}
	byDir := map[string]*Partition{}
	var (
		partKey    string
		sampleDirs []string
	)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := filepath.Dir(rel)
		if dir == "." {
			dir = ""
		}
		info, err := readFile(filepath.Join(path, rel), opts.ChecksumColumn, opts.SampleRows-len(v.Sample))
		if err != nil {
			return nil, fmt.Errorf("export: read %s: %w", rel, err)
		}
		if v.Schema == nil {
			for _, c := range info.columns {
				v.Schema = append(v.Schema, c.Column)
			}
		}
		for _, row := range info.sample {
			v.Sample = append(v.Sample, row)
			sampleDirs = append(sampleDirs, dir)
		}
		if dir != "" && partKey == "" {
			partKey, _, _ = strings.Cut(filepath.Base(dir), "=")
		}
		if info.checked && !info.match {
			v.ChecksumMismatches = append(v.ChecksumMismatches, rel)
		}
		v.Actual += info.rows
		p, ok := byDir[dir]
		if !ok {
			p = &Partition{Dir: dir, Value: partitionValue(dir)}
			byDir[dir] = p
		}
		p.Rows += info.rows
		p.Files++
	}
	for _, p := range byDir {
		v.Partitions = append(v.Partitions, *p)
	}
	sort.Slice(v.Partitions, func(i, j int) bool { return v.Partitions[i].Dir < v.Partitions[j].Dir })
	if partKey != "" {
		addPartitionColumn(v, partKey, sampleDirs)
	}

	var errs error
	if v.Actual != v.Expected {
		errs = multierr.Append(errs, fmt.Errorf("export: %w: wrote %d rows, read back %d", etlerr.ErrRoundTripMismatch, v.Expected, v.Actual))
	}
	if len(v.ChecksumMismatches) > 0 {
		errs = multierr.Append(errs, fmt.Errorf("export: %w: id checksum differs in %s", etlerr.ErrRoundTripMismatch, strings.Join(v.ChecksumMismatches, ", ")))
	}
	if errs != nil {
		opts.Logger.Warn("export: round trip mismatch", zap.Int64("expected", v.Expected), zap.Int64("actual", v.Actual), zap.Strings("checksum_mismatches", v.ChecksumMismatches))
	} else {
		opts.Logger.Info("export: validated", zap.Int64("rows", v.Actual), zap.Int("files", v.Files), zap.Int("partitions", len(v.Partitions)))
	}
	return v, errs
}

// addPartitionColumn appends the partition column to the read-back schema
// and sample. Its type is inferred from the directory values, narrowing
// long to int when every value fits.
func addPartitionColumn(v *Validation, key string, sampleDirs []string) {
	vals := make([]string, len(v.Partitions))
	present := make([]bool, len(v.Partitions))
	nullable := false
	for i, p := range v.Partitions {
		if p.Dir == "" || strings.HasSuffix(p.Dir, DefaultPartition) {
			nullable = true
			continue
		}
		vals[i], present[i] = unescapePartition(p.Value), true
	}
	t := table.InferType(vals, present)
	if t == table.TypeLong {
		t = table.TypeInt
		for i, s := range vals {
			if n, ok := table.ParseLong(s); present[i] && ok && (n < math.MinInt32 || n > math.MaxInt32) {
				t = table.TypeLong
				break
			}
		}
	}
	v.Schema = append(v.Schema, table.Column{Name: key, Type: t, Nullable: nullable})
	for i, dir := range sampleDirs {
		var val any
		if dir != "" && !strings.HasSuffix(dir, DefaultPartition) {
			_, raw, _ := strings.Cut(filepath.Base(dir), "=")
			val, _ = table.Cast(unescapePartition(raw), t)
		}
		v.Sample[i] = append(v.Sample[i], val)
	}
}

// unescapePartition reverses escapePartition.
func unescapePartition(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func partitionValue(dir string) string {
	if dir == "" {
		return ""
	}
	_, val, _ := strings.Cut(filepath.Base(dir), "=")
	if val == DefaultPartition {
		return "null"
	}
	return val
}

// partFiles lists part files relative to root, skipping hidden and
// underscore-prefixed entries.
func partFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if p != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(name, ".parquet") {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			out = append(out, rel)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

type fileInfo struct {
	rows    int64
	columns []readColumn
	sample  [][]any
	checked bool
	match   bool
}

// readFile reads the footer of one part file, up to sampleRows rows and,
// when the writer recorded one, the id checksum.
func readFile(path, sumColumn string, sampleRows int) (fileInfo, error) {
	var info fileInfo
	f, err := os.Open(path)
	if err != nil {
		return info, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return info, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return info, err
	}
	info.rows = pf.NumRows()
	if info.columns, err = fileColumns(pf); err != nil {
		return info, err
	}
	if sampleRows > 0 {
		if info.sample, err = readSample(pf, info.columns, sampleRows); err != nil {
			return info, err
		}
	}

	want, ok := pf.Lookup(checksumKey)
	if !ok {
		return info, nil
	}
	leaf, ok := pf.Schema().Lookup(sumColumn)
	if !ok {
		return info, nil
	}
	got, err := fileChecksum(pf, leaf.ColumnIndex)
	if err != nil {
		return info, err
	}
	info.checked = true
	info.match = strconv.FormatUint(got, 16) == want
	return info, nil
}

// fileChecksum hashes the values of column col the same way Write does.
func fileChecksum(pf *parquet.File, col int) (uint64, error) {
	h := xxh3.New()
	var b [9]byte
	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				for _, v := range row {
					if v.Column() != col {
						continue
					}
					if v.IsNull() {
						b[0] = 0
						_, _ = h.Write(b[:1])
					} else {
						b[0] = 1
						binary.LittleEndian.PutUint64(b[1:], uint64(v.Int64()))
						_, _ = h.Write(b[:])
					}
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return 0, err
			}
		}
		if err := rows.Close(); err != nil {
			return 0, err
		}
	}
	return h.Sum64(), nil
}

// readSample decodes up to n leading rows of pf.
func readSample(pf *parquet.File, cols []readColumn, n int) ([][]any, error) {
	var out [][]any
	buf := make([]parquet.Row, n)
	for _, rg := range pf.RowGroups() {
		if len(out) >= n {
			break
		}
		rows := rg.Rows()
		for len(out) < n {
			k, err := rows.ReadRows(buf[:n-len(out)])
			for _, r := range buf[:k] {
				out = append(out, decodeRow(r, cols))
			}
			if errors.Is(err, io.EOF) || (err == nil && k == 0) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, err
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
