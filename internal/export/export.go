// Package export writes a table as a Hive-partitioned Parquet directory and
// reads it back to validate the round trip.
package export

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"badgeetl/internal/logging"
	"badgeetl/internal/table"
)

const (
	// DefaultPartition names the directory holding rows whose partition
	// value is null.
	DefaultPartition = "__HIVE_DEFAULT_PARTITION__"
	// SuccessMarker is written last into a complete output directory.
	SuccessMarker = "_SUCCESS"

	checksumKey = "badgeetl.id_xxh3"
	columnsKey  = "badgeetl.columns"
)

// Options controls Write.
type Options struct {
	Path        string
	PartitionBy string
	Compression string
	// Writers bounds the number of partitions written concurrently.
	Writers int
	// ChecksumColumn is hashed per file; default "id". Skipped when the
	// table has no such column.
	ChecksumColumn string
	// SampleRows is how many rows Validate reads back for display; default 5.
	SampleRows int
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Writers <= 0 {
		o.Writers = 4
	}
	if o.ChecksumColumn == "" {
		o.ChecksumColumn = "id"
	}
	if o.SampleRows <= 0 {
		o.SampleRows = 5
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// File describes one written part file.
type File struct {
	Partition string // directory name, e.g. "badge_year=2021"; empty when unpartitioned
	Path      string // relative to the output root
	Rows      int64
	Checksum  uint64
}

// Result is what Write produced.
type Result struct {
	Path  string
	Rows  int64
	Codec string
	Files []File
}

// partition is the set of row indexes that share a partition value.
type partition struct {
	dir  string
	rows []int
}

// Write exports tbl under opts.Path. The tree is built in a sibling staging
// directory and swapped in, so any previous output is replaced.
func Write(ctx context.Context, tbl *table.Table, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger
	if opts.Path == "" {
		return nil, fmt.Errorf("export: empty output path")
	}
	codec, tag, err := codecFor(opts.Compression)
	if err != nil {
		return nil, err
	}
	partIdx := -1
	if opts.PartitionBy != "" {
		if partIdx = tbl.Schema.Index(opts.PartitionBy); partIdx < 0 {
			return nil, fmt.Errorf("export: partition column %q not in table", opts.PartitionBy)
		}
	}
	fs, err := buildSchema("badges", tbl.Schema, opts.PartitionBy)
	if err != nil {
		return nil, err
	}
	sumIdx := tbl.Schema.Index(opts.ChecksumColumn)

	root := filepath.Clean(opts.Path)
	if err := os.MkdirAll(filepath.Dir(root), 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(root), "."+filepath.Base(root)+".staging-")
	if err != nil {
		return nil, fmt.Errorf("export: staging dir: %w", err)
	}
	defer os.RemoveAll(staging)
	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	parts := partitionRows(tbl, partIdx, opts.PartitionBy)
	jobID := uuid.NewString()
	files := make([]File, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Writers)
	for i, p := range parts {
		name := fmt.Sprintf("part-%05d-%s.parquet", i, jobID)
		if tag != "" {
			name = fmt.Sprintf("part-%05d-%s.%s.parquet", i, jobID, tag)
		}
		rel := filepath.Join(p.dir, name)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum := checksum(tbl, p.rows, sumIdx)
			if err := writeFile(filepath.Join(staging, rel), fs, tbl, p.rows, codec, sum, sumIdx >= 0); err != nil {
				return fmt.Errorf("export: %s: %w", rel, err)
			}
			files[i] = File{Partition: p.dir, Path: rel, Rows: int64(len(p.rows)), Checksum: sum}
			log.Debug("export: wrote part", zap.String("file", rel), zap.Int("rows", len(p.rows)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(staging, SuccessMarker), nil, 0o644); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := swap(staging, root); err != nil {
		return nil, err
	}

	res := &Result{Path: root, Rows: int64(tbl.Len()), Codec: strings.ToLower(opts.Compression), Files: files}
	if res.Codec == "" {
		res.Codec = "snappy"
	}
	log.Info("export: written",
		zap.String("path", root),
		zap.Int64("rows", res.Rows),
		zap.Int("files", len(files)),
		zap.String("codec", res.Codec),
	)
	return res, nil
}

// partitionRows groups row indexes by partition directory. Directories are
// sorted with the null partition last; input order is kept within each one.
func partitionRows(tbl *table.Table, idx int, key string) []partition {
	if idx < 0 {
		if tbl.Len() == 0 {
			return nil
		}
		all := make([]int, tbl.Len())
		for i := range all {
			all[i] = i
		}
		return []partition{{rows: all}}
	}
	byDir := map[string][]int{}
	for i, row := range tbl.Rows {
		dir := key + "=" + DefaultPartition
		if v := row[idx]; v != nil {
			dir = key + "=" + escapePartition(table.FormatValue(v))
		}
		byDir[dir] = append(byDir[dir], i)
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool {
		ni, nj := strings.HasSuffix(dirs[i], DefaultPartition), strings.HasSuffix(dirs[j], DefaultPartition)
		if ni != nj {
			return nj
		}
		return dirs[i] < dirs[j]
	})
	out := make([]partition, len(dirs))
	for i, d := range dirs {
		out[i] = partition{dir: d, rows: byDir[d]}
	}
	return out
}

// escapePartition percent-encodes characters that cannot appear in a
// partition directory name.
func escapePartition(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20, strings.ContainsRune(`"#%'*/:=?\{}[]^`, r):
			fmt.Fprintf(&b, "%%%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// checksum hashes the little-endian ids of rows in order. Null ids hash as
// a fixed marker so that their position still counts.
func checksum(tbl *table.Table, rows []int, col int) uint64 {
	if col < 0 {
		return 0
	}
	h := xxh3.New()
	var buf [9]byte
	for _, r := range rows {
		v, ok := table.Cast(tbl.Rows[r][col], table.TypeLong)
		if !ok || v == nil {
			buf[0] = 0
			_, _ = h.Write(buf[:1])
			continue
		}
		buf[0] = 1
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.(int64)))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func writeFile(path string, fs *fileSchema, tbl *table.Table, rows []int, codec compress.Codec, sum uint64, withSum bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	opts := []parquet.WriterOption{
		fs.schema,
		parquet.Compression(codec),
		parquet.KeyValueMetadata(columnsKey, strings.Join(fs.names, ",")),
	}
	if withSum {
		opts = append(opts, parquet.KeyValueMetadata(checksumKey, strconv.FormatUint(sum, 16)))
	}
	w := parquet.NewWriter(f, opts...)

	const batch = 1024
	buf := make([]parquet.Row, 0, batch)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		_, err := w.WriteRows(buf)
		buf = buf[:0]
		return err
	}
	for _, r := range rows {
		pr, err := fs.row(tbl.Schema, tbl.Rows[r])
		if err != nil {
			f.Close()
			return err
		}
		buf = append(buf, pr)
		if len(buf) == batch {
			if err := flush(); err != nil {
				f.Close()
				return err
			}
		}
	}
	if err := flush(); err != nil {
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// swap moves staging to root, replacing whatever root held.
func swap(staging, root string) error {
	var backup string
	if _, err := os.Stat(root); err == nil {
		backup = root + ".old-" + uuid.NewString()
		if err := os.Rename(root, backup); err != nil {
			return fmt.Errorf("export: move previous output: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.Rename(staging, root); err != nil {
		if backup != "" {
			_ = os.Rename(backup, root)
		}
		return fmt.Errorf("export: publish output: %w", err)
	}
	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("export: remove previous output: %w", err)
		}
	}
	return nil
}
