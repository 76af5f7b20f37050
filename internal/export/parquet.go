package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"badgeetl/internal/etlerr"
	"badgeetl/internal/table"
)

// codecs maps the configured compression name to the parquet codec. The
// file name tag is empty for uncompressed output.
var codecs = map[string]struct {
	codec compress.Codec
	tag   string
}{
	"snappy": {&parquet.Snappy, "snappy"},
	"gzip":   {&parquet.Gzip, "gz"},
	"zstd":   {&parquet.Zstd, "zstd"},
	"lz4":    {&parquet.Lz4Raw, "lz4"},
	"none":   {&parquet.Uncompressed, ""},
}

func codecFor(name string) (compress.Codec, string, error) {
	if name == "" {
		name = "snappy"
	}
	c, ok := codecs[strings.ToLower(name)]
	if !ok {
		return nil, "", fmt.Errorf("export: %w: unknown compression %q", etlerr.ErrConfig, name)
	}
	return c.codec, c.tag, nil
}

func nodeFor(t table.Type) (parquet.Node, error) {
	switch t {
	case table.TypeLong:
		return parquet.Int(64), nil
	case table.TypeInt:
		return parquet.Int(32), nil
	case table.TypeShort:
		return parquet.Int(16), nil
	case table.TypeDouble:
		return parquet.Leaf(parquet.DoubleType), nil
	case table.TypeBoolean:
		return parquet.Leaf(parquet.BooleanType), nil
	case table.TypeTimestamp:
		return parquet.Timestamp(parquet.Microsecond), nil
	case table.TypeString:
		return parquet.String(), nil
	}
	return nil, fmt.Errorf("export: no parquet type for %q", t)
}

// fileSchema is the parquet schema of one data file and the parquet column
// index of every table column it carries.
type fileSchema struct {
	schema *parquet.Schema
	src    []int // table column per parquet column
	// names keeps the table order of the data columns. A parquet group sorts
	// its fields by name, so the order travels in the file metadata instead.
	names []string
}

// buildSchema maps s to an all-optional parquet schema, leaving out the
// partition column.
func buildSchema(name string, s table.Schema, partitionBy string) (*fileSchema, error) {
	group := parquet.Group{}
	for _, c := range s {
		if c.Name == partitionBy {
			continue
		}
		n, err := nodeFor(c.Type)
		if err != nil {
			return nil, err
		}
		group[c.Name] = parquet.Optional(n)
	}
	ps := parquet.NewSchema(name, group)

	fs := &fileSchema{schema: ps, src: make([]int, len(group))}
	for i, c := range s {
		if c.Name == partitionBy {
			continue
		}
		leaf, ok := ps.Lookup(c.Name)
		if !ok {
			return nil, fmt.Errorf("export: column %s missing from parquet schema", c.Name)
		}
		fs.src[leaf.ColumnIndex] = i
		fs.names = append(fs.names, c.Name)
	}
	return fs, nil
}

// row converts one table row to a parquet row in parquet column order.
func (fs *fileSchema) row(s table.Schema, in []any) (parquet.Row, error) {
	out := make(parquet.Row, len(fs.src))
	for col, i := range fs.src {
		v, err := leafValue(s[i].Type, in[i])
		if err != nil {
			return nil, fmt.Errorf("export: column %s: %w", s[i].Name, err)
		}
		if v.IsNull() {
			out[col] = v.Level(0, 0, col)
		} else {
			out[col] = v.Level(0, 1, col)
		}
	}
	return out, nil
}

func leafValue(t table.Type, v any) (parquet.Value, error) {
	if v == nil {
		return parquet.NullValue(), nil
	}
	switch t {
	case table.TypeLong:
		if n, ok := table.Cast(v, table.TypeLong); ok {
			return parquet.Int64Value(n.(int64)), nil
		}
	case table.TypeInt, table.TypeShort:
		if n, ok := table.Cast(v, table.TypeInt); ok {
			return parquet.Int32Value(n.(int32)), nil
		}
	case table.TypeDouble:
		if f, ok := table.Cast(v, table.TypeDouble); ok {
			return parquet.DoubleValue(f.(float64)), nil
		}
	case table.TypeBoolean:
		if b, ok := v.(bool); ok {
			return parquet.BooleanValue(b), nil
		}
	case table.TypeTimestamp:
		if ts, ok := v.(time.Time); ok {
			return parquet.Int64Value(ts.UnixMicro()), nil
		}
	case table.TypeString:
		return parquet.ByteArrayValue([]byte(table.FormatValue(v))), nil
	}
	return parquet.Value{}, fmt.Errorf("cannot write %T as %s", v, t)
}

// readColumn is one data column as found in a written file.
type readColumn struct {
	table.Column
	index int           // parquet column index
	unit  time.Duration // timestamp unit
}

// fileColumns lists the data columns of pf in writer order, falling back to
// the parquet field order for files without the column-order metadata.
func fileColumns(pf *parquet.File) ([]readColumn, error) {
	ps := pf.Schema()
	var names []string
	if v, ok := pf.Lookup(columnsKey); ok && v != "" {
		names = strings.Split(v, ",")
	} else {
		for _, f := range ps.Fields() {
			names = append(names, f.Name())
		}
	}
	out := make([]readColumn, len(names))
	for i, name := range names {
		leaf, ok := ps.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("column %s is listed but missing from the file", name)
		}
		t, unit := leafType(leaf.Node.Type())
		if t == "" {
			return nil, fmt.Errorf("column %s: unsupported parquet type %s", name, leaf.Node.Type())
		}
		out[i] = readColumn{
			Column: table.Column{Name: name, Type: t, Nullable: leaf.Node.Optional()},
			index:  leaf.ColumnIndex,
			unit:   unit,
		}
	}
	return out, nil
}

// leafType maps a parquet leaf type back to a table type.
func leafType(t parquet.Type) (table.Type, time.Duration) {
	lt := t.LogicalType()
	switch t.Kind() {
	case parquet.Boolean:
		return table.TypeBoolean, 0
	case parquet.Int32:
		if lt != nil && lt.Integer != nil && lt.Integer.BitWidth == 16 {
			return table.TypeShort, 0
		}
		return table.TypeInt, 0
	case parquet.Int64:
		if lt != nil && lt.Timestamp != nil {
			switch u := lt.Timestamp.Unit; {
			case u.Millis != nil:
				return table.TypeTimestamp, time.Millisecond
			case u.Nanos != nil:
				return table.TypeTimestamp, time.Nanosecond
			default:
				return table.TypeTimestamp, time.Microsecond
			}
		}
		return table.TypeLong, 0
	case parquet.Double:
		return table.TypeDouble, 0
	case parquet.ByteArray:
		return table.TypeString, 0
	}
	return "", 0
}

// decodeRow converts a parquet row to table values in cols order.
func decodeRow(r parquet.Row, cols []readColumn) []any {
	byIndex := make(map[int]parquet.Value, len(r))
	for _, v := range r {
		byIndex[v.Column()] = v
	}
	out := make([]any, len(cols))
	for i, c := range cols {
		v, ok := byIndex[c.index]
		if !ok || v.IsNull() {
			continue
		}
		switch c.Type {
		case table.TypeBoolean:
			out[i] = v.Boolean()
		case table.TypeShort:
			out[i] = int16(v.Int32())
		case table.TypeInt:
			out[i] = v.Int32()
		case table.TypeLong:
			out[i] = v.Int64()
		case table.TypeDouble:
			out[i] = v.Double()
		case table.TypeTimestamp:
			out[i] = time.Unix(0, v.Int64()*int64(c.unit)).UTC()
		default:
			out[i] = string(v.ByteArray())
		}
	}
	return out
}
