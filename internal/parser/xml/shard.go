package xmlparser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Job represents a single record shard to parse.
type Job struct {
	Index int
	Bytes []byte // in zerocopy mode, a slice into the underlying buffer
}

// Result is a worker outcome for a Job.
type Result struct {
	Index  int
	Record Record
	Err    error
}

// ShardStreaming splits a stream into <record_tag> ... </record_tag> chunks by
// re-encoding each subtree into a buffer. Self-closing records come out as an
// empty element. In tolerant mode a truncated tail is dropped; with strict
// set any tokenizer error is returned wrapped in ErrMalformed, and a stream
// without a root element yields ErrNoRoot.
func ShardStreaming(ctx context.Context, r io.Reader, recordTag string, bufSize int, strict bool, jobs chan<- Job) error {
	br := bufio.NewReaderSize(r, bufSize)
	dec := xml.NewDecoder(br)
	dec.Strict = strict

	fail := func(err error) error {
		if !strict && isTruncErr(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	sawRoot := false
	i := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if strict && !sawRoot {
				return ErrNoRoot
			}
			return nil
		}
		if err != nil {
			return fail(err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if se.Name.Local != recordTag {
			continue
		}
		var buf bytes.Buffer
		enc := xml.NewEncoder(&buf)
		_ = enc.EncodeToken(se)
		depth := 1
		for depth > 0 {
			tok, err = dec.Token()
			if err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return fail(err)
			}
			switch tok.(type) {
			case xml.StartElement:
				depth++
			case xml.EndElement:
				depth--
			}
			_ = enc.EncodeToken(xml.CopyToken(tok))
		}
		_ = enc.Flush()
		select {
		case jobs <- Job{Index: i, Bytes: buf.Bytes()}:
		case <-ctx.Done():
			return ctx.Err()
		}
		i++
	}
}

// ShardZeroCopy slices raw bytes of each record element, either
// <recordTag .../> or <recordTag ...>...</recordTag>. The byte after the tag
// name must be a delimiter so <recordTagXYZ> is not matched. Quoted
// attribute values may contain '>'. A truncated tail stops the scan, or is
// an error when strict is set.
func ShardZeroCopy(ctx context.Context, data []byte, recordTag string, strict bool, jobs chan<- Job) error {
	if recordTag == "" {
		return errors.New("recordTag required")
	}
	if strict && bytes.IndexByte(data, '<') < 0 {
		return ErrNoRoot
	}
	startPat := []byte("<" + recordTag)
	endPat := []byte("</" + recordTag + ">")

	isDelim := func(b byte) bool {
		switch b {
		case '>', '/', ' ', '\t', '\n', '\r':
			return true
		default:
			return false
		}
	}
	truncated := func() error {
		if strict {
			return fmt.Errorf("%w: truncated <%s> element", ErrMalformed, recordTag)
		}
		return nil
	}

	i := 0
	idx := 0
	n := len(data)
	for i < n {
		j := bytes.Index(data[i:], startPat)
		if j < 0 {
			return nil
		}
		start := i + j
		after := start + len(startPat)
		if after >= n || !isDelim(data[after]) {
			i = after
			continue
		}
		gt := tagEnd(data, after)
		if gt < 0 {
			return truncated()
		}
		var end int
		if data[gt-1] == '/' {
			end = gt + 1
		} else {
			k := bytes.Index(data[gt+1:], endPat)
			if k < 0 {
				return truncated()
			}
			end = gt + 1 + k + len(endPat)
		}
		select {
		case jobs <- Job{Index: idx, Bytes: data[start:end]}:
		case <-ctx.Done():
			return ctx.Err()
		}
		idx++
		i = end
	}
	return nil
}

// tagEnd returns the index of the '>' closing the start tag that begins
// before from, skipping quoted attribute values. It returns -1 if the tag
// is unterminated.
func tagEnd(data []byte, from int) int {
	var quote byte
	for p := from; p < len(data); p++ {
		c := data[p]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return p
		}
	}
	return -1
}
