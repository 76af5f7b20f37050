package xmlparser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"sync"

	"go.uber.org/zap"
)

// ParseStream concurrently parses records and sends them to out. If
// opts.ZeroCopy is set, data must hold the entire document; otherwise r is
// streamed through the sharder.
//
// It returns when the input is exhausted, on context cancel, or on a fatal
// error. In strict mode the first sharder or worker error is returned after
// the pipeline has drained; out never receives a record past that point.
func ParseStream(
	ctx context.Context,
	r io.Reader,
	data []byte,
	comp Compiled,
	opts Options,
	out chan<- Record,
) error {
	opts = opts.withDefaults()
	log := opts.Logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan Job, opts.Queue)
	results := make(chan Result, opts.Queue)

	var wg sync.WaitGroup
	wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			log.Debug("xml: worker started", zap.Int("worker", workerID))
			workerLoop(comp, opts, jobs, results)
		}(i)
	}

	feedErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		if opts.ZeroCopy {
			feedErr <- ShardZeroCopy(ctx, data, comp.recordTag, opts.Strict, jobs)
		} else {
			feedErr <- ShardStreaming(ctx, r, comp.recordTag, opts.BufSize, opts.Strict, jobs)
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	expect := 0
	reorder := make(map[int]Record)
	var firstErr error
	emitted := 0

	emit := func(rec Record) {
		if firstErr != nil {
			return
		}
		select {
		case out <- rec:
			emitted++
		case <-ctx.Done():
			firstErr = ctx.Err()
			cancel()
		}
	}

	for res := range results {
		if res.Err != nil {
			log.Debug("xml: record failed", zap.Int("index", res.Index), zap.Error(res.Err))
			if opts.Strict && firstErr == nil {
				firstErr = res.Err
				cancel()
			}
			if !opts.PreserveOrder {
				continue
			}
			// Keep the reorder cursor moving past the failed slot.
			res.Record = nil
		}

		if !opts.PreserveOrder {
			emit(res.Record)
			continue
		}
		reorder[res.Index] = res.Record
		for {
			rec, ok := reorder[expect]
			if !ok {
				break
			}
			delete(reorder, expect)
			expect++
			if rec != nil {
				emit(rec)
			}
		}
	}

	ferr := <-feedErr
	if firstErr != nil {
		return firstErr
	}
	if ferr != nil {
		return ferr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debug("xml: stream done", zap.Int("records", emitted))
	return nil
}

func workerLoop(comp Compiled, opts Options, jobs <-chan Job, results chan<- Result) {
	for j := range jobs {
		rec, err := parseOneRecord(j.Bytes, comp, opts.UltraFast)
		results <- Result{Index: j.Index, Record: rec, Err: err}
	}
}

// parseOneRecord parses a single <record_tag> blob, either with the
// tokenizer or with the attribute fast path.
func parseOneRecord(b []byte, comp Compiled, useUltra bool) (Record, error) {
	if useUltra {
		return UltraFastAttributes(b, comp)
	}
	br := bufio.NewReaderSize(bytes.NewReader(b), 64<<10)
	dec := xml.NewDecoder(br)
	dec.Strict = false

	record := make(Record, 8)
	inRecord := false
	var rel []string
	type capture struct {
		key   string
		list  bool
		depth int
		text  []byte
	}
	var caps []capture

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF || isTruncErr(err) {
				return record, nil
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inRecord {
				if t.Name.Local == comp.recordTag {
					inRecord = true
					rel = rel[:0]
					caps = caps[:0]
					captureAttrs(record, t.Attr, comp)
				}
				continue
			}
			rel = append(rel, t.Name.Local)
			for _, m := range comp.byLast[t.Name.Local] {
				if !tailMatches(rel, m.spec) {
					continue
				}
				ls := m.spec.segs[len(m.spec.segs)-1]
				ok := true
				if ls.attrName != "" {
					ok = false
					for _, a := range t.Attr {
						if a.Name.Local == ls.attrName && a.Value == ls.attrVal {
							ok = true
							break
						}
					}
				}
				if !ok {
					continue
				}
				caps = append(caps, capture{
					key:   m.outKey,
					list:  m.isList,
					depth: len(rel),
					text:  make([]byte, 0, 64),
				})
			}
		case xml.CharData:
			if inRecord && len(caps) > 0 {
				for i := range caps {
					caps[i].text = append(caps[i].text, t...)
				}
			}
		case xml.EndElement:
			if !inRecord {
				continue
			}
			if len(caps) > 0 {
				w := 0
				for _, cp := range caps {
					if cp.depth != len(rel) {
						caps[w] = cp
						w++
						continue
					}
					val := stringsTrimSpace(cp.text)
					if len(val) == 0 {
						continue
					}
					if cp.list {
						arr, _ := record[cp.key].([]string)
						record[cp.key] = append(arr, string(val))
					} else if _, exists := record[cp.key]; !exists {
						record[cp.key] = string(val)
					}
				}
				caps = caps[:w]
			}
			if t.Name.Local == comp.recordTag && len(rel) == 0 {
				return record, nil
			}
			if len(rel) > 0 {
				rel = rel[:len(rel)-1]
			}
		}
	}
}

// captureAttrs stores the record element's attributes. Values are kept
// verbatim; surrounding whitespace is data.
func captureAttrs(record Record, attrs []xml.Attr, comp Compiled) {
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		if !comp.skipAttrs {
			record[comp.attrPrefix+a.Name.Local] = a.Value
		}
		for _, k := range comp.attrFields[a.Name.Local] {
			record[k] = a.Value
		}
	}
}

func stringsTrimSpace(b []byte) []byte {
	// ASCII-only trim without a string round trip.
	i, j := 0, len(b)-1
	for i <= j && (b[i] == ' ' || b[i] == '\n' || b[i] == '\r' || b[i] == '\t') {
		i++
	}
	for j >= i && (b[j] == ' ' || b[j] == '\n' || b[j] == '\r' || b[j] == '\t') {
		j--
	}
	if i > j {
		return nil
	}
	return b[i : j+1]
}
