package xmlparser

import "go.uber.org/zap"

// Options controls performance behavior of the XML parser.
// All fields are optional; zero values pick sensible defaults.
type Options struct {
	Workers int // number of worker goroutines; 0 => 1
	Queue   int // channel capacity; 0 => 4*Workers

	BufSize  int  // bufio.Reader size for streaming; 0 => 1<<20
	ZeroCopy bool // slice records straight out of an in-memory buffer

	// UltraFast reads record attributes with a raw byte scan instead of
	// the tokenizer. Child element fields are not extracted in this mode.
	UltraFast bool

	// Strict turns syntax errors and truncation into errors instead of
	// ending the stream quietly.
	Strict bool

	PreserveOrder bool // emit records in input order

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Queue <= 0 {
		o.Queue = 4 * o.Workers
	}
	if o.BufSize <= 0 {
		o.BufSize = 1 << 20
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
