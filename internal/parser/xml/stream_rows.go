package xmlparser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"badgeetl/internal/config"
)

// ConfigFromOptions builds a Config from pipeline parser options by a JSON
// round trip, so parser.options share the layout of Config.
func ConfigFromOptions(parserOpts config.Options) (Config, error) {
	b, err := json.Marshal(parserOpts)
	if err != nil {
		return Config{}, fmt.Errorf("xml: marshal parser options: %w", err)
	}
	cfg, err := ParseConfigJSON(b)
	if err != nil {
		return Config{}, fmt.Errorf("xml: parse config from options: %w", err)
	}
	return cfg, nil
}

// StreamRecords parses r (or data, in zero-copy mode) according to
// parserOpts and streams records to out, closing it when done.
func StreamRecords(
	ctx context.Context,
	r io.Reader,
	data []byte,
	parserOpts config.Options,
	opts Options,
	out chan<- Record,
) error {
	defer close(out)

	cfg, err := ConfigFromOptions(parserOpts)
	if err != nil {
		return err
	}
	comp, err := Compile(cfg)
	if err != nil {
		return fmt.Errorf("xml: compile config: %w", err)
	}
	if err := ParseStream(ctx, r, data, comp, opts, out); err != nil {
		return fmt.Errorf("xml: parse stream: %w", err)
	}
	return nil
}
