package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"djc/blocks"
	"djc/state"
	"djc/utils/debug"
)

// payload preview length in scan output
const previewLen = 60

// Scan prints what engine sees in a single file: raw markers and conversion
// diagnostics. Nothing is written.
func Scan(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("scan")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}
	env.InputEncoding = lookupEncoding(cmd.String("encoding"), "Decoding input text without BOM", log)

	input, enc, err := isInputFile(src)
	if err != nil {
		return fmt.Errorf("unable to check file type: %w", err)
	}
	if !input {
		return fmt.Errorf("input was not recognized as text or json (%s)", src)
	}

	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := readInput(selectReader(file, enc, env.InputEncoding), env.Cfg.Engine.MaxInputSize)
	if err != nil {
		return fmt.Errorf("unable to read input (%s): %w", src, err)
	}

	engine, err := env.Engine()
	if err != nil {
		return fmt.Errorf("unable to prepare engine: %w", err)
	}

	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}
	return writeScan(out, filepath.Base(src), string(data), engine)
}

func writeScan(out io.Writer, name, text string, engine *blocks.Engine) error {
	tw := debug.NewTreeWriter()

	markers := engine.Scan(text)
	tw.Line(0, "Source: %s", name)
	tw.Line(0, "Raw markers: %d", len(markers))
	for i, m := range markers {
		tw.Text(1, fmt.Sprintf("[%d] @%d %s", i+1, m.Offset, engine.TypeKey(m.TypeName)), debug.Clip(m.Payload, previewLen))
	}

	var diag *blocks.Diagnostics
	res, err := engine.Convert(text)
	if err != nil {
		var cerr *blocks.ConversionError
		if !errors.As(err, &cerr) {
			return err
		}
		tw.Line(0, "Conversion failed: %v", cerr.Kind)
		diag = cerr.Diagnostics
	} else {
		diag = res.Diagnostics
	}

	if _, err := io.WriteString(out, tw.String()); err != nil {
		return err
	}
	_, err = io.WriteString(out, diag.String())
	return err
}
