package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"djc/archive"
	"djc/blocks"
	"djc/common"
	"djc/config"
	"djc/css"
	"djc/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Output = env.Cfg.Output.Kind
	if to := cmd.String("to"); len(to) > 0 {
		kind, err := common.ParseOutputKind(to)
		if err != nil {
			log.Warn("Unknown output kind requested, producing both css and json", zap.Error(err))
			kind = common.OutputKindBoth
		}
		env.Output = kind
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	// Input text without BOM is expected to be UTF-8, exports made by old
	// tools may need explicit code page
	env.InputEncoding = lookupEncoding(cmd.String("encoding"), "Decoding all input text without BOM", log)

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	env.CodePage = lookupEncoding(cmd.String("force-zip-cp"), "Forcefully converting all non UTF-8 file names in archives", log)

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("output", env.Output))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

func lookupEncoding(cp, msg string, log *zap.Logger) encoding.Encoding {
	if len(cp) == 0 {
		return nil
	}
	enc, err := ianaindex.IANA.Encoding(cp)
	if err != nil || enc == nil {
		log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
		return nil
	}
	n, _ := ianaindex.IANA.Name(enc)
	log.Debug(msg, zap.String("charset", n))
	return enc
}

// process determines the input type (directory, archive, path inside archive
// or single file) and processes accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, filepath.ToSlash(tail), "", dst, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		input, enc, err := isInputFile(head)
		if err != nil {
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if input && len(tail) == 0 {
			file, err := os.Open(head)
			if err != nil {
				return err
			}
			defer file.Close()

			// single file requested - failure is a failure
			return processInput(ctx, file, enc, filepath.Base(head), head, dst, log)
		}
		return fmt.Errorf("input was not recognized as text or json (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding input files and archives and processes them.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		isArchive, err := isArchiveFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		input, enc, err := isInputFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !input {
			log.Debug("Skipping file, not recognized as input or archive", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processInput(ctx, file, enc, src, path, dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArchive walks all files inside archive, finds input files under
// "pathIn" and processes them.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	cp := state.EnvFromContext(ctx).CodePage

	err = archive.Walk(ctx, path, pathIn, func(archive string, f *zip.File) error {
		input, enc, err := isInputInArchive(f)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", archive), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !input {
			log.Debug("Skipping file, not recognized as input", zap.String("archive", archive), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		if err := processInput(ctx, r, enc, filepath.Join(pathOut, filepath.FromSlash(pathInArchive)), "", dst, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	})
	return err
}

// readInput reads whole input refusing anything above limit.
func readInput(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("input is larger than %d bytes", limit)
	}
	return data, nil
}

// processInput converts single input. "src" is part of the source path
// (always including file name) relative to the original path. When actual
// file was specified it will be just base file name. When looking inside
// archive or directory it will be relative path inside archive or directory.
// "origin" is the input file on disk, empty for archive entries.
// "dst" is the destination directory for results.
func processInput(ctx context.Context, r io.Reader, enc srcEncoding, src, origin, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var outputName, strategy string

	log.Info("Conversion starting", zap.String("from", src))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else if rerr == nil {
			log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.String("strategy", strategy))
		}
	}(time.Now())

	data, err := readInput(selectReader(r, enc, env.InputEncoding), env.Cfg.Engine.MaxInputSize)
	if err != nil {
		return fmt.Errorf("unable to read input (%s): %w", src, err)
	}
	keepInput(env.Rpt, src, origin, data, log)

	engine, err := env.Engine()
	if err != nil {
		return fmt.Errorf("unable to prepare engine: %w", err)
	}

	res, err := engine.Convert(string(data))
	if err != nil {
		var cerr *blocks.ConversionError
		if env.Rpt != nil && errors.As(err, &cerr) {
			env.Rpt.StoreData(reportName("diagnostics", src, ".txt"), []byte(cerr.Diagnostics.String()))
		}
		return fmt.Errorf("unable to convert (%s): %w", src, err)
	}
	strategy = res.Diagnostics.Strategy

	outputName = buildOutputPath(res, src, dst, env)

	if env.Output.WantJSON() {
		merged, err := res.MergedJSON(env.Cfg.Output.Indent)
		if err != nil {
			return fmt.Errorf("unable to serialize blocks: %w", err)
		}
		if err := writeResult(withExt(outputName, jsonExt), merged, env, log); err != nil {
			return err
		}
	}

	if env.Output.WantCSS() {
		text := env.Renderer().Render(res.Style)
		if env.Cfg.Engine.CheckCSS {
			checkStylesheet(text, src, log)
		}
		if err := writeResult(withExt(outputName, cssExt), []byte(text), env, log); err != nil {
			return err
		}
	}

	if env.Rpt != nil {
		env.Rpt.StoreData(reportName("diagnostics", src, ".txt"), []byte(res.Diagnostics.String()))
	}
	return nil
}

// keepInput puts input into debug report: file on disk is copied as is,
// archive entries are stored as decoded text.
func keepInput(rpt *config.Report, src, origin string, data []byte, log *zap.Logger) {
	if rpt == nil {
		return
	}
	name := reportName("input", src, filepath.Ext(src))
	if len(origin) == 0 {
		rpt.StoreData(name, data)
		return
	}
	if err := rpt.StoreCopy(name, origin); err != nil {
		log.Warn("Unable to save input for report", zap.String("file", origin), zap.Error(err))
	}
}

// checkStylesheet parses rendered css back and reports what parser did not like.
func checkStylesheet(text, src string, log *zap.Logger) {
	sheet := css.NewParser(log).Parse([]byte(text), src)
	log.Debug("Rendered stylesheet checked",
		zap.String("from", src), zap.Int("rules", len(sheet.Rules)), zap.Int("declarations", sheet.Declarations()))
	for _, w := range sheet.Warnings {
		log.Warn("Rendered stylesheet problem", zap.String("from", src), zap.String("warning", w))
	}
	if conflicts := sheet.Conflicts(); len(conflicts) > 0 {
		log.Warn("Rendered stylesheet overrides its own declarations", zap.String("from", src), zap.Strings("conflicts", conflicts))
	}
}

func writeResult(name string, data []byte, env *state.LocalEnv, log *zap.Logger) error {
	if _, err := os.Stat(name); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", name)
		}
		log.Warn("Overwriting existing file", zap.String("file", name))
		if err = os.Remove(name); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := os.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}

	// Store conversion result for debugging
	if env.Rpt != nil {
		env.Rpt.Store(reportName("result", name, filepath.Ext(name)), name)
	}
	return nil
}

// reportName makes unique entry name for debug report.
func reportName(kind, src, ext string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return fmt.Sprintf("%s-%s-%d%s", kind, config.CleanFileName(base), time.Now().UnixNano(), ext)
}
