// cmd/irc is a thin driver around the convert pipeline: read one or more textual IR files, lower each
// independently to x86-64 machine code, and dump an object-file summary per input. The real front end
// and a production COFF/ELF emitter are external collaborators (spec.md §1); this exists so the
// backend is exercisable without either.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"irx64/src/codegen"
	"irx64/src/ir/parser"
	"irx64/src/object"
	"irx64/src/util"
)

var log zerolog.Logger

func main() {
	var (
		outDir   string
		targetOS string
		verbose  bool
	)

	rootCmd := &cobra.Command{
		Use:   "irc <file.ir> [file.ir ...]",
		Short: "Lower textual IR programs to x86-64 machine code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

			osCode, err := resolveTargetOS(targetOS)
			if err != nil {
				return err
			}

			// A single file fails fast; a batch of files reports every failure before exiting, the
			// same "collect, don't stop at the first" shape the teacher's worker-pool error listener
			// gave multi-threaded optimisation passes (util.NewDiagnostics).
			if len(args) == 1 {
				opt := util.Options{Src: args[0], Out: outPath(outDir, args[0]), Verbose: verbose, TargetOS: osCode}
				return run(opt)
			}

			diag := util.NewDiagnostics(len(args))
			defer diag.Stop()
			for _, src := range args {
				opt := util.Options{Src: src, Out: outPath(outDir, src), Verbose: verbose, TargetOS: osCode}
				if err := run(opt); err != nil {
					diag.Report(errors.Wrapf(err, "converting %s", src))
				}
			}
			if diag.Len() > 0 {
				for e := range diag.Errors() {
					fmt.Fprintln(os.Stderr, e)
				}
				return fmt.Errorf("%d of %d files failed to convert", diag.Len(), len(args))
			}
			return nil
		},
	}
	rootCmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "Directory to write object summaries into")
	rootCmd.Flags().StringVar(&targetOS, "target-os", "linux", "Target operating system: linux, windows, mac (System V ABI unless windows)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every instruction lowered at debug level")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func outPath(dir, src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(dir, base+".irobj")
}

func resolveTargetOS(s string) (int, error) {
	switch strings.ToLower(s) {
	case "windows":
		return util.Windows, nil
	case "linux":
		return util.Linux, nil
	case "mac", "darwin":
		return util.MAC, nil
	default:
		return util.UnknownOS, fmt.Errorf("unrecognized --target-os %q: want linux, windows or mac", s)
	}
}

func run(opt util.Options) error {
	src, err := os.Open(opt.Src)
	if err != nil {
		return errors.Wrap(err, "opening IR source")
	}
	defer src.Close()

	program, err := parser.Parse(src)
	if err != nil {
		return errors.Wrap(err, "parsing textual IR")
	}
	log.Debug().Int("instructions", len(program)).Str("file", opt.Src).Msg("parsed IR program")

	writer := object.NewMemWriter()
	orch := codegen.NewOrchestrator(opt.IsWindows(), writer)
	orch.Log = log
	if err := orch.Convert(program); err != nil {
		return errors.Wrap(err, "converting IR to machine code")
	}
	log.Info().Int("functions", len(writer.Functions)).Int("text_bytes", len(writer.Text)).Msg("lowering complete")

	if err := writer.Write(opt.Out); err != nil {
		return errors.Wrap(err, "writing object summary")
	}
	log.Info().Str("out", opt.Out).Msg("wrote object summary")
	return nil
}
