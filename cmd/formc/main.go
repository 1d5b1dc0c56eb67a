// Command formc compiles form source files into C headers containing
// per-cell tabulation procedures and form metadata.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/compiler"
	"github.com/formcomp/formc/dsl"
)

// fileConfig mirrors the TOML options file. Command-line flags take
// precedence over values read from it.
type fileConfig struct {
	Language       string `toml:"language"`
	Representation string `toml:"representation"`
	Optimize       *bool  `toml:"optimize"`
	OutputDir      string `toml:"output_dir"`
}

type cli struct {
	language       string
	representation string
	optimize       bool
	outputDir      string
	configPath     string
	verbose        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "formc: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "formc [flags] file.form...",
		Short: "compile variational forms to C tabulation procedures",
		Long: "formc compiles symbolic finite-element forms into C procedures that\n" +
			"tabulate the local element tensor of each cell, plus a metadata block\n" +
			"for the host assembler.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&c.language, "language", "l", "c", "output language")
	f.StringVarP(&c.representation, "representation", "r", "auto",
		"default representation: auto, tensor or quadrature")
	f.BoolVarP(&c.optimize, "optimize", "O", false, "merge equal-structure terms before factorization")
	f.StringVarP(&c.outputDir, "output-dir", "o", ".", "directory for generated headers")
	f.StringVar(&c.configPath, "config", "", "TOML options file (flags override it)")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, files []string) error {
	if c.configPath != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(c.configPath, &fc); err != nil {
			return errors.Wrap(err, "read config")
		}
		flags := cmd.Flags()
		if fc.Language != "" && !flags.Changed("language") {
			c.language = fc.Language
		}
		if fc.Representation != "" && !flags.Changed("representation") {
			c.representation = fc.Representation
		}
		if fc.Optimize != nil && !flags.Changed("optimize") {
			c.optimize = *fc.Optimize
		}
		if fc.OutputDir != "" && !flags.Changed("output-dir") {
			c.outputDir = fc.OutputDir
		}
	}

	repr, err := parseRepresentation(c.representation)
	if err != nil {
		return err
	}
	opts := compiler.Options{
		Language:       c.language,
		Representation: repr,
		Optimize:       c.optimize,
	}

	log, err := newLogger(c.verbose)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	var (
		mu     sync.Mutex
		failed []string
	)
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := compileFile(file, c.outputDir, opts, log); err != nil {
				log.Error("compilation failed", zap.String("file", file), zap.Error(err))
				mu.Lock()
				failed = append(failed, file)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	if len(failed) > 0 {
		hint := ""
		if !c.verbose {
			hint = " (rerun with -v for details)"
		}
		return errors.Errorf("%d of %d file(s) failed%s", len(failed), len(files), hint)
	}
	return nil
}

func compileFile(path, outputDir string, opts compiler.Options, log *zap.Logger) error {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	flog := log.With(zap.String("file", path))

	parsed, err := dsl.ParseFile(path)
	if err != nil {
		return err
	}
	flog.Debug("parsed", zap.Int("forms", len(parsed.Forms)))

	res, err := compiler.Compile(compiler.Job{Stem: stem, Forms: parsed.Forms}, opts, flog)
	if err != nil {
		return err
	}

	out := filepath.Join(outputDir, stem+".h")
	if err := writeFileAtomic(out, []byte(res.Source)); err != nil {
		return err
	}
	flog.Info("compiled",
		zap.String("output", out),
		zap.Int("forms", len(res.Metadata)),
		zap.Int("bytes", len(res.Source)))
	return nil
}

// writeFileAtomic writes via a temporary file and rename so a failed run
// never leaves a truncated header behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return errors.Wrap(err, "write output")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "finalize output")
	}
	return nil
}

func parseRepresentation(s string) (algebra.ReprChoice, error) {
	switch s {
	case "auto", "":
		return algebra.ReprAuto, nil
	case "tensor":
		return algebra.ReprTensor, nil
	case "quadrature":
		return algebra.ReprQuadrature, nil
	}
	return 0, errors.Errorf("unknown representation %q (auto, tensor, quadrature)", s)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
