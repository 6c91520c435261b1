package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-inherit/gen"
	"github.com/goliatone/go-inherit/schema"
)

const outputSuffix = "_inherit.go"

type options struct {
	types   []string
	output  string
	tag     string
	runtime string
	stdout  bool
	verbose bool
}

func newRootCmd(newLogger func(verbose bool) (*zap.Logger, error)) *cobra.Command {
	opts := &options{}
	var logger *zap.Logger

	cmd := &cobra.Command{
		Use:   "inheritgen [dir]",
		Short: "Generate Default and Merge methods for configuration records",
		Long: `inheritgen reads the Go package in dir (default ".") and writes a
Default and a Merge method for every selected struct.

Structs are selected with --type, or by a //inherit:generate line in their
doc comment. Field policy comes from the inherit struct tag or from
//inherit: comment directives:

  default=<go expr>   initial value used by Default
  skip_merge          Merge keeps the receiver's value and ignores the parent

Nothing is written when any record fails validation.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = newLogger(opts.verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return run(cmd, logger, opts, dir)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.types, "type", "t", nil, "Comma separated record names (default: structs marked //inherit:generate)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: <dir>/<package>"+outputSuffix+")")
	cmd.Flags().StringVar(&opts.tag, "tag", schema.DefaultTagKey, "Struct tag key holding field annotations")
	cmd.Flags().StringVar(&opts.runtime, "runtime", gen.DefaultRuntimePackage, "Import path of the runtime package")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Print the generated source instead of writing a file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func run(cmd *cobra.Command, logger *zap.Logger, opts *options, dir string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	genOpts := []gen.Option{
		gen.WithTypes(opts.types...),
		gen.WithTagKey(opts.tag),
		gen.WithRuntimePackage(opts.runtime),
		gen.WithSkipFiles(skipFor(dir, opts.output)),
		gen.WithLogger(gen.LoggerFunc(func(e gen.Event) {
			fields := []zap.Field{
				zap.String("record", e.Record),
				zap.Int("fields", e.Fields),
				zap.Duration("duration", e.Duration),
			}
			if e.Err != nil {
				logger.Debug("record rejected", append(fields, zap.Error(e.Err))...)
				return
			}
			logger.Debug("record synthesized", fields...)
		})),
	}

	logger.Debug("reading package", zap.String("dir", dir), zap.Strings("types", opts.types))
	pkg, err := gen.ParseDir(dir, genOpts...)
	if err != nil {
		return err
	}
	source, err := gen.File(cmd.Context(), pkg, genOpts...)
	if err != nil {
		return err
	}

	if opts.stdout {
		_, err := cmd.OutOrStdout().Write(source)
		return err
	}

	output := opts.output
	if output == "" {
		output = filepath.Join(dir, pkg.Name+outputSuffix)
	}
	if err := os.WriteFile(output, source, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	logger.Info("generated", zap.String("file", output), zap.Int("records", len(pkg.Records)))
	return nil
}

// skipFor keeps previous output out of the parsed sources. An explicit
// output only matches the file at that exact path.
func skipFor(dir, output string) func(name string) bool {
	if output != "" {
		target := absPath(output)
		return func(name string) bool { return absPath(filepath.Join(dir, name)) == target }
	}
	return func(name string) bool { return strings.HasSuffix(name, outputSuffix) }
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
