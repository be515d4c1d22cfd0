// Command artifactctl runs the artifact parser over a file or stdin, either
// streaming it in fixed-size chunks or stripping artifacts from it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"artifact-proxy/logger"
	"artifact-proxy/parser"
	"artifact-proxy/types"
	"artifact-proxy/workdir"

	"github.com/spf13/cobra"
)

type parseOptions struct {
	chunkSize   int
	messageID   string
	jsonOutput  bool
	noNormalize bool
	workDir     string
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "artifactctl",
		Short:         "Inspect boltArtifact output offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newParseCmd(), newStripCmd())
	return root
}

func newParseCmd() *cobra.Command {
	opts := parseOptions{}
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Stream a message through the parser and print output and events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return runParse(cmd.OutOrStdout(), cmd.ErrOrStderr(), input, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.chunkSize, "chunk-size", "c", 32, "bytes fed to the parser per call (0 feeds everything at once)")
	flags.StringVarP(&opts.messageID, "message-id", "m", "cli", "message id passed to the parser")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print NDJSON stream lines instead of text")
	flags.BoolVar(&opts.noNormalize, "no-normalize", false, "leave function-call markup untouched")
	flags.StringVar(&opts.workDir, "work-dir", workdir.Default, "directory file paths are made relative to")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log parser diagnostics to stderr")
	return cmd
}

func newStripCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strip [file]",
		Short: "Remove every artifact from a finished message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), parser.StripArtifacts(input))
			return err
		},
	}
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

func runParse(stdout, stderr io.Writer, input string, opts parseOptions) error {
	if opts.chunkSize < 0 {
		return fmt.Errorf("chunk size must not be negative, got %d", opts.chunkSize)
	}

	var log logger.Logger
	if opts.verbose {
		obs, err := logger.NewObservabilityLogger(logger.ObservabilityOptions{Format: "text", Level: logger.DEBUG, Output: stderr})
		if err != nil {
			return err
		}
		log = logger.New(context.Background(), nil, obs.Logrus()).WithComponent(logger.ComponentParser)
	}

	recorder := parser.NewEventRecorder()
	p := parser.New(parser.Options{
		Callbacks:                        recorder.Callbacks(),
		WorkDir:                          opts.workDir,
		Logger:                           log,
		DisableFunctionCallNormalization: opts.noNormalize,
	})

	printer := newEventPrinter(stdout, stderr, opts.jsonOutput)
	chunkSize := opts.chunkSize
	if chunkSize == 0 || chunkSize > len(input) {
		chunkSize = len(input)
	}

	for end := chunkSize; ; end += chunkSize {
		if end > len(input) {
			end = len(input)
		}
		var output string
		if end >= len(input) {
			output = p.Finish(opts.messageID, input)
		} else {
			output = p.Parse(opts.messageID, input[:end])
		}
		if err := printer.output(opts.messageID, output); err != nil {
			return err
		}
		for _, event := range recorder.Drain() {
			if err := printer.event(event); err != nil {
				return err
			}
		}
		if end >= len(input) {
			break
		}
	}

	return printer.done(opts.messageID)
}

func encodeLine(w io.Writer, line types.StreamLine) error {
	return json.NewEncoder(w).Encode(line)
}
