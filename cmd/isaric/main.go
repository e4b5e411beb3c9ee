package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/isaric/isaricdata"
)

var (
	projectDir      string
	transformName   string
	tableName       string
	fields          string
	collapseToOther bool
	threshold       float64
	maxOptions      int
	outputFile      string
	encoding        string
	noValidate      bool
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "isaric",
	Short: "Load and clean clinical case report form datasets",
	Long:  `isaric loads a project directory (metadata, data dictionary and data tables) into a validated dataset, optionally applies a cleaning transform, and prints a summary of the result.`,
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&projectDir, "project", "p", "", "Project directory containing metadata.json (required)")
	rootCmd.Flags().StringVar(&transformName, "transform", "", "Transform to apply: one-hot-encode, inverse-one-hot-encode, or categorical-ynu-to-boolean")
	rootCmd.Flags().StringVarP(&tableName, "table", "t", "presentation", "Table the transform operates on")
	rootCmd.Flags().StringVarP(&fields, "fields", "f", "", "Specific fields (comma-separated, optional)")
	rootCmd.Flags().BoolVar(&collapseToOther, "collapse-to-other", false, "Collapse infrequent options into \"other\" before encoding")
	rootCmd.Flags().Float64Var(&threshold, "threshold", -1, "Cumulative frequency threshold in [0,1] for collapsing")
	rootCmd.Flags().IntVar(&maxOptions, "max-options", -1, "Bound on the number of options kept when collapsing")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for the summary (default: stdout)")
	rootCmd.Flags().StringVar(&encoding, "encoding", "", "Default text encoding for project files (utf-8, latin-1, windows-1252)")
	rootCmd.Flags().BoolVar(&noValidate, "no-validate", false, "Skip re-validation after the transform")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug diagnostics on stderr")
}

func run(cmd *cobra.Command, args []string) error {
	if projectDir == "" {
		return fmt.Errorf("--project must be specified")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(zerolog.WarnLevel)
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	data, err := isaricdata.Load(projectDir, &isaricdata.LoadOptions{
		Encoding: encoding,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	if transformName != "" {
		method, err := isaricdata.ParseMethod(transformName)
		if err != nil {
			return err
		}

		opts := &isaricdata.CleanOptions{
			FieldNames:      parseFieldList(fields),
			CollapseToOther: collapseToOther,
			Validate:        !noValidate,
			Logger:          logger,
		}
		if threshold >= 0 {
			opts.CumulativeThreshold = &threshold
		}
		if maxOptions >= 0 {
			opts.MaxOptions = &maxOptions
		}

		data, err = isaricdata.Clean(data, method, tableName, opts)
		if err != nil {
			return fmt.Errorf("failed to apply %s: %w", transformName, err)
		}
	}

	var writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		writer = f
	}

	if err := isaricdata.Describe(data, writer); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// parseFieldList splits a comma-separated flag value into trimmed names.
// An empty value yields nil, meaning all candidate fields.
func parseFieldList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
