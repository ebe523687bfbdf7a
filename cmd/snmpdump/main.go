// Command snmpdump decodes captured SNMP traffic, correlates it into
// per-flow output files, and optionally filters out or deletes fields
// before writing. It is a thin front end: the pipeline logic lives in
// pkg/snmpdump/app, the core decode/serialize/correlate logic in the
// packages underneath that.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quyenlv/snmpdump/ber"
	"github.com/quyenlv/snmpdump/filter"
	snmpconfig "github.com/quyenlv/snmpdump/pkg/snmpdump/config"

	"github.com/quyenlv/snmpdump/pkg/snmpdump/app"
)

var (
	cfgFile    string
	input      string
	output     string
	filterExpr string
	deleteMode bool
	pcapFilter string

	flowDir          string
	flowPrefix       string
	flowMaxBytes     int64
	flowMaxOpenFiles int

	truncated bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "snmpdump [input-file]",
	Short: "Decode, correlate, and dump captured SNMP traffic",
	Long: `snmpdump reads captured SNMP traffic (or a previous snmpdump XML
dump), decodes each message, correlates requests with responses into
per-flow files, and writes either the round-trippable XML form or a CSV
summary.

Examples:
  # Read a pcap-framed capture, write CSV flow files under ./flows
  snmpdump --input pcap --output csv --flow-dir ./flows capture.bin

  # Re-filter a previous XML dump, clearing community strings
  snmpdump --input xml --output xml --filter community dump.xml`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (YAML)")
	rootCmd.Flags().StringVar(&input, "input", "pcap", "input format: pcap, xml")
	rootCmd.Flags().StringVar(&output, "output", "xml", "output format: xml, csv")
	rootCmd.Flags().StringVar(&filterExpr, "filter", "", "regular expression matched against field names")
	rootCmd.Flags().BoolVar(&deleteMode, "delete", false, "elide matched fields from output instead of clearing their value")
	rootCmd.Flags().StringVar(&pcapFilter, "pcap-filter", "", "filter expression forwarded to the capture layer (not interpreted here)")
	rootCmd.Flags().StringVar(&flowDir, "flow-dir", ".", "output directory for per-flow files")
	rootCmd.Flags().StringVar(&flowPrefix, "flow-prefix", "snmpdump", "prefix for per-flow file names")
	rootCmd.Flags().Int64Var(&flowMaxBytes, "flow-max-bytes", 0, "rotate a flow file once it exceeds this size (0 disables rotation)")
	rootCmd.Flags().IntVar(&flowMaxOpenFiles, "flow-max-open-files", 0, "max flow files open at once (0 = platform default)")
	rootCmd.Flags().BoolVar(&truncated, "truncated", false, "treat a length running past the buffer as a truncation, not an error")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log decode and routing diagnostics to stderr")

	for _, name := range []string{"input", "output", "filter", "delete", "pcap-filter", "flow-dir", "flow-prefix", "flow-max-bytes", "flow-max-open-files", "truncated", "verbose"} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	file, err := snmpconfig.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "snmpdump:", err)
		return
	}

	// Flags set explicitly on the command line win; the config file only
	// fills in flags not given on the command line.
	if !rootCmd.Flags().Changed("input") && file.Input != "" {
		input = file.Input
	}
	if !rootCmd.Flags().Changed("output") && file.Output != "" {
		output = file.Output
	}
	if !rootCmd.Flags().Changed("filter") && file.Filter != "" {
		filterExpr = file.Filter
	}
	if !rootCmd.Flags().Changed("delete") && file.Delete {
		deleteMode = file.Delete
	}
	if !rootCmd.Flags().Changed("pcap-filter") && file.PcapFilter != "" {
		pcapFilter = file.PcapFilter
	}
	if !rootCmd.Flags().Changed("flow-dir") && file.FlowDir != "" {
		flowDir = file.FlowDir
	}
	if !rootCmd.Flags().Changed("flow-prefix") && file.FlowPrefix != "" {
		flowPrefix = file.FlowPrefix
	}
	if !rootCmd.Flags().Changed("flow-max-bytes") && file.FlowMaxBytes != 0 {
		flowMaxBytes = file.FlowMaxBytes
	}
	if !rootCmd.Flags().Changed("flow-max-open-files") && file.FlowMaxOpenFiles != 0 {
		flowMaxOpenFiles = file.FlowMaxOpenFiles
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFor(verbose),
	}))

	var in *os.File
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("snmpdump: open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	} else {
		in = os.Stdin
	}

	var f *filter.Filter
	if filterExpr != "" {
		mode := filter.ModeClear
		if deleteMode {
			mode = filter.ModeDelete
		}
		var err error
		f, err = filter.New(filterExpr, mode)
		if err != nil {
			return fmt.Errorf("snmpdump: compile filter: %w", err)
		}
	}

	inputFormat := app.InputPcap
	if input == "xml" {
		inputFormat = app.InputXML
	}
	outputFormat := app.OutputXML
	if output == "csv" {
		outputFormat = app.OutputCSV
	}
	truncMode := ber.Complete
	if truncated {
		truncMode = ber.Truncated
	}

	a := app.New(app.Config{
		Input:            in,
		InputFormat:      inputFormat,
		OutputFormat:     outputFormat,
		TruncationMode:   truncMode,
		Filter:           f,
		FlowDir:          flowDir,
		FlowPrefix:       flowPrefix,
		FlowMaxBytes:     flowMaxBytes,
		FlowMaxOpenFiles: flowMaxOpenFiles,
	}, logger)

	n, err := a.Run()
	closeErr := a.Close()
	if err != nil {
		return fmt.Errorf("snmpdump: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("snmpdump: %w", closeErr)
	}

	logger.Info("snmpdump: done", "packets", n, "pcap_filter", pcapFilter)
	return nil
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "snmpdump:", err)
		os.Exit(1)
	}
}
