package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"emgpipe/internal/quality"
	"emgpipe/internal/workfolder"
)

func newQualityCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Run quality gates and channel analysis",
	}
	cmd.AddCommand(newQualityCovisiCommand(ctx))
	cmd.AddCommand(newQualityValidateCommand(ctx))
	cmd.AddCommand(newQualityRMSCommand(ctx))
	return cmd
}

func (c *commandContext) analyzer() (*quality.Analyzer, workfolder.Layout, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, workfolder.Layout{}, err
	}
	layout, err := workfolder.Open(cfg.Paths.Workfolder)
	if err != nil {
		return nil, workfolder.Layout{}, err
	}
	analyzer := quality.New(quality.Options{
		CovisiThreshold:    cfg.Quality.CovisiThreshold,
		RMSDeviationFactor: cfg.Quality.RMSDeviationFactor,
		GzipLevel:          cfg.Bridge.GzipLevel,
	})
	return analyzer, layout, nil
}

func newQualityCovisiCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "covisi",
		Short: "Run the CoVISI pre-filter gate over decomposition results",
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, layout, err := ctx.analyzer()
			if err != nil {
				return err
			}
			report, err := analyzer.RunPreFilter(layout.Decomposition())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, report)
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Filtered %d file(s): %d of %d unit(s) kept, %d removed\n",
				report.FilesProcessed, report.TotalMUsFiltered,
				report.TotalMUsOriginal, report.TotalMUsRemoved)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the full report as JSON")
	return cmd
}

func newQualityValidateCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var accept bool
	var filter bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the post-validation gate against edited containers",
		Long: `Compare CoVISI values before and after manual cleaning. With --accept the
gate report records acceptance of every unit; with --filter units still over
threshold are listed for exclusion. Without either flag the comparison is
computed but no gate decision is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if accept && filter {
				return fmt.Errorf("--accept and --filter are mutually exclusive")
			}
			analyzer, layout, err := ctx.analyzer()
			if err != nil {
				return err
			}
			dir := layout.Decomposition()
			var report *quality.PostValidationReport
			switch {
			case accept:
				report, err = analyzer.AcceptPostValidation(dir)
			case filter:
				report, err = analyzer.FilterPostValidation(dir)
			default:
				report, err = analyzer.RunPostValidation(dir)
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, report)
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Validated %d file(s): %d unit(s) before, %d after\n",
				report.FilesValidated, report.TotalMUsPre, report.TotalMUsPost)
			if report.AvgImprovementOverall != nil {
				fmt.Fprintf(stdout, "Average CoVISI improvement: %.1f%%\n", *report.AvgImprovementOverall)
			}
			if report.MUsExceedingThreshold > 0 {
				fmt.Fprintf(stdout, "%d unit(s) still exceed the threshold\n", report.MUsExceedingThreshold)
			}
			if report.Action != "" {
				fmt.Fprintf(stdout, "Gate decision recorded: %s\n", report.Action)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the full report as JSON")
	cmd.Flags().BoolVar(&accept, "accept", false, "Accept all units and persist the gate report")
	cmd.Flags().BoolVar(&filter, "filter", false, "Mark failing units for exclusion and persist the gate report")
	return cmd
}

func newQualityRMSCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "rms",
		Short: "Analyze channel noise over the cleaned recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, layout, err := ctx.analyzer()
			if err != nil {
				return err
			}
			report, err := analyzer.RunRMS(layout)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, report)
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Measured %d channel(s) across %d recording(s)\n",
				report.TotalChannels, len(report.Files))
			fmt.Fprintf(stdout, "Grand mean RMS: %.2f uV (median %.2f uV)\n",
				report.GrandMean, report.Median)
			if report.FlaggedChannels > 0 {
				fmt.Fprintf(stdout, "%d channel(s) flagged outside the median band\n", report.FlaggedChannels)
			}
			fmt.Fprintf(stdout, "Report: %s\n", report.CSVPath)
			fmt.Fprintf(stdout, "Chart:  %s\n", report.HTMLPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the full report as JSON")
	return cmd
}
