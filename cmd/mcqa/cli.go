package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	internal "github.com/ZanzyTHEbar/mcqa-data/mcqa"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/cache"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/config"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/dataset"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/features"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/tokenizer"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// pipeline wires the loader, tokenizer, encoder and cache for one command.
type pipeline struct {
	cfg       *config.Config
	logger    zerolog.Logger
	processor *dataset.Processor
	encoder   *features.Encoder
}

func newPipeline(cmd *cobra.Command) (*pipeline, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Data.Dir = dir
	}
	if n, _ := cmd.Flags().GetInt("max-length"); n > 0 {
		cfg.Encoder.MaxLength = n
	}

	logger := internal.GetLogger()
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		logger = logger.Level(zerolog.WarnLevel)
	}

	tc, err := cfg.Tokenizer.Resolve(cfg.Encoder.MaxLength)
	if err != nil {
		return nil, err
	}
	tok, err := tokenizer.New(tc)
	if err != nil {
		return nil, err
	}
	enc, err := features.NewEncoder(tok, cfg.Encoder.Options(), logger)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		cfg:       cfg,
		logger:    logger,
		processor: dataset.NewProcessor(cfg.Data.Dir, logger),
		encoder:   enc,
	}, nil
}

// convert loads and encodes a split. Stats is nil when the features came
// from the cache.
func (p *pipeline) convert(ctx context.Context, split dataset.Split, useCache bool) ([]features.Feature, *features.Stats, error) {
	var store *cache.Store
	if useCache && p.cfg.Cache.Enabled {
		var err error
		store, err = cache.Open(p.cfg.Cache.DSN, p.logger)
		if err != nil {
			return nil, nil, err
		}
		defer store.Close()

		feats, err := store.Get(ctx, p.cfg.CacheKey(split.String()))
		if err == nil {
			return feats, nil, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil, err
		}
	}

	examples, err := p.processor.GetExamples(split)
	if err != nil {
		return nil, nil, err
	}
	feats, stats, err := p.encoder.ConvertWithStats(ctx, examples, p.processor.GetLabels())
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		if _, err := store.Put(ctx, p.cfg.CacheKey(split.String()), feats); err != nil {
			return nil, nil, err
		}
	}
	return feats, stats, nil
}

func splitFlag(cmd *cobra.Command) (dataset.Split, error) {
	name, _ := cmd.Flags().GetString("split")
	return dataset.ParseSplit(name)
}

func ConvertHandler(cmd *cobra.Command, args []string) error {
	split, err := splitFlag(cmd)
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	noCache, _ := cmd.Flags().GetBool("no-cache")
	feats, stats, err := p.convert(cmd.Context(), split, !noCache)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "split=%s features=%d max_length=%d\n", split, len(feats), p.cfg.Encoder.MaxLength)
	if stats != nil && stats.TruncatedExamples() > 0 {
		fmt.Fprintf(out, "truncated examples=%d tokens=%d\n", stats.TruncatedExamples(), stats.TruncatedTokens)
	}
	return nil
}

func StatsHandler(cmd *cobra.Command, args []string) error {
	split, err := splitFlag(cmd)
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	_, stats, err := p.convert(cmd.Context(), split, false)
	if err != nil {
		return err
	}
	renderStats(cmd.OutOrStdout(), split, p.cfg.Encoder.MaxLength, stats)
	return nil
}

func renderStats(w io.Writer, split dataset.Split, maxLength int, stats *features.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"SPLIT", "EXAMPLES", "CHOICES", "MEAN LEN", "P95 LEN", "LONGEST", "MAX LEN", "TRUNCATED"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.Append([]string{
		split.String(),
		strconv.Itoa(stats.Examples),
		strconv.Itoa(stats.Choices),
		strconv.FormatFloat(stats.MeanLength, 'f', 1, 64),
		strconv.FormatFloat(stats.P95Length, 'f', 0, 64),
		strconv.Itoa(stats.LongestSequence),
		strconv.Itoa(maxLength),
		strconv.Itoa(stats.TruncatedExamples()),
	})
	table.Render()
}

func LabelsHandler(cmd *cobra.Command, args []string) error {
	p := dataset.NewProcessor("", zerolog.Nop())
	for i, l := range p.GetLabels() {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\n", i, l)
	}
	return nil
}

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   internal.DefaultAppCMDShortCut,
		Short: "Convert multiple-choice QA corpora into encoder features",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Corpus root directory (overrides data.dir)")
	rootCmd.PersistentFlags().Int("max-length", 0, "Max sequence length (overrides encoder.maxLength)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only log warnings and errors")

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Load a split and convert it to features",
		Args:  cobra.NoArgs,
		RunE:  ConvertHandler,
	}
	convertCmd.Flags().String("split", string(dataset.SplitTrain), "Split to convert (train, dev, test)")
	convertCmd.Flags().Bool("no-cache", false, "Ignore the feature cache")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show sequence length and truncation statistics for a split",
		Args:  cobra.NoArgs,
		RunE:  StatsHandler,
	}
	statsCmd.Flags().String("split", string(dataset.SplitTrain), "Split to inspect (train, dev, test)")

	labelsCmd := &cobra.Command{
		Use:   "labels",
		Short: "Print the label vocabulary",
		Args:  cobra.NoArgs,
		RunE:  LabelsHandler,
	}

	rootCmd.AddCommand(convertCmd, statsCmd, labelsCmd)
	return rootCmd
}
