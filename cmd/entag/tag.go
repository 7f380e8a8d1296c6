package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/getentag/entag/config"
	"github.com/getentag/entag/pkg/extract"
	"github.com/getentag/entag/pkg/lexicon"
	"github.com/getentag/entag/pkg/models"
)

var tagCmd = &cobra.Command{
	Use:     "tag [file]",
	Short:   "Tag a markdown file and print the annotated content",
	Example: "entag tag notes.md > notes_tagged.md",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagFile(args[0])
	},
}

// tagFile runs the extraction pipeline over a single file, without a server
// or a store. The annotated content goes to stdout, the run summary to stderr.
func tagFile(path string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		if cfgFile != "" {
			return fmt.Errorf("error configuring entag: %w", err)
		}
		// No config file found. Tag with the embedded lexicons only.
		cfg = &config.Config{}
		cfg.Extract.Pattern.Enabled = true
		cfg.Extract.Gazetteer.Enabled = true
	}

	library, err := lexicon.LoadDefault()
	if err != nil {
		return fmt.Errorf("failed to load embedded lexicons: %w", err)
	}
	if paths := cfg.Lexicon.Paths; len(paths) > 0 {
		if err := library.LoadPaths(paths); err != nil {
			return fmt.Errorf("failed to load lexicon paths: %w", err)
		}
	}

	pipeline, err := extract.NewPipeline(cfg, library)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	result, err := pipeline.Extract(context.Background(), string(content))
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	annotated, err := extract.Annotate(string(content), result.Entities)
	if err != nil {
		return fmt.Errorf("annotation failed: %w", err)
	}
	fmt.Println(annotated)

	printTagSummary(path, result)
	return nil
}

func printTagSummary(path string, result *models.ExtractionResult) {
	fmt.Fprintf(
		os.Stderr,
		"%s: %s entities, %s mentions (%s raw matches, %s overlaps dropped, %s ranges consolidated)\n",
		path,
		humanize.Comma(int64(len(result.Entities))),
		humanize.Comma(int64(result.MentionCount())),
		humanize.Comma(int64(result.RawCount)),
		humanize.Comma(int64(result.DroppedOverlaps)),
		humanize.Comma(int64(result.ConsolidatedRanges)),
	)

	entities := make([]models.CanonicalEntity, len(result.Entities))
	copy(entities, result.Entities)
	sort.Slice(entities, func(i, j int) bool {
		if len(entities[i].Mentions) != len(entities[j].Mentions) {
			return len(entities[i].Mentions) > len(entities[j].Mentions)
		}
		return entities[i].Normalized < entities[j].Normalized
	})
	for _, entity := range entities {
		fmt.Fprintf(
			os.Stderr,
			"  %s  %-14s %q\n",
			entity.ID,
			entity.Type,
			entity.Normalized,
		)
	}
}
