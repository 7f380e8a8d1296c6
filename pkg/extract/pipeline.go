package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/getentag/entag/config"
	"github.com/getentag/entag/internal"
	"github.com/getentag/entag/pkg/lexicon"
	"github.com/getentag/entag/pkg/models"
)

var log = internal.GetLogger()

// Source produces candidate mentions from document content.
type Source interface {
	Name() string
	Extract(ctx context.Context, text string) ([]models.RawMatch, error)
}

// Pipeline runs the configured sources over content and reduces their raw
// output to canonical entities: mask, match, dedupe, consolidate ranges,
// canonicalize. A Pipeline is stateless and safe for concurrent use.
type Pipeline struct {
	sources []Source
	units   *lexicon.UnitTable
	maxGap  int
}

var _ models.Extractor = &Pipeline{}

// NewPipeline assembles the pipeline from configuration and a loaded
// lexicon library. At least one source must be enabled.
func NewPipeline(cfg *config.Config, library *lexicon.Library) (*Pipeline, error) {
	if library == nil {
		return nil, errors.New("lexicon library is required")
	}

	p := &Pipeline{
		units:  library.Units(),
		maxGap: cfg.Extract.Ranges.MaxGap,
	}
	if cfg.Extract.Pattern.Enabled {
		p.sources = append(p.sources, NewPatternSource(p.units))
	}
	if cfg.Extract.Gazetteer.Enabled {
		p.sources = append(p.sources, NewGazetteerSource(library.Entries()))
	}
	if cfg.Extract.NER.Enabled {
		if cfg.Extract.NER.ServerURL == "" {
			return nil, errors.New("ner source enabled without a server_url")
		}
		p.sources = append(p.sources, NewNERSource(cfg.Extract.NER))
	}
	if len(p.sources) == 0 {
		return nil, errors.New("no extraction sources enabled")
	}

	log.Debugf("extraction pipeline ready with %d sources", len(p.sources))
	return p, nil
}

// Extract runs all sources over content and returns canonical entities
// with their surviving mentions. Matches that touch masked regions are
// discarded before dedup, so RawCount counts taggable candidates only.
func (p *Pipeline) Extract(ctx context.Context, content string) (*models.ExtractionResult, error) {
	if content == "" {
		return &models.ExtractionResult{}, nil
	}

	masked := MaskRegions(content)

	var raw []models.RawMatch
	for _, source := range p.sources {
		matches, err := source.Extract(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("%s source failed: %w", source.Name(), err)
		}
		raw = append(raw, matches...)
	}
	raw = DropMasked(raw, masked)

	deduped := Dedupe(raw)
	consolidated, merged := ConsolidateRanges(content, deduped, p.units, p.maxGap)
	entities := Canonicalize(consolidated, p.units)

	result := &models.ExtractionResult{
		Entities:           entities,
		RawCount:           len(raw),
		DroppedOverlaps:    len(raw) - len(deduped),
		ConsolidatedRanges: merged,
	}
	log.Debugf(
		"extracted %d entities from %d raw matches (%d overlaps dropped, %d ranges merged)",
		len(entities), result.RawCount, result.DroppedOverlaps, merged,
	)
	return result, nil
}

// Annotate rewrites content with mention tags.
func (p *Pipeline) Annotate(content string, entities []models.CanonicalEntity) (string, error) {
	return Annotate(content, entities)
}
