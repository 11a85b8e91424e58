package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"digest-feed/internal/domain/entity"
	"digest-feed/internal/observability/metrics"
	"digest-feed/internal/usecase/digest"
	"digest-feed/internal/utils/text"
)

// Layer names used in logs and metric labels.
const (
	layerParagraphs = "paragraphs"
	layerSection    = "section"
	layerOverall    = "overall"
	layerOneLine    = "one_line"
)

// LayerSummarizer implements the digest.Summarizer interface by composing
// one Generator call per layer. Each layer degrades independently: a failed
// paragraph or section layer is left empty, a failed overall or one-line
// layer falls back to truncated content. Only when no layer can be generated
// at all does Summarize return an error, and the pipeline then builds the
// fully degraded digest itself.
//
// Structured replies (the paragraph layer) are requested as JSON and decoded
// here; the orchestration core never sees provider reply text.
type LayerSummarizer struct {
	generator       Generator
	provider        string
	config          LayerConfig
	logger          *slog.Logger
	metricsRecorder LayerMetricsRecorder
}

// NewLayerSummarizer creates a LayerSummarizer over the given generator.
// provider is the metric label for the generator backend ("claude",
// "openai", "noop").
func NewLayerSummarizer(generator Generator, provider string, config LayerConfig, logger *slog.Logger) *LayerSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LayerSummarizer{
		generator:       generator,
		provider:        provider,
		config:          config,
		logger:          logger,
		metricsRecorder: NewPrometheusLayerMetrics(),
	}
}

// Summarize generates all layers for one entry.
func (s *LayerSummarizer) Summarize(ctx context.Context, in digest.SummarizeInput) (entity.DigestLayers, error) {
	start := time.Now()

	var (
		layers    entity.DigestLayers
		succeeded int
		lastErr   error
	)

	fail := func(layer string, err error) {
		lastErr = err
		s.logger.Warn("layer generation failed",
			slog.String("layer", layer),
			slog.String("title", in.Title),
			slog.Any("error", err))
		metrics.RecordLayerFailure(layer)
	}

	// Paragraph layer: only meaningful when extraction yielded structure.
	if len(in.Paragraphs) > 0 {
		paragraphs, err := s.generateParagraphs(ctx, in)
		if err != nil {
			fail(layerParagraphs, err)
		} else {
			layers.Paragraphs = paragraphs
			succeeded++
		}
	}

	section, err := s.generateSection(ctx, in, layers.Paragraphs)
	if err != nil {
		fail(layerSection, err)
	} else {
		layers.Section = section
		succeeded++
	}

	overall, err := s.generateOverall(ctx, in)
	if err != nil {
		fail(layerOverall, err)
	} else {
		layers.Overall = overall
		succeeded++
	}

	oneLine, err := s.generateOneLine(ctx, in, layers.Overall)
	if err != nil {
		fail(layerOneLine, err)
	} else {
		layers.OneLine = oneLine
		succeeded++
	}

	duration := time.Since(start)
	metrics.RecordDigestGeneration(s.provider, duration, succeeded > 0)

	if succeeded == 0 {
		return entity.DigestLayers{}, fmt.Errorf("%w: %v", digest.ErrGenerationFailed, lastErr)
	}

	// Partial failure: the coarse layers always carry text.
	if layers.Overall == "" {
		layers.Overall = text.TruncateRunes(in.Content, s.config.OverallLimit)
	}
	if layers.OneLine == "" {
		layers.OneLine = text.TruncateRunes(layers.Overall, s.config.OneLineLimit)
	}

	s.logger.Info("digest layers generated",
		slog.String("title", in.Title),
		slog.String("provider", s.provider),
		slog.Int("paragraphs", len(layers.Paragraphs)),
		slog.Bool("section", layers.Section != ""),
		slog.Bool("degraded", layers.Degraded()),
		slog.Duration("duration", duration))

	return layers, nil
}

// generateParagraphs asks for one titled summary per source paragraph and
// decodes the JSON reply.
func (s *LayerSummarizer) generateParagraphs(ctx context.Context, in digest.SummarizeInput) ([]entity.ParagraphSummary, error) {
	paragraphs := in.Paragraphs
	if len(paragraphs) > s.config.MaxParagraphs {
		paragraphs = paragraphs[:s.config.MaxParagraphs]
	}

	systemPrompt := fmt.Sprintf(`You are a news digest writer. The user message contains the numbered paragraphs of the article %q from %s.
Summarize every paragraph. Respond with a JSON array only, no prose, in this exact shape:
[{"index": <paragraph number>, "title": "<heading of at most 8 words>", "summary": "<summary of at most %d characters>"}]`,
		in.Title, in.SourceName, s.config.ParagraphLimit)

	var b strings.Builder
	for i, p := range paragraphs {
		fmt.Fprintf(&b, "[%d] %s\n\n", i, p)
	}

	reply, err := s.generator.Generate(ctx, systemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	summaries, err := decodeParagraphs(reply)
	if err != nil {
		return nil, err
	}

	for _, ps := range summaries {
		s.recordLayer(layerParagraphs, ps.Summary, s.config.ParagraphLimit)
	}

	return summaries, nil
}

// generateSection produces the mid-granularity summary. It works from the
// paragraph summaries when they exist, otherwise from the raw content.
func (s *LayerSummarizer) generateSection(ctx context.Context, in digest.SummarizeInput, paragraphs []entity.ParagraphSummary) (string, error) {
	material := in.Content
	if len(paragraphs) > 0 {
		var b strings.Builder
		for _, p := range paragraphs {
			fmt.Fprintf(&b, "%s: %s\n", p.Title, p.Summary)
		}
		material = b.String()
	}

	systemPrompt := fmt.Sprintf(`You are a news digest writer. The user message contains the article %q from %s, or its paragraph summaries.
Write a section-by-section summary of at most %d characters. Respond with the summary text only.`,
		in.Title, in.SourceName, s.config.SectionLimit)

	reply, err := s.generator.Generate(ctx, systemPrompt, material)
	if err != nil {
		return "", err
	}

	section := strings.TrimSpace(reply)
	if section == "" {
		return "", fmt.Errorf("empty section reply")
	}

	s.recordLayer(layerSection, section, s.config.SectionLimit)
	return section, nil
}

// generateOverall produces the full-article summary.
func (s *LayerSummarizer) generateOverall(ctx context.Context, in digest.SummarizeInput) (string, error) {
	systemPrompt := fmt.Sprintf(`You are a news digest writer. The user message contains the article %q from %s.
Write a self-contained summary of at most %d characters. Respond with the summary text only.`,
		in.Title, in.SourceName, s.config.OverallLimit)

	reply, err := s.generator.Generate(ctx, systemPrompt, in.Content)
	if err != nil {
		return "", err
	}

	overall := strings.TrimSpace(reply)
	if overall == "" {
		return "", fmt.Errorf("empty overall reply")
	}

	s.recordLayer(layerOverall, overall, s.config.OverallLimit)
	return overall, nil
}

// generateOneLine produces the single-sentence summary, preferring the
// already generated overall layer as its material.
func (s *LayerSummarizer) generateOneLine(ctx context.Context, in digest.SummarizeInput, overall string) (string, error) {
	material := overall
	if material == "" {
		material = in.Content
	}

	systemPrompt := fmt.Sprintf(`You are a news digest writer. The user message contains a summary of the article %q from %s.
Condense it into one sentence of at most %d characters. Respond with the sentence only.`,
		in.Title, in.SourceName, s.config.OneLineLimit)

	reply, err := s.generator.Generate(ctx, systemPrompt, material)
	if err != nil {
		return "", err
	}

	oneLine := strings.TrimSpace(reply)
	if oneLine == "" {
		return "", fmt.Errorf("empty one-line reply")
	}

	s.recordLayer(layerOneLine, oneLine, s.config.OneLineLimit)
	return oneLine, nil
}

// recordLayer records length and budget-compliance metrics for one generated
// layer value.
func (s *LayerSummarizer) recordLayer(layer, value string, limit int) {
	length := text.CountRunes(value)
	withinLimit := length <= limit

	s.metricsRecorder.RecordLayerLength(layer, length)
	s.metricsRecorder.RecordLayerCompliance(layer, withinLimit)
	if !withinLimit {
		s.metricsRecorder.RecordLayerLimitExceeded(layer)
		s.logger.Warn("layer exceeds character budget",
			slog.String("layer", layer),
			slog.Int("length", length),
			slog.Int("limit", limit))
	}
}

// decodeParagraphs parses the paragraph layer reply. Models occasionally
// wrap the JSON in a Markdown fence or a line of prose; both are recovered
// here so the orchestration core never deals with reply text.
func decodeParagraphs(reply string) ([]entity.ParagraphSummary, error) {
	payload := stripJSONFence(reply)

	var items []entity.ParagraphSummary
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		start := strings.Index(payload, "[")
		end := strings.LastIndex(payload, "]")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("paragraph reply is not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(payload[start:end+1]), &items); err != nil {
			return nil, fmt.Errorf("paragraph reply is not JSON: %w", err)
		}
	}

	kept := make([]entity.ParagraphSummary, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Summary) != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("paragraph reply contained no summaries")
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Index < kept[j].Index })
	return kept, nil
}

// stripJSONFence removes a Markdown code fence around a JSON reply.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
