package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	pocketrag "github.com/shunichi0402/pocket-rag"
)

// DefaultMaxUnitLen is the default text unit size ceiling, in runes.
const DefaultMaxUnitLen = 1000

// ErrSplitInvalid reports that the semantic splitter returned output that
// violates its contract: a malformed chunk list, an over-long chunk, or
// sub-chunks that do not reconstruct the original body text exactly.
var ErrSplitInvalid = errors.New("invalid split result")

// Splitter splits a body text that exceeds the size ceiling into an ordered
// list of sub-chunks whose concatenation reconstructs the input exactly.
type Splitter interface {
	Split(ctx context.Context, text string) ([]string, error)
}

// GuardOption configures a SizeGuard.
type GuardOption func(*SizeGuard)

// WithMaxUnitLen sets the size ceiling in runes (default 1000).
func WithMaxUnitLen(n int) GuardOption {
	return func(g *SizeGuard) { g.maxLen = n }
}

// WithFallbackSlicer enables the degraded mode: when the semantic splitter
// fails or violates its contract, the block is re-split with a naive
// fixed-length SliceSplitter instead of failing the ingestion. Off by
// default; the default policy fails the document.
func WithFallbackSlicer() GuardOption {
	return func(g *SizeGuard) { g.useFallback = true }
}

// WithGuardLogger sets a structured logger for split decisions.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *SizeGuard) { g.logger = l }
}

// SizeGuard enforces the text unit size ceiling. Blocks whose prefixed
// content fits pass through unchanged; oversized bodies are delegated to the
// splitter and the verified sub-chunks replace the block in order.
type SizeGuard struct {
	maxLen      int
	splitter    Splitter
	useFallback bool
	fallback    Splitter
	logger      *slog.Logger
}

// NewSizeGuard creates a SizeGuard around the given splitter.
func NewSizeGuard(splitter Splitter, opts ...GuardOption) *SizeGuard {
	g := &SizeGuard{
		maxLen:   DefaultMaxUnitLen,
		splitter: splitter,
		logger:   slog.New(discardHandler{}),
	}
	for _, o := range opts {
		o(g)
	}
	if g.useFallback {
		g.fallback = SliceSplitter{MaxLen: g.maxLen}
	}
	return g
}

// MaxUnitLen returns the configured ceiling in runes.
func (g *SizeGuard) MaxUnitLen() int { return g.maxLen }

// Bound returns the block as a single candidate when it fits, or the split
// candidates otherwise. Each candidate keeps the block's heading-path
// prefix. Content the splitter cannot account for is never dropped: a
// reconstruction mismatch is an error (wrapping ErrSplitInvalid) unless the
// fallback slicer is enabled.
func (g *SizeGuard) Bound(ctx context.Context, b Block) ([]pocketrag.TextUnit, error) {
	if utf8.RuneCountInString(b.Content()) <= g.maxLen {
		return []pocketrag.TextUnit{{
			Content:     b.Content(),
			ContentType: pocketrag.ContentTypeText,
		}}, nil
	}

	chunks, err := g.split(ctx, b.Body)
	if err != nil {
		return nil, err
	}

	units := make([]pocketrag.TextUnit, len(chunks))
	for i, c := range chunks {
		units[i] = pocketrag.TextUnit{
			Content:     b.HeadingPath + c,
			ContentType: pocketrag.ContentTypeText,
		}
	}
	g.logger.Debug("oversized block split", "chunks", len(chunks), "body_runes", utf8.RuneCountInString(b.Body))
	return units, nil
}

func (g *SizeGuard) split(ctx context.Context, body string) ([]string, error) {
	chunks, err := g.splitter.Split(ctx, body)
	if err == nil {
		err = verifySplit(body, chunks, g.maxLen)
	}
	if err == nil {
		return chunks, nil
	}

	if g.fallback == nil {
		return nil, fmt.Errorf("semantic split: %w", err)
	}

	g.logger.Warn("semantic splitter failed, falling back to fixed-length slices", "error", err)
	chunks, ferr := g.fallback.Split(ctx, body)
	if ferr != nil {
		return nil, fmt.Errorf("fallback split: %w", ferr)
	}
	if verr := verifySplit(body, chunks, g.maxLen); verr != nil {
		return nil, fmt.Errorf("fallback split: %w", verr)
	}
	return chunks, nil
}

// verifySplit enforces the lossless-reconstruction contract: sub-chunks must
// concatenate back to the original body, and each must fit the ceiling.
func verifySplit(body string, chunks []string, maxLen int) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: empty chunk list", ErrSplitInvalid)
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > maxLen {
			return fmt.Errorf("%w: chunk %d is %d runes, ceiling %d", ErrSplitInvalid, i, n, maxLen)
		}
	}
	if strings.Join(chunks, "") != body {
		return fmt.Errorf("%w: concatenated chunks do not reconstruct the original text", ErrSplitInvalid)
	}
	return nil
}
