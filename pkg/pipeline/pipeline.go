// Package pipeline orchestrates a full block-OCR job: render and crop
// pages, plan and compose strips, run governed OCR calls, reconcile
// responses and retry unresolved blocks.
//
// Key Features:
//   - Sequential page rendering with crops copied out so each raster can
//     be released before the next page loads
//   - Strip dispatch under a fixed concurrency ceiling; a slot is held
//     from before composition until the response is reconciled, so at
//     most Concurrency composites are alive at once
//   - Prompt job cancellation: no new dispatches, while in-flight calls
//     finish on a detached, deadline-bounded context
//   - Verification retry passes that re-submit missing and failed blocks
//     one at a time
//
// Main Functions:
//   - New: builds a pipeline around an engine and a page provider
//   - Pipeline.Run: executes one job and returns its ResultSet
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ocrstitch/ocrstitch/pkg/armor"
	"github.com/ocrstitch/ocrstitch/pkg/block"
	"github.com/ocrstitch/ocrstitch/pkg/reconcile"
	"github.com/ocrstitch/ocrstitch/pkg/strip"
	"github.com/ocrstitch/ocrstitch/pkg/vision"
)

// DefaultPrompt instructs strip-aware transcription.
const DefaultPrompt = "Transcribe every region of this image in reading order. " +
	"Each region starts with a separator band reading BLOCK_ID: followed by a code. " +
	"For every region, first repeat its BLOCK_ID line exactly as printed, then transcribe " +
	"the region's complete content. Render tables as HTML tables. Do not describe the bands."

// DefaultBlockPrompt instructs single-block transcription, used for
// unbatched blocks and verification retries.
const DefaultBlockPrompt = "Transcribe the complete content of this image. " +
	"Render tables as HTML tables. Return only the transcribed content."

// Config tunes one pipeline instance.
type Config struct {
	Prompt      string `yaml:"prompt"`
	BlockPrompt string `yaml:"block_prompt"`

	// Concurrency caps simultaneous OCR calls and live composites.
	Concurrency int `yaml:"concurrency"`
	// Cutoff is the fuzzy-match threshold; zero selects the default.
	Cutoff int `yaml:"cutoff"`
	// Padding is applied around block crops, in pixels.
	Padding int `yaml:"padding"`

	Strip  strip.Params        `yaml:"strip"`
	Caller vision.CallerConfig `yaml:"caller"`

	// RetryPasses is how many verification passes run after the strips.
	RetryPasses int `yaml:"retry_passes"`
	// RetryDelay spaces consecutive retry calls for small-ceiling backends.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// DetachTimeout bounds in-flight calls after job cancellation.
	DetachTimeout time.Duration `yaml:"detach_timeout"`
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Prompt:        DefaultPrompt,
		BlockPrompt:   DefaultBlockPrompt,
		Concurrency:   4,
		Padding:       block.DefaultPadding,
		Strip:         strip.DefaultParams(),
		Caller:        vision.DefaultCallerConfig(),
		RetryPasses:   1,
		DetachTimeout: 5 * time.Minute,
	}
}

// Pipeline runs block-OCR jobs against one engine and one page source.
type Pipeline struct {
	caller     *vision.Caller
	provider   block.PageProvider
	reconciler *reconcile.Engine
	cfg        Config
	log        *logrus.Entry
}

// New builds a pipeline. Zero config fields fall back to defaults.
func New(engine vision.Engine, provider block.PageProvider, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.Prompt == "" {
		cfg.Prompt = def.Prompt
	}
	if cfg.BlockPrompt == "" {
		cfg.BlockPrompt = def.BlockPrompt
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Padding < 0 {
		cfg.Padding = def.Padding
	}
	if cfg.Strip == (strip.Params{}) {
		cfg.Strip = def.Strip
	}
	if cfg.DetachTimeout <= 0 {
		cfg.DetachTimeout = def.DetachTimeout
	}
	return &Pipeline{
		caller:     vision.NewCaller(engine, cfg.Caller),
		provider:   provider,
		reconciler: reconcile.NewEngine(cfg.Cutoff),
		cfg:        cfg,
		log:        logrus.WithField("component", "pipeline"),
	}
}

// Run executes one job. The returned ResultSet covers every block of the
// layout; on cancellation it holds whatever completed, alongside the
// context error.
func (p *Pipeline) Run(ctx context.Context, layout *block.Layout) (*reconcile.ResultSet, error) {
	if p.provider == nil {
		return nil, fmt.Errorf("pipeline has no page provider")
	}
	if err := layout.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	blocks := append([]*block.Block(nil), layout.Blocks...)
	block.SortDocumentOrder(blocks)

	ids := make([]string, len(blocks))
	byID := make(map[string]*block.Block, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
		byID[b.ID] = b
	}
	rs := reconcile.NewResultSet(ids)

	log := p.log.WithField("job", layout.Name)
	log.WithFields(logrus.Fields{
		"blocks": len(blocks),
		"pages":  layout.Pages,
	}).Info("Starting OCR job")

	crops, err := p.cropAll(ctx, blocks, log)
	if err != nil {
		return rs, err
	}

	plan, err := strip.NewPlan(crops, p.cfg.Strip)
	if err != nil {
		return rs, fmt.Errorf("failed to plan strips: %w", err)
	}
	log.WithFields(logrus.Fields{
		"strips":     len(plan.Strips),
		"singletons": len(plan.Singletons),
	}).Info("Planned batches")

	p.dispatch(ctx, plan, rs, log)

	for pass := 1; pass <= p.cfg.RetryPasses && ctx.Err() == nil; pass++ {
		if len(rs.Eligible()) == 0 {
			break
		}
		p.retryPass(ctx, pass, byID, rs, log)
	}

	ok, missing, failed := rs.Counts()
	log.WithFields(logrus.Fields{
		"resolved": ok,
		"missing":  missing,
		"failed":   failed,
	}).Info("Job finished")

	if err := ctx.Err(); err != nil {
		return rs, err
	}
	return rs, nil
}

// cropAll walks the blocks in document order, loading each page raster
// once and copying block crops out of it. A page that fails to load only
// costs its own blocks; they surface as missing.
func (p *Pipeline) cropAll(ctx context.Context, blocks []*block.Block, log *logrus.Entry) ([]*block.Crop, error) {
	crops := make([]*block.Crop, len(blocks))
	page := -1
	var raster image.Image
	for i, b := range blocks {
		if err := ctx.Err(); err != nil {
			return crops, err
		}
		if b.Page != page {
			page = b.Page
			raster = nil
			img, err := p.provider.Page(ctx, b.Page)
			if err != nil {
				log.WithError(err).WithField("page", b.Page).Warn("Failed to load page")
				continue
			}
			raster = img
		}
		if raster == nil {
			continue
		}
		crop, err := block.NewCrop(raster, b, p.cfg.Padding)
		if err != nil {
			log.WithError(err).WithField("block", b.ID).Warn("Failed to crop block")
			continue
		}
		crops[i] = crop
	}
	return crops, nil
}

// dispatch runs every strip and singleton part through the engine under
// the concurrency ceiling. Slots are acquired before composition so the
// ceiling also bounds live composite images.
func (p *Pipeline) dispatch(ctx context.Context, plan *strip.Plan, rs *reconcile.ResultSet, log *logrus.Entry) {
	slots := make(chan struct{}, p.cfg.Concurrency)
	var g errgroup.Group

	solos := groupSingletons(plan.Singletons)

dispatch:
	for i, s := range plan.Strips {
		select {
		case <-ctx.Done():
			break dispatch
		case slots <- struct{}{}:
		}

		stripIDs := s.IDs()
		composite, err := strip.Compose(s, p.cfg.Strip)
		if err != nil {
			<-slots
			log.WithError(err).WithField("strip", i).Error("Failed to compose strip")
			rs.MarkVendorError(stripIDs, "compose failed: "+err.Error())
			continue
		}

		stripNo := i
		set := armor.NewCodeSet(stripIDs)
		g.Go(func() error {
			defer func() { <-slots }()
			p.processStrip(ctx, stripNo, composite, set, rs, log)
			return nil
		})
	}

	if ctx.Err() == nil {
		p.dispatchSingletons(ctx, solos, slots, &g, log)
	}

	_ = g.Wait()
	p.settleSingletons(solos, rs)
}

// processStrip performs one governed strip call and reconciles its
// response. Call failures turn into vendor-error results for every block
// of the strip.
func (p *Pipeline) processStrip(ctx context.Context, stripNo int, composite *image.RGBA, set *armor.CodeSet, rs *reconcile.ResultSet, log *logrus.Entry) {
	stripIDs := set.IDs()
	data, err := encodePNG(composite)
	if err != nil {
		rs.MarkVendorError(stripIDs, "encode failed: "+err.Error())
		return
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	text, err := p.caller.Call(callCtx, vision.Request{
		Image:  data,
		MIME:   "image/png",
		Prompt: p.cfg.Prompt,
	})
	if err != nil {
		log.WithError(err).WithField("strip", stripNo).Warn("Strip call failed")
		rs.MarkVendorError(stripIDs, err.Error())
		return
	}

	results := p.reconciler.Reconcile(text, set)
	for _, r := range results {
		rs.Put(r)
	}
	log.WithFields(logrus.Fields{
		"strip":    stripNo,
		"blocks":   len(stripIDs),
		"resolved": len(results),
	}).Info("Strip reconciled")
}

// callContext detaches an OCR call from job cancellation while keeping it
// deadline-bounded, so in-flight calls complete or time out naturally.
func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.cfg.DetachTimeout)
}

// encodePNG renders an image to PNG bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// soloJob is one unbatched block: its parts go out as individual calls
// and the responses reassemble in part order.
type soloJob struct {
	id    string
	parts []strip.Part
	texts []string
	errs  []error
}

func groupSingletons(parts []strip.Part) []*soloJob {
	var jobs []*soloJob
	index := make(map[string]*soloJob)
	for _, part := range parts {
		job, ok := index[part.Block.ID]
		if !ok {
			job = &soloJob{id: part.Block.ID}
			index[part.Block.ID] = job
			jobs = append(jobs, job)
		}
		job.parts = append(job.parts, part)
	}
	for _, job := range jobs {
		job.texts = make([]string, len(job.parts))
		job.errs = make([]error, len(job.parts))
	}
	return jobs
}

// dispatchSingletons sends every part of every unbatched block as its own
// call. Each goroutine writes a distinct slot of its job's slices, so the
// only synchronization needed is the group wait.
func (p *Pipeline) dispatchSingletons(ctx context.Context, jobs []*soloJob, slots chan struct{}, g *errgroup.Group, log *logrus.Entry) {
	for _, job := range jobs {
		for k := range job.parts {
			select {
			case <-ctx.Done():
				return
			case slots <- struct{}{}:
			}

			g.Go(func() error {
				defer func() { <-slots }()
				data, err := encodePNG(job.parts[k].Image)
				if err != nil {
					job.errs[k] = err
					return nil
				}
				callCtx, cancel := p.callContext(ctx)
				defer cancel()
				text, err := p.caller.Call(callCtx, vision.Request{
					Image:  data,
					MIME:   "image/png",
					Prompt: p.cfg.BlockPrompt,
				})
				if err != nil {
					log.WithError(err).WithField("block", job.id).Warn("Singleton call failed")
					job.errs[k] = err
					return nil
				}
				job.texts[k] = strings.TrimSpace(text)
				return nil
			})
		}
	}
}

// settleSingletons folds per-part responses into block results. Unbatched
// calls skip reconciliation: the whole response is the block's content.
func (p *Pipeline) settleSingletons(jobs []*soloJob, rs *reconcile.ResultSet) {
	for _, job := range jobs {
		var parts []string
		var lastErr error
		for k := range job.parts {
			if job.errs[k] != nil {
				lastErr = job.errs[k]
				continue
			}
			if job.texts[k] != "" {
				parts = append(parts, job.texts[k])
			}
		}
		switch {
		case len(parts) > 0:
			rs.Put(reconcile.MatchResult{
				ID:      job.id,
				Content: strings.Join(parts, "\n"),
				Method:  reconcile.MethodExact,
				Score:   100,
				Kind:    reconcile.KindOK,
			})
		case lastErr != nil:
			rs.MarkVendorError([]string{job.id}, lastErr.Error())
		}
	}
}
