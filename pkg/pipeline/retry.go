package pipeline

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ocrstitch/ocrstitch/pkg/block"
	"github.com/ocrstitch/ocrstitch/pkg/reconcile"
	"github.com/ocrstitch/ocrstitch/pkg/vision"
)

// retryPass re-submits every still-unresolved block once: a fresh crop
// with standard padding and a single governed call, sequentially and in
// document order. A non-empty reply overwrites the block's result with
// the retry method at full confidence; anything else leaves the block for
// the next pass or the final report.
func (p *Pipeline) retryPass(ctx context.Context, pass int, byID map[string]*block.Block, rs *reconcile.ResultSet, log *logrus.Entry) {
	eligible := rs.Eligible()
	if len(eligible) == 0 {
		return
	}
	log.WithFields(logrus.Fields{
		"pass":     pass,
		"eligible": len(eligible),
	}).Info("Starting verification pass")

	recovered := 0
	page := -1
	var raster image.Image
	for i, id := range eligible {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && p.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.RetryDelay):
			}
		}

		b, ok := byID[id]
		if !ok {
			continue
		}
		if b.Page != page {
			page = b.Page
			raster = nil
			img, err := p.provider.Page(ctx, b.Page)
			if err != nil {
				log.WithError(err).WithField("page", b.Page).Warn("Failed to load page for retry")
				continue
			}
			raster = img
		}
		if raster == nil {
			continue
		}

		crop, err := block.NewCrop(raster, b, p.cfg.Padding)
		if err != nil {
			log.WithError(err).WithField("block", id).Warn("Failed to crop block for retry")
			continue
		}
		data, err := encodePNG(crop.Image)
		if err != nil {
			continue
		}

		callCtx, cancel := p.callContext(ctx)
		text, err := p.caller.Call(callCtx, vision.Request{
			Image:  data,
			MIME:   "image/png",
			Prompt: p.cfg.BlockPrompt,
		})
		cancel()
		if err != nil {
			log.WithError(err).WithField("block", id).Warn("Retry call failed")
			rs.MarkVendorError([]string{id}, err.Error())
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		rs.Put(reconcile.MatchResult{
			ID:      id,
			Content: text,
			Method:  reconcile.MethodRetry,
			Score:   100,
			Kind:    reconcile.KindOK,
		})
		recovered++
	}

	log.WithFields(logrus.Fields{
		"pass":      pass,
		"recovered": recovered,
	}).Info("Verification pass finished")
}
