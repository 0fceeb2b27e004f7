package domsnap

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/domsnap/internal/browser"
	"github.com/hazyhaar/domsnap/internal/journal"
)

// doCapturePDF runs the shared preparation pipeline and asks Chrome's
// print engine for the pixels. Format and quality in the request are
// ignored; paper geometry is Chrome's default with backgrounds on.
func (s *Service) doCapturePDF(ctx context.Context, req *CaptureRequest) ([]byte, error) {
	start := time.Now()
	w, h := req.viewport()
	entry := &journal.Entry{
		ID:       s.newID(),
		URL:      req.URL,
		Format:   "pdf",
		Width:    w,
		Height:   h,
		FullPage: req.IsFullPage(),
	}

	data, overlays, err := s.runPipeline(ctx, req, func(pg *browser.Page) ([]byte, error) {
		return pg.PDF()
	})
	var pages int
	if err == nil {
		pages, err = validatePDF(data)
		if err != nil {
			data = nil
		}
	}
	entry.Overlays = overlays
	entry.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		entry.Status = journal.StatusFailed
		entry.Error = err.Error()
		s.record(ctx, entry, nil, "")
		return nil, err
	}

	entry.Status = journal.StatusOK
	entry.ByteSize = len(data)
	s.record(ctx, entry, data, req.OutputPath)
	s.logger.Info("domsnap: rendered pdf",
		"capture_id", entry.ID,
		"url", req.URL,
		"pages", pages,
		"bytes", entry.ByteSize,
		"duration_ms", entry.DurationMs)

	return data, nil
}

// validatePDF parses the rendered bytes and rejects documents Chrome
// emitted but a conforming reader cannot open. Returns the page count.
func validatePDF(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("domsnap: pdf validate: %w", err)
	}
	return pdfCtx.PageCount, nil
}
