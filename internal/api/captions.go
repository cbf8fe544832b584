package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/23skdu/dashcam-scribe/internal/dataset"
	"github.com/23skdu/dashcam-scribe/internal/metrics"
	"github.com/23skdu/dashcam-scribe/internal/translator"
)

// CaptionClip is one segment's precomputed features. Clips sharing a
// video_id form one paragraph, in request order.
type CaptionClip struct {
	ClipID  string      `json:"clip_id"`
	VideoID string      `json:"video_id,omitempty"`
	Frames  [][]float32 `json:"frames"`
	Future  []float32   `json:"future,omitempty"`
}

type CaptionRequest struct {
	Clips []CaptionClip `json:"clips"`
}

type CaptionResponse struct {
	ID         string                 `json:"id"`
	Created    int64                  `json:"created"`
	Paragraphs []translator.Paragraph `json:"paragraphs"`
}

func (s *Server) handleCaptions(c *echo.Context) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordCaptionRequest(status, time.Since(start))
	}()

	req, err := decodeJSON[CaptionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Clips) == 0 {
		return writeBadRequest(c, "clips is required and must not be empty")
	}

	anns := make([]dataset.Annotation, 0, len(req.Clips))
	feats := make(map[string]*dataset.ClipFeatures, len(req.Clips))
	for _, clip := range req.Clips {
		if clip.ClipID == "" {
			return writeBadRequest(c, "every clip needs a clip_id")
		}
		if _, dup := feats[clip.ClipID]; dup {
			return writeBadRequest(c, fmt.Sprintf("duplicate clip_id %q", clip.ClipID))
		}
		anns = append(anns, dataset.Annotation{ClipID: clip.ClipID, VideoID: clip.VideoID})
		feats[clip.ClipID] = &dataset.ClipFeatures{
			ClipID: clip.ClipID,
			Frames: clip.Frames,
			Future: clip.Future,
		}
	}

	videos, err := dataset.BuildVideos(s.cfg, s.voc, anns, feats)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	batch, err := dataset.Collate(videos)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	decoded, err := s.trans.TranslateBatch(c.Request().Context(), batch)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	paragraphs, err := translator.Paragraphs(s.voc, videos, batch, decoded)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}

	status = "ok"
	return c.JSON(http.StatusOK, CaptionResponse{
		ID:         "cap-" + uuid.NewString(),
		Created:    s.clock().Unix(),
		Paragraphs: paragraphs,
	})
}
