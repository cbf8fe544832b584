// Package api exposes caption decoding over HTTP: POST /v1/captions
// turns precomputed clip features into sentences, GET /healthz reports
// readiness.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/23skdu/dashcam-scribe/internal/config"
	"github.com/23skdu/dashcam-scribe/internal/logger"
	"github.com/23skdu/dashcam-scribe/internal/model"
	"github.com/23skdu/dashcam-scribe/internal/translator"
	"github.com/23skdu/dashcam-scribe/internal/vocab"
)

type Server struct {
	cfg   *config.Config
	voc   *vocab.Vocab
	trans *translator.Translator
	clock func() time.Time
	log   *logger.Logger
}

// NewServer wraps a loaded model and vocabulary. The server decodes
// without a datastore; retrieval capture stays a batch concern.
func NewServer(m *model.Model, voc *vocab.Vocab) *Server {
	return &Server{
		cfg:   m.Config,
		voc:   voc,
		trans: translator.New(m, nil),
		clock: time.Now,
		log:   logger.Log.With("api"),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/captions", s.handleCaptions)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":     "ok",
		"vocab_size": s.voc.Size(),
		"seq_len":    s.cfg.SeqLen(),
	})
}
