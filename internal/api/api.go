// Package api exposes the draw engine over HTTP.
//
// The handlers own no draw logic: they parse the request, call the engine,
// and render the response envelope. Validation failures come back as 422
// with one entry per violated rule; unexpected failures are 500.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raffleworks/topicdraw/internal/draw"
	"github.com/raffleworks/topicdraw/internal/engine"
)

// Server holds the HTTP dependencies.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewServer builds the HTTP adapter over eng.
func NewServer(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, logger: logger}
}

// Router builds the gin engine with the draw routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/lottery/create", s.create)
	r.GET("/lottery/:topic_id", s.show)
	return r
}

// createRequest mirrors the parameter names of the hosting platform's
// draw form.
type createRequest struct {
	TopicID            int64  `json:"topic_id" binding:"required"`
	CallerID           int64  `json:"caller_id" binding:"required"`
	Title              string `json:"title"`
	PrizeDescription   string `json:"prize_description"`
	ImageRef           string `json:"image_ref"`
	DrawTime           string `json:"draw_time"` // RFC 3339
	WinnerCount        int    `json:"winner_count"`
	SpecifiedPositions string `json:"specified_positions"` // comma-separated
	MinParticipants    int    `json:"min_participants"`
	BackupStrategy     string `json:"backup_strategy"`
	AdditionalNotes    string `json:"additional_notes"`
}

func (s *Server) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	cfg, errs := req.toConfig()
	if len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": errs})
		return
	}

	d, err := s.engine.CreateOrReplace(c.Request.Context(), req.TopicID, req.CallerID, cfg)
	if err != nil {
		if fieldErrs, ok := draw.AsFieldErrors(err); ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": fieldErrs})
			return
		}
		s.logger.Error("create draw failed", "topic_id", req.TopicID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "lottery": snapshotJSON(d)})
}

func (s *Server) show(c *gin.Context) {
	topicID, err := strconv.ParseInt(c.Param("topic_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid topic id"})
		return
	}

	d, err := s.engine.Snapshot(c.Request.Context(), topicID)
	if errors.Is(err, draw.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "draw not found"})
		return
	}
	if err != nil {
		s.logger.Error("load draw failed", "topic_id", topicID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "lottery": snapshotJSON(d)})
}

// toConfig converts the wire request into a domain config, reporting
// boundary parse failures in the same shape as validation errors. Rule
// checks (bounds, uniqueness, future instant) stay with the validator.
func (r createRequest) toConfig() (draw.Config, draw.FieldErrors) {
	var errs draw.FieldErrors

	var drawAt time.Time
	if r.DrawTime != "" {
		var err error
		drawAt, err = time.Parse(time.RFC3339, r.DrawTime)
		if err != nil {
			errs.Add("draw_time", "draw time must be a valid RFC 3339 timestamp")
		}
	}

	positions, err := draw.ParsePositions(r.SpecifiedPositions)
	if err != nil {
		if fieldErrs, ok := draw.AsFieldErrors(err); ok {
			errs = append(errs, fieldErrs...)
		} else {
			errs.Add("specified_positions", err.Error())
		}
	}

	// A non-empty position list wins over the winner count, matching the
	// platform form's behavior where both fields may be submitted.
	policy := draw.RandomPolicy(r.WinnerCount)
	if len(positions) > 0 {
		policy = draw.FixedPositionsPolicy(positions)
	}

	return draw.Config{
		Title:            r.Title,
		PrizeDescription: r.PrizeDescription,
		ImageRef:         r.ImageRef,
		DrawAt:           drawAt,
		Policy:           policy,
		MinParticipants:  r.MinParticipants,
		Backup:           draw.BackupStrategy(r.BackupStrategy),
		Notes:            r.AdditionalNotes,
	}, errs
}

// snapshotJSON is the read-model shape served to presentation layers.
func snapshotJSON(d *draw.Draw) gin.H {
	winners := d.Winners
	if winners == nil {
		winners = []draw.Winner{}
	}
	h := gin.H{
		"topic_id":          d.TopicID,
		"initiator_id":      d.InitiatorID,
		"title":             d.Config.Title,
		"prize_description": d.Config.PrizeDescription,
		"image_ref":         d.Config.ImageRef,
		"draw_time":         d.Config.DrawAt.Format(time.RFC3339),
		"policy":            string(d.Config.Policy.Kind),
		"winner_count":      d.Config.Policy.Count,
		"positions":         d.Config.Policy.Positions,
		"min_participants":  d.Config.MinParticipants,
		"backup_strategy":   string(d.Config.Backup),
		"additional_notes":  d.Config.Notes,
		"status":            string(d.Status),
		"winners":           winners,
		"cancel_reason":     d.CancelReason,
		"created_at":        d.CreatedAt.Format(time.RFC3339),
		"updated_at":        d.UpdatedAt.Format(time.RFC3339),
	}
	if d.LockedAt != nil {
		h["locked_at"] = d.LockedAt.Format(time.RFC3339)
	}
	return h
}
