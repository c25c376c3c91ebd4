// Package httpapi exposes the call orchestrator to a local UI process
// over a small REST surface.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nortonjulian/chatforia-calls/internal/app/call"
	"github.com/nortonjulian/chatforia-calls/internal/config"
	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

// CallService is the orchestrator surface the handlers need; tests
// substitute a fake.
type CallService interface {
	StartCall(ctx context.Context, in call.StartInput) (*domain.CallSession, error)
	AcceptCall(ctx context.Context) (*domain.CallSession, error)
	RejectCall(ctx context.Context) error
	EndCall(ctx context.Context, reason string) error
	Snapshot() call.Snapshot
}

func SetupRouter(cfg *config.Config, svc CallService) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.POST("/call/start", startHandler(svc))
	api.POST("/call/accept", acceptHandler(svc))
	api.POST("/call/reject", rejectHandler(svc))
	api.POST("/call/end", endHandler(svc))
	api.GET("/call/status", statusHandler(svc))

	log.Info().Str("module", "httpapi").Msg("router setup")
	return r
}

type startRequest struct {
	PeerID      string `json:"peer_id"`
	PhoneNumber string `json:"phone_number"`
	Mode        string `json:"mode"`
}

func startHandler(svc CallService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		mode := domain.CallMode(req.Mode)
		if mode == "" {
			mode = domain.ModeAudio
		}

		sess, err := svc.StartCall(c.Request.Context(), call.StartInput{
			PeerID:      domain.UserID(req.PeerID),
			PhoneNumber: req.PhoneNumber,
			Mode:        mode,
		})
		if errors.Is(err, domain.ErrNoCallee) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

func acceptHandler(svc CallService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.AcceptCall(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if sess == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "no incoming call"})
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

func rejectHandler(svc CallService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RejectCall(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "rejected"})
	}
}

type endRequest struct {
	Reason string `json:"reason"`
}

func endHandler(svc CallService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req endRequest
		_ = c.ShouldBindJSON(&req)
		if err := svc.EndCall(c.Request.Context(), req.Reason); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ended"})
	}
}

func statusHandler(svc CallService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Snapshot())
	}
}
