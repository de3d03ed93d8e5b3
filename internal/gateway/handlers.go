package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/provisia/warden/internal/domain"
	"github.com/provisia/warden/internal/identity"
	"github.com/provisia/warden/internal/limiter"
	"github.com/provisia/warden/internal/metrics"
	"github.com/provisia/warden/internal/observability"
)

type admissionCheckRequest struct {
	Identifier string `json:"identifier" binding:"required"`

	// Preset selects a named config. When empty the inline fields below
	// describe the check.
	Preset        string `json:"preset,omitempty"`
	Requests      int64  `json:"requests,omitempty"`
	WindowSeconds int64  `json:"window_seconds,omitempty"`
	Strategy      string `json:"strategy,omitempty"`
}

func (s *Server) handleAdmissionCheck(c *gin.Context) {
	var req admissionCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cfg limiter.Config
	if req.Preset != "" {
		var ok bool
		cfg, ok = s.registry.Get(req.Preset)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown preset"})
			return
		}
	} else {
		strategy, err := limiter.ParseStrategy(req.Strategy)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg = limiter.Config{
			Requests: req.Requests,
			Window:   time.Duration(req.WindowSeconds) * time.Second,
			Strategy: strategy,
		}
	}

	ctx, span := observability.Tracer().Start(c.Request.Context(), "admission.check")
	span.SetAttributes(attribute.String("strategy", cfg.Strategy.String()))
	start := time.Now()
	res := s.limiter.Check(ctx, req.Identifier, cfg)
	metrics.CheckDuration.WithLabelValues("admission").Observe(time.Since(start).Seconds())
	span.End()

	recordAdmission(res)
	writeRateLimitHeaders(c, res)

	code := http.StatusOK
	if !res.Allowed {
		code = http.StatusTooManyRequests
	}
	c.JSON(code, res)
}

func (s *Server) handleListPresets(c *gin.Context) {
	names := s.registry.Names()
	presets := make(map[string]gin.H, len(names))
	for _, name := range names {
		cfg, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		presets[name] = gin.H{
			"requests": cfg.Requests,
			"window":   cfg.Window.String(),
			"strategy": cfg.Strategy.String(),
		}
	}
	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

func (s *Server) handlePrecheck(c *gin.Context) {
	var req identity.CreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PhoneNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number is required"})
		return
	}

	ctx, span := observability.Tracer().Start(c.Request.Context(), "accounts.precheck")
	defer span.End()

	// Creation attempts are gated per phone number, not per client.
	if cfg, ok := s.registry.Get(limiter.PresetAccountCreation); ok {
		res := s.limiter.Check(ctx, req.PhoneNumber, cfg)
		recordAdmission(res)
		writeRateLimitHeaders(c, res)
		if !res.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               cfg.ErrorMessage,
				"retry_after_seconds": res.RetryAfter,
			})
			return
		}
	}

	start := time.Now()
	decision := s.matcher.PreventDuplicateCreation(ctx, req)
	metrics.CheckDuration.WithLabelValues("duplicate_check").Observe(time.Since(start).Seconds())

	if decision.CanCreate {
		metrics.DuplicateChecks.WithLabelValues("can_create").Inc()
	} else {
		metrics.DuplicateChecks.WithLabelValues("duplicate").Inc()
		if decision.Match != nil {
			metrics.DuplicateMatches.WithLabelValues(string(decision.Match.Method)).Inc()
		}
	}

	c.JSON(http.StatusOK, decision)
}

type linkPlatformRequest struct {
	Platform       string `json:"platform" binding:"required"`
	PlatformUserID string `json:"platform_user_id" binding:"required"`
}

func (s *Server) handleLinkPlatform(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	var req linkPlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platform := domain.Platform(req.Platform)
	if !platform.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		return
	}

	ctx, span := observability.Tracer().Start(c.Request.Context(), "accounts.link_platform")
	defer span.End()

	res := s.matcher.LinkPlatformToExistingAccount(ctx, platform, req.PlatformUserID, accountID)
	if !res.Success {
		if errors.Is(res.Err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		s.logger.Error("Platform link failed", "account_id", accountID, "platform", platform, "error", res.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link platform"})
		return
	}

	c.JSON(http.StatusOK, res)
}

type mergeRequest struct {
	PrimaryAccountID    uuid.UUID   `json:"primary_account_id" binding:"required"`
	DuplicateAccountIDs []uuid.UUID `json:"duplicate_account_ids" binding:"required"`
}

func (s *Server) handleMerge(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := observability.Tracer().Start(c.Request.Context(), "accounts.merge")
	span.SetAttributes(attribute.Int("duplicates", len(req.DuplicateAccountIDs)))
	defer span.End()

	start := time.Now()
	res := s.merger.MergeDuplicateAccounts(ctx, req.PrimaryAccountID, req.DuplicateAccountIDs)
	metrics.CheckDuration.WithLabelValues("merge").Observe(time.Since(start).Seconds())

	if res.Success {
		metrics.Merges.WithLabelValues("success").Inc()
		c.JSON(http.StatusOK, res)
		return
	}

	metrics.Merges.WithLabelValues("partial").Inc()
	s.logger.Error("Merge completed with errors",
		"primary_account_id", req.PrimaryAccountID,
		"merged", len(res.MergedAccountIDs),
		"error", res.Err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":              "merge did not complete",
		"merged_account_ids": res.MergedAccountIDs,
	})
}

type cleanupRequest struct {
	DaysThreshold int `json:"days_threshold,omitempty"`
}

func (s *Server) handleCleanupRun(c *gin.Context) {
	// Body is optional; a missing or malformed one means defaults.
	var req cleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = cleanupRequest{}
	}

	ctx, span := observability.Tracer().Start(c.Request.Context(), "cleanup.run")
	defer span.End()

	summary, err := s.cleanup.CleanupPotentialDuplicates(ctx, req.DaysThreshold)
	if err != nil {
		s.logger.Error("Cleanup run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed", "summary": summary})
		return
	}

	metrics.CleanupPairs.WithLabelValues("found").Add(float64(summary.Found))
	metrics.CleanupPairs.WithLabelValues("merged").Add(float64(summary.Merged))
	c.JSON(http.StatusOK, summary)
}
