package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/garyjia/claims-intake/internal/external"
	"github.com/garyjia/claims-intake/internal/intake"
	"github.com/garyjia/claims-intake/internal/mapper"
	"github.com/garyjia/claims-intake/internal/models"
	"github.com/garyjia/claims-intake/internal/queue"
	"github.com/garyjia/claims-intake/internal/report"
	"github.com/garyjia/claims-intake/internal/repository"
	"github.com/garyjia/claims-intake/pkg/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the intake HTTP API.
type Handler struct {
	manager  *intake.Manager
	queue    *queue.ReviewQueue
	intakes  *repository.IntakeRepository
	users    *repository.UserRepository
	issues   *mapper.IssueMapper
	exporter *report.Exporter
	clock    external.Clock
	logger   *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	manager *intake.Manager,
	reviewQueue *queue.ReviewQueue,
	intakes *repository.IntakeRepository,
	users *repository.UserRepository,
	issues *mapper.IssueMapper,
	exporter *report.Exporter,
	clock external.Clock,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		manager:  manager,
		queue:    reviewQueue,
		intakes:  intakes,
		users:    users,
		issues:   issues,
		exporter: exporter,
		clock:    clock,
		logger:   logger,
	}
}

// RegisterRoutes attaches the intake API under /api/v1.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/intakes", h.StartIntake)
		api.POST("/intakes/:id/complete", h.CompleteIntake)
		api.POST("/intakes/:id/abort", h.AbortIntake)
		api.POST("/intakes/:id/cancel", h.CancelIntake)
		api.POST("/intakes/:id/error", h.RecordIntakeError)
		api.GET("/intakes/:id", h.GetIntake)
		api.GET("/intakes/in_progress", h.InProgress)
		api.GET("/intakes/flagged", h.Flagged)
		api.POST("/intakes/flagged/export", h.ExportFlagged)
		api.POST("/issues/map", h.MapIssue)
	}
}

// StartIntake builds and validates a new intake for the requesting
// user. An optional detail payload is checked against the form type's
// schema. Domain validation failures come back as 422 with the error
// code and data recorded on the intake.
func (h *Handler) StartIntake(c *gin.Context) {
	var req struct {
		FormType   string          `json:"form_type" binding:"required"`
		FileNumber string          `json:"file_number"`
		Detail     json.RawMessage `json:"detail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, ok := h.requestUser(c)
	if !ok {
		return
	}

	in, err := h.manager.Start(c.Request.Context(), req.FormType, req.FileNumber, req.Detail, user)
	if err != nil {
		if errors.Is(err, intake.ErrFormTypeNotSupported) || errors.Is(err, intake.ErrDetailInvalid) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, err)
		return
	}

	if in.ErrorCode != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error_code": in.ErrorCode,
			"error_data": in.ErrorData,
		})
		return
	}

	c.JSON(http.StatusCreated, in)
}

// CompleteIntake runs the two-phase completion protocol for an intake.
func (h *Handler) CompleteIntake(c *gin.Context) {
	id, ok := h.intakeID(c)
	if !ok {
		return
	}

	in, err := h.manager.Complete(c.Request.Context(), id)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, in)
}

// AbortIntake returns a completing intake to started.
func (h *Handler) AbortIntake(c *gin.Context) {
	id, ok := h.intakeID(c)
	if !ok {
		return
	}

	in, err := h.manager.Abort(id)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, in)
}

// CancelIntake terminates an intake with a reason from the closed set.
func (h *Handler) CancelIntake(c *gin.Context) {
	id, ok := h.intakeID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
		Other  string `json:"other"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in, err := h.manager.Cancel(id, req.Reason, utils.SanitizeString(req.Other))
	if err != nil {
		if errors.Is(err, intake.ErrCancelReasonInvalid) || errors.Is(err, intake.ErrCancelOtherRequired) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.transitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, in)
}

// RecordIntakeError terminates an intake with an error code. Used by
// retry jobs and manual escalation.
func (h *Handler) RecordIntakeError(c *gin.Context) {
	id, ok := h.intakeID(c)
	if !ok {
		return
	}

	var req struct {
		ErrorCode string            `json:"error_code" binding:"required"`
		ErrorData map[string]string `json:"error_data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in, err := h.manager.RecordError(id, req.ErrorCode, req.ErrorData)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, in)
}

// GetIntake returns one intake with its derived pending flag.
func (h *Handler) GetIntake(c *gin.Context) {
	id, ok := h.intakeID(c)
	if !ok {
		return
	}

	in, err := h.intakes.GetByID(id)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if in == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "intake not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"intake":  in,
		"pending": h.manager.Pending(in),
	})
}

// InProgress lists all started, uncompleted intakes.
func (h *Handler) InProgress(c *gin.Context) {
	intakes, err := h.queue.InProgress()
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"intakes": intakes})
}

// Flagged lists the manager-review queue.
func (h *Handler) Flagged(c *gin.Context) {
	page := queue.Page{
		Limit:  intQuery(c, "limit", 0),
		Offset: intQuery(c, "offset", 0),
	}

	intakes, err := h.queue.FlaggedForManagerReview(page)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"intakes": intakes})
}

// ExportFlagged writes the manager-review queue to an Excel workbook.
func (h *Handler) ExportFlagged(c *gin.Context) {
	intakes, err := h.queue.FlaggedForManagerReview(queue.Page{})
	if err != nil {
		h.internalError(c, err)
		return
	}

	path, err := h.exporter.Export(intakes, h.clock.Now())
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path, "intakes": len(intakes)})
}

// issueAttributeRequest carries the optional issue attributes; a nil
// pointer means the field was not supplied and its column is left
// untouched.
type issueAttributeRequest struct {
	Program         *string `json:"program"`
	Issue           *string `json:"issue"`
	Level1          *string `json:"level_1"`
	Level2          *string `json:"level_2"`
	Level3          *string `json:"level_3"`
	Note            *string `json:"note"`
	Disposition     *string `json:"disposition"`
	DispositionDate *string `json:"disposition_date"`
	VacolsID        *string `json:"vacols_id"`
	RemandReasons   []struct {
		Code               string `json:"code"`
		AfterCertification bool   `json:"after_certification"`
	} `json:"remand_reasons"`
}

func (r *issueAttributeRequest) toAttributes() mapper.IssueAttributes {
	field := func(p *string) mapper.Field {
		if p == nil {
			return mapper.Field{}
		}
		return mapper.Set(*p)
	}

	attrs := mapper.IssueAttributes{
		Program:         field(r.Program),
		Issue:           field(r.Issue),
		Level1:          field(r.Level1),
		Level2:          field(r.Level2),
		Level3:          field(r.Level3),
		Note:            field(r.Note),
		Disposition:     field(r.Disposition),
		DispositionDate: field(r.DispositionDate),
		VacolsID:        field(r.VacolsID),
	}
	for _, reason := range r.RemandReasons {
		attrs.RemandReasons = append(attrs.RemandReasons, mapper.RemandReason{
			Code:               reason.Code,
			AfterCertification: reason.AfterCertification,
		})
	}
	return attrs
}

// MapIssue translates domain issue attributes into legacy case-database
// columns, stamped with the acting user. Attribute sets the legacy
// system would reject come back as 422 with the validation code.
func (h *Handler) MapIssue(c *gin.Context) {
	var req struct {
		Action     string                `json:"action" binding:"required,oneof=create update"`
		Attributes issueAttributeRequest `json:"attributes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, ok := h.requestUser(c)
	if !ok {
		return
	}

	columns, err := h.issues.Map(c.Request.Context(), mapper.Action(req.Action), user.CSSID, req.Attributes.toAttributes())
	if err != nil {
		if verr := mapper.AsValidationError(err); verr != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error_code": verr.Code,
				"error":      verr.Message,
			})
			return
		}
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"columns": columns})
}

// requestUser resolves the acting user from the X-CSS-ID header.
func (h *Handler) requestUser(c *gin.Context) (*models.User, bool) {
	cssID := c.GetHeader("X-CSS-ID")
	if cssID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-CSS-ID header is required"})
		return nil, false
	}

	user, err := h.users.GetByCSSID(cssID)
	if err != nil {
		h.internalError(c, err)
		return nil, false
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return nil, false
	}

	return user, true
}

func (h *Handler) intakeID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid intake id"})
		return 0, false
	}
	return id, true
}

// transitionError maps lifecycle failures: unknown intakes are 404,
// state precondition violations are caller bugs surfaced as a generic
// 500 with full detail logged, never exposed.
func (h *Handler) transitionError(c *gin.Context, err error) {
	if errors.Is(err, intake.ErrIntakeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "intake not found"})
		return
	}

	var stateErr *intake.StateError
	if errors.As(err, &stateErr) {
		h.logger.Error("Intake state precondition violated", zap.Error(stateErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}

	h.internalError(c, err)
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.Error("Intake API request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
