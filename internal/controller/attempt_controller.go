package controller

import (
	"strconv"

	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService      *service.AttemptService
	PresentationService *service.PresentationService
	ScoringService      *service.ScoringService
	OutcomeService      *service.OutcomeService
}

func NewAttemptController(
	attemptService *service.AttemptService,
	presentationService *service.PresentationService,
	scoringService *service.ScoringService,
	outcomeService *service.OutcomeService,
) *AttemptController {
	return &AttemptController{
		AttemptService:      attemptService,
		PresentationService: presentationService,
		ScoringService:      scoringService,
		OutcomeService:      outcomeService,
	}
}

// @Summary Start an exam attempt
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param examId path int true "Exam ID"
// @Success 201 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /exams/{examId}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	examID, err := pathID(ctx, "examId")
	if err != nil {
		util.BadRequest(ctx, "invalid exam id")
		return
	}

	meta := service.RequestMeta{
		IPAddress: ctx.ClientIP(),
		UserAgent: ctx.Request.UserAgent(),
	}

	attempt, err := c.AttemptService.StartAttempt(examID, user.UserID, meta)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Created(ctx, attempt)
}

// @Summary Get the question view for an attempt
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Attempt ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/questions [get]
func (c *AttemptController) GetPresentation(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attemptID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	view, err := c.PresentationService.GetPresentation(attemptID, user.UserID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, view)
}

type submitRequest struct {
	Answers []service.SubmittedAnswer `json:"answers"`
}

// @Summary Submit answers and finalize the attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Attempt ID"
// @Param body body submitRequest true "Submitted answers"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/submit [post]
func (c *AttemptController) SubmitAnswers(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attemptID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ScoringService.SubmitAnswers(attemptID, user.UserID, req.Answers)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary Abandon an in-progress attempt
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Attempt ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/abandon [post]
func (c *AttemptController) AbandonAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attemptID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	attempt, err := c.AttemptService.AbandonAttempt(attemptID, user.UserID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, attempt)
}

// @Summary Get the pass/fail outcome for a finalized attempt
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Attempt ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /attempts/{id}/outcome [get]
func (c *AttemptController) GetOutcome(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attemptID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	outcome, err := c.OutcomeService.GetOutcome(attemptID, user.UserID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, outcome)
}

func pathID(ctx *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
