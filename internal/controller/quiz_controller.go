package controller

import (
	"context"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/service"
	"cfaquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	SessionService *service.QuizSessionService
	DefaultCount   int
}

func NewQuizController(sessionService *service.QuizSessionService, defaultCount int) *QuizController {
	return &QuizController{SessionService: sessionService, DefaultCount: defaultCount}
}

// StartQuizRequest 省略的字段取默认配置
type StartQuizRequest struct {
	Level             int      `json:"level" binding:"required,min=1,max=3"`
	Mode              string   `json:"mode"`
	Categories        []string `json:"categories"`
	Subcategories     []string `json:"subcategories"`
	NumberOfQuestions int      `json:"numberOfQuestions" binding:"omitempty,min=1"`
	ShuffleAnswers    bool     `json:"shuffleAnswers"`
	TimeLimitSeconds  *int     `json:"timeLimitSeconds" binding:"omitempty,min=1"`
}

type ToggleRequest struct {
	Index *int `json:"index" binding:"required"`
}

// Start godoc
// @Summary 开始新测验
// @Tags quiz
// @Accept json
// @Produce json
// @Param body body StartQuizRequest true "quiz configuration"
// @Success 201 {object} util.Response
// @Router /api/quiz/sessions [post]
func (c *QuizController) Start(ctx *gin.Context) {
	var req StartQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	cfg := model.DefaultQuizConfig()
	cfg.Level = model.Level(req.Level)
	if req.Mode != "" {
		mode, ok := model.ParseQuizMode(req.Mode)
		if !ok {
			util.BadRequest(ctx, "mode must be one of revision, test, random, spaced")
			return
		}
		cfg.Mode = mode
	}
	if req.Categories != nil {
		cfg.Categories = req.Categories
	}
	if req.Subcategories != nil {
		cfg.Subcategories = req.Subcategories
	}
	if c.DefaultCount > 0 {
		cfg.NumberOfQuestions = c.DefaultCount
	}
	if req.NumberOfQuestions > 0 {
		cfg.NumberOfQuestions = req.NumberOfQuestions
	}
	cfg.ShuffleAnswers = req.ShuffleAnswers
	cfg.TimeLimitSeconds = req.TimeLimitSeconds

	view, err := c.SessionService.Start(ctx.Request.Context(), cfg)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, view)
}

func (c *QuizController) Current(ctx *gin.Context) {
	c.respond(ctx, c.SessionService.Current)
}

// Summary 有可恢复的测验时返回进度，否则 data 为空
func (c *QuizController) Summary(ctx *gin.Context) {
	util.Success(ctx, c.SessionService.Summary(ctx.Request.Context()))
}

func (c *QuizController) Toggle(ctx *gin.Context) {
	var req ToggleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	view, err := c.SessionService.Toggle(ctx.Request.Context(), *req.Index)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

func (c *QuizController) Validate(ctx *gin.Context) {
	c.respond(ctx, c.SessionService.Validate)
}

func (c *QuizController) Skip(ctx *gin.Context) {
	c.respond(ctx, c.SessionService.Skip)
}

func (c *QuizController) Next(ctx *gin.Context) {
	c.respond(ctx, c.SessionService.Next)
}

func (c *QuizController) Finish(ctx *gin.Context) {
	c.respond(ctx, c.SessionService.Finish)
}

func (c *QuizController) Abandon(ctx *gin.Context) {
	c.SessionService.Abandon(ctx.Request.Context())
	util.Success(ctx, gin.H{"abandoned": true})
}

func (c *QuizController) respond(ctx *gin.Context, action func(context.Context) (*service.SessionView, error)) {
	view, err := action(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
