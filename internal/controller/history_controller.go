package controller

import (
	"bytes"

	"cfaquiz_backend/internal/service"
	"cfaquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type HistoryController struct {
	HistoryService *service.HistoryService
}

func NewHistoryController(historyService *service.HistoryService) *HistoryController {
	return &HistoryController{HistoryService: historyService}
}

// History 每题作答历史；带 id 参数时只返回该题
func (c *HistoryController) History(ctx *gin.Context) {
	if id := ctx.Query("id"); id != "" {
		h, ok := c.HistoryService.Get(ctx.Request.Context(), id)
		if !ok {
			util.NotFound(ctx)
			return
		}
		util.Success(ctx, h)
		return
	}
	util.Success(ctx, c.HistoryService.All(ctx.Request.Context()))
}

func (c *HistoryController) Attempts(ctx *gin.Context) {
	attempts := c.HistoryService.ListAttempts(ctx.Request.Context())
	util.Success(ctx, util.PageResponse{List: attempts, Total: int64(len(attempts)), Page: 1, Limit: len(attempts)})
}

func (c *HistoryController) Stats(ctx *gin.Context) {
	util.Success(ctx, c.HistoryService.Stats(ctx.Request.Context()))
}

func (c *HistoryController) ExportAttempts(ctx *gin.Context) {
	var buf bytes.Buffer
	if err := service.ExportAttemptsCSV(&buf, c.HistoryService.ListAttempts(ctx.Request.Context())); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	sendCSV(ctx, "attempts.csv", buf.Bytes())
}

func (c *HistoryController) Clear(ctx *gin.Context) {
	if err := c.HistoryService.Clear(ctx.Request.Context()); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"cleared": true})
}
