package controller

import (
	"cfaquiz_backend/internal/service"
	"cfaquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ReportController struct {
	ReportService *service.QuestionReportService
}

func NewReportController(reportService *service.QuestionReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

type SubmitReportRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
	IssueType  string `json:"issueType" binding:"required"`
	Note       string `json:"note" binding:"max=2000"`
}

// Submit godoc
// @Summary 反馈题目问题
// @Tags reports
// @Accept json
// @Produce json
// @Param body body SubmitReportRequest true "typo, ambiguity or other"
// @Success 201 {object} util.Response
// @Router /api/reports [post]
func (c *ReportController) Submit(ctx *gin.Context) {
	var req SubmitReportRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	report, err := c.ReportService.Submit(ctx.Request.Context(), req.QuestionID, service.ParseIssueType(req.IssueType), req.Note)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, report)
}

func (c *ReportController) List(ctx *gin.Context) {
	reports := c.ReportService.List(ctx.Request.Context())
	util.Success(ctx, util.PageResponse{List: reports, Total: int64(len(reports)), Page: 1, Limit: len(reports)})
}
