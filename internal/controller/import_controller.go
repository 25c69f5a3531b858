package controller

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cfaquiz_backend/internal/service"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ImportController struct {
	ImportService *service.ImportService
}

func NewImportController(importService *service.ImportService) *ImportController {
	return &ImportController{ImportService: importService}
}

// Upload godoc
// @Summary 导入 CSV 或 ZIP（管理员）
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "questions/formulas .csv or archive .zip"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response "another import is running"
// @Router /api/import [post]
func (c *ImportController) Upload(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "File is required")
		return
	}
	if !util.IsImportFile(file.Filename) {
		util.BadRequest(ctx, "Only .csv and .zip files are accepted")
		return
	}

	// 保留原文件名作为报告来源，前缀避免并发上传同名冲突
	dir, err := os.MkdirTemp("", "cfaquiz_upload_")
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer os.RemoveAll(dir)

	name := filepath.Base(file.Filename)
	if strings.TrimSuffix(name, filepath.Ext(name)) == "" {
		name = uuid.NewString() + name
	}
	dst := filepath.Join(dir, name)
	if err := ctx.SaveUploadedFile(file, dst); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	report, err := c.ImportService.ImportFile(ctx.Request.Context(), dst)
	if err != nil {
		logger.Log.Warn("Upload import failed", zap.String("file", name), zap.Error(err))
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// Clear 删除全部导入内容及其图片
func (c *ImportController) Clear(ctx *gin.Context) {
	if err := c.ImportService.ClearImported(ctx.Request.Context()); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"cleared": true})
}

// Report 纯文本导入报告；format=json 返回结构化数据
func (c *ImportController) Report(ctx *gin.Context) {
	report := c.ImportService.LastReport(ctx.Request.Context())
	if ctx.Query("format") == "json" {
		util.Success(ctx, report)
		return
	}
	ctx.Header("Content-Disposition", `inline; filename="import_report.txt"`)
	util.Text(ctx, http.StatusOK, service.BuildReportText(report))
}
