package controller

import (
	"bytes"
	"net/http"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/service"
	"cfaquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CatalogController struct {
	CatalogService *service.CatalogService
}

func NewCatalogController(catalogService *service.CatalogService) *CatalogController {
	return &CatalogController{CatalogService: catalogService}
}

// parseLevelQuery 空值表示全部级别
func parseLevelQuery(ctx *gin.Context) (model.Level, bool) {
	raw := ctx.Query("level")
	if raw == "" {
		return 0, true
	}
	return model.ParseLevel(raw)
}

func (c *CatalogController) filter(ctx *gin.Context) (service.QuestionFilter, bool) {
	level, ok := parseLevelQuery(ctx)
	if !ok {
		util.BadRequest(ctx, "level must be 1, 2 or 3")
		return service.QuestionFilter{}, false
	}
	return service.QuestionFilter{
		Level:       level,
		Category:    ctx.Query("category"),
		Subcategory: ctx.Query("subcategory"),
	}, true
}

// ListQuestions godoc
// @Summary 题目列表
// @Tags catalog
// @Produce json
// @Param level query int false "1, 2 or 3"
// @Param category query string false "category or alias"
// @Param subcategory query string false "subcategory"
// @Success 200 {object} util.Response
// @Router /api/catalog/questions [get]
func (c *CatalogController) ListQuestions(ctx *gin.Context) {
	filter, ok := c.filter(ctx)
	if !ok {
		return
	}
	questions, err := c.CatalogService.Questions(ctx.Request.Context(), filter)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: questions, Total: int64(len(questions)), Page: 1, Limit: len(questions)})
}

func (c *CatalogController) GetQuestion(ctx *gin.Context) {
	q, ok := c.CatalogService.Question(ctx.Request.Context(), ctx.Param("id"))
	if !ok {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, q)
}

func (c *CatalogController) ListFormulas(ctx *gin.Context) {
	formulas, err := c.CatalogService.Formulas(ctx.Request.Context(), ctx.Query("category"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: formulas, Total: int64(len(formulas)), Page: 1, Limit: len(formulas)})
}

func (c *CatalogController) Categories(ctx *gin.Context) {
	level, ok := parseLevelQuery(ctx)
	if !ok {
		util.BadRequest(ctx, "level must be 1, 2 or 3")
		return
	}
	categories, err := c.CatalogService.Categories(ctx.Request.Context(), level)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, categories)
}

// ExportQuestions 以 CSV 附件下载，格式可直接再导入
func (c *CatalogController) ExportQuestions(ctx *gin.Context) {
	filter, ok := c.filter(ctx)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := c.CatalogService.ExportQuestions(ctx.Request.Context(), &buf, filter); err != nil {
		util.HandleError(ctx, err)
		return
	}
	sendCSV(ctx, "questions.csv", buf.Bytes())
}

func (c *CatalogController) ExportFormulas(ctx *gin.Context) {
	var buf bytes.Buffer
	if err := c.CatalogService.ExportFormulas(ctx.Request.Context(), &buf); err != nil {
		util.HandleError(ctx, err)
		return
	}
	sendCSV(ctx, "formulas.csv", buf.Bytes())
}

func sendCSV(ctx *gin.Context, filename string, data []byte) {
	ctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	ctx.Data(http.StatusOK, util.MimeCSV+"; charset=utf-8", data)
}
