package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvforge/internal/database"
	"cvforge/internal/errcode"
	"cvforge/internal/resume"
	"cvforge/internal/template"
)

type PrintWarning struct {
	Code        int      `json:"code"`
	Message     string   `json:"message"`
	MissingKeys []string `json:"missing_keys,omitempty"`
}

// printResumeView 是 worker 渲染 PDF 所需的简历视图。
// 空白经历条目在这里就被过滤掉，渲染端不再做判断。
type printResumeView struct {
	ID              uint                    `json:"id"`
	Title           string                  `json:"title"`
	PhotoURL        string                  `json:"photoUrl,omitempty"`
	AccentColor     string                  `json:"accentColor,omitempty"`
	BorderStyle     string                  `json:"borderStyle,omitempty"`
	Summary         string                  `json:"summary,omitempty"`
	FirstName       string                  `json:"firstName,omitempty"`
	LastName        string                  `json:"lastName,omitempty"`
	JobTitle        string                  `json:"jobTitle,omitempty"`
	City            string                  `json:"city,omitempty"`
	Country         string                  `json:"country,omitempty"`
	Phone           string                  `json:"phone,omitempty"`
	Email           string                  `json:"email,omitempty"`
	Skills          []string                `json:"skills"`
	WorkExperiences []resume.WorkExperience `json:"workExperiences"`
	Educations      []resume.Education      `json:"educations"`
}

// PrintData 是内部打印接口返回给 worker 的完整载荷。
type PrintData struct {
	Resume   printResumeView   `json:"resume"`
	Template template.Template `json:"template"`
	Warnings []PrintWarning    `json:"warnings,omitempty"`
}

// PrintHandler 服务于 worker 的内部打印数据接口。
// 路由挂在 InternalSecretMiddleware 之后，不做用户鉴权。
type PrintHandler struct {
	db      *gorm.DB
	storage BlobStorage
	logger  *slog.Logger
}

func NewPrintHandler(db *gorm.DB, blob BlobStorage, logger *slog.Logger) *PrintHandler {
	return &PrintHandler{db: db, storage: blob, logger: logger}
}

// GET /v1/internal/print/resume/:id
// 照片对象缺失不阻断导出：跳过照片并附加 4004 警告；
// 存储系统性错误（非 NoSuchKey）按 500 处理。
func (h *PrintHandler) GetPrintResumeData(c *gin.Context) {
	resumeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	ctx := c.Request.Context()
	var model database.Resume
	if err := h.db.WithContext(ctx).First(&model, uint(resumeID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "resume not found")
			return
		}
		Internal(c, "failed to load resume")
		return
	}

	skills, err := resume.DecodeSkills(model.Skills)
	if err != nil {
		Internal(c, "failed to decode skills")
		return
	}
	experiences, err := resume.DecodeWorkExperiences(model.WorkExperiences)
	if err != nil {
		Internal(c, "failed to decode work experiences")
		return
	}
	educations, err := resume.DecodeEducations(model.Educations)
	if err != nil {
		Internal(c, "failed to decode educations")
		return
	}

	view := printResumeView{
		ID:              model.ID,
		Title:           model.Title,
		AccentColor:     model.AccentColor,
		BorderStyle:     model.BorderStyle,
		Summary:         model.Summary,
		FirstName:       model.FirstName,
		LastName:        model.LastName,
		JobTitle:        model.JobTitle,
		City:            model.City,
		Country:         model.Country,
		Phone:           model.Phone,
		Email:           model.Email,
		Skills:          skills,
		WorkExperiences: resume.VisibleWorkExperiences(experiences),
		Educations:      resume.VisibleEducations(educations),
	}

	var warnings []PrintWarning
	if model.PhotoKey != "" {
		exists, err := h.storage.ObjectExists(ctx, model.PhotoKey)
		if err != nil {
			h.logger.Error("stat photo", slog.String("objectKey", model.PhotoKey), slog.String("error", err.Error()))
			Internal(c, "failed to check photo object")
			return
		}
		if !exists {
			h.logger.Warn("print photo missing",
				slog.Uint64("resumeID", uint64(model.ID)),
				slog.String("objectKey", model.PhotoKey))
			warnings = append(warnings, PrintWarning{
				Code:        errcode.ResourceMissing,
				Message:     "照片对象缺失，已跳过并继续生成",
				MissingKeys: []string{model.PhotoKey},
			})
		} else {
			url, err := h.storage.GeneratePresignedURL(ctx, model.PhotoKey, 10*time.Minute)
			if err != nil {
				Internal(c, "failed to sign photo url")
				return
			}
			view.PhotoURL = url
		}
	}

	tmpl, found := template.ByID(model.TemplateID)
	if !found {
		// 老记录可能引用已下线的模板 ID，回退默认模板。
		tmpl, _ = template.ByID(template.DefaultTemplateID)
	}

	c.JSON(http.StatusOK, PrintData{
		Resume:   view,
		Template: tmpl,
		Warnings: warnings,
	})
}
