package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/resume"
	"cvforge/internal/subscription"
	"cvforge/internal/tasks"
	"cvforge/internal/template"
)

// ResumeHandler 负责处理与简历相关的 API 请求。
type ResumeHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	storage     BlobStorage
	resolver    *subscription.Resolver
	policy      template.Policy
}

// NewResumeHandler 构造 ResumeHandler。
func NewResumeHandler(db *gorm.DB, asynqClient *asynq.Client, blob BlobStorage, resolver *subscription.Resolver, policy template.Policy) *ResumeHandler {
	return &ResumeHandler{
		db:          db,
		asynqClient: asynqClient,
		storage:     blob,
		resolver:    resolver,
		policy:      policy,
	}
}

var errInvalidResumeID = errors.New("invalid resume id")

type createResumeRequest struct {
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	Photo           resume.OptionalString   `json:"photo"`
	AccentColor     string                  `json:"accentColor"`
	BorderStyle     string                  `json:"borderStyle"`
	TemplateID      string                  `json:"templateId"`
	Summary         string                  `json:"summary"`
	FirstName       string                  `json:"firstName"`
	LastName        string                  `json:"lastName"`
	JobTitle        string                  `json:"jobTitle"`
	City            string                  `json:"city"`
	Country         string                  `json:"country"`
	Phone           string                  `json:"phone"`
	Email           string                  `json:"email" binding:"omitempty,email"`
	Skills          []string                `json:"skills"`
	WorkExperiences []resume.WorkExperience `json:"workExperiences"`
	Educations      []resume.Education      `json:"educations"`
}

// updateResumeRequest 的标量字段全部用指针表示“是否出现在请求里”，
// 未出现的字段保持原值。Photo 的三态语义见 resume.OptionalString。
type updateResumeRequest struct {
	Title           *string                 `json:"title"`
	Description     *string                 `json:"description"`
	Photo           resume.OptionalString   `json:"photo"`
	AccentColor     *string                 `json:"accentColor"`
	BorderStyle     *string                 `json:"borderStyle"`
	TemplateID      *string                 `json:"templateId"`
	Summary         *string                 `json:"summary"`
	FirstName       *string                 `json:"firstName"`
	LastName        *string                 `json:"lastName"`
	JobTitle        *string                 `json:"jobTitle"`
	City            *string                 `json:"city"`
	Country         *string                 `json:"country"`
	Phone           *string                 `json:"phone"`
	Email           *string                 `json:"email" binding:"omitempty,email"`
	Skills          []string                `json:"skills"`
	WorkExperiences []resume.WorkExperience `json:"workExperiences"`
	Educations      []resume.Education      `json:"educations"`
}

type resumeListItem struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	TemplateID string    `json:"templateId"`
	PdfStatus  string    `json:"pdfStatus,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type resumeResponse struct {
	ID              uint                    `json:"id"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description,omitempty"`
	PhotoKey        string                  `json:"photoKey,omitempty"`
	AccentColor     string                  `json:"accentColor,omitempty"`
	BorderStyle     string                  `json:"borderStyle,omitempty"`
	TemplateID      string                  `json:"templateId"`
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
	PdfStatus       string                  `json:"pdfStatus,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// CreateResume 保存一份新的简历。免费档位超过限额或使用锁定模板时返回升级提示。
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	var req createResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	if req.BorderStyle != "" && !resume.KnownBorderStyle(req.BorderStyle) {
		BadRequest(c, "unknown border style")
		return
	}
	templateID := req.TemplateID
	if templateID == "" {
		templateID = template.DefaultTemplateID
	}
	if !template.Exists(templateID) {
		BadRequest(c, "unknown template id")
		return
	}
	if req.Photo.Present && req.Photo.Valid && !isValidUserPhotoKey(userID, req.Photo.Value) {
		BadRequest(c, "invalid photo key")
		return
	}

	level, err := resolveLevel(c, h.resolver, userID)
	if err != nil {
		Internal(c, "failed to resolve subscription")
		return
	}

	ctx := c.Request.Context()
	var count int64
	if err := h.db.WithContext(ctx).
		Model(&database.Resume{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		Internal(c, "failed to count resumes")
		return
	}
	if !h.policy.CanCreateResume(level, int(count)) {
		Upsell(c, "resume limit reached")
		return
	}
	if !h.policy.CanAccess(templateID, level) {
		Upsell(c, "template requires a higher plan")
		return
	}

	model := database.Resume{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		AccentColor: req.AccentColor,
		BorderStyle: req.BorderStyle,
		TemplateID:  templateID,
		Summary:     req.Summary,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		JobTitle:    req.JobTitle,
		City:        req.City,
		Country:     req.Country,
		Phone:       req.Phone,
		Email:       req.Email,
	}
	if req.Photo.Present && req.Photo.Valid {
		model.PhotoKey = req.Photo.Value
	}
	if model.Skills, err = resume.EncodeSkills(req.Skills); err != nil {
		Internal(c, "failed to encode skills")
		return
	}
	if model.WorkExperiences, err = resume.EncodeWorkExperiences(req.WorkExperiences); err != nil {
		Internal(c, "failed to encode work experiences")
		return
	}
	if model.Educations, err = resume.EncodeEducations(req.Educations); err != nil {
		Internal(c, "failed to encode educations")
		return
	}

	if err := h.db.WithContext(ctx).Create(&model).Error; err != nil {
		Internal(c, "failed to create resume")
		return
	}

	resp, err := newResumeResponse(model)
	if err != nil {
		Internal(c, "failed to decode resume")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListResumes 按最近编辑排序列出用户的简历，支持 limit/offset 分页。
func (h *ResumeHandler) ListResumes(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	limit, offset, err := paginationParams(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var total int64
	if err := h.db.WithContext(ctx).
		Model(&database.Resume{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		Internal(c, "failed to count resumes")
		return
	}

	query := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var resumes []database.Resume
	if err := query.Find(&resumes).Error; err != nil {
		Internal(c, "failed to list resumes")
		return
	}

	items := make([]resumeListItem, 0, len(resumes))
	for _, r := range resumes {
		items = append(items, resumeListItem{
			ID:         r.ID,
			Title:      r.Title,
			TemplateID: r.TemplateID,
			PdfStatus:  r.PdfStatus,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// GetResume 返回指定 ID 的简历。他人的简历一律按不存在处理。
func (h *ResumeHandler) GetResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	model, err := h.getResumeForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondResumeLookupError(c, err)
		return
	}

	resp, err := newResumeResponse(*model)
	if err != nil {
		Internal(c, "failed to decode resume")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateResume 部分更新指定简历。请求中未出现的字段保持不变。
func (h *ResumeHandler) UpdateResume(c *gin.Context) {
	var req updateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	model, err := h.getResumeForUser(ctx, c.Param("id"), userID)
	if err != nil {
		respondResumeLookupError(c, err)
		return
	}

	if req.BorderStyle != nil && *req.BorderStyle != "" && !resume.KnownBorderStyle(*req.BorderStyle) {
		BadRequest(c, "unknown border style")
		return
	}
	if req.TemplateID != nil && *req.TemplateID != model.TemplateID {
		if !template.Exists(*req.TemplateID) {
			BadRequest(c, "unknown template id")
			return
		}
		level, err := resolveLevel(c, h.resolver, userID)
		if err != nil {
			Internal(c, "failed to resolve subscription")
			return
		}
		if !h.policy.CanAccess(*req.TemplateID, level) {
			Upsell(c, "template requires a higher plan")
			return
		}
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.AccentColor != nil {
		updates["accent_color"] = *req.AccentColor
	}
	if req.BorderStyle != nil {
		updates["border_style"] = *req.BorderStyle
	}
	if req.TemplateID != nil {
		updates["template_id"] = *req.TemplateID
	}
	if req.Summary != nil {
		updates["summary"] = *req.Summary
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.JobTitle != nil {
		updates["job_title"] = *req.JobTitle
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.Country != nil {
		updates["country"] = *req.Country
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Skills != nil {
		encoded, err := resume.EncodeSkills(req.Skills)
		if err != nil {
			Internal(c, "failed to encode skills")
			return
		}
		updates["skills"] = encoded
	}
	if req.WorkExperiences != nil {
		encoded, err := resume.EncodeWorkExperiences(req.WorkExperiences)
		if err != nil {
			Internal(c, "failed to encode work experiences")
			return
		}
		updates["work_experiences"] = encoded
	}
	if req.Educations != nil {
		encoded, err := resume.EncodeEducations(req.Educations)
		if err != nil {
			Internal(c, "failed to encode educations")
			return
		}
		updates["educations"] = encoded
	}

	// 照片三态：缺席不动；null 释放旧对象并清空；新键先校验、
	// 旧对象释放失败则整次更新中止，避免产生无人引用的存储对象。
	if req.Photo.Present {
		if req.Photo.Valid {
			if !isValidUserPhotoKey(userID, req.Photo.Value) {
				BadRequest(c, "invalid photo key")
				return
			}
			if model.PhotoKey != "" && model.PhotoKey != req.Photo.Value {
				if err := h.storage.DeleteObject(ctx, model.PhotoKey); err != nil {
					Internal(c, "failed to release previous photo")
					return
				}
			}
			updates["photo_key"] = req.Photo.Value
		} else {
			if model.PhotoKey != "" {
				if err := h.storage.DeleteObject(ctx, model.PhotoKey); err != nil {
					Internal(c, "failed to release previous photo")
					return
				}
			}
			updates["photo_key"] = ""
		}
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(model).Updates(updates).Error; err != nil {
			Internal(c, "failed to update resume")
			return
		}
	}

	if err := h.db.WithContext(ctx).First(model, model.ID).Error; err != nil {
		Internal(c, "failed to reload resume")
		return
	}

	resp, err := newResumeResponse(*model)
	if err != nil {
		Internal(c, "failed to decode resume")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteResume 删除简历，先释放其关联的照片与 PDF 对象。
// 释放失败时简历保留，调用方可重试。
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	model, err := h.getResumeForUser(ctx, c.Param("id"), userID)
	if err != nil {
		respondResumeLookupError(c, err)
		return
	}

	if model.PhotoKey != "" {
		if err := h.storage.DeleteObject(ctx, model.PhotoKey); err != nil {
			Internal(c, "failed to release photo")
			return
		}
	}
	if model.PdfKey != "" {
		if err := h.storage.DeleteObject(ctx, model.PdfKey); err != nil {
			Internal(c, "failed to release pdf")
			return
		}
	}

	if err := h.db.WithContext(ctx).Delete(&database.Resume{}, model.ID).Error; err != nil {
		Internal(c, "failed to delete resume")
		return
	}

	c.Status(http.StatusNoContent)
}

// ExportResume 将 PDF 导出任务入队并立即返回 202。
func (h *ResumeHandler) ExportResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	model, err := h.getResumeForUser(ctx, c.Param("id"), userID)
	if err != nil {
		respondResumeLookupError(c, err)
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewPDFExportTask(model.ID, correlationID)
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	info, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(5))
	if err != nil {
		Internal(c, "failed to enqueue pdf export")
		return
	}

	if err := h.db.WithContext(ctx).Model(model).
		Update("pdf_status", database.PdfStatusPending).Error; err != nil {
		Internal(c, "failed to mark export pending")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "pdf export accepted",
		"task_id": info.ID,
	})
}

// GetDownloadLink 生成简历 PDF 的预签名下载链接；PDF 未就绪时返回 409。
func (h *ResumeHandler) GetDownloadLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	model, err := h.getResumeForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondResumeLookupError(c, err)
		return
	}

	if model.PdfKey == "" {
		Conflict(c, "pdf not ready")
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), model.PdfKey, 5*time.Minute)
	if err != nil {
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func (h *ResumeHandler) getResumeForUser(ctx context.Context, idParam string, userID uint) (*database.Resume, error) {
	resumeID, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		return nil, errInvalidResumeID
	}

	var model database.Resume
	if err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", uint(resumeID), userID).
		First(&model).Error; err != nil {
		return nil, err
	}

	return &model, nil
}

func respondResumeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidResumeID):
		BadRequest(c, "invalid resume id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "resume not found")
	default:
		Internal(c, "failed to query resume")
	}
}

func paginationParams(c *gin.Context) (limit, offset int, err error) {
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset")
		}
	}
	return limit, offset, nil
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}

func newResumeResponse(model database.Resume) (resumeResponse, error) {
	skills, err := resume.DecodeSkills(model.Skills)
	if err != nil {
		return resumeResponse{}, err
	}
	experiences, err := resume.DecodeWorkExperiences(model.WorkExperiences)
	if err != nil {
		return resumeResponse{}, err
	}
	educations, err := resume.DecodeEducations(model.Educations)
	if err != nil {
		return resumeResponse{}, err
	}

	return resumeResponse{
		ID:              model.ID,
		Title:           model.Title,
		Description:     model.Description,
		PhotoKey:        model.PhotoKey,
		AccentColor:     model.AccentColor,
		BorderStyle:     model.BorderStyle,
		TemplateID:      model.TemplateID,
		Summary:         model.Summary,
		FirstName:       model.FirstName,
		LastName:        model.LastName,
		JobTitle:        model.JobTitle,
		City:            model.City,
		Country:         model.Country,
		Phone:           model.Phone,
		Email:           model.Email,
		Skills:          skills,
		WorkExperiences: experiences,
		Educations:      educations,
		PdfStatus:       model.PdfStatus,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}, nil
}
