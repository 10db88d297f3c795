package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvforge/internal/subscription"
	"cvforge/internal/template"
)

// TemplateHandler 负责模板目录相关的 API。
// 目录是静态的，接口只负责按调用方档位标注锁定状态。
type TemplateHandler struct {
	resolver *subscription.Resolver
	policy   template.Policy
}

func NewTemplateHandler(resolver *subscription.Resolver, policy template.Policy) *TemplateHandler {
	return &TemplateHandler{resolver: resolver, policy: policy}
}

type templateListItem struct {
	template.Template
	Locked bool `json:"locked"`
}

// GET /v1/templates
// 列出全部模板，并按调用方当前档位标注 locked。
// 可选 ?category= 过滤布局分类。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	level, err := resolveLevel(c, h.resolver, userID)
	if err != nil {
		Internal(c, "failed to resolve subscription")
		return
	}

	templates := template.All()
	if category := c.Query("category"); category != "" {
		templates = template.ByCategory(category)
	}

	items := make([]templateListItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, templateListItem{
			Template: t,
			Locked:   !h.policy.CanAccess(t.ID, level),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"stats": template.CatalogStats(),
		"level": level,
	})
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	t, found := template.ByID(c.Param("id"))
	if !found {
		NotFound(c, "template not found")
		return
	}

	level, err := resolveLevel(c, h.resolver, userID)
	if err != nil {
		Internal(c, "failed to resolve subscription")
		return
	}

	c.JSON(http.StatusOK, templateListItem{
		Template: t,
		Locked:   !h.policy.CanAccess(t.ID, level),
	})
}
