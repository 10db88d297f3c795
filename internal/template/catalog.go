package template

import "cvforge/internal/subscription"

// 模板目录是静态的：8 个固定定义，不落库、不可由用户编辑。

// Layout categories.
const (
	LayoutSingleColumn = "single-column"
	LayoutTwoColumn    = "two-column"
	LayoutCreative     = "creative"
)

// DefaultTemplateID 是简历未指定模板时使用的 ID。
const DefaultTemplateID = "classic"

// Style 描述模板的版式特征，为封闭的强类型记录。
type Style struct {
	FontFamily   string `json:"fontFamily"`
	HeadingColor string `json:"headingColor"`
	AccentColor  string `json:"accentColor"`
	Spacing      string `json:"spacing"` // compact | normal | relaxed
}

// Template 是一个固定的视觉模板定义及其解锁档位。
type Template struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Tier        subscription.Level `json:"tier"`
	Layout      string             `json:"layout"`
	Preview     string             `json:"preview"`
	Thumbnail   string             `json:"thumbnail"`
	Style       Style              `json:"style"`
	Features    []string           `json:"features"`
	Recommended []string           `json:"recommended"`
}

var catalog = []Template{
	{
		ID:          "classic",
		Name:        "Classic",
		Description: "Traditional single-column layout with clean design",
		Tier:        subscription.LevelFree,
		Layout:      LayoutSingleColumn,
		Preview:     "/templates/classic-preview.png",
		Thumbnail:   "/templates/classic-thumb.png",
		Style: Style{
			FontFamily:   "system-ui, -apple-system, sans-serif",
			HeadingColor: "#1a202c",
			AccentColor:  "#3b82f6",
			Spacing:      "normal",
		},
		Features:    []string{"Single column layout", "Professional styling", "ATS-friendly", "Clean typography"},
		Recommended: []string{"Entry-level", "Traditional industries", "Conservative roles"},
	},
	{
		ID:          "modern",
		Name:        "Modern Professional",
		Description: "Two-column layout with bold section headers and modern styling",
		Tier:        subscription.LevelPro,
		Layout:      LayoutTwoColumn,
		Preview:     "/templates/modern-preview.png",
		Thumbnail:   "/templates/modern-thumb.png",
		Style: Style{
			FontFamily:   "'Inter', system-ui, sans-serif",
			HeadingColor: "#0f172a",
			AccentColor:  "#6366f1",
			Spacing:      "normal",
		},
		Features:    []string{"Two-column design", "Bold section headers", "Modern typography", "Sidebar for skills"},
		Recommended: []string{"Tech industry", "Creative roles", "Modern companies"},
	},
	{
		ID:          "minimal",
		Name:        "Minimalist",
		Description: "Clean and elegant with lots of whitespace",
		Tier:        subscription.LevelFree,
		Layout:      LayoutSingleColumn,
		Preview:     "/templates/minimal-preview.png",
		Thumbnail:   "/templates/minimal-thumb.png",
		Style: Style{
			FontFamily:   "'Helvetica Neue', Arial, sans-serif",
			HeadingColor: "#1f2937",
			AccentColor:  "#10b981",
			Spacing:      "relaxed",
		},
		Features:    []string{"Generous whitespace", "Thin divider lines", "Elegant typography", "Monochrome design"},
		Recommended: []string{"Design roles", "Architecture", "Minimalist approach"},
	},
	{
		ID:          "creative",
		Name:        "Creative Edge",
		Description: "Unique layout with creative elements and vibrant colors",
		Tier:        subscription.LevelPro,
		Layout:      LayoutCreative,
		Preview:     "/templates/creative-preview.png",
		Thumbnail:   "/templates/creative-thumb.png",
		Style: Style{
			FontFamily:   "'Poppins', system-ui, sans-serif",
			HeadingColor: "#7c3aed",
			AccentColor:  "#ec4899",
			Spacing:      "normal",
		},
		Features:    []string{"Unique asymmetric layout", "Creative color scheme", "Eye-catching design", "Stand-out sections"},
		Recommended: []string{"Graphic design", "Marketing", "Creative industries"},
	},
	{
		ID:          "professional",
		Name:        "Executive",
		Description: "Sophisticated design for senior-level positions",
		Tier:        subscription.LevelProPlus,
		Layout:      LayoutTwoColumn,
		Preview:     "/templates/professional-preview.png",
		Thumbnail:   "/templates/professional-thumb.png",
		Style: Style{
			FontFamily:   "'Georgia', serif",
			HeadingColor: "#1e293b",
			AccentColor:  "#0369a1",
			Spacing:      "normal",
		},
		Features:    []string{"Executive styling", "Sophisticated layout", "Premium typography", "Professional accents"},
		Recommended: []string{"Senior positions", "C-suite", "Executive roles"},
	},
	{
		ID:          "compact",
		Name:        "Compact Pro",
		Description: "Space-efficient design that fits more content",
		Tier:        subscription.LevelPro,
		Layout:      LayoutTwoColumn,
		Preview:     "/templates/compact-preview.png",
		Thumbnail:   "/templates/compact-thumb.png",
		Style: Style{
			FontFamily:   "'Roboto', system-ui, sans-serif",
			HeadingColor: "#374151",
			AccentColor:  "#059669",
			Spacing:      "compact",
		},
		Features:    []string{"Compact spacing", "Fits more content", "Organized sections", "Efficient layout"},
		Recommended: []string{"Extensive experience", "Multiple roles", "Academic CVs"},
	},
	{
		ID:          "elegant",
		Name:        "Elegant Serif",
		Description: "Timeless design with serif fonts and refined styling",
		Tier:        subscription.LevelProPlus,
		Layout:      LayoutSingleColumn,
		Preview:     "/templates/elegant-preview.png",
		Thumbnail:   "/templates/elegant-thumb.png",
		Style: Style{
			FontFamily:   "'Crimson Text', Georgia, serif",
			HeadingColor: "#44403c",
			AccentColor:  "#92400e",
			Spacing:      "relaxed",
		},
		Features:    []string{"Serif typography", "Refined aesthetics", "Classic elegance", "Timeless design"},
		Recommended: []string{"Legal", "Academia", "Publishing"},
	},
	{
		ID:          "tech",
		Name:        "Tech Focus",
		Description: "Developer-friendly with monospace accents and tech styling",
		Tier:        subscription.LevelPro,
		Layout:      LayoutTwoColumn,
		Preview:     "/templates/tech-preview.png",
		Thumbnail:   "/templates/tech-thumb.png",
		Style: Style{
			FontFamily:   "'JetBrains Mono', 'Consolas', monospace",
			HeadingColor: "#1e3a8a",
			AccentColor:  "#2563eb",
			Spacing:      "normal",
		},
		Features:    []string{"Tech-oriented design", "Monospace accents", "Code-friendly", "Developer aesthetic"},
		Recommended: []string{"Software engineering", "DevOps", "Tech startups"},
	},
}

// All 返回全部模板（目录顺序）。
func All() []Template {
	out := make([]Template, len(catalog))
	copy(out, catalog)
	return out
}

// ByID 按 ID 查找模板。
func ByID(id string) (Template, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Exists reports whether id names a known template.
func Exists(id string) bool {
	_, ok := ByID(id)
	return ok
}

// ByTier 返回解锁档位不高于 level 的模板。
func ByTier(level subscription.Level) []Template {
	out := make([]Template, 0, len(catalog))
	for _, t := range catalog {
		if t.Tier.Rank() <= level.Rank() {
			out = append(out, t)
		}
	}
	return out
}

// Template categories for filtering.
const (
	CategoryAll      = "all"
	CategoryFree     = "free"
	CategoryPremium  = "premium"
	CategorySingle   = "single"
	CategoryDouble   = "double"
	CategoryCreative = "creative"
)

// ByCategory 按展示分类过滤模板；未知分类返回全部。
func ByCategory(category string) []Template {
	match := func(t Template) bool {
		switch category {
		case CategoryFree:
			return t.Tier == subscription.LevelFree
		case CategoryPremium:
			return t.Tier != subscription.LevelFree
		case CategorySingle:
			return t.Layout == LayoutSingleColumn
		case CategoryDouble:
			return t.Layout == LayoutTwoColumn
		case CategoryCreative:
			return t.Layout == LayoutCreative
		}
		return true
	}

	out := make([]Template, 0, len(catalog))
	for _, t := range catalog {
		if match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Stats 汇总目录的档位与布局分布。
type Stats struct {
	Total        int `json:"total"`
	Free         int `json:"free"`
	Pro          int `json:"pro"`
	ProPlus      int `json:"pro_plus"`
	SingleColumn int `json:"singleColumn"`
	TwoColumn    int `json:"twoColumn"`
	Creative     int `json:"creative"`
}

// CatalogStats 返回目录统计。
func CatalogStats() Stats {
	var s Stats
	s.Total = len(catalog)
	for _, t := range catalog {
		switch t.Tier {
		case subscription.LevelFree:
			s.Free++
		case subscription.LevelPro:
			s.Pro++
		case subscription.LevelProPlus:
			s.ProPlus++
		}
		switch t.Layout {
		case LayoutSingleColumn:
			s.SingleColumn++
		case LayoutTwoColumn:
			s.TwoColumn++
		case LayoutCreative:
			s.Creative++
		}
	}
	return s
}
