package resume

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// 简历的结构化子文档（技能、工作经历、教育经历）以 JSONB 存储。
// 本文件定义领域类型以及与存储表示之间的显式编解码边界。

const dateLayout = "2006-01-02"

// Date is a calendar date carried in JSON as "2006-01-02" (RFC 3339
// timestamps are accepted on input). The zero value marshals as null.
type Date struct {
	time.Time
}

// NewDate builds a Date truncated to its calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		d.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}

	if t, err := time.Parse(dateLayout, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q: expected %s", raw, dateLayout)
	}
	d.Time = t
	return nil
}

// WorkExperience 表示一段工作经历；所有字段均可为空。
// EndDate 为空表示“至今”。
type WorkExperience struct {
	Position    string `json:"position,omitempty"`
	Company     string `json:"company,omitempty"`
	StartDate   *Date  `json:"startDate,omitempty"`
	EndDate     *Date  `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsBlank reports whether every field of the entry is empty. Blank entries
// stay in storage but are suppressed from rendered output.
func (w WorkExperience) IsBlank() bool {
	return w.Position == "" &&
		w.Company == "" &&
		(w.StartDate == nil || w.StartDate.IsZero()) &&
		(w.EndDate == nil || w.EndDate.IsZero()) &&
		w.Description == ""
}

// Education 表示一段教育经历；所有字段均可为空。
type Education struct {
	Degree    string `json:"degree,omitempty"`
	School    string `json:"school,omitempty"`
	StartDate *Date  `json:"startDate,omitempty"`
	EndDate   *Date  `json:"endDate,omitempty"`
}

// IsBlank reports whether every field of the entry is empty.
func (e Education) IsBlank() bool {
	return e.Degree == "" &&
		e.School == "" &&
		(e.StartDate == nil || e.StartDate.IsZero()) &&
		(e.EndDate == nil || e.EndDate.IsZero())
}

// VisibleWorkExperiences filters out blank entries, preserving order.
func VisibleWorkExperiences(entries []WorkExperience) []WorkExperience {
	visible := make([]WorkExperience, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsBlank() {
			visible = append(visible, entry)
		}
	}
	return visible
}

// VisibleEducations filters out blank entries, preserving order.
func VisibleEducations(entries []Education) []Education {
	visible := make([]Education, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsBlank() {
			visible = append(visible, entry)
		}
	}
	return visible
}

// Border styles for the photo frame.
const (
	BorderSquare  = "square"
	BorderCircle  = "circle"
	BorderRounded = "rounded"
)

// KnownBorderStyle reports whether s is one of the three supported styles.
func KnownBorderStyle(s string) bool {
	switch s {
	case BorderSquare, BorderCircle, BorderRounded:
		return true
	}
	return false
}

// EncodeSkills 将技能列表编码为 JSONB 存储表示。
func EncodeSkills(skills []string) (datatypes.JSON, error) {
	if skills == nil {
		skills = []string{}
	}
	data, err := json.Marshal(skills)
	if err != nil {
		return nil, fmt.Errorf("encode skills: %w", err)
	}
	return datatypes.JSON(data), nil
}

// DecodeSkills 从 JSONB 解码技能列表；空值解码为空切片。
func DecodeSkills(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var skills []string
	if err := json.Unmarshal(raw, &skills); err != nil {
		return nil, fmt.Errorf("decode skills: %w", err)
	}
	if skills == nil {
		skills = []string{}
	}
	return skills, nil
}

// EncodeWorkExperiences 将工作经历编码为 JSONB 存储表示，保留顺序与空白条目。
func EncodeWorkExperiences(entries []WorkExperience) (datatypes.JSON, error) {
	if entries == nil {
		entries = []WorkExperience{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode work experiences: %w", err)
	}
	return datatypes.JSON(data), nil
}

// DecodeWorkExperiences 从 JSONB 解码工作经历。
func DecodeWorkExperiences(raw datatypes.JSON) ([]WorkExperience, error) {
	if len(raw) == 0 {
		return []WorkExperience{}, nil
	}
	var entries []WorkExperience
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode work experiences: %w", err)
	}
	if entries == nil {
		entries = []WorkExperience{}
	}
	return entries, nil
}

// EncodeEducations 将教育经历编码为 JSONB 存储表示。
func EncodeEducations(entries []Education) (datatypes.JSON, error) {
	if entries == nil {
		entries = []Education{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode educations: %w", err)
	}
	return datatypes.JSON(data), nil
}

// DecodeEducations 从 JSONB 解码教育经历。
func DecodeEducations(raw datatypes.JSON) ([]Education, error) {
	if len(raw) == 0 {
		return []Education{}, nil
	}
	var entries []Education
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode educations: %w", err)
	}
	if entries == nil {
		entries = []Education{}
	}
	return entries, nil
}
