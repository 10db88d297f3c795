package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username          string   `gorm:"uniqueIndex;size:64"`
	PasswordHash      string   `gorm:"size:255"`
	BillingCustomerID string   `gorm:"size:255;index"`
	Resumes           []Resume `gorm:"constraint:OnDelete:CASCADE"`
}

// Resume 表示用户创建的一份简历。
// 技能、工作经历与教育经历以 JSONB 存储，保留顺序与重复项；
// 序列化边界见 internal/resume 的编解码函数。
type Resume struct {
	gorm.Model
	UserID          uint           `gorm:"index:idx_resumes_owner_updated,priority:1"`
	User            User           `gorm:"constraint:OnDelete:CASCADE"`
	Title           string         `gorm:"size:255"`
	Description     string         `gorm:"size:1024"`
	PhotoKey        string         `gorm:"size:512"`
	AccentColor     string         `gorm:"size:16"`
	BorderStyle     string         `gorm:"size:16"`
	TemplateID      string         `gorm:"size:32;default:classic"`
	Summary         string         `gorm:"type:text"`
	FirstName       string         `gorm:"size:255"`
	LastName        string         `gorm:"size:255"`
	JobTitle        string         `gorm:"size:255"`
	City            string         `gorm:"size:255"`
	Country         string         `gorm:"size:255"`
	Phone           string         `gorm:"size:64"`
	Email           string         `gorm:"size:255"`
	Skills          datatypes.JSON `gorm:"type:jsonb"`
	WorkExperiences datatypes.JSON `gorm:"type:jsonb"`
	Educations      datatypes.JSON `gorm:"type:jsonb"`
	PdfKey          string         `gorm:"size:512"`
	PdfStatus       string         `gorm:"size:32"`
}

// PDF 导出状态机：pending -> ready / failed。
const (
	PdfStatusNone    = ""
	PdfStatusPending = "pending"
	PdfStatusReady   = "ready"
	PdfStatusFailed  = "failed"
)

// UserSubscription 镜像计费服务商上报的订阅状态。
// 主键即 UserID：每个用户至多一条记录，Webhook 以 Upsert 方式维护。
// EventAt 记录事件时间戳，用于拒绝乱序到达的旧事件。
// 删除采用软删除墓碑：DeletedAt 连同 EventAt 记录删除事件的时间，
// 使得晚于删除到达的旧 update 事件不会把已取消的订阅复活。
type UserSubscription struct {
	UserID            uint           `gorm:"primaryKey"`
	SubscriptionID    string         `gorm:"uniqueIndex;size:255"`
	CustomerID        string         `gorm:"index;size:255"`
	PriceID           string         `gorm:"size:255"`
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	EventAt           time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}
