package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePDFExport = "pdf:export"
)

// PDFExportPayload 描述导出简历 PDF 所需的最小信息。
type PDFExportPayload struct {
	ResumeID      uint   `json:"resume_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPDFExportTask 构造一个新的简历 PDF 导出任务。
func NewPDFExportTask(resumeID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PDFExportPayload{
		ResumeID:      resumeID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFExport, payload), nil
}

// UserNotifyChannel 返回用户通知使用的 Redis 频道名。
// API 侧的 WebSocket 订阅与 worker 侧的发布必须使用同一个实现。
func UserNotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}
