package worker

// PDFExportNotifyMessage 通过 Redis Pub/Sub 转发给前端 WebSocket。
// 字段名与前端解析保持一致。
type PDFExportNotifyMessage struct {
	Status        string   `json:"status"`
	ResumeID      uint     `json:"resume_id"`
	CorrelationID string   `json:"correlation_id"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message"`
	MissingKeys   []string `json:"missing_keys,omitempty"`
}
