// Package errcode 定义通知消息里携带的业务错误码。
// 0 表示成功；4xxx 为可恢复的告警（流程已继续）；5xxx 为系统错误。
package errcode

const (
	OK              = 0
	ResourceMissing = 4004
	SystemError     = 5000
)
