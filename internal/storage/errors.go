package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// IsNoSuchKey 判断错误是否表示对象不存在。照片和 PDF 的释放都把
// “键已不存在”当成功处理，所以这个判断要覆盖网关可能返回的各种写法。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		code := strings.ToLower(strings.TrimSpace(resp.Code))
		return code == "nosuchkey" || code == "notfound"
	}

	// 部分 S3 兼容网关只留下字符串错误。
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"nosuchkey", "specified key does not exist", "not found"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
