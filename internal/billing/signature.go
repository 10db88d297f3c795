package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrSignature 表示 Webhook 签名校验失败；携带该错误的请求不得触发任何状态变更。
var ErrSignature = errors.New("webhook signature verification failed")

// DefaultTolerance 是签名时间戳允许的最大偏移。
const DefaultTolerance = 5 * time.Minute

// VerifySignature 校验计费服务商的签名头。
// 签名头形如 "t=<unix>,v1=<hex>,..."，签名对象是 "<t>.<payload>" 的
// HMAC-SHA256。时间戳偏移超过 tolerance 视为无效，防止重放旧请求。
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return fmt.Errorf("%w: signature header missing", ErrSignature)
	}

	var timestamp int64 = -1
	var candidates []string

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: malformed timestamp", ErrSignature)
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, value)
		}
	}

	if timestamp < 0 {
		return fmt.Errorf("%w: timestamp missing", ErrSignature)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no v1 signature present", ErrSignature)
	}

	signedAt := time.Unix(timestamp, 0)
	if drift := now.Sub(signedAt); drift > tolerance || drift < -tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}

	return fmt.Errorf("%w: no matching v1 signature", ErrSignature)
}
