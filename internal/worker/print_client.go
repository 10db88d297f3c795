package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// 打印数据的拉取走同机房的内部端点，超时给足网络抖动余量即可。
var printClient = &http.Client{Timeout: 15 * time.Second}

// fetchPrintData 向内部打印端点请求指定简历的渲染数据。
// 端点由 X-Internal-Secret 保护，普通用户流量无法到达。
func fetchPrintData(ctx context.Context, baseURL string, resumeID uint, secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("internal api secret missing")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("internal api base url missing")
	}

	endpoint := fmt.Sprintf("%s/v1/internal/print/resume/%d", baseURL, resumeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build internal request: %w", err)
	}
	req.Header.Set("X-Internal-Secret", secret)

	resp, err := printClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request print data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("print data endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read print data: %w", err)
	}
	return data, nil
}
