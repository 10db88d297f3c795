package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvforge/internal/database"
	"cvforge/internal/errcode"
	"cvforge/internal/metrics"
	"cvforge/internal/pdf"
	"cvforge/internal/storage"
	"cvforge/internal/tasks"
)

// PDFTaskHandler 负责消费 PDF 导出任务。
type PDFTaskHandler struct {
	db                 *gorm.DB
	storage            *storage.Client
	redisClient        *redis.Client
	logger             *slog.Logger
	internalSecret     string
	internalAPIBaseURL string
}

// NewPDFTaskHandler 创建任务处理器。
func NewPDFTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	internalSecret string,
	internalAPIBaseURL string,
) *PDFTaskHandler {
	return &PDFTaskHandler{
		db:                 db,
		storage:            storageClient,
		redisClient:        redisClient,
		logger:             logger,
		internalSecret:     internalSecret,
		internalAPIBaseURL: strings.TrimRight(strings.TrimSpace(internalAPIBaseURL), "/"),
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *PDFTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.PDFExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("resume_id", int(payload.ResumeID)),
	)
	log.Info("starting pdf export task")

	var model database.Resume
	if err := h.db.WithContext(ctx).First(&model, payload.ResumeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("resume not found, skipping task")
			return nil
		}
		log.Error("query resume failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(model.UserID)))

	started := time.Now()
	defer func() {
		outcome := "ok"
		if retErr != nil {
			outcome = "error"
		}
		metrics.ObservePDFExport(outcome, time.Since(started))
	}()

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		if err := h.db.WithContext(ctx).Model(&model).
			Update("pdf_status", database.PdfStatusFailed).Error; err != nil {
			log.Error("mark export failed", slog.Any("error", err))
		}

		notify := PDFExportNotifyMessage{
			Status:        "error",
			ResumeID:      model.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishExportNotify(ctx, model.UserID, notify); err != nil {
			log.Error("publish pdf error notification failed", slog.Any("error", err))
		}
	}()

	rawPrintData, err := fetchPrintData(ctx, h.internalAPIBaseURL, model.ID, h.internalSecret)
	if err != nil {
		log.Error("fetch print data failed", slog.Any("error", err))
		return err
	}

	var printData printPayload
	if err := json.Unmarshal(rawPrintData, &printData); err != nil {
		log.Error("decode print data failed", slog.Any("error", err))
		return err
	}
	missingKeys, resourceMissing := extractResourceMissingWarning(printData.Warnings)

	html, err := renderResumeHTML(printData)
	if err != nil {
		log.Error("render resume html failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := pdf.Render(ctx, html)
	if err != nil {
		log.Error("generate pdf failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("generated-resumes/%d/%s.pdf", model.UserID, uuid.NewString())
	pdfReader := bytes.NewReader(pdfBytes)
	if _, err := h.storage.UploadFile(ctx, objectName, pdfReader, int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	previousKey := model.PdfKey
	update := map[string]any{
		"pdf_key":    objectName,
		"pdf_status": database.PdfStatusReady,
	}
	if err := h.db.WithContext(ctx).Model(&model).Updates(update).Error; err != nil {
		log.Error("update resume failed", slog.Any("error", err))
		return err
	}

	// 旧 PDF 在新的入库之后才释放；失败只记日志，不影响任务结果。
	if previousKey != "" && previousKey != objectName {
		if err := h.storage.DeleteObject(ctx, previousKey); err != nil {
			log.Warn("release previous pdf failed", slog.String("objectKey", previousKey), slog.Any("error", err))
		}
	}

	notify := PDFExportNotifyMessage{
		Status:        "completed",
		ResumeID:      model.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
		ErrorMessage:  "",
	}
	if resourceMissing {
		notify.ErrorCode = errcode.ResourceMissing
		notify.ErrorMessage = "部分资源缺失，已自动跳过并继续生成"
		notify.MissingKeys = missingKeys
		log.Warn("pdf generated with missing resources",
			slog.Int("missing_count", len(missingKeys)),
			slog.Any("missing_keys", missingKeys),
		)
	}
	if err := h.publishExportNotify(ctx, model.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("pdf export task completed")
	return nil
}

func (h *PDFTaskHandler) publishExportNotify(ctx context.Context, userID uint, notify PDFExportNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := tasks.UserNotifyChannel(userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}

func extractResourceMissingWarning(warnings []printWarning) (missingKeys []string, hasWarning bool) {
	uniq := make(map[string]struct{})
	for _, w := range warnings {
		if w.Code != errcode.ResourceMissing {
			continue
		}
		hasWarning = true
		for _, k := range w.MissingKeys {
			key := strings.TrimSpace(k)
			if key == "" {
				continue
			}
			if _, ok := uniq[key]; ok {
				continue
			}
			uniq[key] = struct{}{}
			missingKeys = append(missingKeys, key)
		}
	}
	return missingKeys, hasWarning
}
