package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvforge/internal/database"
)

const (
	signatureHeader  = "Stripe-Signature"
	maxPayloadBytes  = 256 * 1024
	eventDedupPrefix = "billing:event:"
	eventDedupTTL    = 24 * time.Hour
)

// Webhook 事件类型。
const (
	eventCheckoutCompleted   = "checkout.session.completed"
	eventSubscriptionCreated = "customer.subscription.created"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
)

// eventDeduper 是去重所需的最小 Redis 能力集，*redis.Client 天然满足。
type eventDeduper interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// WebhookHandler 将计费服务商的订阅生命周期事件镜像到本地 UserSubscription。
// Upsert 以 userID 为键保证幂等；事件时间戳用于拒绝乱序到达的旧事件。
type WebhookHandler struct {
	db     *gorm.DB
	redis  eventDeduper
	logger *slog.Logger
	secret string
	now    func() time.Time
}

// NewWebhookHandler 构造 Webhook 处理器。
func NewWebhookHandler(db *gorm.DB, redisClient eventDeduper, logger *slog.Logger, secret string) *WebhookHandler {
	return &WebhookHandler{
		db:     db,
		redis:  redisClient,
		logger: logger,
		secret: secret,
		now:    time.Now,
	}
}

// WithClock 替换时间源，仅用于测试。
func (h *WebhookHandler) WithClock(now func() time.Time) *WebhookHandler {
	h.now = now
	return h
}

type webhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type subscriptionObject struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type checkoutSessionObject struct {
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

// HandleEvent 处理 POST /v1/billing/webhook。
// 签名不可信 → 400 且不做任何状态变更；已处理过的事件 ID → 200 直接确认。
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}

	if err := VerifySignature(payload, c.GetHeader(signatureHeader), h.secret, DefaultTolerance, h.now()); err != nil {
		h.logger.Warn("webhook signature rejected", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
		return
	}

	ctx := c.Request.Context()
	log := h.logger.With(
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	if h.alreadyProcessed(ctx, event.ID, log) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	eventAt := time.Unix(event.Created, 0)

	switch event.Type {
	case eventCheckoutCompleted:
		err = h.handleCheckoutCompleted(ctx, event.Data.Object)
	case eventSubscriptionCreated, eventSubscriptionUpdated:
		err = h.handleSubscriptionUpsert(ctx, event.Data.Object, eventAt, log)
	case eventSubscriptionDeleted:
		err = h.handleSubscriptionDeleted(ctx, event.Data.Object, eventAt)
	default:
		log.Info("ignoring unhandled event type")
	}

	if err != nil {
		// 处理失败时必须释放去重键，否则服务商的重试会被当成重复事件
		// 直接确认，失败就成了永久的。
		h.forgetEvent(ctx, event.ID, log)
		log.Error("webhook event processing failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// alreadyProcessed 用 Redis SetNX 去重事件 ID。
// Redis 不可用时放行：Upsert 本身幂等，去重只是省一次写。
func (h *WebhookHandler) alreadyProcessed(ctx context.Context, eventID string, log *slog.Logger) bool {
	if h.redis == nil || eventID == "" {
		return false
	}
	fresh, err := h.redis.SetNX(ctx, eventDedupPrefix+eventID, "1", eventDedupTTL).Result()
	if err != nil {
		log.Warn("event dedup check failed, processing anyway", slog.Any("error", err))
		return false
	}
	return !fresh
}

// forgetEvent 在事件处理失败后释放去重键，让服务商的重试可以再次进入处理流程。
func (h *WebhookHandler) forgetEvent(ctx context.Context, eventID string, log *slog.Logger) {
	if h.redis == nil || eventID == "" {
		return
	}
	if err := h.redis.Del(ctx, eventDedupPrefix+eventID).Err(); err != nil {
		log.Warn("failed to release event dedup key", slog.Any("error", err))
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, raw json.RawMessage) error {
	var session checkoutSessionObject
	if err := json.Unmarshal(raw, &session); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}

	userID, err := userIDFromMetadata(session.Metadata)
	if err != nil {
		return fmt.Errorf("checkout session: %w", err)
	}

	return h.db.WithContext(ctx).
		Model(&database.User{}).
		Where("id = ?", userID).
		Update("billing_customer_id", session.Customer).Error
}

func (h *WebhookHandler) handleSubscriptionUpsert(ctx context.Context, raw json.RawMessage, eventAt time.Time, log *slog.Logger) error {
	var sub subscriptionObject
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}

	// active、trialing、past_due 视为有效订阅；其余状态等同取消。
	switch sub.Status {
	case "active", "trialing", "past_due":
	default:
		log.Info("subscription in terminal state, removing record", slog.String("status", sub.Status))
		return h.deleteByCustomer(ctx, sub.Customer, eventAt)
	}

	userID, err := userIDFromMetadata(sub.Metadata)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", sub.ID, err)
	}
	if len(sub.Items.Data) == 0 {
		return fmt.Errorf("subscription %s has no items", sub.ID)
	}

	record := database.UserSubscription{
		UserID:            userID,
		SubscriptionID:    sub.ID,
		CustomerID:        sub.Customer,
		PriceID:           sub.Items.Data[0].Price.ID,
		CurrentPeriodEnd:  time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		EventAt:           eventAt,
	}

	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Unscoped 使查找能命中删除墓碑，乱序到达的旧 update 才不会被
		// ErrRecordNotFound 分支当成新订阅重建出来。
		var existing database.UserSubscription
		err := tx.Unscoped().First(&existing, "user_id = ?", userID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&record).Error
		case err != nil:
			return err
		case existing.EventAt.After(eventAt),
			existing.DeletedAt.Valid && existing.EventAt.Equal(eventAt):
			// 乱序到达的旧事件，丢弃；与删除同刻平局时删除胜出。
			log.Info("stale subscription event ignored",
				slog.Time("event_at", eventAt),
				slog.Time("stored_event_at", existing.EventAt),
			)
			return nil
		default:
			// 比墓碑更新的事件可以复活记录：record.DeletedAt 为零值，
			// Unscoped Save 会把 deleted_at 写回 NULL。
			record.CreatedAt = existing.CreatedAt
			return tx.Unscoped().Save(&record).Error
		}
	})
}

// handleSubscriptionDeleted 删除订阅记录。
// 仅当存量记录的事件时间不晚于本事件时删除：删除在同刻平局时胜出（<=），
// 因为取消是终态；晚于删除事件的更新不受影响。
func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, raw json.RawMessage, eventAt time.Time) error {
	var sub subscriptionObject
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}
	return h.deleteByCustomer(ctx, sub.Customer, eventAt)
}

// deleteByCustomer 把记录打成软删除墓碑而不是物理删除：
// EventAt 改写为删除事件的时间，这样更晚到达的旧 update 会被时间戳比较拒绝。
func (h *WebhookHandler) deleteByCustomer(ctx context.Context, customerID string, eventAt time.Time) error {
	if customerID == "" {
		return errors.New("subscription event missing customer id")
	}
	return h.db.WithContext(ctx).
		Model(&database.UserSubscription{}).
		Where("customer_id = ? AND event_at <= ?", customerID, eventAt).
		Updates(map[string]any{"event_at": eventAt, "deleted_at": eventAt}).Error
}

func userIDFromMetadata(metadata map[string]string) (uint, error) {
	raw := metadata["user_id"]
	if raw == "" {
		return 0, errors.New("metadata missing user_id")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("metadata user_id %q is not a valid id", raw)
	}
	return uint(id), nil
}
