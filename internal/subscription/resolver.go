package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cvforge/internal/database"
)

// ErrInvalidSubscription 表示订阅记录中的价格 ID 不属于任何已知档位。
// 这是配置或数据不一致，必须向上传播而不是静默退回 free。
var ErrInvalidSubscription = errors.New("invalid subscription state")

// Resolver 将存量订阅记录解析为订阅档位。
// 档位不落库：每次查询都基于 currentPeriodEnd 与价格 ID 重新推导。
type Resolver struct {
	db             *gorm.DB
	priceIDPro     string
	priceIDProPlus string
	now            func() time.Time
}

// NewResolver 构造 Resolver；两个价格 ID 来自计费配置。
func NewResolver(db *gorm.DB, priceIDPro, priceIDProPlus string) *Resolver {
	return &Resolver{
		db:             db,
		priceIDPro:     priceIDPro,
		priceIDProPlus: priceIDProPlus,
		now:            time.Now,
	}
}

// WithClock 替换时间源，仅用于测试。
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve 返回用户当前的订阅档位：
//  1. 无记录 → free；
//  2. 已过期（currentPeriodEnd 严格早于当前时间）→ free，无论价格 ID 为何；
//  3. 价格 ID 命中 pro / pro_plus → 对应档位；
//  4. 价格 ID 未知 → ErrInvalidSubscription。
func (r *Resolver) Resolve(ctx context.Context, userID uint) (Level, error) {
	var sub database.UserSubscription
	err := r.db.WithContext(ctx).First(&sub, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return LevelFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("query subscription for user %d: %w", userID, err)
	}

	if sub.CurrentPeriodEnd.Before(r.now()) {
		return LevelFree, nil
	}

	switch sub.PriceID {
	case r.priceIDPro:
		return LevelPro, nil
	case r.priceIDProPlus:
		return LevelProPlus, nil
	}

	return "", fmt.Errorf("%w: price id %q matches no configured tier", ErrInvalidSubscription, sub.PriceID)
}
