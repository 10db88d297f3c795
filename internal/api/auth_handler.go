package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/auth"
	"cvforge/internal/database"
)

const (
	refreshCookieName  = "refresh_token"
	revokedJTIPrefix   = "auth:refresh:blacklist:"
	loginRateKeyPrefix = "rate:login:"
)

// AuthHandler 处理注册、登录、刷新与退出。
// 刷新令牌走 HttpOnly Cookie，访问令牌由响应体返回。
type AuthHandler struct {
	db           *gorm.DB
	authService  *auth.AuthService
	redis        redis.UniversalClient
	logger       *slog.Logger
	loginPerHour int
	cookieDomain string
}

func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, redisClient redis.UniversalClient, logger *slog.Logger, loginRateLimitPerHour int, cookieDomain string) *AuthHandler {
	return &AuthHandler{
		db:           db,
		authService:  authService,
		redis:        redisClient,
		logger:       logger,
		loginPerHour: loginRateLimitPerHour,
		cookieDomain: strings.TrimSpace(cookieDomain),
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// Register 创建新账号。用户名冲突返回 409。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	log := h.log(c).With(slog.String("username", req.Username))

	var existing database.User
	err := h.db.WithContext(ctx).Where("username = ?", req.Username).First(&existing).Error
	switch {
	case err == nil:
		Conflict(c, "username already taken")
		return
	case !errors.Is(err, gorm.ErrRecordNotFound):
		log.Error("register lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user := database.User{Username: req.Username, PasswordHash: hashed}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		log.Error("create user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	log.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	c.Status(http.StatusCreated)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login 校验口令并颁发令牌。用户不存在与密码错误对外同为 401。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	log := h.log(c).With(slog.String("username", req.Username))

	if h.loginThrottled(ctx, c.ClientIP(), req.Username) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Info("login failed: unknown user")
			Unauthorized(c)
			return
		}
		log.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		log.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		Unauthorized(c)
		return
	}

	pair, err := h.authService.GenerateTokenPair(user.ID)
	if err != nil {
		log.Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.replyWithTokenPair(c, pair)
}

// loginThrottled 以 IP+用户名+小时 为粒度计数。redis 故障时放行，
// 口令校验本身仍然生效。
func (h *AuthHandler) loginThrottled(ctx context.Context, ip, username string) bool {
	key := loginRateKeyPrefix + ip + ":" + strings.ToLower(username) + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, key, time.Hour)
	if err != nil {
		return false
	}
	return count > int64(h.loginPerHour)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 轮换刷新令牌：旧 jti 进黑名单，同时下发新的 TokenPair。
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.log(c)

	claims, ok := h.refreshClaims(c, log)
	if !ok {
		return
	}

	jtiKey := revokedJTIPrefix + claims.ID
	if err := h.redis.Get(ctx, jtiKey).Err(); err == nil {
		log.Info("refresh token already revoked", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	} else if !errors.Is(err, redis.Nil) {
		log.Error("blacklist lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		log.Info("refresh for missing user", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	pair, err := h.authService.GenerateTokenPair(claims.UserID)
	if err != nil {
		log.Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.revokeJTI(ctx, jtiKey, claims.expiryTTL(h.authService.RefreshTokenTTL())); err != nil {
		log.Error("revoke rotated token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.replyWithTokenPair(c, pair)
}

// Logout 拉黑当前刷新令牌并清掉 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.log(c)

	claims, ok := h.refreshClaims(c, log)
	if !ok {
		return
	}

	jtiKey := revokedJTIPrefix + claims.ID
	if err := h.revokeJTI(ctx, jtiKey, claims.expiryTTL(h.authService.RefreshTokenTTL())); err != nil {
		log.Error("revoke token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.writeRefreshCookie(c, "", -1)
	c.Status(http.StatusOK)
}

type refreshTokenClaims struct {
	*auth.TokenClaims
}

// expiryTTL 返回黑名单条目应存活的时长，至少一秒。
func (rc refreshTokenClaims) expiryTTL(fallback time.Duration) time.Duration {
	ttl := fallback
	if rc.ExpiresAt != nil {
		ttl = time.Until(rc.ExpiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

// refreshClaims 提取并校验刷新令牌；失败时已写好响应。
func (h *AuthHandler) refreshClaims(c *gin.Context, log *slog.Logger) (refreshTokenClaims, bool) {
	token := h.extractRefreshToken(c)
	if token == "" {
		Unauthorized(c)
		return refreshTokenClaims{}, false
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		log.Info("refresh token invalid", slog.Any("error", err))
		Unauthorized(c)
		return refreshTokenClaims{}, false
	}
	if claims.TokenType != "refresh" || claims.ID == "" {
		log.Info("token is not a revocable refresh token", slog.String("token_type", claims.TokenType))
		Unauthorized(c)
		return refreshTokenClaims{}, false
	}
	return refreshTokenClaims{claims}, true
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshCookieName); err == nil && token != "" {
		return token
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) replyWithTokenPair(c *gin.Context, pair auth.TokenPair) {
	maxAge := int(h.authService.RefreshTokenTTL().Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	h.writeRefreshCookie(c, pair.RefreshToken, maxAge)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.AccessTokenTTL().Seconds()),
	})
}

func (h *AuthHandler) writeRefreshCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		MaxAge:   maxAge,
		Path:     "/",
		Domain:   h.cookieDomain,
		Secure:   requestIsHTTPS(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) revokeJTI(ctx context.Context, key string, ttl time.Duration) error {
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *AuthHandler) log(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func requestIsHTTPS(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
