package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxPhotoSize = 5 << 20

// PhotoHandler 负责简历照片的上传与访问。
type PhotoHandler struct {
	Storage   BlobStorage
	Logger    *slog.Logger
	ClamdAddr string
}

// NewPhotoHandler 返回 PhotoHandler 实例。
func NewPhotoHandler(blob BlobStorage, logger *slog.Logger, clamdAddr string) *PhotoHandler {
	return &PhotoHandler{
		Storage:   blob,
		Logger:    logger,
		ClamdAddr: clamdAddr,
	}
}

var photoContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// UploadPhoto 处理照片上传，上传前先过一遍病毒扫描。
// 返回的 objectKey 由调用方写入简历的 photo 字段。
func (h *PhotoHandler) UploadPhoto(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxPhotoSize {
		BadRequest(c, "photo exceeds 5MB limit")
		return
	}

	contentType := file.Header.Get("Content-Type")
	ext, allowed := photoContentTypes[contentType]
	if !allowed {
		// 部分浏览器按扩展名报 jpeg 变体，回退到文件名判断。
		switch strings.ToLower(filepath.Ext(file.Filename)) {
		case ".png":
			contentType, ext = "image/png", ".png"
		case ".jpg", ".jpeg":
			contentType, ext = "image/jpeg", ".jpg"
		case ".webp":
			contentType, ext = "image/webp", ".webp"
		default:
			BadRequest(c, "unsupported photo type")
			return
		}
	}

	clamdClient := clamd.NewClamd(h.ClamdAddr)

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}

	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(fileReader, abortChan)
	fileReader.Close()
	if err != nil {
		h.Logger.Error("scan photo", slog.String("error", err.Error()))
		Internal(c, "failed to scan file")
		return
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			BadRequest(c, "malicious file detected")
			return
		}
	}

	fileReader, err = file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer fileReader.Close()

	objectKey := fmt.Sprintf("%s%s%s", userPhotoPrefix(userID), uuid.NewString(), ext)
	if _, err := h.Storage.UploadFile(c.Request.Context(), objectKey, fileReader, file.Size, contentType); err != nil {
		h.Logger.Error("upload photo", slog.String("error", err.Error()))
		Internal(c, "failed to upload file")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

// ListPhotos 列出用户已上传的照片，按最近上传排序。
func (h *PhotoHandler) ListPhotos(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objects, err := h.Storage.ListObjects(c.Request.Context(), userPhotoPrefix(userID), 100)
	if err != nil {
		h.Logger.Error("list photos", slog.String("error", err.Error()))
		Internal(c, "failed to list photos")
		return
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	items := make([]gin.H, 0, len(objects))
	for _, obj := range objects {
		url, err := h.Storage.GeneratePresignedURL(c.Request.Context(), obj.Key, 10*time.Minute)
		if err != nil {
			h.Logger.Error("generate photo url", slog.String("objectKey", obj.Key), slog.String("error", err.Error()))
			continue
		}
		items = append(items, gin.H{
			"objectKey":    obj.Key,
			"previewUrl":   url,
			"size":         obj.Size,
			"lastModified": obj.LastModified,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetPhotoURL 返回照片的临时预签名 URL。只能访问自己前缀下的对象。
func (h *PhotoHandler) GetPhotoURL(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}
	if !isValidUserPhotoKey(userID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	signedURL, err := h.Storage.GeneratePresignedURL(c.Request.Context(), objectKey, 15*time.Minute)
	if err != nil {
		h.Logger.Error("generate presigned url", slog.String("error", err.Error()))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}
