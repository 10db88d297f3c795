package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvforge/internal/database"
	"cvforge/internal/storage"
	"cvforge/internal/subscription"
	"cvforge/internal/template"
)

type fakeStorage struct {
	uploaded map[string][]byte
	modified map[string]time.Time
	deleted  []string
	missing  map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		uploaded: map[string][]byte{},
		modified: map[string]time.Time{},
		missing:  map[string]bool{},
	}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

func (s *fakeStorage) ListObjects(_ context.Context, prefix string, _ int) ([]storage.ObjectMeta, error) {
	var out []storage.ObjectMeta
	for key := range s.uploaded {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, storage.ObjectMeta{Key: key, LastModified: s.modified[key]})
		}
	}
	return out, nil
}

func (s *fakeStorage) ObjectExists(_ context.Context, objectKey string) (bool, error) {
	if s.missing[objectKey] {
		return false, nil
	}
	return true, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Resume{}, &database.UserSubscription{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, userID uint, priceID string) {
	t.Helper()
	sub := database.UserSubscription{
		UserID:           userID,
		SubscriptionID:   fmt.Sprintf("sub_%d", userID),
		CustomerID:       fmt.Sprintf("cus_%d", userID),
		PriceID:          priceID,
		CurrentPeriodEnd: time.Now().Add(24 * time.Hour),
		EventAt:          time.Now(),
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// asUser 在请求上下文里注入用户 ID，替代 JWT 中间件。
func asUser(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

type resumeTestEnv struct {
	db      *gorm.DB
	storage *fakeStorage
	router  *gin.Engine
}

func newResumeTestEnv(t *testing.T, userID uint) *resumeTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	blob := newFakeStorage()
	resolver := subscription.NewResolver(db, "price_pro", "price_pro_plus")
	policy := template.NewPolicy(false, 3)
	handler := NewResumeHandler(db, nil, blob, resolver, policy)

	router := gin.New()
	group := router.Group("/v1/resumes", asUser(userID))
	group.POST("", handler.CreateResume)
	group.GET("", handler.ListResumes)
	group.GET("/:id", handler.GetResume)
	group.PATCH("/:id", handler.UpdateResume)
	group.DELETE("/:id", handler.DeleteResume)
	group.GET("/:id/download-link", handler.GetDownloadLink)

	return &resumeTestEnv{db: db, storage: blob, router: router}
}

func (e *resumeTestEnv) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeResume(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v body=%s", err, w.Body.String())
	}
	return out
}

func TestCreateThenGetResume(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	payload := map[string]any{
		"title":     "Backend CV",
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "ada@example.com",
		"skills":    []string{"Go", "Postgres"},
		"workExperiences": []map[string]any{
			{"position": "Engineer", "company": "Acme", "startDate": "2020-01-01"},
		},
	}
	w := env.do(t, http.MethodPost, "/v1/resumes", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: %d body=%s", w.Code, w.Body.String())
	}
	created := decodeResume(t, w)
	if created["templateId"] != "classic" {
		t.Fatalf("default template not applied: %v", created["templateId"])
	}

	id := int(created["id"].(float64))
	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/resumes/%d", id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: %d", w.Code)
	}
	got := decodeResume(t, w)
	if got["title"] != "Backend CV" || got["firstName"] != "Ada" {
		t.Fatalf("round trip mismatch: %v", got)
	}
	skills := got["skills"].([]any)
	if len(skills) != 2 || skills[0] != "Go" {
		t.Fatalf("skills mismatch: %v", skills)
	}
}

func TestCreateResumeInvalidEmail(t *testing.T) {
	env := newResumeTestEnv(t, 1)
	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{
		"title": "CV",
		"email": "not-an-email",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateResumeWithoutTitle(t *testing.T) {
	env := newResumeTestEnv(t, 1)
	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{
		"firstName": "Ada",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("title is optional, expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	created := decodeResume(t, w)
	if created["title"] != "" || created["firstName"] != "Ada" {
		t.Fatalf("unexpected resume: %v", created)
	}
}

func TestUpdateResumeInvalidEmail(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": "CV"})
	created := decodeResume(t, w)
	id := int(created["id"].(float64))

	w = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/resumes/%d", id), map[string]any{
		"email": "not-an-email",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdateResumeClearsTitle(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": "CV"})
	created := decodeResume(t, w)
	id := int(created["id"].(float64))

	w = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/resumes/%d", id), map[string]any{
		"title": "",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status: %d body=%s", w.Code, w.Body.String())
	}
	got := decodeResume(t, w)
	if got["title"] != "" {
		t.Fatalf("title not cleared: %v", got["title"])
	}
}

func TestCreateResumeQuota(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": fmt.Sprintf("CV %d", i)})
		if w.Code != http.StatusCreated {
			t.Fatalf("create %d status: %d", i, w.Code)
		}
	}

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": "one too many"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 at quota, got %d", w.Code)
	}
	resp := decodeResume(t, w)
	if resp["upsell"] != true {
		t.Fatalf("quota rejection should carry upsell flag: %v", resp)
	}
}

func TestCreateResumeQuotaNotAppliedToPro(t *testing.T) {
	env := newResumeTestEnv(t, 1)
	seedSubscription(t, env.db, 1, "price_pro")

	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": fmt.Sprintf("CV %d", i)})
		if w.Code != http.StatusCreated {
			t.Fatalf("pro create %d status: %d", i, w.Code)
		}
	}
}

func TestCreateResumeLockedTemplate(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{
		"title":      "CV",
		"templateId": "professional",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for locked template, got %d", w.Code)
	}

	seedSubscription(t, env.db, 1, "price_pro_plus")
	w = env.do(t, http.MethodPost, "/v1/resumes", map[string]any{
		"title":      "CV",
		"templateId": "professional",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("pro_plus should unlock professional, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateResumeUnknownTemplate(t *testing.T) {
	env := newResumeTestEnv(t, 1)
	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{
		"title":      "CV",
		"templateId": "ghost",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown template, got %d", w.Code)
	}
}

func TestUpdateResumePartial(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{
		"title":   "CV",
		"summary": "original summary",
		"city":    "Berlin",
	})
	created := decodeResume(t, w)
	id := int(created["id"].(float64))

	w = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/resumes/%d", id), map[string]any{
		"summary": "updated summary",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status: %d body=%s", w.Code, w.Body.String())
	}
	got := decodeResume(t, w)
	if got["summary"] != "updated summary" {
		t.Fatalf("summary not updated: %v", got["summary"])
	}
	if got["city"] != "Berlin" || got["title"] != "CV" {
		t.Fatalf("untouched fields lost: %v", got)
	}
}

func TestUpdateResumePhotoThreeWay(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{
		"title": "CV",
		"photo": "user-photos/1/a.png",
	})
	created := decodeResume(t, w)
	id := int(created["id"].(float64))
	if created["photoKey"] != "user-photos/1/a.png" {
		t.Fatalf("photo not stored: %v", created["photoKey"])
	}

	// 请求缺席 photo：保持不动。
	w = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/resumes/%d", id), map[string]any{"title": "CV2"})
	if got := decodeResume(t, w); got["photoKey"] != "user-photos/1/a.png" {
		t.Fatalf("absent photo field changed stored key: %v", got["photoKey"])
	}
	if len(env.storage.deleted) != 0 {
		t.Fatalf("absent photo field released object: %v", env.storage.deleted)
	}

	// 替换：旧对象被释放。
	w = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/resumes/%d", id), map[string]any{
		"photo": "user-photos/1/b.png",
	})
	if got := decodeResume(t, w); got["photoKey"] != "user-photos/1/b.png" {
		t.Fatalf("photo not replaced: %v", got["photoKey"])
	}
	if len(env.storage.deleted) != 1 || env.storage.deleted[0] != "user-photos/1/a.png" {
		t.Fatalf("old photo not released: %v", env.storage.deleted)
	}

	// 显式 null：清空并释放。
	w = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/resumes/%d", id), map[string]any{
		"photo": nil,
	})
	if got := decodeResume(t, w); got["photoKey"] != nil {
		t.Fatalf("photo not cleared: %v", got["photoKey"])
	}
	if len(env.storage.deleted) != 2 || env.storage.deleted[1] != "user-photos/1/b.png" {
		t.Fatalf("cleared photo not released: %v", env.storage.deleted)
	}
}

func TestUpdateResumeRejectsForeignPhotoKey(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": "CV"})
	id := int(decodeResume(t, w)["id"].(float64))

	w = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/resumes/%d", id), map[string]any{
		"photo": "user-photos/2/theirs.png",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("foreign photo key accepted: %d", w.Code)
	}
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	blob := newFakeStorage()
	resolver := subscription.NewResolver(db, "price_pro", "price_pro_plus")
	policy := template.NewPolicy(false, 3)
	handler := NewResumeHandler(db, nil, blob, resolver, policy)

	owned := database.Resume{UserID: 1, Title: "mine", TemplateID: "classic"}
	if err := db.Create(&owned).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}

	router := gin.New()
	group := router.Group("/v1/resumes", asUser(2))
	group.GET("/:id", handler.GetResume)
	group.DELETE("/:id", handler.DeleteResume)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		req := httptest.NewRequest(method, fmt.Sprintf("/v1/resumes/%d", owned.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s cross-user: expected 404, got %d", method, w.Code)
		}
	}

	var count int64
	db.Model(&database.Resume{}).Count(&count)
	if count != 1 {
		t.Fatalf("cross-user delete removed the resume")
	}
}

func TestDeleteResumeReleasesObjects(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{
		"title": "CV",
		"photo": "user-photos/1/a.png",
	})
	id := int(decodeResume(t, w)["id"].(float64))
	if err := env.db.Model(&database.Resume{}).Where("id = ?", id).
		Update("pdf_key", "generated-resumes/1/x.pdf").Error; err != nil {
		t.Fatalf("seed pdf key: %v", err)
	}

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/resumes/%d", id), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status: %d", w.Code)
	}
	if len(env.storage.deleted) != 2 {
		t.Fatalf("expected photo and pdf released, got %v", env.storage.deleted)
	}

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/resumes/%d", id), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted resume still readable: %d", w.Code)
	}
}

func TestListResumesOrderAndTotal(t *testing.T) {
	env := newResumeTestEnv(t, 1)
	seedSubscription(t, env.db, 1, "price_pro")

	ids := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": fmt.Sprintf("CV %d", i)})
		ids = append(ids, int(decodeResume(t, w)["id"].(float64)))
	}

	// 把第一份的 updated_at 推到最新，验证按最近编辑排序。
	if err := env.db.Model(&database.Resume{}).Where("id = ?", ids[0]).
		Update("updated_at", time.Now().Add(time.Hour)).Error; err != nil {
		t.Fatalf("touch resume: %v", err)
	}

	w := env.do(t, http.MethodGet, "/v1/resumes?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status: %d", w.Code)
	}
	var resp struct {
		Items []struct {
			ID    uint   `json:"id"`
			Title string `json:"title"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Total != 4 {
		t.Fatalf("total: %d", resp.Total)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("limit ignored: %d items", len(resp.Items))
	}
	if int(resp.Items[0].ID) != ids[0] {
		t.Fatalf("most recently edited resume not first: %+v", resp.Items)
	}
}

func TestGetDownloadLink(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": "CV"})
	id := int(decodeResume(t, w)["id"].(float64))

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/resumes/%d/download-link", id), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before export, got %d", w.Code)
	}

	if err := env.db.Model(&database.Resume{}).Where("id = ?", id).
		Update("pdf_key", "generated-resumes/1/x.pdf").Error; err != nil {
		t.Fatalf("seed pdf key: %v", err)
	}
	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/resumes/%d/download-link", id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download link status: %d", w.Code)
	}
	got := decodeResume(t, w)
	if got["url"] != "https://example.invalid/generated-resumes/1/x.pdf" {
		t.Fatalf("unexpected url: %v", got["url"])
	}
}

func TestBlankEntriesStoredButPrintFiltered(t *testing.T) {
	env := newResumeTestEnv(t, 1)

	w := env.do(t, http.MethodPost, "/v1/resumes", map[string]any{
		"title": "CV",
		"workExperiences": []map[string]any{
			{"position": "Engineer"},
			{},
		},
	})
	created := decodeResume(t, w)
	id := int(created["id"].(float64))
	if entries := created["workExperiences"].([]any); len(entries) != 2 {
		t.Fatalf("blank entry dropped from storage view: %d", len(entries))
	}

	printHandler := NewPrintHandler(env.db, env.storage, testLogger())
	router := gin.New()
	router.GET("/v1/internal/print/resume/:id", printHandler.GetPrintResumeData)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/internal/print/resume/%d", id), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("print data status: %d body=%s", rec.Code, rec.Body.String())
	}

	var printed struct {
		Resume struct {
			WorkExperiences []map[string]any `json:"workExperiences"`
		} `json:"resume"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &printed); err != nil {
		t.Fatalf("decode print data: %v", err)
	}
	if len(printed.Resume.WorkExperiences) != 1 {
		t.Fatalf("blank entry not filtered from print view: %d", len(printed.Resume.WorkExperiences))
	}
}
