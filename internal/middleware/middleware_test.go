package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
	"github.com/noah-isme/classroom-engagement-api/internal/service"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	return s.claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func serve(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	claims := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	r := newRouter(JWT(stubValidator{claims: claims}))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer bad").Code)
	assert.Equal(t, http.StatusOK, serve(r, "Bearer good").Code)
}

func TestRequireRoles(t *testing.T) {
	student := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}
	r := newRouter(JWT(stubValidator{claims: student}), RequireRoles(models.RoleTeacher))
	assert.Equal(t, http.StatusForbidden, serve(r, "Bearer good").Code)

	r = newRouter(JWT(stubValidator{claims: student}), RequireRoles(models.RoleTeacher, models.RoleStudent))
	assert.Equal(t, http.StatusOK, serve(r, "Bearer good").Code)

	r = newRouter(RequireRoles(models.RoleTeacher))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
}

func TestCacheMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ExtractMeta(c))

	SetCacheHit(c, true)
	meta := ExtractMeta(c)
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
}

func TestMetricsMiddleware(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newRouter(Metrics(metrics))
	serve(r, "")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.RequestsTotal)
}

func TestAuditLogsSuccessfulRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	claims := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	r := newRouter(JWT(stubValidator{claims: claims}), Audit(zap.New(core), "read", "item"))

	serve(r, "Bearer good")
	serve(r, "Bearer bad")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "t1", fields["actor_id"])
	assert.Equal(t, "42", fields["resource_id"])
}
