package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
	"github.com/noah-isme/ukm-attendance-api/pkg/logger"
)

type tokenValidatorStub map[string]*models.JWTClaims

func (s tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

type auditRecorder struct {
	logs []*models.AuditLog
}

func (r *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func newProtectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := tokenValidatorStub{
		"secretary": {UserID: "sec-1", Role: models.RoleSecretary},
		"member":    {UserID: "member-1", Role: models.RoleMember},
	}
	router := gin.New()
	router.GET("/protected", JWT(validator), RequireRoles(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logger.UserIDKey))
	})
	return router
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTAndRequireRoles(t *testing.T) {
	router := newProtectedRouter(models.RoleSecretary)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "malformed header", header: "Token secretary", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer member", status: http.StatusForbidden},
		{name: "allowed", header: "Bearer secretary", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := serve(router, req)
			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "sec-1", rec.Body.String())
			}
		})
	}
}

func TestJWTAcceptsQueryTokenOnlyForWebsocket(t *testing.T) {
	router := newProtectedRouter(models.RoleSecretary, models.RoleMember)

	req := httptest.NewRequest(http.MethodGet, "/protected?access_token=member", nil)
	require.Equal(t, http.StatusUnauthorized, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/protected?access_token=member", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "member-1", rec.Body.String())
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/open", RequireRoles(models.RoleMember), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/open", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &auditRecorder{}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "sec-1", Role: models.RoleSecretary})
		c.Next()
	})
	router.POST("/export", Audit(recorder, nil, models.AuditActionExport, models.AuditResourceAttendance), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	router.POST("/broken", Audit(recorder, nil, models.AuditActionExport, models.AuditResourceAttendance), func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})

	require.Equal(t, http.StatusCreated, serve(router, httptest.NewRequest(http.MethodPost, "/export?format=csv", nil)).Code)
	require.Equal(t, http.StatusBadRequest, serve(router, httptest.NewRequest(http.MethodPost, "/broken", nil)).Code)

	require.Len(t, recorder.logs, 1)
	log := recorder.logs[0]
	assert.Equal(t, models.AuditActionExport, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "sec-1", *log.UserID)
	assert.Contains(t, string(log.NewValues), `"query":"format=csv"`)
}

func TestMetricsMiddlewareToleratesNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics(nil))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	require.Equal(t, http.StatusNoContent, serve(router, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
}
