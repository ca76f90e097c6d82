package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/internal/service"
	appErrors "github.com/Isurika-2001/university-management-system-sub001/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingRecorder struct {
	mu      sync.Mutex
	entries []models.ActivityLog
}

func (r *recordingRecorder) Record(entry models.ActivityLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	validator := stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	router := gin.New()
	router.GET("/secure", JWT(validator), func(c *gin.Context) {
		c.String(http.StatusOK, ClaimsFromContext(c).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/secure", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/secure", "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/secure", "Bearer bad").Code)

	w := serve(router, http.MethodGet, "/secure", "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	validator := stubValidator{claims: &models.JWTClaims{UserID: "u1"}}
	router := gin.New()
	router.GET("/open", OptionalJWT(validator), func(c *gin.Context) {
		if claims := ClaimsFromContext(c); claims != nil {
			c.String(http.StatusOK, claims.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "anonymous", serve(router, http.MethodGet, "/open", "").Body.String())
	assert.Equal(t, "anonymous", serve(router, http.MethodGet, "/open", "Bearer bad").Body.String())
	assert.Equal(t, "u1", serve(router, http.MethodGet, "/open", "Bearer good").Body.String())
}

func TestRBAC(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		path   string
		status int
	}{
		{"anonymous", nil, "/students/s1", http.StatusUnauthorized},
		{"allowed role", &models.JWTClaims{UserID: "u1", Role: models.RoleAcademic}, "/students/s1", http.StatusOK},
		{"superadmin", &models.JWTClaims{UserID: "u1", Role: models.RoleSuperAdmin}, "/students/s1", http.StatusOK},
		{"self", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, "/students/s1", http.StatusOK},
		{"other student", &models.JWTClaims{UserID: "s2", Role: models.RoleStudent}, "/students/s1", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/students/:id", func(c *gin.Context) {
				if tc.claims != nil {
					c.Set(ContextUserKey, tc.claims)
				}
				c.Next()
			}, RBAC(string(models.RoleAcademic), RoleSelf), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			assert.Equal(t, tc.status, serve(router, http.MethodGet, tc.path, "").Code)
		})
	}
}

func TestRBACIgnoresForeignContextValue(t *testing.T) {
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		c.Set(ContextUserKey, "not-claims")
		c.Next()
	}, RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/", "").Code)
}

func TestActivityRecordsSuccessfulRequests(t *testing.T) {
	recorder := &recordingRecorder{}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1"})
		c.Next()
	})
	router.POST("/classrooms", Activity(recorder, models.ActivityClassroomCreate, "classroom"), func(c *gin.Context) {
		SetActivityEntity(c, "cl-9")
		c.Status(http.StatusCreated)
	})
	router.DELETE("/classrooms/:id", Activity(recorder, models.ActivityClassroomDelete, "classroom"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.POST("/failing", Activity(recorder, models.ActivityBatchCreate, "batch"), func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})

	serve(router, http.MethodPost, "/classrooms", "")
	serve(router, http.MethodDelete, "/classrooms/cl-1", "")
	serve(router, http.MethodPost, "/failing", "")

	require.Len(t, recorder.entries, 2)
	assert.Equal(t, "cl-9", *recorder.entries[0].EntityID)
	assert.Equal(t, "u1", *recorder.entries[0].UserID)
	assert.Equal(t, models.ActivityClassroomDelete, recorder.entries[1].Action)
	assert.Equal(t, "cl-1", *recorder.entries[1].EntityID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.entries[0].Details, &details))
	assert.Equal(t, "/classrooms", details["path"])
}

func TestResponseMeta(t *testing.T) {
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		assert.Nil(t, ExtractMeta(c))
		SetMeta(c, "progression_indeterminate", true)
		SetCacheHit(c, false)
		c.JSON(http.StatusOK, ExtractMeta(c))
	})

	w := serve(router, http.MethodGet, "/", "")
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["progression_indeterminate"])
	assert.Equal(t, false, meta["cache_hit"])
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/classrooms/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	serve(router, http.MethodGet, "/classrooms/cl-1", "")
	serve(router, http.MethodGet, "/classrooms/cl-2", "")
	serve(router, http.MethodGet, "/nowhere", "")

	series, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}
