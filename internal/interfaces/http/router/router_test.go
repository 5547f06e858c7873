package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRouter_MountsGroupsUnderVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(EngineConfig{ServiceName: "test", MaxBodySize: 1 << 10}, zap.NewNop())

	var order []string
	group := NewDomainGroup("print", "/print").
		Use(func(c *gin.Context) { order = append(order, "mw"); c.Next() }).
		GET("/ping", func(c *gin.Context) { order = append(order, "handler"); c.Status(http.StatusOK) })
	NewRouter(engine).Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/print/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"mw", "handler"}, order)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "print", group.Name())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/print/ping", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
