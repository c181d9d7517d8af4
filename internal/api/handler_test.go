package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stock-ledger-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(
		service.NewAvailabilityChecker(nil, nil),
		service.NewReservationManager(nil, nil, nil, 15),
		service.NewStockService(nil, nil, nil, 5),
		service.NewAuditTrail(nil),
	)
	handler.SetupRoutes(router)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestReserveStock_RequesterMistakesAreBadRequests(t *testing.T) {
	router := newTestRouter()

	// No requester identity at all
	w := postJSON(router, "/api/v1/reservations",
		`{"items":[{"product_id":1,"size":"10","quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Session and user at once
	w = postJSON(router, "/api/v1/reservations",
		`{"items":[{"product_id":1,"size":"10","quantity":1}],"session_id":"s1","user_id":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReserveStock_EmptyBatchIsBadRequest(t *testing.T) {
	router := newTestRouter()

	w := postJSON(router, "/api/v1/reservations", `{"items":[],"session_id":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
