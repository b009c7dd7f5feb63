package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openresq/emergency_dispatch/internal/config"
	"github.com/openresq/emergency_dispatch/internal/handler/http/v1/mocks"
	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/openresq/emergency_dispatch/internal/service"
)

const testAPIKey = "test-api-key"

func newTestRouter(t *testing.T) (*gin.Engine, *mocks.MockAlertService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	alertService := mocks.NewMockAlertService(ctrl)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{APIKeys: []string{testAPIKey}}
	handler := NewHandler(alertService, nil, logger, cfg)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router, alertService
}

func performRequest(router *gin.Engine, method, path string, body any, authorized bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAlertHandler_Accepted(t *testing.T) {
	router, alertService := newTestRouter(t)

	created := &models.Alert{
		ID:                 uuid.New(),
		ReporterID:         "citizen-1",
		Message:            "help",
		Latitude:           34.05,
		Longitude:          -118.25,
		Category:           "Law & Order",
		Status:             models.StatusNew,
		RadiusKm:           5,
		TargetedResponders: []string{},
	}
	alertService.EXPECT().CreateAlert(gomock.Any(), service.CreateAlertInput{
		ReporterID: "citizen-1",
		Message:    "help",
		Latitude:   34.05,
		Longitude:  -118.25,
	}).Return(created, nil)

	w := performRequest(router, http.MethodPost, "/api/v1/alerts", gin.H{
		"reporter_id": "citizen-1",
		"message":     "help",
		"latitude":    34.05,
		"longitude":   -118.25,
	}, true)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp AlertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "new", resp.Status)
	assert.NotNil(t, resp.TargetedResponders)
}

func TestCreateAlertHandler_ZeroCoordinatesAreLegal(t *testing.T) {
	router, alertService := newTestRouter(t)

	// Equator / prime meridian: 0 must not be treated as "missing".
	alertService.EXPECT().CreateAlert(gomock.Any(), service.CreateAlertInput{
		ReporterID: "citizen-1",
		Message:    "help",
		Latitude:   0,
		Longitude:  0,
	}).Return(&models.Alert{
		ID:                 uuid.New(),
		ReporterID:         "citizen-1",
		Status:             models.StatusNew,
		TargetedResponders: []string{},
	}, nil)

	w := performRequest(router, http.MethodPost, "/api/v1/alerts", gin.H{
		"reporter_id": "citizen-1",
		"message":     "help",
		"latitude":    0,
		"longitude":   0,
	}, true)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCreateAlertHandler_ValidationFailure(t *testing.T) {
	router, _ := newTestRouter(t)

	// Missing reporter_id.
	w := performRequest(router, http.MethodPost, "/api/v1/alerts", gin.H{
		"latitude":  34.05,
		"longitude": -118.25,
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Latitude out of range.
	w = performRequest(router, http.MethodPost, "/api/v1/alerts", gin.H{
		"reporter_id": "citizen-1",
		"latitude":    95.0,
		"longitude":   -118.25,
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAlertHandler_MalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performRequest(router, http.MethodGet, "/api/v1/alerts", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	router, alertService := newTestRouter(t)

	alertService.EXPECT().ListAlerts(gomock.Any(), 1, 20).Return([]*models.Alert{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetAlertHandler(t *testing.T) {
	router, alertService := newTestRouter(t)

	id := uuid.New()
	alertService.EXPECT().GetAlert(gomock.Any(), id).Return(&models.Alert{ID: id, Status: models.StatusNew}, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/alerts/"+id.String(), nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetAlertHandler_NotFound(t *testing.T) {
	router, alertService := newTestRouter(t)

	id := uuid.New()
	alertService.EXPECT().GetAlert(gomock.Any(), id).Return(nil, models.ErrNotFound)

	w := performRequest(router, http.MethodGet, "/api/v1/alerts/"+id.String(), nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAlertHandler_InvalidID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performRequest(router, http.MethodGet, "/api/v1/alerts/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAlertsHandler(t *testing.T) {
	router, alertService := newTestRouter(t)

	alertService.EXPECT().ListAlerts(gomock.Any(), 2, 10).Return([]*models.Alert{
		{ID: uuid.New(), Status: models.StatusNew},
	}, nil)

	w := performRequest(router, http.MethodGet, "/api/v1/alerts?page=2&pageSize=10", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []AlertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestAcceptAlertHandler(t *testing.T) {
	router, alertService := newTestRouter(t)

	id := uuid.New()
	responderID := "pd-7"
	alertService.EXPECT().AcceptAlert(gomock.Any(), id, responderID).
		Return(&models.Alert{ID: id, Status: models.StatusAccepted, AcceptedBy: &responderID}, nil)

	w := performRequest(router, http.MethodPost, "/api/v1/alerts/"+id.String()+"/accept", gin.H{
		"responder_id": responderID,
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp AlertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	require.NotNil(t, resp.AcceptedBy)
	assert.Equal(t, responderID, *resp.AcceptedBy)
}

func TestAcceptAlertHandler_Conflict(t *testing.T) {
	router, alertService := newTestRouter(t)

	id := uuid.New()
	alertService.EXPECT().AcceptAlert(gomock.Any(), id, "pd-7").Return(nil, models.ErrConflict)

	w := performRequest(router, http.MethodPost, "/api/v1/alerts/"+id.String()+"/accept", gin.H{
		"responder_id": "pd-7",
	}, true)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAcceptAlertHandler_MissingResponder(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performRequest(router, http.MethodPost, "/api/v1/alerts/"+uuid.NewString()+"/accept", gin.H{}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveAlertHandler(t *testing.T) {
	router, alertService := newTestRouter(t)

	id := uuid.New()
	alertService.EXPECT().ResolveAlert(gomock.Any(), id).Return(&models.Alert{ID: id, Status: models.StatusResolved}, nil)

	w := performRequest(router, http.MethodPost, "/api/v1/alerts/"+id.String()+"/resolve", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelAlertHandler_Conflict(t *testing.T) {
	router, alertService := newTestRouter(t)

	id := uuid.New()
	alertService.EXPECT().CancelAlert(gomock.Any(), id).Return(nil, models.ErrConflict)

	w := performRequest(router, http.MethodPost, "/api/v1/alerts/"+id.String()+"/cancel", nil, true)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteAlertHandler(t *testing.T) {
	router, alertService := newTestRouter(t)

	id := uuid.New()
	alertService.EXPECT().DeleteAlert(gomock.Any(), id).Return(nil)

	w := performRequest(router, http.MethodDelete, "/api/v1/alerts/"+id.String(), nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestDeleteAlertHandler_InternalError(t *testing.T) {
	router, alertService := newTestRouter(t)

	id := uuid.New()
	alertService.EXPECT().DeleteAlert(gomock.Any(), id).Return(errors.New("connection refused"))

	w := performRequest(router, http.MethodDelete, "/api/v1/alerts/"+id.String(), nil, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRegisterResponderHandler(t *testing.T) {
	router, alertService := newTestRouter(t)

	alertService.EXPECT().RegisterResponder(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, responder *models.Responder) error {
			assert.Equal(t, "fd-1", responder.ID)
			assert.Equal(t, models.DepartmentFire, responder.Department)
			assert.Equal(t, "https://push.example/fd-1", responder.PushURL)
			return nil
		})

	w := performRequest(router, http.MethodPost, "/api/v1/responders", gin.H{
		"id":         "fd-1",
		"department": "fire",
		"push_url":   "https://push.example/fd-1",
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp ResponderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "fd-1", resp.ID)
	assert.Equal(t, "fire", resp.Department)
}

func TestRegisterResponderHandler_UnknownDepartment(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performRequest(router, http.MethodPost, "/api/v1/responders", gin.H{
		"id":         "nv-1",
		"department": "navy",
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateResponderLocationHandler(t *testing.T) {
	router, alertService := newTestRouter(t)

	alertService.EXPECT().UpdateResponderLocation(gomock.Any(), "fd-1", 34.05, -118.25).Return(nil)

	w := performRequest(router, http.MethodPut, "/api/v1/responders/fd-1/location", gin.H{
		"latitude":  34.05,
		"longitude": -118.25,
	}, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateResponderLocationHandler_ZeroCoordinates(t *testing.T) {
	router, alertService := newTestRouter(t)

	alertService.EXPECT().UpdateResponderLocation(gomock.Any(), "fd-1", 0.0, 0.0).Return(nil)

	w := performRequest(router, http.MethodPut, "/api/v1/responders/fd-1/location", gin.H{
		"latitude":  0,
		"longitude": 0,
	}, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateResponderLocationHandler_NotFound(t *testing.T) {
	router, alertService := newTestRouter(t)

	alertService.EXPECT().UpdateResponderLocation(gomock.Any(), "ghost", 1.0, 1.0).Return(models.ErrNotFound)

	w := performRequest(router, http.MethodPut, "/api/v1/responders/ghost/location", gin.H{
		"latitude":  1.0,
		"longitude": 1.0,
	}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthCheck_NoAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performRequest(router, http.MethodGet, "/api/v1/system/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}
