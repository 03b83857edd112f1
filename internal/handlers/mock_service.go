package handlers

import (
	"context"
	"net/http"
	"time"

	"sensor_gateway/internal/models"
	"sensor_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	enrollID      int
	enrollErr     error
	viewerID      int
	viewerErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseRole     models.Role
	parseErr      error

	lastEnrollUsername string
	lastEnrollBootID   string
	lastViewerUsername string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) EnrollOperator(ctx context.Context, username, password, bootID string) (int, error) {
	m.lastEnrollUsername = username
	m.lastEnrollBootID = bootID
	return m.enrollID, m.enrollErr
}
func (m *mockAuth) AddViewer(ctx context.Context, username, password string) (int, error) {
	m.lastViewerUsername = username
	return m.viewerID, m.viewerErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (service.Principal, error) {
	m.lastParseToken = token
	role := m.parseRole
	if role == "" {
		role = models.RoleViewer
	}
	return service.Principal{UserID: m.parseID, Role: role}, m.parseErr
}

type mockMonitoring struct {
	status      models.GatewayStatus
	readings    []models.LatestReading
	err         error
	readingsErr error
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (models.GatewayStatus, error) {
	return m.status, m.err
}

func (m *mockMonitoring) LatestReadings(ctx context.Context) ([]models.LatestReading, error) {
	return m.readings, m.readingsErr
}

type mockEventLog struct {
	resp     []models.GatewayEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.GatewayEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockFaultLog struct {
	resp      []models.Fault
	err       error
	lastLimit int
	calls     int
}

func (m *mockFaultLog) RecentFaults(limit int) ([]models.Fault, error) {
	m.calls++
	m.lastLimit = limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
