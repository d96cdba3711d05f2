package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/azure/controversy-analyzer/internal/models"
)

// MockMonitor is a mock implementation of the monitoring service
type MockMonitor struct {
	mock.Mock
}

func (m *MockMonitor) RunMonitoring(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockMonitor) GetMetrics() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockMonitor) LatestReport(ctx context.Context, username string) (*models.Report, error) {
	args := m.Called(ctx, username)
	rep, _ := args.Get(0).(*models.Report)
	return rep, args.Error(1)
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(method, path, nil))
	return recorder
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(context.Background(), new(MockMonitor))

	resp := serve(router, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"healthy"`)
}

func TestRouter_Status(t *testing.T) {
	monitor := new(MockMonitor)
	monitor.On("GetMetrics").Return(`{"profiles_analyzed": 2}`)

	resp := serve(newRouter(context.Background(), monitor), http.MethodGet, "/status")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"profiles_analyzed": 2}`, resp.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	resp := serve(newRouter(context.Background(), new(MockMonitor)), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "go_goroutines")
}

func TestRouter_LatestReport(t *testing.T) {
	monitor := new(MockMonitor)
	monitor.On("LatestReport", mock.Anything, "alice").Return(&models.Report{Username: "alice", ControversialCount: 3}, nil)
	monitor.On("LatestReport", mock.Anything, "bob").Return(nil, errors.New("no reports for @bob"))

	router := newRouter(context.Background(), monitor)

	resp := serve(router, http.MethodGet, "/reports/alice")
	require.Equal(t, http.StatusOK, resp.Code)

	var rep models.Report
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &rep))
	assert.Equal(t, "alice", rep.Username)
	assert.Equal(t, 3, rep.ControversialCount)

	resp = serve(router, http.MethodGet, "/reports/bob")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRouter_Trigger(t *testing.T) {
	called := make(chan struct{})

	monitor := new(MockMonitor)
	monitor.On("RunMonitoring", mock.Anything).Return(nil).Run(func(mock.Arguments) {
		close(called)
	})

	router := newRouter(context.Background(), monitor)

	resp := serve(router, http.MethodPost, "/trigger")
	assert.Equal(t, http.StatusAccepted, resp.Code)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("monitoring run was not triggered")
	}

	resp = serve(router, http.MethodGet, "/trigger")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}
