package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/azure/controversy-analyzer/internal/config"
)

// MockRunner is a mock implementation of Runner
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) RunMonitoring(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestCronExpression(t *testing.T) {
	tests := []struct {
		schedule string
		expected string
		wantErr  bool
	}{
		{schedule: "daily", expected: "0 0 9 * * *"},
		{schedule: "weekly", expected: "0 0 9 * * MON"},
		{schedule: "hourly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			expr, err := CronExpression(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, expr)
		})
	}
}

func TestService_StartStop(t *testing.T) {
	runner := new(MockRunner)
	service := NewService(&config.Config{ReportSchedule: "weekly"}, runner)

	require.NoError(t, service.Start())
	assert.Len(t, service.cron.Entries(), 1)
	assert.Equal(t, time.UTC, service.cron.Location())

	// Next run is Monday 09:00 UTC whatever the local time zone
	next := service.cron.Entries()[0].Next
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.UTC().Hour())
	assert.Equal(t, 0, next.UTC().Minute())
	service.Stop()

	assert.ErrorIs(t, service.ctx.Err(), context.Canceled)
	runner.AssertNotCalled(t, "RunMonitoring", mock.Anything)
}

func TestService_StartRejectsUnknownSchedule(t *testing.T) {
	service := NewService(&config.Config{ReportSchedule: "monthly"}, new(MockRunner))

	assert.Error(t, service.Start())
}

func TestService_Run(t *testing.T) {
	runner := new(MockRunner)
	runner.On("RunMonitoring", mock.Anything).Return(errors.New("boom")).Once()

	service := NewService(&config.Config{ReportSchedule: "daily"}, runner)
	service.run()

	runner.AssertExpectations(t)
}
