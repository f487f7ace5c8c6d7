package http

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubescore/cubescore-backend/internal/application/command"
	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

type fakeThresholdStore struct {
	replaced *scoring.TierTable
}

func (r *fakeThresholdStore) GetTable(context.Context, string) (*scoring.TierTable, error) {
	return nil, shared.ErrThresholdsNotFound
}

func (r *fakeThresholdStore) GetAllTables(context.Context) (map[string]*scoring.TierTable, error) {
	return nil, nil
}

func (r *fakeThresholdStore) ReplaceTable(_ context.Context, table *scoring.TierTable) error {
	r.replaced = table
	return nil
}

type fakeEventTypeStore struct {
	types map[string]*competition.EventType
}

func (r *fakeEventTypeStore) Create(_ context.Context, et *competition.EventType) error {
	r.types[et.ID] = et
	return nil
}

func (r *fakeEventTypeStore) GetByID(_ context.Context, id string) (*competition.EventType, error) {
	et, ok := r.types[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return et, nil
}

func (r *fakeEventTypeStore) GetAll(context.Context) ([]*competition.EventType, error) {
	return nil, nil
}

func newThresholdServer() (*Server, *fakeThresholdStore) {
	thresholds := &fakeThresholdStore{}
	eventTypes := &fakeEventTypeStore{types: map[string]*competition.EventType{
		"333": {ID: "333", Name: "333", DisplayName: "3x3 Cube"},
	}}
	log := logger.New(io.Discard, logger.LevelError)

	srv := NewServer(DefaultConfig(), Dependencies{
		ReplaceThresholdsHandler: command.NewReplaceThresholdsHandler(thresholds, eventTypes, log),
		Logger:                   log,
	})
	return srv, thresholds
}

const fullTierBody = `{"thresholds":[
	{"tier":"S","min_time_ms":0,"max_time_ms":10000,"base_points":10,"color":"gold"},
	{"tier":"A","min_time_ms":10000,"max_time_ms":15000,"base_points":8},
	{"tier":"B","min_time_ms":15000,"max_time_ms":20000,"base_points":6},
	{"tier":"C","min_time_ms":20000,"max_time_ms":30000,"base_points":4},
	{"tier":"D","min_time_ms":30000,"base_points":2}
]}`

func TestReplaceThresholdsEndpoint(t *testing.T) {
	srv, thresholds := newThresholdServer()

	req := httptest.NewRequest("PUT", "/api/v1/admin/events/333/thresholds", strings.NewReader(fullTierBody))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code, rec.Body.String())

	require.NotNil(t, thresholds.replaced)
	assert.Equal(t, "333", thresholds.replaced.EventTypeID)
	require.Len(t, thresholds.replaced.Thresholds, 5)
	// Строки из JSON становятся типизированными тирами домена.
	assert.Equal(t, scoring.TierS, thresholds.replaced.Thresholds[0].Tier)
	assert.Equal(t, scoring.TierD, thresholds.replaced.Thresholds[4].Tier)
	assert.Nil(t, thresholds.replaced.Thresholds[4].MaxTimeMs)
	assert.Equal(t, 10.0, thresholds.replaced.Thresholds[0].BasePoints)
}

func TestReplaceThresholdsUnknownEventType(t *testing.T) {
	srv, thresholds := newThresholdServer()

	req := httptest.NewRequest("PUT", "/api/v1/admin/events/777/thresholds", strings.NewReader(fullTierBody))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code, rec.Body.String())
	assert.Nil(t, thresholds.replaced)
}

func TestReplaceThresholdsRejectsInvalidTable(t *testing.T) {
	srv, thresholds := newThresholdServer()

	tests := []struct {
		name string
		body string
	}{
		{
			name: "unknown tier letter",
			body: `{"thresholds":[{"tier":"X","min_time_ms":0,"base_points":1}]}`,
		},
		{
			name: "overlapping intervals",
			body: `{"thresholds":[
				{"tier":"S","min_time_ms":0,"max_time_ms":10000,"base_points":10},
				{"tier":"A","min_time_ms":9000,"base_points":8}
			]}`,
		},
		{
			name: "empty table",
			body: `{"thresholds":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("PUT", "/api/v1/admin/events/333/thresholds", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, req)

			assert.Equal(t, 400, rec.Code, rec.Body.String())
			assert.Nil(t, thresholds.replaced)
		})
	}
}
