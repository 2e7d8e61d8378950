package carbon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicInsights(t *testing.T) {
	l := DefaultLifestyle()
	fp := Footprint{Daily: 20}

	insights := BasicInsights(l, fp)
	require.Len(t, insights, 3)
	assert.Equal(t, "transportation", insights[0].Category)
	assert.Equal(t, 2.0, insights[0].PotentialSaving)
	assert.InDelta(t, 6.0, insights[1].PotentialSaving, 1e-9)
	assert.Equal(t, 0.43, insights[2].PotentialSaving)

	green := Lifestyle{
		Transportation: Transportation{PrimaryMode: ModeBicycle},
		Energy:         Energy{RenewableEnergy: true},
		Diet:           DietVegan,
	}
	assert.Empty(t, BasicInsights(green, fp))
}

func TestInsightsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	est := NewEstimator(NewClient(srv.URL, time.Second), time.Second)
	report := est.Insights(context.Background(), NewInsightRequest(DefaultLifestyle(), Footprint{Daily: 10}, nil))

	assert.True(t, report.Degraded)
	assert.Equal(t, basicInsightsNote, report.Note)
	assert.Len(t, report.Insights, 3)
}

func TestInsightsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/insights", r.URL.Path)
		w.Write([]byte(`{"insights":[{"type":"trend","title":"Great Progress!","description":"down 12%"}],"recommendations":[]}`))
	}))
	defer srv.Close()

	est := NewEstimator(NewClient(srv.URL, time.Second), time.Second)
	report := est.Insights(context.Background(), NewInsightRequest(DefaultLifestyle(), Footprint{}, nil))

	assert.False(t, report.Degraded)
	require.Len(t, report.Insights, 1)
	assert.Equal(t, "trend", report.Insights[0].Type)
}
