package pipeline_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/disaster-merge-service/internal/adapter/feeds"
	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/couchcryptid/disaster-merge-service/internal/observability"
	"github.com/couchcryptid/disaster-merge-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePath(name string) string {
	return filepath.Join("..", "..", "data", "sample", name)
}

func serveFile(t *testing.T, name string) *httptest.Server {
	t.Helper()
	data, err := os.ReadFile(samplePath(name))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPipeline_WithSampleData(t *testing.T) {
	logger := discardLogger()
	eonetSrv := serveFile(t, "eonet.json")
	usgsSrv := serveFile(t, "usgs.geojson")

	srcs := []pipeline.Source{
		feeds.NewEMDATLoader(samplePath("emdat.csv"), domain.DefaultEMDATKeywords(), nil, logger),
		feeds.NewEONETClient(eonetSrv.URL, 30, 5*time.Second, domain.DefaultEONETKeywords(), logger),
		feeds.NewUSGSClient(usgsSrv.URL, 5*time.Second, domain.DefaultUSGSKeywords(), logger),
	}
	pub := &mockPublisher{}
	p := newPipeline(t, srcs, nil, pub, observability.NewMetricsForTesting())

	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)

	type summary struct {
		ID       string
		Category domain.Category
		Source   string
	}
	got := make([]summary, len(snap.Result.Records))
	for i, r := range snap.Result.Records {
		got[i] = summary{ID: r.ID, Category: r.Category, Source: r.Source}
	}
	want := []summary{
		{"emdat-2023-0300-LBY", domain.CategoryFlood, domain.SourceEMDAT},
		{"eonet-EONET_6400", domain.CategoryWildfire, domain.SourceEONET},
		{"usgs-us6000jllz", domain.CategoryEarthquake, domain.SourceUSGS},
		{"usgs-hv73262107", domain.CategoryEarthquake, domain.SourceUSGS},
		{"eonet-EONET_6401", domain.CategoryVolcano, domain.SourceEONET},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged records mismatch (-want +got):\n%s", diff)
	}

	wantClusters := []domain.Cluster{
		{RepresentativeID: "usgs-us6000jllz", MemberIDs: []string{"emdat-2023-0077-TUR", "usgs-us6000jllz"}},
		{RepresentativeID: "eonet-EONET_6400", MemberIDs: []string{"emdat-2023-0200-CAN", "eonet-EONET_6400"}},
	}
	if diff := cmp.Diff(wantClusters, snap.Result.Clusters); diff != "" {
		t.Fatalf("clusters mismatch (-want +got):\n%s", diff)
	}

	stats := snap.Result.Stats
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 2, stats.DuplicatesRemoved)
	assert.Zero(t, stats.Rejected)
	assert.Equal(t, map[string]int{domain.SourceEMDAT: 3, domain.SourceEONET: 2, domain.SourceUSGS: 2}, stats.BySource)

	wantReports := []pipeline.SourceReport{
		{Source: domain.SourceEMDAT, Records: 3, Dropped: map[domain.DropReason]int{domain.DropMissingCoordinates: 1}},
		{Source: domain.SourceEONET, Records: 2},
		{Source: domain.SourceUSGS, Records: 2, Dropped: map[domain.DropReason]int{domain.DropMissingCoordinates: 1}},
	}
	if diff := cmp.Diff(wantReports, snap.Sources); diff != "" {
		t.Fatalf("source reports mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, pub.records, 1)
	assert.Len(t, pub.records[0], 5)
}
