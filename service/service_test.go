package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipvc/tabx/config"
	"github.com/ipvc/tabx/errors"
	"github.com/ipvc/tabx/internal/testutil"
	"github.com/ipvc/tabx/store"
	"github.com/ipvc/tabx/xquery"
)

const cropsCSV = `State_Name,Crop_Year,Season,Area
Kerala,2016,Kharif,1200.5
Kerala,2016,Rabi,800
Goa,2017,Kharif,
Assam,2017,Whole Year,52.25
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	conn := testutil.CreateTestDB(t)

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Artifacts.XMLDir = t.TempDir()
	cfg.Artifacts.XSDDir = t.TempDir()

	return New(cfg, store.New(conn, nil))
}

func importCrops(t *testing.T, s *Service) *store.ImportResult {
	t.Helper()
	path := testutil.WriteFixture(t, "crops.csv", cropsCSV)
	result, err := s.ImportCSV(context.Background(), path, "crops", "test crops")
	require.NoError(t, err)
	return result
}

func generateArtifacts(t *testing.T, s *Service, datasetID string) {
	t.Helper()
	_, err := s.GenerateXSD(datasetID)
	require.NoError(t, err)
	_, err = s.GenerateXML(datasetID, 0)
	require.NoError(t, err)
}

func TestImportCSV(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)

	assert.Equal(t, 4, result.Imported)

	ds, err := s.Store().GetByID(result.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, "crops", ds.Name)
	assert.Equal(t, store.StatusCompleted, ds.Status)
	require.Len(t, ds.Schema.Columns, 4)
	assert.True(t, ds.Schema.Columns[3].Nullable, "empty Area cell makes the column nullable")
}

func TestImportCSVMissingFileMarksNothing(t *testing.T) {
	s := newTestService(t)
	_, err := s.ImportCSV(context.Background(), "/does/not/exist.csv", "ghost", "")
	require.Error(t, err)

	_, err = s.Store().GetByName("ghost")
	assert.True(t, errors.IsNotFound(err))
}

func TestImportCSVMalformed(t *testing.T) {
	s := newTestService(t)
	path := testutil.WriteFixture(t, "bad.csv", "just one header\n")
	_, err := s.ImportCSV(context.Background(), path, "bad", "")
	require.Error(t, err)
	assert.True(t, errors.IsMalformedInput(err))
}

func TestValidateRoundTrip(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)
	generateArtifacts(t, s, result.DatasetID)

	res, err := s.Validate(result.DatasetID)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Violations)
}

func TestValidateNonISODatesStillRoundTrip(t *testing.T) {
	// 11/08/2016 matches no date pattern, so the column widens to
	// string and the generated pair still validates.
	s := newTestService(t)
	path := testutil.WriteFixture(t, "dates.csv", "Name,Sown\na,11/08/2016\nb,12/09/2016\n")
	result, err := s.ImportCSV(context.Background(), path, "dates", "")
	require.NoError(t, err)

	ds, err := s.Store().GetByID(result.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, "string", ds.Schema.Columns[1].Kind.String())

	generateArtifacts(t, s, result.DatasetID)
	res, err := s.Validate(result.DatasetID)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateBeforeGeneration(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)

	_, err := s.Validate(result.DatasetID)
	require.Error(t, err)
	assert.True(t, errors.IsArtifactMissing(err))
}

func TestQueryDictFormat(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)
	generateArtifacts(t, s, result.DatasetID)

	resp, err := s.Query(QueryRequest{
		DatasetID: result.DatasetID,
		Path:      "//record[Season='Kharif']",
	})
	require.NoError(t, err)
	assert.Equal(t, "crops", resp.DatasetName)
	assert.Equal(t, 2, resp.Count)

	dicts, ok := resp.Results.([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, dicts, 2)
	assert.Equal(t, "record", dicts[0]["_tag"])
	assert.Equal(t, "Kerala", dicts[0]["State_Name"])
	assert.Nil(t, dicts[1]["Area"], "null cell stays null through the whole pipeline")
}

func TestQueryTextAndCountFormats(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)
	generateArtifacts(t, s, result.DatasetID)

	resp, err := s.Query(QueryRequest{
		DatasetID: result.DatasetID,
		Path:      "//Season[not(. = preceding::Season)]",
		Format:    xquery.FormatText,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Kharif", "Rabi", "Whole Year"}, resp.Results)

	resp, err = s.Query(QueryRequest{
		DatasetID: result.DatasetID,
		Path:      "count(//record)",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Results)
}

func TestQueryFLWOR(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)
	generateArtifacts(t, s, result.DatasetID)

	resp, err := s.Query(QueryRequest{
		DatasetID:      result.DatasetID,
		ForPath:        "//record",
		WhereCondition: "Crop_Year=2017",
		ReturnField:    "State_Name",
		Format:         xquery.FormatText,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Goa", "Assam"}, resp.Results)
}

func TestQueryValidation(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)
	generateArtifacts(t, s, result.DatasetID)

	_, err := s.Query(QueryRequest{DatasetID: result.DatasetID})
	assert.True(t, errors.IsInvalidQuery(err))

	_, err = s.Query(QueryRequest{DatasetID: result.DatasetID, Path: "//a", ForPath: "//b"})
	assert.True(t, errors.IsInvalidQuery(err))

	_, err = s.Query(QueryRequest{DatasetID: result.DatasetID, Path: "//record[["})
	assert.True(t, errors.IsInvalidQuery(err))

	_, err = s.Query(QueryRequest{DatasetID: result.DatasetID, Path: "//record", Format: "yaml"})
	assert.True(t, errors.IsInvalidQuery(err))
}

func TestQueryBeforeGeneration(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)

	_, err := s.Query(QueryRequest{DatasetID: result.DatasetID, Path: "//record"})
	require.Error(t, err)
	assert.True(t, errors.IsArtifactMissing(err))
}

func TestAggregateEndToEnd(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)
	generateArtifacts(t, s, result.DatasetID)

	resp, err := s.Aggregate(AggregateRequest{
		DatasetID: result.DatasetID,
		Field:     "Area",
		Operation: xquery.OpSum,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.InDelta(t, 2052.75, *resp.Result, 1e-9)

	resp, err = s.Aggregate(AggregateRequest{
		DatasetID: result.DatasetID,
		Field:     "Season",
		Operation: xquery.OpSum,
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Result, "non-numeric field sums to the no-data sentinel")
}

func TestGroupByEndToEnd(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)
	generateArtifacts(t, s, result.DatasetID)

	resp, err := s.GroupBy(GroupByRequest{
		DatasetID:      result.DatasetID,
		GroupField:     "Season",
		AggregateField: "Area",
		Operation:      xquery.OpSum,
	})
	require.NoError(t, err)
	assert.Equal(t, "Season", resp.GroupedBy)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "Kharif", resp.Results[0].Key)
	assert.Equal(t, 2, resp.Results[0].Count)
	require.NotNil(t, resp.Results[0].Aggregate)
	assert.InDelta(t, 1200.5, *resp.Results[0].Aggregate, 1e-9, "nil Area cell is excluded")

	payload, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"grouped_by": "Season",
		"results": {
			"Kharif":     {"count": 2, "Area_sum": 1200.5},
			"Rabi":       {"count": 1, "Area_sum": 800},
			"Whole Year": {"count": 1, "Area_sum": 52.25}
		}
	}`, string(payload))
}

func TestCacheInvalidationOnRegeneration(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)
	generateArtifacts(t, s, result.DatasetID)

	resp, err := s.Query(QueryRequest{DatasetID: result.DatasetID, Path: "count(//record)"})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Results)

	// Re-import with fewer rows and regenerate; the next query must see
	// the new record set, never the stale parse.
	path := testutil.WriteFixture(t, "crops.csv", "State_Name,Crop_Year,Season,Area\nKerala,2016,Kharif,1.5\n")
	result2, err := s.ImportCSV(context.Background(), path, "crops", "")
	require.NoError(t, err)
	assert.Equal(t, result.DatasetID, result2.DatasetID, "re-import keeps the dataset identity")

	generateArtifacts(t, s, result.DatasetID)
	resp, err = s.Query(QueryRequest{DatasetID: result.DatasetID, Path: "count(//record)"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Results)
}

func TestImportLogsExposed(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)

	logs, err := s.ImportLogs(result.DatasetID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, store.LevelSuccess, logs[0].Level, "newest entry first")
}

func TestDeleteRemovesArtifacts(t *testing.T) {
	s := newTestService(t)
	result := importCrops(t, s)
	generateArtifacts(t, s, result.DatasetID)

	require.NoError(t, s.Delete(result.DatasetID))

	_, err := s.Store().GetByID(result.DatasetID)
	assert.True(t, errors.IsNotFound(err))
}
