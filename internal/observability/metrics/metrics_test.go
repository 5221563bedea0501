package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHelpersRecordAfterInit(t *testing.T) {
	Init(nil, nil)

	before := testutil.ToFloat64(pipelineRunsTotal.WithLabelValues(ResultError))
	ObservePipelineRun(ResultError, time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(pipelineRunsTotal.WithLabelValues(ResultError)))

	before = testutil.ToFloat64(pipelineRecordsTotal.WithLabelValues(RecordArrival))
	AddPipelineRecords(RecordArrival, 3)
	AddPipelineRecords(RecordArrival, 0)
	assert.Equal(t, before+3, testutil.ToFloat64(pipelineRecordsTotal.WithLabelValues(RecordArrival)))

	before = testutil.ToFloat64(feedRetriesTotal)
	IncFeedRetry()
	assert.Equal(t, before+1, testutil.ToFloat64(feedRetriesTotal))

	before = testutil.ToFloat64(reportExportTotal.WithLabelValues("unknown", ResultSuccess))
	ObserveReportExport("", "", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(reportExportTotal.WithLabelValues("unknown", ResultSuccess)))
}

func TestQueryCountNilDB(t *testing.T) {
	assert.Zero(t, queryCount(nil, nil, "SELECT 1"))
}
