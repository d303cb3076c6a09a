package instrument

import (
	"testing"
	"time"

	"campus-referral-engine/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIngestRunCountsRowsOnlyWhenOK(t *testing.T) {
	ingested := ingestRows.WithLabelValues("ingested")
	skipped := ingestRows.WithLabelValues("skipped")
	baseIngested, baseSkipped := testutil.ToFloat64(ingested), testutil.ToFloat64(skipped)

	ObserveIngestRun(models.RunFailed, time.Second, 10, 1)
	ObserveIngestRun(models.RunBudgetExceeded, time.Second, 10, 1)
	if got := testutil.ToFloat64(ingested) - baseIngested; got != 0 {
		t.Errorf("ingested after unsuccessful runs: got %v, want 0", got)
	}
	if got := testutil.ToFloat64(skipped) - baseSkipped; got != 0 {
		t.Errorf("skipped after unsuccessful runs: got %v, want 0", got)
	}

	ObserveIngestRun(models.RunOK, time.Second, 10, 1)
	if got := testutil.ToFloat64(ingested) - baseIngested; got != 9 {
		t.Errorf("ingested: got %v, want 9", got)
	}
	if got := testutil.ToFloat64(skipped) - baseSkipped; got != 1 {
		t.Errorf("skipped: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(ingestRuns.WithLabelValues(models.RunFailed)); got < 1 {
		t.Errorf("failed runs: got %v, want at least 1", got)
	}
}
