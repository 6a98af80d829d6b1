package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPush_IncrementsLabeledCounter(t *testing.T) {
	m := New()
	m.RecordPush("mood_log", OutcomeApplied)
	m.RecordPush("mood_log", OutcomeRejected)
	m.RecordPush("check_in", OutcomeApplied)

	got := testutil.ToFloat64(m.pushTotal.WithLabelValues("mood_log", string(OutcomeApplied)))
	if got != 1 {
		t.Errorf("mood_log/applied count = %v, want 1", got)
	}
}

func TestRecordPull_AddsCount(t *testing.T) {
	m := New()
	m.RecordPull("journal_entry", 3)
	m.RecordPull("journal_entry", 2)

	got := testutil.ToFloat64(m.pullTotal.WithLabelValues("journal_entry"))
	if got != 5 {
		t.Errorf("journal_entry pull count = %v, want 5", got)
	}
}

func TestTxOpenedAndClosed_TracksGauge(t *testing.T) {
	m := New()
	m.TxOpened()
	m.TxOpened()
	m.TxClosed()

	got := testutil.ToFloat64(m.openSyncTxns)
	if got != 1 {
		t.Errorf("open_sync_transactions = %v, want 1", got)
	}
}

func TestObserveCallDuration_RecordsSample(t *testing.T) {
	m := New()
	m.ObserveCallDuration("success", 50*time.Millisecond)

	count := testutil.CollectAndCount(m.callDuration)
	if count != 1 {
		t.Errorf("callDuration series count = %d, want 1", count)
	}
}

func TestRegistry_ExposesGoCollector(t *testing.T) {
	m := New()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var sawGo bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "go_") {
			sawGo = true
			break
		}
	}
	if !sawGo {
		t.Error("Registry() should include the Go runtime collector's metrics")
	}
}
