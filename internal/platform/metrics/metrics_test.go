package metrics

import (
	"testing"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherValue returns the value of the series of family name whose labels
// match; counters and gauges only.
func gatherValue(t *testing.T, reg prometheus.Gatherer, name string, labels map[string]string) (float64, int) {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var value float64
		matched := 0
		for _, metric := range family.GetMetric() {
			ok := true
			for _, pair := range metric.GetLabel() {
				if want, exists := labels[pair.GetName()]; exists && want != pair.GetValue() {
					ok = false
				}
			}
			if !ok {
				continue
			}
			matched++
			if metric.GetCounter() != nil {
				value = metric.GetCounter().GetValue()
			} else if metric.GetGauge() != nil {
				value = metric.GetGauge().GetValue()
			}
		}
		return value, matched
	}
	return 0, 0
}

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewRecorder(reg)

	recorder.SessionOpened()
	recorder.SessionOpened()
	recorder.SessionClosed()
	recorder.VoteProcessed("accepted")
	recorder.VoteProcessed("already_voted")
	recorder.VoteProcessed("accepted")
	recorder.BroadcastDelivered(3)

	if got, _ := gatherValue(t, reg, "pollcast_sessions_active", nil); got != 1 {
		t.Fatalf("expected 1 active session, got %v", got)
	}
	if got, _ := gatherValue(t, reg, "pollcast_votes_total", map[string]string{"result": "accepted"}); got != 2 {
		t.Fatalf("expected 2 accepted votes, got %v", got)
	}
	if got, _ := gatherValue(t, reg, "pollcast_broadcast_deliveries_total", nil); got != 3 {
		t.Fatalf("expected 3 deliveries, got %v", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var recorder *Recorder
	recorder.SessionOpened()
	recorder.VoteProcessed("accepted")
	recorder.BroadcastDelivered(1)
	recorder.TallyReset()
}

type fixedSource struct{ snapshot entities.Snapshot }

func (f fixedSource) Snapshot() entities.Snapshot { return f.snapshot }

func TestTallyCollector(t *testing.T) {
	tally := entities.NewTally()
	_ = tally.Apply("a", entities.OptionNetflix)
	_ = tally.Apply("b", entities.OptionNetflix)
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewTallyCollector(fixedSource{snapshot: tally.Snapshot(true)}))

	if got, _ := gatherValue(t, reg, "pollcast_tally_total_votes", nil); got != 2 {
		t.Fatalf("expected total 2, got %v", got)
	}
	if got, _ := gatherValue(t, reg, "pollcast_tally_votes", map[string]string{"option": "netflix"}); got != 2 {
		t.Fatalf("expected 2 netflix votes, got %v", got)
	}
	if _, series := gatherValue(t, reg, "pollcast_tally_votes", nil); series != len(entities.Options()) {
		t.Fatalf("expected one series per option, got %d", series)
	}
	if got, _ := gatherValue(t, reg, "pollcast_poll_active", nil); got != 1 {
		t.Fatalf("expected open poll gauge")
	}
}
