package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEngineCounters(t *testing.T) {
	m := Engine()
	if Engine() != m {
		t.Fatal("Engine must return a singleton")
	}
	before := testutil.ToFloat64(m.offersResolved.WithLabelValues("declined"))
	m.OfferResolved("declined")
	if got := testutil.ToFloat64(m.offersResolved.WithLabelValues("declined")); got != before+1 {
		t.Fatalf("declined counter = %v, want %v", got, before+1)
	}

	m.Dispatch("notification", "dropped")
	if got := testutil.ToFloat64(m.dispatch.WithLabelValues("notification", "dropped")); got < 1 {
		t.Fatalf("dispatch counter = %v", got)
	}

	var nilMetrics *engineMetrics
	nilMetrics.CascadeStep("presented") // must not panic
}
