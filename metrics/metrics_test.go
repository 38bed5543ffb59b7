package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCompression(t *testing.T) {
	before := testutil.ToFloat64(Requests.WithLabelValues("ok"))
	ObserveCompression("contrast", 20*time.Millisecond, 4096, 1024)
	ObserveCompression("contrast", 20*time.Millisecond, -1, 1024)

	if got := testutil.ToFloat64(Requests.WithLabelValues("ok")) - before; got != 2 {
		t.Errorf("Expected 2 new ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(Enhancements.WithLabelValues("contrast")); got < 2 {
		t.Errorf("Expected contrast counter >= 2, got %v", got)
	}
}

func TestObserveFailureAndDelivery(t *testing.T) {
	ObserveFailure("decode")
	if got := testutil.ToFloat64(Requests.WithLabelValues("decode")); got < 1 {
		t.Errorf("Expected decode failures to be counted, got %v", got)
	}

	ObserveDelivery("s3", errors.New("denied"))
	ObserveDelivery("s3", nil)
	if got := testutil.ToFloat64(Deliveries.WithLabelValues("s3", "error")); got != 1 {
		t.Errorf("Expected 1 failed delivery, got %v", got)
	}
	if got := testutil.ToFloat64(Deliveries.WithLabelValues("s3", "ok")); got != 1 {
		t.Errorf("Expected 1 successful delivery, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	Downloads.Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "squeeze_downloads_total") {
		t.Error("Expected the downloads counter in the exposition output")
	}
}
