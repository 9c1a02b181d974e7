package testutil

import (
	"net/http"
	"testing"

	"github.com/banshee-data/pulse.report/internal/rppg"
)

func TestDoAndDecodeJSON(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"method":"` + r.Method + `"}`))
	})

	rec := Do(t, h, http.MethodPost, "/x", `{}`)
	AssertStatusCode(t, rec.Code, http.StatusOK)
	got := DecodeJSON[map[string]string](t, rec)
	if got["method"] != http.MethodPost {
		t.Errorf("method = %q, want POST", got["method"])
	}
}

func TestAssertValidRate(t *testing.T) {
	t.Parallel()

	AssertValidRate(t, 72, rppg.RateEstimate{FrequencyHz: 1.21, Valid: true}, 3)
	AssertBPM(t, 60, 1.0, 0.001)
	AssertNoError(t, nil)
}
