// Package testutil provides shared test helpers: HTTP round trips against a
// handler and assertions on heart-rate estimates.
package testutil

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/pulse.report/internal/rppg"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertBPM fails the test unless hz, converted to BPM, is within tol BPM
// of want.
func AssertBPM(t testing.TB, want, hz, tol float64) {
	t.Helper()
	if got := hz * 60; math.Abs(got-want) > tol {
		t.Errorf("heart rate = %.2f BPM, want %.2f +/- %.2f", got, want, tol)
	}
}

// AssertValidRate fails the test unless r is a valid estimate within tol
// BPM of want.
func AssertValidRate(t testing.TB, want float64, r rppg.RateEstimate, tol float64) {
	t.Helper()
	if !r.Valid {
		t.Fatalf("rate estimate invalid: %+v", r)
	}
	AssertBPM(t, want, r.FrequencyHz, tol)
}

// Do serves one request against h and returns the recorder. A non-empty
// body is sent as JSON.
func Do(t testing.TB, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// DecodeJSON decodes the recorder body into a T, failing the test on error.
func DecodeJSON[T any](t testing.TB, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
