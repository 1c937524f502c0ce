package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heizmon/heizdiag/diagnose"
	"github.com/heizmon/heizdiag/probe"
	"github.com/heizmon/heizdiag/remedy"
)

func testSnapshot(results ...probe.Result) *diagnose.Snapshot {
	s := &diagnose.Snapshot{
		Results:           make(map[diagnose.Key]probe.Result, len(results)),
		GeneratedAt:       time.Now(),
		CriticalContainer: "influxdb",
	}
	for _, res := range results {
		s.Results[diagnose.Key{Subsystem: res.Subsystem, Identifier: res.Identifier}] = res
	}
	return s
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func TestServer_ReadinessLifecycle(t *testing.T) {
	srv := NewServer(nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz before first run = %d, want 503", resp.StatusCode)
	}

	srv.SetPayload(NewPayload(testSnapshot(
		probe.Healthy(probe.SubsystemDatabase, "heizung-daten", "ok"),
	), nil))

	resp, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz after healthy run = %d, want 200", resp.StatusCode)
	}

	srv.SetPayload(NewPayload(testSnapshot(
		probe.Failing(probe.SubsystemDatabase, "heizung-daten", "unreachable", nil),
	), nil))

	resp, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz after failing run = %d, want 503", resp.StatusCode)
	}
}

func TestServer_ReportJSON(t *testing.T) {
	srv := NewServer(nil)
	srv.SetPayload(NewPayload(
		testSnapshot(probe.Degraded(probe.SubsystemDatabase, "heizung-daten", "expected bucket missing")),
		[]remedy.Action{{Kind: remedy.KindCreateBucket, Target: "heizung-daten", Tier: remedy.TierConfiguration}},
	))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/report")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Report.Overall != "degraded" {
		t.Errorf("overall = %q, want degraded", payload.Report.Overall)
	}
	if len(payload.Plan) != 1 || payload.Plan[0].Kind != "create_bucket" {
		t.Errorf("plan = %+v, want one create_bucket action", payload.Plan)
	}
}

func TestServer_ReportGuarded(t *testing.T) {
	const secret = "test-secret"
	srv := NewServer(NewVerifier(secret))
	srv.SetPayload(NewPayload(testSnapshot(), nil))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/report")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated report = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/report", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "operator"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated report = %d, want 200", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", "operator"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong-key report = %d, want 401", resp.StatusCode)
	}

	// Liveness stays open regardless of auth.
	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d, want 200", resp.StatusCode)
	}
}

func TestVerifier_Subject(t *testing.T) {
	v := NewVerifier("secret")

	req, _ := http.NewRequest(http.MethodGet, "/report", nil)
	if _, err := v.Subject(req); err == nil {
		t.Error("Subject() without header should fail")
	}

	req.Header.Set("Authorization", "Bearer "+signTokenRaw("secret", "operator"))
	sub, err := v.Subject(req)
	if err != nil {
		t.Fatalf("Subject() error = %v", err)
	}
	if sub != "operator" {
		t.Errorf("subject = %q, want operator", sub)
	}
}

func signTokenRaw(secret, subject string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := token.SignedString([]byte(secret))
	return signed
}
