// ABOUTME: Tests for tracing setup
// ABOUTME: Covers the no-op paths and a provider pointed at an unroutable collector

package telemetry

import (
	"context"
	"testing"
)

func TestSetup_NoopWhenDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{Enabled: false, Endpoint: "http://localhost:4318"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export actually happens.
	shutdown, err := Setup(context.Background(), Options{
		Enabled:     true,
		Endpoint:    "http://192.0.2.1:4318",
		ServiceName: "telemetry-test",
		SampleRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSampler(t *testing.T) {
	for _, ratio := range []float64{0, -1, 1, 2} {
		if got := sampler(ratio).Description(); got != "AlwaysOnSampler" {
			t.Errorf("sampler(%v) = %s, want AlwaysOnSampler", ratio, got)
		}
	}
	if got := sampler(0.25).Description(); got == "AlwaysOnSampler" {
		t.Errorf("sampler(0.25) should be ratio based, got %s", got)
	}
}
