package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/supplierhub/supplierhub/internal/jobs"
)

func TestNotificationJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Confirmation emails finish fast and mostly succeed.
	for i := 0; i < 60; i++ {
		tracker := metrics.Track("supplier:registered")
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending registered tracker: %v", err)
		}
	}

	// The digest reads every record and is slower, but stays within budget.
	for i := 0; i < 5; i++ {
		tracker := metrics.Track("supplier:digest")
		time.Sleep(20 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending digest tracker: %v", err)
		}
	}

	// A couple of SMTP failures must still be counted.
	for i := 0; i < 3; i++ {
		tracker := metrics.Track("supplier:registered")
		if err := tracker.End(errors.New("smtp: connection refused")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}
	metrics.EmailSent("registration")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "supplierhub_jobs_total", map[string]string{"job": "supplier:registered", "status": "success"})
	failure := metricValue(t, families, "supplierhub_jobs_total", map[string]string{"job": "supplier:registered", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no registered job executions recorded")
	}
	ratio := success / (success + failure)
	if ratio < 0.9 {
		t.Fatalf("registered job success ratio too low: %f", ratio)
	}
	if failures := metricValue(t, families, "supplierhub_jobs_failures_total", map[string]string{"job": "supplier:registered"}); failures != 3 {
		t.Fatalf("expected 3 recorded failures, got %f", failures)
	}
	if sent := metricValue(t, families, "supplierhub_emails_sent_total", map[string]string{"kind": "registration"}); sent != 1 {
		t.Fatalf("expected one sent email, got %f", sent)
	}

	digestDuration := histogramMean(t, families, "supplierhub_job_duration_seconds", map[string]string{"job": "supplier:digest"})
	if digestDuration > 2.0 {
		t.Fatalf("digest duration above budget: %f", digestDuration)
	}

	registeredDuration := histogramMean(t, families, "supplierhub_job_duration_seconds", map[string]string{"job": "supplier:registered"})
	if registeredDuration > 0.5 {
		t.Fatalf("registered duration above budget: %f", registeredDuration)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
