package inference

import (
	"context"
	"testing"

	"gometa/adapters/stats/estimators"
	"gometa/internal/config"
	"gometa/internal/testkit"
)

func TestQProfileCI_CoversTheEstimate(t *testing.T) {
	ds, err := testkit.ReferenceDataset()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}

	cfg := config.DefaultFitConfig()
	fit, err := estimators.NewRestrictedMaximumLikelihood(cfg).Fit(context.Background(), ds)
	if err != nil {
		t.Fatalf("REML fit: %v", err)
	}

	ci, err := QProfileCI(context.Background(), ds, fit, 0.05, cfg)
	if err != nil {
		t.Fatalf("QProfileCI failed: %v", err)
	}

	if ci.Lower < 0 {
		t.Errorf("lower bound %g below zero", ci.Lower)
	}
	if ci.Upper < ci.Lower {
		t.Errorf("upper %g below lower %g", ci.Upper, ci.Lower)
	}
	if fit.Tau2 < ci.Lower || fit.Tau2 > ci.Upper {
		t.Errorf("tau2 %g outside [%g, %g]", fit.Tau2, ci.Lower, ci.Upper)
	}
	if ci.Alpha != 0.05 {
		t.Errorf("alpha = %g", ci.Alpha)
	}
}

func TestQProfileCI_WiderAtHigherConfidence(t *testing.T) {
	ds, err := testkit.ReferenceDataset()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	cfg := config.DefaultFitConfig()
	fit, err := estimators.NewRestrictedMaximumLikelihood(cfg).Fit(context.Background(), ds)
	if err != nil {
		t.Fatalf("REML fit: %v", err)
	}

	wide, err := QProfileCI(context.Background(), ds, fit, 0.01, cfg)
	if err != nil {
		t.Fatalf("alpha=0.01: %v", err)
	}
	narrow, err := QProfileCI(context.Background(), ds, fit, 0.10, cfg)
	if err != nil {
		t.Fatalf("alpha=0.10: %v", err)
	}

	if wide.Upper-wide.Lower <= narrow.Upper-narrow.Lower {
		t.Errorf("99%% interval [%g, %g] not wider than 90%% interval [%g, %g]",
			wide.Lower, wide.Upper, narrow.Lower, narrow.Upper)
	}
}

func TestQProfileCI_HomogeneousLowerBoundAtZero(t *testing.T) {
	ds, err := testkit.HomogeneousDataset(15, 0.2, 1.0, 9)
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	cfg := config.DefaultFitConfig()
	fit, err := estimators.NewRestrictedMaximumLikelihood(cfg).Fit(context.Background(), ds)
	if err != nil {
		t.Fatalf("REML fit: %v", err)
	}

	ci, err := QProfileCI(context.Background(), ds, fit, 0.05, cfg)
	if err != nil {
		t.Fatalf("QProfileCI failed: %v", err)
	}
	if ci.Lower != 0 {
		t.Errorf("lower = %g, want 0 for homogeneous data", ci.Lower)
	}
}

func TestQProfileCI_SampleSizeFallback(t *testing.T) {
	ds, err := testkit.SampleSizeDataset()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	cfg := config.DefaultFitConfig()
	fit, err := estimators.NewSampleSizeML(cfg).Fit(context.Background(), ds)
	if err != nil {
		t.Fatalf("sample-size fit: %v", err)
	}

	// No variances on the dataset: sigma2/n from the fit must stand in.
	ci, err := QProfileCI(context.Background(), ds, fit, 0.05, cfg)
	if err != nil {
		t.Fatalf("QProfileCI failed: %v", err)
	}
	if ci.Upper <= 0 {
		t.Errorf("upper = %g, want positive", ci.Upper)
	}
}

func TestQProfileCI_RejectsBadAlpha(t *testing.T) {
	ds, err := testkit.ReferenceDataset()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	cfg := config.DefaultFitConfig()
	fit, err := estimators.NewRestrictedMaximumLikelihood(cfg).Fit(context.Background(), ds)
	if err != nil {
		t.Fatalf("REML fit: %v", err)
	}

	for _, alpha := range []float64{0, 1, -0.1, 1.5} {
		if _, err := QProfileCI(context.Background(), ds, fit, alpha, cfg); err == nil {
			t.Errorf("alpha=%g: expected error", alpha)
		}
	}
}
