package daemonrun

import (
	"context"
	"testing"

	"bisub/internal/logging"
	"bisub/internal/profiler"
	"bisub/internal/testsupport"
)

func TestBuildStagesWiresEveryStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	set := BuildStages(cfg, profiler.Profile{Device: profiler.DeviceCPU, Model: "base"}, store, logging.NewNop())

	for name, h := range map[string]any{
		"extractor":    set.Extractor,
		"recognizer":   set.Recognizer,
		"translator":   set.Translator,
		"synchronizer": set.Synchronizer,
		"muxer":        set.Muxer,
	} {
		if h == nil {
			t.Fatalf("%s not wired", name)
		}
	}
	if health := set.Synchronizer.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("synchronizer unhealthy: %+v", health)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error without config")
	}
}
