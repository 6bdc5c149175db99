package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.ScanTime != 10*time.Second {
		t.Errorf("ScanTime = %v, want 10s", c.ScanTime)
	}
	if c.Parallelism != 4 {
		t.Errorf("Parallelism = %d, want 4", c.Parallelism)
	}
	if len(c.Agents) != 0 {
		t.Errorf("Agents = %v, want empty", c.Agents)
	}
	if c.ReanalysisRatio != 0.6 {
		t.Errorf("ReanalysisRatio = %v, want 0.6", c.ReanalysisRatio)
	}
	if c.ClusterStep != 3 || c.ProxyMaxDelta != 3 {
		t.Errorf("ClusterStep/ProxyMaxDelta = %d/%d, want 3/3", c.ClusterStep, c.ProxyMaxDelta)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("HALBERD_SCANTIME", "30s")
	os.Setenv("HALBERD_PARALLELISM", "16")
	os.Setenv("HALBERD_AGENTS", "a:1,b:2, c:3 ,")
	os.Setenv("HALBERD_REANALYSIS_RATIO", "0.75")
	c := Load()
	if c.ScanTime != 30*time.Second {
		t.Errorf("ScanTime = %v, want 30s", c.ScanTime)
	}
	if c.Parallelism != 16 {
		t.Errorf("Parallelism = %d, want 16", c.Parallelism)
	}
	want := []string{"a:1", "b:2", "c:3"}
	if len(c.Agents) != len(want) {
		t.Fatalf("Agents = %v, want %v", c.Agents, want)
	}
	for i := range want {
		if c.Agents[i] != want[i] {
			t.Errorf("Agents[%d] = %q, want %q", i, c.Agents[i], want[i])
		}
	}
	if c.ReanalysisRatio != 0.75 {
		t.Errorf("ReanalysisRatio = %v, want 0.75", c.ReanalysisRatio)
	}
}

func TestLoad_InvalidValuesFallBackToDefault(t *testing.T) {
	os.Clearenv()
	os.Setenv("HALBERD_SCANTIME", "not-a-duration")
	os.Setenv("HALBERD_PARALLELISM", "not-a-number")
	c := Load()
	if c.ScanTime != 10*time.Second {
		t.Errorf("ScanTime = %v, want default 10s", c.ScanTime)
	}
	if c.Parallelism != 4 {
		t.Errorf("Parallelism = %d, want default 4", c.Parallelism)
	}
}
