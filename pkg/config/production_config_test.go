package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validProductionYAML = `
name: gate
globalCap: 2
totalToProduce: 6
randomizeDelay: true
minDelay: 0.5
maxDelay: 1.5
lanes:
  - id: north
    spawn: {x: 100, y: 40, rotation: 1.57}
    pathTarget: {x: 100, y: 560}
  - id: south
    capAdjustment: -1
    spawn: {x: 300, y: 560}
templates:
  - id: grunt
    priority: 3
  - id: brute
    priority: 1
scheduler:
  warmPerTick: 4
unit:
  lifetime: 6
`

func TestParseProductionConfig(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		wantErr     bool
		errContains string
		validate    func(*testing.T, *ProductionConfig)
	}{
		{
			name:        "完整配置",
			yamlContent: validProductionYAML,
			validate: func(t *testing.T, cfg *ProductionConfig) {
				if cfg.Name != "gate" {
					t.Errorf("expected name gate, got %q", cfg.Name)
				}
				if cfg.GlobalCap != 2 {
					t.Errorf("expected globalCap = 2, got %d", cfg.GlobalCap)
				}
				if len(cfg.Lanes) != 2 {
					t.Fatalf("expected 2 lanes, got %d", len(cfg.Lanes))
				}
				if cfg.Lanes[0].PathTarget == nil || cfg.Lanes[0].PathTarget.Y != 560 {
					t.Errorf("expected north path target y = 560, got %+v", cfg.Lanes[0].PathTarget)
				}
				if cfg.Lanes[1].PathTarget != nil {
					t.Errorf("expected south lane without path target")
				}
				if cfg.Lanes[1].CapAdjustment != -1 {
					t.Errorf("expected south capAdjustment = -1, got %d", cfg.Lanes[1].CapAdjustment)
				}
				if cfg.Templates[0].Priority != 3 {
					t.Errorf("expected grunt priority 3, got %d", cfg.Templates[0].Priority)
				}
				if !cfg.WeightsEnabled() {
					t.Error("weights should default to enabled")
				}
				if cfg.EffectiveWarmPerTick() != 4 {
					t.Errorf("expected warmPerTick 4, got %d", cfg.EffectiveWarmPerTick())
				}
				if cfg.EffectiveTickInterval() != DefaultTickInterval {
					t.Errorf("expected default tick interval, got %f", cfg.EffectiveTickInterval())
				}
				if cfg.EffectiveUnitSpeed() != DefaultUnitSpeed {
					t.Errorf("expected default unit speed, got %f", cfg.EffectiveUnitSpeed())
				}
			},
		},
		{
			name: "关闭权重",
			yamlContent: `
globalCap: 1
useWeights: false
lanes: [{id: a}]
templates: [{id: t, priority: 0}]
`,
			validate: func(t *testing.T, cfg *ProductionConfig) {
				if cfg.WeightsEnabled() {
					t.Error("weights should be disabled")
				}
			},
		},
		{
			name: "缺少出生点",
			yamlContent: `
globalCap: 1
templates: [{id: t, priority: 1}]
`,
			wantErr:     true,
			errContains: "lanes cannot be empty",
		},
		{
			name: "缺少模板",
			yamlContent: `
globalCap: 1
lanes: [{id: a}]
`,
			wantErr:     true,
			errContains: "templates cannot be empty",
		},
		{
			name: "全局上限为零",
			yamlContent: `
globalCap: 0
lanes: [{id: a}]
templates: [{id: t, priority: 1}]
`,
			wantErr:     true,
			errContains: "globalCap must be >= 1",
		},
		{
			name: "重复出生点",
			yamlContent: `
globalCap: 1
lanes: [{id: a}, {id: a}]
templates: [{id: t, priority: 1}]
`,
			wantErr:     true,
			errContains: "duplicate lane id",
		},
		{
			name: "负优先级",
			yamlContent: `
globalCap: 1
lanes: [{id: a}]
templates: [{id: t, priority: -2}]
`,
			wantErr:     true,
			errContains: "template priority must be >= 0",
		},
		{
			name: "随机间隔上下界颠倒",
			yamlContent: `
globalCap: 1
randomizeDelay: true
minDelay: 2
maxDelay: 1
lanes: [{id: a}]
templates: [{id: t, priority: 1}]
`,
			wantErr:     true,
			errContains: "maxDelay",
		},
		{
			name:        "非法 YAML",
			yamlContent: "lanes: [",
			wantErr:     true,
			errContains: "failed to parse production config YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseProductionConfig([]byte(tt.yamlContent))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errContains)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error containing %q, got %q", tt.errContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadProductionConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "production.yaml")
	if err := os.WriteFile(path, []byte(validProductionYAML), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := LoadProductionConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TotalToProduce != 6 {
		t.Errorf("expected totalToProduce = 6, got %d", cfg.TotalToProduce)
	}

	if _, err := LoadProductionConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadBundledProductionConfigs(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "data", "production", "*.yaml"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected bundled production configs")
	}

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			cfg, err := LoadProductionConfig(file)
			if err != nil {
				t.Fatalf("bundled production config should load: %v", err)
			}
			if len(cfg.Lanes) == 0 || len(cfg.Templates) == 0 {
				t.Error("bundled production config should define lanes and templates")
			}
			want := strings.TrimSuffix(filepath.Base(file), ".yaml")
			if cfg.Name != want {
				t.Errorf("plan name %q should match file name %q", cfg.Name, want)
			}
		})
	}
}

func TestValidateProductionConfigNil(t *testing.T) {
	if err := ValidateProductionConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
