package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/incidentlens/internal/model"
)

func TestBuildFilterRequest(t *testing.T) {
	req, err := buildFilterRequest(
		[]string{"Factory=Kazlu Ruda Board", "Category=incident"},
		[]string{"Date=2020-01-01.."},
		[]string{"summary"},
	)
	if err != nil {
		t.Fatalf("buildFilterRequest failed: %v", err)
	}

	want := model.FilterSet{
		{Column: "Factory", Criterion: model.TextCriterion("Kazlu Ruda Board")},
		{Column: "Category", Criterion: model.TextCriterion("incident")},
		{Column: "Date", Criterion: model.DateRangeCriterion("2020-01-01", "")},
	}
	if len(req.Filters) != len(want) {
		t.Fatalf("expected %d filters, got %d", len(want), len(req.Filters))
	}
	for i := range want {
		if req.Filters[i] != want[i] {
			t.Errorf("filter %d: expected %+v, got %+v", i, want[i], req.Filters[i])
		}
	}
	if len(req.Analysis) != 1 || req.Analysis[0] != model.AnalysisSummary {
		t.Errorf("unexpected analysis %v", req.Analysis)
	}
}

func TestBuildFilterRequest_NoAnalysis(t *testing.T) {
	req, err := buildFilterRequest(nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if req.Analysis == nil || len(req.Analysis) != 0 {
		t.Errorf("expected explicit empty analysis, got %#v", req.Analysis)
	}
}

func TestBuildFilterRequest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		where []string
		dates []string
	}{
		{"where without =", []string{"Factory"}, nil},
		{"where without column", []string{"=x"}, nil},
		{"date without range", nil, []string{"Date=2020-01-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildFilterRequest(tt.where, tt.dates, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSetDefaults_EnvOverride(t *testing.T) {
	v := viper.New()
	if err := setDefaults(v, model.DefaultConfig()); err != nil {
		t.Fatalf("setDefaults failed: %v", err)
	}
	v.SetEnvPrefix("INCIDENTLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	t.Setenv("INCIDENTLENS_DATASET_PATH", "/tmp/incidents.csv")
	t.Setenv("INCIDENTLENS_FILTER_DEFAULT_THRESHOLD", "75")
	t.Setenv("INCIDENTLENS_LLM_API_KEY", "sk-test")

	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if cfg.Dataset.Path != "/tmp/incidents.csv" {
		t.Errorf("expected dataset path from env, got %s", cfg.Dataset.Path)
	}
	if cfg.Filter.DefaultThreshold != 75 {
		t.Errorf("expected threshold 75, got %v", cfg.Filter.DefaultThreshold)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected API key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected default addr, got %s", cfg.Server.Addr)
	}
	if got := cfg.Filter.Synonyms["lavatory"]; len(got) == 0 {
		t.Error("expected default synonyms to survive")
	}
}

func TestDecodeConfig_SynonymsReplaceDefaults(t *testing.T) {
	newViper := func(t *testing.T, file string) *viper.Viper {
		t.Helper()
		v := viper.New()
		if err := setDefaults(v, model.DefaultConfig()); err != nil {
			t.Fatalf("setDefaults failed: %v", err)
		}
		if file != "" {
			v.SetConfigType("yaml")
			if err := v.ReadConfig(strings.NewReader(file)); err != nil {
				t.Fatalf("ReadConfig failed: %v", err)
			}
		}
		return v
	}

	cfg, err := decodeConfig(newViper(t, ""))
	if err != nil {
		t.Fatalf("decodeConfig failed: %v", err)
	}
	if len(cfg.Filter.Synonyms["lavatory"]) == 0 {
		t.Errorf("expected built-in synonyms without a config file, got %v", cfg.Filter.Synonyms)
	}

	cfg, err = decodeConfig(newViper(t, "filter:\n  synonyms:\n    forklift: [\"fork lift\", loader]\n"))
	if err != nil {
		t.Fatalf("decodeConfig failed: %v", err)
	}
	if _, ok := cfg.Filter.Synonyms["lavatory"]; ok {
		t.Errorf("config file synonyms should replace the defaults, got %v", cfg.Filter.Synonyms)
	}
	if got := cfg.Filter.Synonyms["forklift"]; len(got) != 2 || got[0] != "fork lift" {
		t.Errorf("unexpected forklift synonyms: %v", got)
	}
	if cfg.Filter.DefaultThreshold != 60 {
		t.Errorf("other filter defaults should survive, got threshold %v", cfg.Filter.DefaultThreshold)
	}
}

func TestApplyEnvKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	tests := []struct {
		provider string
		check    func(cfg *model.Config) bool
	}{
		{"openai", func(cfg *model.Config) bool { return cfg.LLM.APIKey == "sk-openai" }},
		{"anthropic", func(cfg *model.Config) bool { return cfg.LLM.APIKey == "sk-ant" }},
		{"claude", func(cfg *model.Config) bool { return cfg.LLM.APIKey == "sk-ant" }},
		{"ollama", func(cfg *model.Config) bool { return cfg.LLM.BaseURL == "http://ollama:11434" }},
	}

	for _, tt := range tests {
		cfg := model.DefaultConfig()
		cfg.LLM.Provider = tt.provider
		applyEnvKeys(cfg)
		if !tt.check(cfg) {
			t.Errorf("%s: env fallback not applied: %+v", tt.provider, cfg.LLM)
		}
	}

	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "from-config"
	applyEnvKeys(cfg)
	if cfg.LLM.APIKey != "from-config" {
		t.Error("configured key must win over env")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("unexpected addr %q", cfg.Server.Addr)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("sk-1234567890abcd"); got != "sk-1****abcd" {
		t.Errorf("unexpected mask %q", got)
	}
	if got := maskKey("short"); got != "****" {
		t.Errorf("unexpected mask %q", got)
	}
}
