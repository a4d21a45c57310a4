package adapter

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_RegisterGetRemove(t *testing.T) {
	r := testRegistry(t)

	a, err := r.Get("alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Name() != "alpha" {
		t.Fatalf("Get returned wrong adapter: %s", a.Name())
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrAdapterNotFound) {
		t.Fatalf("Get missing: got %v want ErrAdapterNotFound", err)
	}

	r.Remove("alpha")
	if _, err := r.Get("alpha"); !errors.Is(err, ErrAdapterNotFound) {
		t.Fatalf("Get after Remove: got %v want ErrAdapterNotFound", err)
	}
}

func TestRegistry_RejectsUnnamedAdapter(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeAdapter{name: ""}); err == nil {
		t.Fatalf("Register accepted an unnamed adapter")
	}
	if err := r.Register(nil); err == nil {
		t.Fatalf("Register accepted nil")
	}
}

func TestRegistry_Disabled(t *testing.T) {
	r := testRegistry(t)
	if err := r.SetDisabled("alpha", true); err != nil {
		t.Fatalf("SetDisabled: %v", err)
	}
	if _, err := r.Get("alpha"); !errors.Is(err, ErrUnsupportedRepresentation) {
		t.Fatalf("Get disabled: got %v want ErrUnsupportedRepresentation", err)
	}
	if err := r.SetDisabled("alpha", false); err != nil {
		t.Fatalf("SetDisabled(false): %v", err)
	}
	if _, err := r.Get("alpha"); err != nil {
		t.Fatalf("Get re-enabled: %v", err)
	}
}

func TestRegistry_DefaultVersion(t *testing.T) {
	r := testRegistry(t)

	v, err := r.DefaultVersion("alpha")
	if err != nil || v != "1.0.0" {
		t.Fatalf("declared default: got %q, %v", v, err)
	}
	if err := r.SetDefaultVersion("alpha", "1.1.0"); err != nil {
		t.Fatalf("SetDefaultVersion: %v", err)
	}
	v, err = r.DefaultVersion("alpha")
	if err != nil || v != "1.1.0" {
		t.Fatalf("configured default: got %q, %v", v, err)
	}

	if _, err := r.DefaultVersion("missing"); !errors.Is(err, ErrAdapterNotFound) {
		t.Fatalf("DefaultVersion missing: got %v want ErrAdapterNotFound", err)
	}
	if err := r.SetDisabled("alpha", true); err != nil {
		t.Fatalf("SetDisabled: %v", err)
	}
	if _, err := r.DefaultVersion("alpha"); !errors.Is(err, ErrUnsupportedRepresentation) {
		t.Fatalf("DefaultVersion disabled: got %v want ErrUnsupportedRepresentation", err)
	}
}

func TestRegistry_Detect(t *testing.T) {
	r := testRegistry(t)
	_ = r.Register(&fakeAdapter{name: "beta", versions: []string{"1.0.0"}, defVersion: "1.0.0", detectKey: "beta_field"})

	a, ok := r.Detect(map[string]any{"beta_field": 1})
	if !ok || a.Name() != "beta" {
		t.Fatalf("Detect: got %v %v", a, ok)
	}
	if _, ok := r.Detect(map[string]any{"gamma_field": 1}); ok {
		t.Fatalf("Detect matched an unknown record")
	}
}

func TestRegistry_ConcurrentReadsAndWrites(t *testing.T) {
	r := testRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = r.Get("alpha")
				_ = r.List()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Register(&fakeAdapter{name: "churn", versions: []string{"1.0.0"}, defVersion: "1.0.0", detectKey: "x"})
				r.Remove("churn")
			}
		}()
	}
	wg.Wait()
}

func TestDecodeRecord(t *testing.T) {
	if _, err := DecodeRecord([]byte(`{"name":"Ada"}`)); err != nil {
		t.Fatalf("DecodeRecord object: %v", err)
	}
	for _, bad := range []string{`[1,2]`, `"string"`, `null`, `not json`} {
		if _, err := DecodeRecord([]byte(bad)); !errors.Is(err, ErrMalformedRecord) {
			t.Fatalf("DecodeRecord(%s): got %v want ErrMalformedRecord", bad, err)
		}
	}
}

func TestLoadConfig_ApplyAndValidate(t *testing.T) {
	cfg, err := LoadConfig([]byte(`
defaultStrategy: stable
representations:
  alpha:
    defaultVersion: "1.1.0"
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StrategyOrDefault() != StrategyStable {
		t.Fatalf("StrategyOrDefault: got %s", cfg.StrategyOrDefault())
	}

	r := testRegistry(t)
	if err := cfg.Apply(r); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	a, _ := r.Get("alpha")
	if got := r.defaultVersion(a); got != "1.1.0" {
		t.Fatalf("configured default: got %s want 1.1.0", got)
	}

	if _, err := LoadConfig([]byte("defaultStrategy: vibes\n")); err == nil {
		t.Fatalf("LoadConfig accepted an unknown strategy")
	}
	bad, err := LoadConfig([]byte("representations:\n  ghost:\n    defaultVersion: \"1.0.0\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := bad.Apply(r); !errors.Is(err, ErrAdapterNotFound) {
		t.Fatalf("Apply unknown representation: got %v want ErrAdapterNotFound", err)
	}
}

func TestTranslate(t *testing.T) {
	r := testRegistry(t)
	_ = r.Register(&fakeAdapter{name: "beta", versions: []string{"1.0.0"}, defVersion: "1.0.0", detectKey: "beta_field"})

	out, residue, err := r.Translate(map[string]any{"name": "Ada", "alpha_field": true, "extra": 1}, "alpha", "beta")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out["name"] != "Ada" {
		t.Fatalf("Translate lost the name: %v", out)
	}
	if _, ok := out["beta_field"]; !ok {
		t.Fatalf("Translate output is not in the target representation: %v", out)
	}
	if _, ok := residue["extra"]; !ok {
		t.Fatalf("Translate dropped residue: %v", residue)
	}

	if _, _, err := r.Translate(map[string]any{}, "alpha", "missing"); !errors.Is(err, ErrAdapterNotFound) {
		t.Fatalf("Translate unknown target: got %v want ErrAdapterNotFound", err)
	}
}
