package credential

import (
	"errors"
	"testing"
)

func mapLookup(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	env := mapLookup(map[string]string{
		"KEY_1": "sk-first",
		"KEY_2": " sk-second ",
	})

	creds, err := FromEnv([]string{"KEY_1", "KEY_2"}, env)
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if len(creds) != 2 || creds[0] != "sk-first" || creds[1] != "sk-second" {
		t.Errorf("Unexpected credentials: %v", creds)
	}
}

func TestFromEnv_MissingNamesVariable(t *testing.T) {
	env := mapLookup(map[string]string{"KEY_1": "sk-first"})

	_, err := FromEnv([]string{"KEY_1", "KEY_2"}, env)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected *ConfigurationError, got %v", err)
	}
	if cfgErr.Source != "KEY_2" {
		t.Errorf("Expected source KEY_2, got %s", cfgErr.Source)
	}
}

func TestLoad_DefaultNames(t *testing.T) {
	env := mapLookup(map[string]string{
		"OPENAI_API_KEY_1": "sk-one-1234",
		"OPENAI_API_KEY_2": "sk-two-5678",
	})

	p, err := Load(Source{MinCount: 2}, env)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Size() != 2 {
		t.Errorf("Expected 2 credentials, got %d", p.Size())
	}
	if p.Current() != "sk-one-1234" {
		t.Errorf("Expected first key active, got %s", p.Current())
	}
}

func TestLoad_KeysBeforeEnv(t *testing.T) {
	env := mapLookup(map[string]string{"EXTRA": "sk-env"})

	p, err := Load(Source{Keys: []string{"sk-literal"}, EnvNames: []string{"EXTRA"}}, env)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Current() != "sk-literal" {
		t.Errorf("Expected literal key first, got %s", p.Current())
	}
	if p.Advance() != "sk-env" {
		t.Error("Expected env key second")
	}
}

func TestLoad_BelowMinimum(t *testing.T) {
	_, err := Load(Source{Keys: []string{"sk-only"}, MinCount: 2}, mapLookup(nil))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
}

func TestLoad_EmptyLiteralKey(t *testing.T) {
	// An unset ${VAR} in the YAML expands to an empty string.
	_, err := Load(Source{Keys: []string{"sk-a", ""}}, mapLookup(nil))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
}
