package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestSecretString_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input SecretString
		want  string
	}{
		{"empty string", "", "null"},
		{"non-empty string", "my-secret-password", `"` + SecretStringValue + `"`},
		{"short string", "x", `"` + SecretStringValue + `"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.input.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSecretString_YAML(t *testing.T) {
	type holder struct {
		Token SecretString `yaml:"token,omitempty"`
		Name  string       `yaml:"name"`
	}

	data, err := yaml.Marshal(holder{Token: "hunter2", Name: "n"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("secret leaked into YAML: %s", data)
	}
	if !strings.Contains(string(data), SecretStringValue) {
		t.Errorf("mask missing from YAML: %s", data)
	}

	data, err = yaml.Marshal(holder{Name: "n"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "token") {
		t.Errorf("empty secret must be omitted: %s", data)
	}

	var h holder
	if err := yaml.Unmarshal([]byte("token: abc\nname: x\n"), &h); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if h.Token.Reveal() != "abc" {
		t.Errorf("Reveal() = %q, want abc", h.Token.Reveal())
	}
}

func TestSecretString_NoLeakage(t *testing.T) {
	s := SecretString("super-secret")
	type wrapper struct {
		S SecretString `json:"s"`
	}
	data, err := json.Marshal(wrapper{S: s})
	if err != nil {
		t.Fatal(err)
	}
	for _, out := range []string{string(data), fmt.Sprintf("%v", s), s.String()} {
		if strings.Contains(out, "super-secret") {
			t.Errorf("secret leaked: %s", out)
		}
	}
}

func TestSecretString_Matches(t *testing.T) {
	s := SecretString("token")
	if !s.Matches("token") {
		t.Error("Matches() = false for equal value")
	}
	if s.Matches("Token") || s.Matches("") || s.Matches("token2") {
		t.Error("Matches() = true for different value")
	}
}
