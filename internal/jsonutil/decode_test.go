package jsonutil

import (
	"errors"
	"testing"
)

type segment struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "jsonFence", input: "```json\n[1, 2]\n```", want: "[1, 2]"},
		{name: "bareFence", input: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "proseAround", input: "Here you go:\n```json\n{}\n```\nEnjoy!", want: "{}"},
		{name: "noFence", input: "  {\"a\": 1}  ", want: `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.input); got != tt.want {
				t.Errorf("StripFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "object", input: `sure {"a": {"b": 1}} done`, want: `{"a": {"b": 1}}`},
		{name: "arrayFirst", input: `[{"a": 1}] trailing`, want: `[{"a": 1}]`},
		{name: "none", input: "no json here", wantErr: true},
		{name: "unterminated", input: `[{"a": 1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Extract() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	raw := "```json\n[{\"id\": 1, \"text\": \"castle\"}, {\"id\": 2, \"text\": \"siege\"}]\n```"

	got, err := Decode[[]segment](raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 2 || got[1].Text != "siege" {
		t.Errorf("Decode() = %+v", got)
	}

	if _, err := Decode[[]segment]("I could not do that."); !errors.Is(err, ErrNoJSON) {
		t.Errorf("Decode() error = %v, want ErrNoJSON", err)
	}
	if _, err := Decode[[]segment](`[{"id": "one"}]`); err == nil {
		t.Error("Decode() accepted mistyped field")
	}
}
