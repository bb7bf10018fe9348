package llm

import (
	"testing"
)

func TestDecodeJSONReplyPlain(t *testing.T) {
	var out struct {
		Direction string `json:"direction"`
	}
	if err := decodeJSONReply(`{"direction":"UP"}`, &out); err != nil {
		t.Fatalf("plain JSON should decode: %v", err)
	}
	if out.Direction != "UP" {
		t.Fatalf("direction = %q, want UP", out.Direction)
	}
}

func TestDecodeJSONReplyFenced(t *testing.T) {
	raw := "Here is my forecast:\n```json\n{\"direction\": \"DOWN\"}\n```\nGood luck."
	var out struct {
		Direction string `json:"direction"`
	}
	if err := decodeJSONReply(raw, &out); err != nil {
		t.Fatalf("fenced JSON should decode: %v", err)
	}
	if out.Direction != "DOWN" {
		t.Fatalf("direction = %q, want DOWN", out.Direction)
	}
}

func TestDecodeJSONReplyInvalid(t *testing.T) {
	var out map[string]any
	if err := decodeJSONReply("the market will go up, trust me", &out); err == nil {
		t.Fatal("prose without JSON must fail to decode")
	}
}
