package domain

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestSetTextClearsAudioWhenNarrationChanges(t *testing.T) {
	page := Page{
		Number:    1,
		Text:      "A cloud drifts by.",
		Narration: "High above the hills, a lonely cloud drifts by.",
	}
	page.Audio = page.Audio.MarkReady([]byte{0x01, 0x02})

	page.SetText("A cloud drifts by.", "High above the valley, a lonely cloud drifts by.")
	if !page.Audio.Empty() {
		t.Fatalf("audio should be cleared after narration change, phase=%s", page.Audio.Phase)
	}
}

func TestSetTextKeepsAudioWhenNarrationIdentical(t *testing.T) {
	page := Page{
		Number:    1,
		Text:      "A cloud drifts by.",
		Narration: "High above the hills, a lonely cloud drifts by.",
	}
	payload := []byte{0x01, 0x02, 0x03}
	page.Audio = page.Audio.MarkReady(payload)

	page.SetText("A small cloud drifts by.", "High above the hills, a lonely cloud drifts by.")
	if !page.Audio.Ready() {
		t.Fatalf("audio should survive an identical narration script")
	}
	if !bytes.Equal(page.Audio.Payload, payload) {
		t.Fatalf("audio payload changed: %v", page.Audio.Payload)
	}
}

func TestNarrationScriptFallsBackToDisplayText(t *testing.T) {
	page := Page{Text: "The end.", Narration: "  "}
	if got := page.NarrationScript(); got != "The end." {
		t.Fatalf("narration script = %q, want display text", got)
	}
}

func TestAxisStateJSONRoundTrip(t *testing.T) {
	payload := []byte{0xff, 0x00, 0x7f, 0x80}
	page := Page{Number: 3, Text: "hello"}
	page.Image = page.Image.MarkReady(payload)
	page.Audio = page.Audio.MarkInProgress()

	raw, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("marshal page: %v", err)
	}
	var restored Page
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if !restored.Image.Ready() {
		t.Fatalf("image phase = %s, want ready", restored.Image.Phase)
	}
	if !bytes.Equal(restored.Image.Payload, payload) {
		t.Fatalf("image payload not byte-identical after round trip")
	}
	// In-progress is transient and must not survive a reload.
	if !restored.Audio.Empty() {
		t.Fatalf("audio phase = %s, want empty", restored.Audio.Phase)
	}
}

func TestAxisStateFailedNotPersisted(t *testing.T) {
	state := AxisState{}.MarkFailed("quota exceeded")
	raw, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored AxisState
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !restored.Empty() {
		t.Fatalf("failed state should reload as empty, got %s", restored.Phase)
	}
}

func TestResolveCharacterBindings(t *testing.T) {
	library := []Character{
		{ID: "a", Name: "Ava"},
		{ID: "b", Name: "Bo"},
	}

	if got := ResolveCharacter(CharacterBinding{}, library); got == nil || got.ID != "a" {
		t.Fatalf("default binding should pick first character, got %+v", got)
	}
	if got := ResolveCharacter(CharacterBinding{Mode: BindNone}, library); got != nil {
		t.Fatalf("none binding should resolve to nil, got %+v", got)
	}
	if got := ResolveCharacter(CharacterBinding{Mode: BindCustom, CharacterID: "b"}, library); got == nil || got.ID != "b" {
		t.Fatalf("custom binding should pick character b, got %+v", got)
	}
	// A deleted character falls back to no reference rather than a stale one.
	if got := ResolveCharacter(CharacterBinding{Mode: BindCustom, CharacterID: "gone"}, library); got != nil {
		t.Fatalf("missing custom binding should resolve to nil, got %+v", got)
	}
	if got := ResolveCharacter(CharacterBinding{}, nil); got != nil {
		t.Fatalf("default binding with empty library should resolve to nil")
	}
}
