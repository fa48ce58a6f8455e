package domain

import (
	"strings"
	"time"
)

// Story is one generated storybook. Pages are kept dense and 1-based for the
// lifetime of the story; the persistence layer always writes the whole story.
type Story struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Lesson    string    `json:"lesson"`
	Theme     string    `json:"theme"`
	Language  string    `json:"language"`
	// CharacterIDs records which characters were available when the story
	// was generated.
	CharacterIDs []string `json:"character_ids,omitempty"`
	Pages        []Page   `json:"pages"`
}

// BindingMode selects the character reference used when illustrating a page.
type BindingMode string

const (
	// BindDefault resolves to the first character currently in the library.
	// The binding is recomputed live, not snapshotted.
	BindDefault BindingMode = "default"
	BindNone    BindingMode = "none"
	BindCustom  BindingMode = "custom"
)

// CharacterBinding pins a page to a character reference image.
type CharacterBinding struct {
	Mode        BindingMode `json:"mode,omitempty"`
	CharacterID string      `json:"character_id,omitempty"`
}

// Page is one unit of the story: the on-screen text, the longer narration
// script, the image prompt produced by the backend, and the two generated
// media axes.
type Page struct {
	Number      int    `json:"number"`
	Text        string `json:"text"`
	Narration   string `json:"narration,omitempty"`
	ImagePrompt string `json:"image_prompt"`

	Image AxisState `json:"image"`
	Audio AxisState `json:"audio"`

	Character CharacterBinding `json:"character,omitempty"`
}

// NarrationScript returns the text used for speech synthesis, falling back
// to the display text when no separate script exists.
func (p Page) NarrationScript() string {
	if strings.TrimSpace(p.Narration) != "" {
		return p.Narration
	}
	return p.Text
}

// WordCount counts whitespace-separated words of the narration script. The
// exporters use it to derive a duration for pages without audio.
func (p Page) WordCount() int {
	return len(strings.Fields(p.NarrationScript()))
}

// SetText updates display and narration text. When the narration script
// changes, the synthesized audio no longer matches it and is cleared so the
// next trigger regenerates it. An identical script leaves the audio alone.
func (p *Page) SetText(text, narration string) {
	before := p.NarrationScript()
	p.Text = text
	p.Narration = narration
	if p.NarrationScript() != before {
		p.Audio = p.Audio.Clear()
	}
}

// ClonePages copies the page slice. The copy is shallow over the axis
// payloads: payload slices are replaced wholesale, never mutated in place,
// so sharing them is safe. The controller mutates only fresh copies so
// readers always observe a consistent snapshot.
func ClonePages(pages []Page) []Page {
	out := make([]Page, len(pages))
	copy(out, pages)
	return out
}

// PageIndex bounds-checks a zero-based page index.
func (s *Story) PageIndex(i int) bool {
	return i >= 0 && i < len(s.Pages)
}
