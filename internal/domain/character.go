package domain

import "time"

// Character is a user-supplied reference image used to keep a recurring
// character visually consistent across generated illustrations. Characters
// live in a user-scoped library independent of any single story.
type Character struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     []byte    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolveCharacter picks the reference image for a page binding against the
// current library. The default binding is the first character in the library
// today, whatever the library looked like at generation time.
func ResolveCharacter(binding CharacterBinding, library []Character) *Character {
	switch binding.Mode {
	case BindNone:
		return nil
	case BindCustom:
		for i := range library {
			if library[i].ID == binding.CharacterID {
				return &library[i]
			}
		}
		return nil
	default:
		if len(library) == 0 {
			return nil
		}
		return &library[0]
	}
}
