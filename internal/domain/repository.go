package domain

import "context"

// StoryRepository persists whole stories. Put overwrites the full record;
// there is no partial-page patching at the storage layer.
type StoryRepository interface {
	Put(ctx context.Context, story *Story) error
	GetByID(ctx context.Context, id string) (*Story, error)
	List(ctx context.Context) ([]Story, error)
	Delete(ctx context.Context, id string) error
}

// CharacterRepository persists the user's character library.
type CharacterRepository interface {
	Put(ctx context.Context, character *Character) error
	List(ctx context.Context) ([]Character, error)
	Delete(ctx context.Context, id string) error
}
