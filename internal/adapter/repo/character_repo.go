package repo

import (
	"context"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/sqlinline"
)

// CharacterRepositoryPG implements domain.CharacterRepository using
// PostgreSQL. Reference images are stored inline as bytea; the library is
// small by construction.
type CharacterRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCharacterRepository constructs a new character repository instance.
func NewCharacterRepository(sql infra.SQLExecutor) *CharacterRepositoryPG {
	return &CharacterRepositoryPG{sql: sql}
}

func (r *CharacterRepositoryPG) Put(ctx context.Context, c *domain.Character) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertCharacter, c.ID, c.CreatedAt, c.Name, c.Image)
	return err
}

func (r *CharacterRepositoryPG) List(ctx context.Context) ([]domain.Character, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListCharacters)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var characters []domain.Character
	for rows.Next() {
		var c domain.Character
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.Name, &c.Image); err != nil {
			return nil, err
		}
		characters = append(characters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return characters, nil
}

func (r *CharacterRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteCharacter, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.CharacterRepository = (*CharacterRepositoryPG)(nil)
