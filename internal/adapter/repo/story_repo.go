package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/sqlinline"
)

// StoryRepositoryPG implements domain.StoryRepository using PostgreSQL.
// Pages are stored as one JSONB document per story; the codec on
// domain.AxisState keeps transient phases out of the persisted form.
type StoryRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewStoryRepository constructs a new story repository instance.
func NewStoryRepository(sql infra.SQLExecutor) *StoryRepositoryPG {
	return &StoryRepositoryPG{sql: sql}
}

func (r *StoryRepositoryPG) Put(ctx context.Context, story *domain.Story) error {
	pages, err := json.Marshal(story.Pages)
	if err != nil {
		return fmt.Errorf("encode pages: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QUpsertStory,
		story.ID, story.CreatedAt, story.Title, story.Lesson,
		story.Theme, story.Language, story.CharacterIDs, pages)
	return err
}

func (r *StoryRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QGetStoryByID, id)
	story, err := scanStory(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return story, nil
}

func (r *StoryRepositoryPG) List(ctx context.Context) ([]domain.Story, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, *story)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *StoryRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteStory, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*domain.Story, error) {
	var story domain.Story
	var pages []byte
	if err := row.Scan(&story.ID, &story.CreatedAt, &story.Title, &story.Lesson,
		&story.Theme, &story.Language, &story.CharacterIDs, &pages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pages, &story.Pages); err != nil {
		return nil, fmt.Errorf("decode pages: %w", err)
	}
	return &story, nil
}

var _ domain.StoryRepository = (*StoryRepositoryPG)(nil)
