package bundb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"lesson-quiz-service/internal/domain"
)

// GetQuizWithQuestions loads a quiz with its questions in position order.
func (s *Store) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error) {
	var q quizRow
	err := s.db.NewSelect().Model(&q).Where("id = ?", quizID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("quiz %s: %w", quizID, domain.ErrQuizNotFound)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var questions []questionRow
	err = s.db.NewSelect().
		Model(&questions).
		Where("quiz_id = ?", quizID).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	return quizFromRows(q, questions)
}

// GetContent loads content with its video asset and quiz reference.
func (s *Store) GetContent(ctx context.Context, contentID string) (domain.Content, error) {
	var row contentRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", contentID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Content{}, fmt.Errorf("content %s: %w", contentID, domain.ErrContentNotFound)
	}
	if err != nil {
		return domain.Content{}, fmt.Errorf("get content: %w", err)
	}
	content := domain.Content{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Position:    row.Position,
		Active:      row.Active,
	}

	asset, err := s.GetVideoAsset(ctx, contentID)
	switch {
	case err == nil:
		content.Video = &asset
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Content{}, err
	}

	var quizIDs []string
	err = s.db.NewSelect().
		Table("quizzes").
		Column("id").
		Where("content_id = ?", contentID).
		Limit(1).
		Scan(ctx, &quizIDs)
	if err != nil {
		return domain.Content{}, fmt.Errorf("content quiz: %w", err)
	}
	if len(quizIDs) > 0 {
		content.QuizID = quizIDs[0]
	}
	return content, nil
}

// DefaultQuizID returns the active quiz of the first active content by position.
func (s *Store) DefaultQuizID(ctx context.Context) (string, error) {
	var ids []string
	err := s.db.NewSelect().
		TableExpr("quizzes AS q").
		Join("JOIN contents AS c ON c.id = q.content_id").
		ColumnExpr("q.id").
		Where("q.active = ?", true).
		Where("c.active = ?", true).
		OrderExpr("c.position ASC, c.id ASC").
		Limit(1).
		Scan(ctx, &ids)
	if err != nil {
		return "", fmt.Errorf("default quiz: %w", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("no active content: %w", domain.ErrQuizNotFound)
	}
	return ids[0], nil
}

func (s *Store) GetVideoAsset(ctx context.Context, contentID string) (domain.VideoAsset, error) {
	var row videoAssetRow
	err := s.db.NewSelect().Model(&row).Where("content_id = ?", contentID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VideoAsset{}, fmt.Errorf("content %s: %w", contentID, domain.ErrVideoNotFound)
	}
	if err != nil {
		return domain.VideoAsset{}, fmt.Errorf("get video asset: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindVideoAssetByMuxID(ctx context.Context, muxAssetID string) (domain.VideoAsset, error) {
	var row videoAssetRow
	err := s.db.NewSelect().Model(&row).Where("mux_asset_id = ?", muxAssetID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VideoAsset{}, fmt.Errorf("mux asset %s: %w", muxAssetID, domain.ErrVideoNotFound)
	}
	if err != nil {
		return domain.VideoAsset{}, fmt.Errorf("find video asset: %w", err)
	}
	return row.toDomain(), nil
}

// SaveVideoAsset upserts the asset of its content.
func (s *Store) SaveVideoAsset(ctx context.Context, asset domain.VideoAsset) error {
	row := videoAssetFromDomain(asset)
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (content_id) DO UPDATE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save video asset: %w", err)
	}
	return nil
}

// SeedResult counts what a seed wrote.
type SeedResult struct {
	Contents  int `json:"contents"`
	Quizzes   int `json:"quizzes"`
	Questions int `json:"questions"`
}

// Seed upserts a catalog dataset in one transaction. Questions of every seeded quiz are
// replaced and renumbered in dataset order.
func (s *Store) Seed(ctx context.Context, data domain.Dataset) (SeedResult, error) {
	for _, c := range data.Contents {
		if err := c.Validate(); err != nil {
			return SeedResult{}, err
		}
	}
	for _, q := range data.Quizzes {
		if err := q.Validate(); err != nil {
			return SeedResult{}, err
		}
	}

	var res SeedResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, c := range data.Contents {
			row := contentRow{
				ID:          c.ID,
				Title:       c.Title,
				Description: c.Description,
				Position:    c.Position,
				Active:      c.Active,
				CreatedAt:   s.now(),
			}
			_, err := tx.NewInsert().
				Model(&row).
				On("CONFLICT (id) DO UPDATE").
				Set("title = EXCLUDED.title").
				Set("description = EXCLUDED.description").
				Set("position = EXCLUDED.position").
				Set("active = EXCLUDED.active").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("seed content %s: %w", c.ID, err)
			}
			if c.Video != nil {
				asset := *c.Video
				asset.ContentID = c.ID
				va := videoAssetFromDomain(asset)
				if _, err := tx.NewInsert().Model(&va).On("CONFLICT (content_id) DO UPDATE").Exec(ctx); err != nil {
					return fmt.Errorf("seed video asset %s: %w", c.ID, err)
				}
			}
			res.Contents++
		}

		for _, q := range data.Quizzes {
			row := quizRow{
				ID:             q.ID,
				ContentID:      q.ContentID,
				Title:          q.Title,
				Description:    q.Description,
				PassingScore:   q.PassingScore,
				RewardCoins:    q.RewardCoins,
				Active:         q.Active,
				AnswerEncoding: string(q.Encoding()),
			}
			if _, err := tx.NewInsert().Model(&row).On("CONFLICT (id) DO UPDATE").Exec(ctx); err != nil {
				return fmt.Errorf("seed quiz %s: %w", q.ID, err)
			}
			if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("quiz_id = ?", q.ID).Exec(ctx); err != nil {
				return fmt.Errorf("clear questions of %s: %w", q.ID, err)
			}
			for i, question := range q.Questions {
				options, err := json.Marshal(question.Options)
				if err != nil {
					return err
				}
				qr := questionRow{
					ID:            question.ID,
					QuizID:        q.ID,
					Text:          question.Text,
					Options:       string(options),
					CorrectAnswer: question.CorrectAnswer,
					Position:      i,
				}
				if _, err := tx.NewInsert().Model(&qr).Exec(ctx); err != nil {
					return fmt.Errorf("seed question %s: %w", question.ID, err)
				}
				res.Questions++
			}
			res.Quizzes++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return res, nil
}
