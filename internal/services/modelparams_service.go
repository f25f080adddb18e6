package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deepscout/internal/database"
	"deepscout/internal/models"
	"deepscout/pkg/settings"
)

// ErrNotFound is returned when a requested row does not exist for the account.
var ErrNotFound = errors.New("not found")

// ModelParamsService manages per-account, per-model generation parameters.
type ModelParamsService struct {
	db *database.DB
}

// NewModelParamsService creates the service.
func NewModelParamsService(db *database.DB) *ModelParamsService {
	return &ModelParamsService{db: db}
}

const modelParamsColumns = "user_id, model_id, temperature, max_tokens, top_p, frequency_penalty, created_at, updated_at"

func scanModelParams(row interface{ Scan(...any) error }) (*models.ModelParameters, error) {
	var p models.ModelParameters
	err := row.Scan(&p.UserID, &p.ModelID, &p.Temperature, &p.MaxTokens, &p.TopP, &p.FrequencyPenalty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListForAccount returns every configured model for the account.
func (s *ModelParamsService) ListForAccount(ctx context.Context, accountID string) ([]*models.ModelParameters, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+modelParamsColumns+" FROM model_parameters WHERE user_id = ? ORDER BY model_id", accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list model parameters: %w", err)
	}
	defer rows.Close()

	var out []*models.ModelParameters
	for rows.Next() {
		p, err := scanModelParams(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model parameters: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetForModel returns the account's parameters for one model.
func (s *ModelParamsService) GetForModel(ctx context.Context, accountID, modelID string) (*models.ModelParameters, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+modelParamsColumns+" FROM model_parameters WHERE user_id = ? AND model_id = ?", accountID, modelID)
	p, err := scanModelParams(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model parameters: %w", err)
	}
	return p, nil
}

// Upsert creates or partially updates the account's parameters for one
// model. Missing fields keep their previous values, or the defaults on first
// write.
func (s *ModelParamsService) Upsert(ctx context.Context, accountID, modelID string, req *models.UpdateModelParametersRequest) (*models.ModelParameters, error) {
	existing, err := s.GetForModel(ctx, accountID, modelID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	p := existing
	if p == nil {
		defaults := settings.DefaultModelParameters()
		p = &models.ModelParameters{
			UserID:           accountID,
			ModelID:          modelID,
			Temperature:      defaults.Temperature,
			MaxTokens:        defaults.MaxTokens,
			TopP:             defaults.TopP,
			FrequencyPenalty: defaults.FrequencyPenalty,
			CreatedAt:        now,
		}
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		p.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		p.TopP = *req.TopP
	}
	if req.FrequencyPenalty != nil {
		p.FrequencyPenalty = *req.FrequencyPenalty
	}
	p.UpdatedAt = now

	if existing != nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE model_parameters SET temperature = ?, max_tokens = ?, top_p = ?, frequency_penalty = ?, updated_at = ?
			 WHERE user_id = ? AND model_id = ?`,
			p.Temperature, p.MaxTokens, p.TopP, p.FrequencyPenalty, p.UpdatedAt, accountID, modelID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO model_parameters (`+modelParamsColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			accountID, modelID, p.Temperature, p.MaxTokens, p.TopP, p.FrequencyPenalty, p.CreatedAt, p.UpdatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store model parameters: %w", err)
	}
	return p, nil
}

// Delete removes the account's parameters for one model.
func (s *ModelParamsService) Delete(ctx context.Context, accountID, modelID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM model_parameters WHERE user_id = ? AND model_id = ?", accountID, modelID)
	if err != nil {
		return fmt.Errorf("failed to delete model parameters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
