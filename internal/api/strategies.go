package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dyike/QuantDesk/models"
)

func strategyPath(id int64) string {
	return fmt.Sprintf("/strategies/%d/", id)
}

func (c *Client) ListStrategies(ctx context.Context) ([]models.Strategy, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/strategies/", &raw); err != nil {
		return nil, err
	}
	return decodeList[models.Strategy](raw)
}

func (c *Client) GetStrategy(ctx context.Context, id int64) (*models.Strategy, error) {
	var s models.Strategy
	if err := c.get(ctx, strategyPath(id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) CreateStrategy(ctx context.Context, in models.StrategyInput) (*models.Strategy, error) {
	var s models.Strategy
	if err := c.post(ctx, "/strategies/", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdateStrategy(ctx context.Context, id int64, in models.StrategyInput) (*models.Strategy, error) {
	var s models.Strategy
	if err := c.send(ctx, http.MethodPut, strategyPath(id), in, &s, true); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DeleteStrategy(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, strategyPath(id), nil, nil, true)
}

// ValidateStrategy checks a strategy definition before it is saved.
func (c *Client) ValidateStrategy(ctx context.Context, in models.StrategyInput) (*models.ValidationResult, error) {
	var res models.ValidationResult
	if err := c.post(ctx, "/strategies/validate/", in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GenerateExecutableCode(ctx context.Context, req models.GenerateRequest) (*models.GeneratedCode, error) {
	var out models.GeneratedCode
	if err := c.post(ctx, "/strategies/generate_executable_code/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateWithAutoFix runs the whole generate/validate/fix loop on the server.
func (c *Client) GenerateWithAutoFix(ctx context.Context, req models.GenerateRequest, maxAttempts int) (*models.GenerationOutcome, error) {
	body := struct {
		models.GenerateRequest
		MaxFixAttempts int `json:"max_fix_attempts"`
	}{req, maxAttempts}

	var out models.GenerationOutcome
	if err := c.post(ctx, "/strategies/generate_with_auto_fix/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FixErrors(ctx context.Context, req models.FixRequest) (*models.FixResult, error) {
	var out models.FixResult
	if err := c.post(ctx, strategyPath(req.StrategyID)+"fix_errors/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
