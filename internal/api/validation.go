package api

import (
	"context"

	"github.com/dyike/QuantDesk/models"
)

type codeBody struct {
	Code string `json:"code"`
}

// ValidateSchema checks a strategy JSON document against the backend schema.
func (c *Client) ValidateSchema(ctx context.Context, schema map[string]any) (*models.ValidationResult, error) {
	var res models.ValidationResult
	if err := c.post(ctx, "/validation/schema/", schema, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ValidateCode runs the static safety check on generated code.
func (c *Client) ValidateCode(ctx context.Context, code string) (*models.ValidationResult, error) {
	var res models.ValidationResult
	if err := c.post(ctx, "/validation/code/", codeBody{Code: code}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ValidateSandbox executes code in the backend sandbox.
func (c *Client) ValidateSandbox(ctx context.Context, code string) (*models.ValidationResult, error) {
	var res models.ValidationResult
	if err := c.post(ctx, "/validation/sandbox/", codeBody{Code: code}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
