package codegen

import (
	"context"
	"fmt"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/models"
)

// AutoFixBackend runs the whole loop server-side in a single call.
type AutoFixBackend interface {
	GenerateWithAutoFix(ctx context.Context, req models.GenerateRequest, maxAttempts int) (*models.GenerationOutcome, error)
}

// RunOnServer delegates the loop to the backend. Observers see the
// generating snapshot and then the final one.
func (c *Client) RunOnServer(ctx context.Context, backend AutoFixBackend, req models.GenerateRequest) (*models.GenerationOutcome, error) {
	p := models.CodeGenerationProgress{
		Status:             consts.Gen_Generating,
		CurrentStep:        "Generating with server-side auto-fix",
		ProgressPercentage: 10,
		MaxAttempts:        c.opts.MaxFixAttempts,
	}
	c.publish(p)

	out, err := backend.GenerateWithAutoFix(ctx, req, c.opts.MaxFixAttempts)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		out = &models.GenerationOutcome{
			Status:       consts.Gen_Failed,
			ErrorMessage: fmt.Sprintf("generate with auto-fix: %v", err),
		}
	}
	if out.Status == "" {
		out.Status = consts.Gen_Completed
		if out.Code == "" {
			out.Status = consts.Gen_Failed
		}
	}

	p.Status = out.Status
	p.CurrentAttempt = out.FixAttempts
	p.Attempts = out.FixHistory
	p.ErrorMessage = out.ErrorMessage
	if out.Status == consts.Gen_Completed {
		p.CurrentStep = "Code ready"
		p.ProgressPercentage = 100
	} else {
		p.CurrentStep = "Generation failed"
	}
	c.publish(p)
	return out, nil
}
