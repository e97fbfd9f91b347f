// Package codegen drives the generate, validate and fix loop for strategy
// code and reports progress to observers.
package codegen

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/models"
)

// Backend is the subset of the REST API the loop needs.
type Backend interface {
	GenerateExecutableCode(ctx context.Context, req models.GenerateRequest) (*models.GeneratedCode, error)
	ValidateCode(ctx context.Context, code string) (*models.ValidationResult, error)
	FixErrors(ctx context.Context, req models.FixRequest) (*models.FixResult, error)
}

const DefaultMaxFixAttempts = 3

type Options struct {
	AutoFix        bool
	MaxFixAttempts int
}

// Observer receives a full progress snapshot on every transition.
type Observer func(models.CodeGenerationProgress)

type Client struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
	progress  models.CodeGenerationProgress
}

func NewClient(backend Backend, opts Options, logger *slog.Logger) *Client {
	if opts.MaxFixAttempts <= 0 {
		opts.MaxFixAttempts = DefaultMaxFixAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend:   backend,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		observers: make(map[int]Observer),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (c *Client) Subscribe(fn Observer) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Progress returns the latest snapshot.
func (c *Client) Progress() models.CodeGenerationProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyProgress(c.progress)
}

func copyProgress(p models.CodeGenerationProgress) models.CodeGenerationProgress {
	p.Attempts = append([]models.FixAttempt(nil), p.Attempts...)
	return p
}

// publish replaces the snapshot and calls every observer synchronously,
// in subscription order.
func (c *Client) publish(p models.CodeGenerationProgress) {
	c.mu.Lock()
	c.progress = copyProgress(p)
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]Observer, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.observers[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(copyProgress(p))
	}
}

func fixPercent(attempt, maxAttempts int) int {
	return 40 + 50*attempt/maxAttempts
}

// Run generates code for req and, when validation flags it unsafe and
// AutoFix is on, asks the backend to repair it up to MaxFixAttempts times.
// Backend failures end the run in the failed state; they are reported in
// the outcome, not as an error. The returned error is only non-nil when
// ctx is done.
func (c *Client) Run(ctx context.Context, req models.GenerateRequest) (*models.GenerationOutcome, error) {
	maxAttempts := c.opts.MaxFixAttempts
	p := models.CodeGenerationProgress{
		Status:             consts.Gen_Generating,
		CurrentStep:        "Generating strategy code",
		ProgressPercentage: 10,
		MaxAttempts:        maxAttempts,
	}
	c.publish(p)

	fail := func(msg string, validation *models.ValidationResult) *models.GenerationOutcome {
		p.Status = consts.Gen_Failed
		p.CurrentStep = "Generation failed"
		p.ErrorMessage = msg
		c.publish(p)
		c.logger.Warn("code generation failed", "strategy_id", req.StrategyID, "error", msg)
		return &models.GenerationOutcome{
			Status:       consts.Gen_Failed,
			FixAttempts:  p.CurrentAttempt,
			FixHistory:   p.Attempts,
			Validation:   validation,
			ErrorMessage: msg,
		}
	}

	gen, err := c.backend.GenerateExecutableCode(ctx, req)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return fail(fmt.Sprintf("generate code: %v", err), nil), nil
	}
	code := gen.Code

	p.Status = consts.Gen_Validating
	p.CurrentStep = "Validating generated code"
	p.ProgressPercentage = 40
	c.publish(p)

	validation, err := c.backend.ValidateCode(ctx, code)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return fail(fmt.Sprintf("validate code: %v", err), nil), nil
	}

	// validation is nil when the code was repaired, since the fixed code
	// was never re-validated client-side.
	complete := func(validation *models.ValidationResult) *models.GenerationOutcome {
		p.Status = consts.Gen_Completed
		p.CurrentStep = "Code ready"
		p.ProgressPercentage = 100
		p.ErrorMessage = ""
		c.publish(p)
		return &models.GenerationOutcome{
			Status:      consts.Gen_Completed,
			Code:        code,
			FixAttempts: p.CurrentAttempt,
			FixHistory:  p.Attempts,
			Validation:  validation,
		}
	}

	if validation.Safe {
		return complete(validation), nil
	}
	if !c.opts.AutoFix {
		return fail("generated code failed validation: "+joinErrors(validation.Errors), validation), nil
	}

	errs := validation.Errors
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p.Status = consts.Gen_FixingErrors
		p.CurrentAttempt = attempt
		p.CurrentStep = fmt.Sprintf("Fixing errors (attempt %d of %d)", attempt, maxAttempts)
		p.ProgressPercentage = fixPercent(attempt-1, maxAttempts)
		c.publish(p)

		res, err := c.backend.FixErrors(ctx, models.FixRequest{
			StrategyID: req.StrategyID,
			Code:       code,
			Errors:     errs,
			Attempt:    attempt,
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		entry := models.FixAttempt{Attempt: attempt, Timestamp: c.now()}
		switch {
		case err != nil:
			entry.ErrorKind = consts.ErrorKind_Exception
			entry.Message = err.Error()
			entry.Errors = []string{err.Error()}
		case res.Success:
			entry.Success = true
			entry.Message = res.Message
			code = res.Code
		default:
			entry.ErrorKind = consts.ErrorKind_Validation
			entry.Errors = res.Errors
			entry.Message = res.Message
			if res.Code != "" {
				code = res.Code
			}
			if len(res.Errors) > 0 {
				errs = res.Errors
			}
		}
		p.Attempts = append(p.Attempts, entry)
		p.ProgressPercentage = fixPercent(attempt, maxAttempts)

		if entry.Success {
			return complete(nil), nil
		}
		c.logger.Debug("fix attempt failed", "attempt", attempt, "max", maxAttempts, "kind", entry.ErrorKind)
	}

	return fail(fmt.Sprintf("code still invalid after %d fix attempts", maxAttempts), validation), nil
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return "no details"
	}
	return strings.Join(errs, "; ")
}
