package models

import "time"

// FixAttempt is one entry of the auto-fix history.
type FixAttempt struct {
	Attempt   int       `json:"attempt"`
	Success   bool      `json:"success"`
	ErrorKind string    `json:"error_kind,omitempty"` // validation | exception
	Errors    []string  `json:"errors,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CodeGenerationProgress is the full snapshot sent to progress observers.
type CodeGenerationProgress struct {
	Status             string       `json:"status"`
	CurrentStep        string       `json:"current_step"`
	ProgressPercentage int          `json:"progress_percentage"`
	CurrentAttempt     int          `json:"current_attempt"`
	MaxAttempts        int          `json:"max_attempts"`
	ErrorMessage       string       `json:"error_message,omitempty"`
	Attempts           []FixAttempt `json:"attempts"`
}

// GenerateRequest asks the backend to turn a strategy into executable code.
type GenerateRequest struct {
	StrategyID  int64    `json:"strategy_id,omitempty"`
	Description string   `json:"description,omitempty"`
	Indicators  []string `json:"indicators,omitempty"`
	Timeframe   string   `json:"timeframe,omitempty"`
}

// GeneratedCode is the response of generate_executable_code.
type GeneratedCode struct {
	StrategyID int64    `json:"strategy_id,omitempty"`
	Code       string   `json:"code"`
	Language   string   `json:"language,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ValidationResult is returned by every validation endpoint.
// Safe is only meaningful for code safety checks.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Safe     bool     `json:"safe"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// FixRequest asks the backend to repair code for one strategy.
type FixRequest struct {
	StrategyID int64    `json:"-"`
	Code       string   `json:"code"`
	Errors     []string `json:"errors"`
	Attempt    int      `json:"attempt"`
}

// FixResult is the response of the per-strategy fix_errors endpoint.
type FixResult struct {
	Success bool     `json:"success"`
	Code    string   `json:"code"`
	Errors  []string `json:"errors,omitempty"`
	Message string   `json:"message,omitempty"`
}

// GenerationOutcome is the final result of a generation session.
type GenerationOutcome struct {
	Status       string            `json:"status"`
	Code         string            `json:"code,omitempty"`
	FixAttempts  int               `json:"fix_attempts"`
	FixHistory   []FixAttempt      `json:"fix_history"`
	Validation   *ValidationResult `json:"validation,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}
