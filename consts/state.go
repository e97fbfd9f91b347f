package consts

const (
	// Code generation
	Gen_Generating   = "generating"
	Gen_Validating   = "validating"
	Gen_FixingErrors = "fixing_errors"
	Gen_Completed    = "completed"
	Gen_Failed       = "failed"
)

const (
	// Fix history error kinds
	ErrorKind_Validation = "validation"
	ErrorKind_Exception  = "exception"
)

const (
	// Local run history
	Run_Streaming = "streaming"
	Run_Done      = "done"
	Run_Error     = "error"
)
