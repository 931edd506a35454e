package config

const SourceFileExt = ".lm"

// Default resource budgets. Budgets are engine configuration, never
// language-visible controls.
const (
	DefaultMaxSteps     = 1_000_000 // interpreter steps per evaluation
	DefaultMaxPasses    = 32        // insertion fixpoint rounds
	DefaultWorkers      = 4         // concurrent call-site evaluations
	DefaultNetTimeoutMs = 30_000    // network host op timeout
)

// Intrinsic names. The resolver maps surface syntax to these; the
// interpreter dispatches on them.
const (
	IntrinsicTypeInfo  = "type_info"
	IntrinsicSizeOf    = "size_of"
	IntrinsicAlignOf   = "align_of"
	IntrinsicTypeName  = "type_name"
	IntrinsicInsert    = "insert"
	IntrinsicFileRead  = "file_read"
	IntrinsicFileWrite = "file_write"
	IntrinsicNetFetch  = "net_fetch"
	IntrinsicShellExec = "shell_exec"
	IntrinsicAssert    = "assert"
	IntrinsicPanic     = "panic"
)

// Reserved type identities. The type checker registers user types starting
// at FirstUserTypeID; the slots below are claimed by the engine for values
// its intrinsics construct.
const (
	TypeInfoTypeID    = 1 // struct returned by type_info
	ExecResultTypeID  = 2 // struct returned by shell_exec
	WriteResultTypeID = 3 // struct returned by file_write
	FirstUserTypeID   = 16
)
