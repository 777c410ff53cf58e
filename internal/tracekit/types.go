package tracekit

// ErrorLike is the error record handed over by a script engine.
// Only Name, Message and Stack drive the result; the remaining fields are
// informational, except ColumnNumber which SpiderMonkey uses for its top frame.
type ErrorLike struct {
	Name    string `json:"name,omitempty" msgpack:"name,omitempty"`
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
	// Raw multi-line stack text exactly as the engine rendered it
	Stack        string `json:"stack,omitempty" msgpack:"stack,omitempty"`
	FileName     string `json:"fileName,omitempty" msgpack:"fileName,omitempty"`
	LineNumber   *int   `json:"lineNumber,omitempty" msgpack:"lineNumber,omitempty"`
	ColumnNumber *int   `json:"columnNumber,omitempty" msgpack:"columnNumber,omitempty"`
	// Chakra copies the message here
	Description string `json:"description,omitempty" msgpack:"description,omitempty"`
	// Engine-specific error code
	Number    *int64 `json:"number,omitempty" msgpack:"number,omitempty"`
	Arguments []any  `json:"arguments,omitempty" msgpack:"arguments,omitempty"`
}

// Frame is one canonical call site.
// Lineno and Colno are 1-based; zero means the engine did not report them.
type Frame struct {
	Filename string `json:"filename" msgpack:"filename"`
	Function string `json:"function" msgpack:"function"`
	Lineno   int    `json:"lineno,omitempty" msgpack:"lineno,omitempty"`
	Colno    int    `json:"colno,omitempty" msgpack:"colno,omitempty"`
}

// StackTrace is the engine-independent result of ComputeStackTrace.
// Stack[0] is the innermost call.
type StackTrace struct {
	Name    string  `json:"name" msgpack:"name"`
	Message string  `json:"message" msgpack:"message"`
	Stack   []Frame `json:"stack" msgpack:"stack"`
}

// Sentinel filenames for frames without a source file.
const (
	FilenameNative     = "native"
	FilenameNativeCode = "native code"
	FilenameEvalCode   = "eval code"
	FilenameAnonymous  = "<anonymous>"
)

// UnknownFunction labels frames whose engine did not name the function.
const UnknownFunction = "?"

// EvalFunction labels anonymous evaluated-code frames.
const EvalFunction = "eval"
