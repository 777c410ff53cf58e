package tracekit

// NoErrorMessage replaces the empty message of internal engine exceptions.
const NoErrorMessage = "No error message"

// blankMessageNames lists the internal exception names whose empty message is
// replaced. Membership is explicit: an ordinary Error with an empty message
// keeps it.
var blankMessageNames = map[string]struct{}{
	"NS_ERROR_FAILURE":                {},
	"NS_ERROR_ABORT":                  {},
	"NS_ERROR_UNEXPECTED":             {},
	"NS_ERROR_OUT_OF_MEMORY":          {},
	"NS_ERROR_INVALID_ARG":            {},
	"NS_ERROR_NULL_POINTER":           {},
	"NS_ERROR_ILLEGAL_VALUE":          {},
	"NS_ERROR_NOT_IMPLEMENTED":        {},
	"NS_ERROR_NOT_AVAILABLE":          {},
	"NS_ERROR_NOT_INITIALIZED":        {},
	"NS_ERROR_ALREADY_INITIALIZED":    {},
	"NS_ERROR_NO_INTERFACE":           {},
	"NS_ERROR_FACTORY_NOT_REGISTERED": {},
	"NS_ERROR_FILE_NOT_FOUND":         {},
	"NS_ERROR_FILE_CORRUPTED":         {},
	"NS_ERROR_DOM_BAD_URI":            {},
	"NS_ERROR_DOM_SECURITY_ERR":       {},
	"NS_ERROR_STORAGE_BUSY":           {},
	"NS_ERROR_NET_INTERRUPT":          {},
	"NS_ERROR_XPC_BAD_CONVERT_JS":     {},
	"InternalError":                   {},
	"Exception":                       {},
}

// HasBlankMessageOverride reports whether an empty message under this name is
// replaced with NoErrorMessage.
func HasBlankMessageOverride(name string) bool {
	_, ok := blankMessageNames[name]
	return ok
}

func normalizeMessage(name, message string) string {
	if message == "" && HasBlankMessageOverride(name) {
		return NoErrorMessage
	}
	return message
}

// assemble finalizes the frames: labels unnamed functions and enforces that a
// column never appears without a line.
func assemble(ex ErrorLike, frames []Frame) StackTrace {
	stack := make([]Frame, 0, len(frames))
	for _, f := range frames {
		if f.Function == "" {
			f.Function = UnknownFunction
		}
		if f.Lineno <= 0 {
			f.Lineno, f.Colno = 0, 0
		}
		if f.Colno < 0 {
			f.Colno = 0
		}
		stack = append(stack, f)
	}
	return StackTrace{
		Name:    ex.Name,
		Message: normalizeMessage(ex.Name, ex.Message),
		Stack:   stack,
	}
}
