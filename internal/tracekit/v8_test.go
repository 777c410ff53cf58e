package tracekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fr builds an expected frame; pos is optional line and column.
func fr(filename, function string, pos ...int) Frame {
	f := Frame{Filename: filename, Function: function}
	if len(pos) > 0 {
		f.Lineno = pos[0]
	}
	if len(pos) > 1 {
		f.Colno = pos[1]
	}
	return f
}

func TestComputeStackTrace_V8(t *testing.T) {
	tests := []struct {
		name string
		in   ErrorLike
		want StackTrace
	}{
		{
			name: "no location",
			in:   ErrorLike{Message: "foo", Name: "bar", Stack: "error\n at Array.forEach (native)"},
			want: StackTrace{Message: "foo", Name: "bar", Stack: []Frame{fr("native", "Array.forEach")}},
		},
		{
			name: "chrome 15",
			in: ErrorLike{
				Name:      "foo",
				Arguments: []any{"undef"},
				Message:   "Object #<Object> has no method 'undef'",
				Stack: "TypeError: Object #<Object> has no method 'undef'\n" +
					"    at bar (http://path/to/file.js:13:17)\n" +
					"    at bar (http://path/to/file.js:16:5)\n" +
					"    at foo (http://path/to/file.js:20:5)\n" +
					"    at http://path/to/file.js:24:4",
			},
			want: StackTrace{
				Message: "Object #<Object> has no method 'undef'",
				Name:    "foo",
				Stack: []Frame{
					fr("http://path/to/file.js", "bar", 13, 17),
					fr("http://path/to/file.js", "bar", 16, 5),
					fr("http://path/to/file.js", "foo", 20, 5),
					fr("http://path/to/file.js", "?", 24, 4),
				},
			},
		},
		{
			name: "chrome 36 with port numbers and alias",
			in: ErrorLike{
				Message: "Default error",
				Name:    "Error",
				Stack: "Error: Default error\n" +
					"    at dumpExceptionError (http://localhost:8080/file.js:41:27)\n" +
					"    at HTMLButtonElement.onclick (http://localhost:8080/file.js:107:146)\n" +
					"    at I.e.fn.(anonymous function) [as index] (http://localhost:8080/file.js:10:3651)",
			},
			want: StackTrace{
				Message: "Default error",
				Name:    "Error",
				Stack: []Frame{
					fr("http://localhost:8080/file.js", "dumpExceptionError", 41, 27),
					fr("http://localhost:8080/file.js", "HTMLButtonElement.onclick", 107, 146),
					fr("http://localhost:8080/file.js", "I.e.fn.(anonymous function) [as index]", 10, 3651),
				},
			},
		},
		{
			name: "webpack urls",
			in: ErrorLike{
				Message: "Cannot read property 'error' of undefined",
				Name:    "TypeError",
				Stack: "TypeError: Cannot read property 'error' of undefined\n" +
					"   at TESTTESTTEST.eval(webpack:///./src/components/test/test.jsx?:295:108)\n" +
					"   at TESTTESTTEST.render(webpack:///./src/components/test/test.jsx?:272:32)\n" +
					"   at TESTTESTTEST.tryRender(webpack:///./~/react-transform-catch-errors/lib/index.js?:34:31)\n" +
					"   at TESTTESTTEST.proxiedMethod(webpack:///./~/react-proxy/modules/createPrototypeProxy.js?:44:30)",
			},
			want: StackTrace{
				Message: "Cannot read property 'error' of undefined",
				Name:    "TypeError",
				Stack: []Frame{
					fr("webpack:///./src/components/test/test.jsx?", "TESTTESTTEST.eval", 295, 108),
					fr("webpack:///./src/components/test/test.jsx?", "TESTTESTTEST.render", 272, 32),
					fr("webpack:///./~/react-transform-catch-errors/lib/index.js?", "TESTTESTTEST.tryRender", 34, 31),
					fr("webpack:///./~/react-proxy/modules/createPrototypeProxy.js?", "TESTTESTTEST.proxiedMethod", 44, 30),
				},
			},
		},
		{
			name: "nested eval",
			in: ErrorLike{
				Message: "message string",
				Name:    "Error",
				Stack: "Error: message string\n" +
					"at baz (eval at foo (eval at speak (http://localhost:8080/file.js:21:17)), <anonymous>:1:30)\n" +
					"at foo (eval at speak (http://localhost:8080/file.js:21:17), <anonymous>:2:96)\n" +
					"at eval (eval at speak (http://localhost:8080/file.js:21:17), <anonymous>:4:18)\n" +
					"at Object.speak (http://localhost:8080/file.js:21:17)\n" +
					"at http://localhost:8080/file.js:31:13\n",
			},
			want: StackTrace{
				Message: "message string",
				Name:    "Error",
				Stack: []Frame{
					fr("http://localhost:8080/file.js", "baz", 21, 17),
					fr("http://localhost:8080/file.js", "foo", 21, 17),
					fr("http://localhost:8080/file.js", "eval", 21, 17),
					fr("http://localhost:8080/file.js", "Object.speak", 21, 17),
					fr("http://localhost:8080/file.js", "?", 31, 13),
				},
			},
		},
		{
			name: "blob urls",
			in: ErrorLike{
				Message: "Error: test",
				Name:    "Error",
				Stack: "Error: test\n" +
					"    at Error (native)\n" +
					"    at s (blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379:31:29146)\n" +
					"    at Object.d [as add] (blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379:31:30039)\n" +
					"    at blob:http%3A//localhost%3A8080/d4eefe0f-361a-4682-b217-76587d9f712a:15:10978\n" +
					"    at blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379:1:6911\n" +
					"    at n.fire (blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379:7:3019)\n" +
					"    at n.handle (blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379:7:2863)",
			},
			want: StackTrace{
				Message: "Error: test",
				Name:    "Error",
				Stack: []Frame{
					fr("native", "Error"),
					fr("blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379", "s", 31, 29146),
					fr("blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379", "Object.d [as add]", 31, 30039),
					fr("blob:http%3A//localhost%3A8080/d4eefe0f-361a-4682-b217-76587d9f712a", "?", 15, 10978),
					fr("blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379", "?", 1, 6911),
					fr("blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379", "n.fire", 7, 3019),
					fr("blob:http%3A//localhost%3A8080/abfc40e9-4742-44ed-9dcd-af8f99a29379", "n.handle", 7, 2863),
				},
			},
		},
		{
			name: "custom scheme",
			in: ErrorLike{
				Message: "message string",
				Name:    "Error",
				Stack: "Error: message string\n" +
					"            at examplescheme://examplehost/cd351f7250857e22ceaa.worker.js:70179:15",
			},
			want: StackTrace{
				Message: "message string",
				Name:    "Error",
				Stack:   []Frame{fr("examplescheme://examplehost/cd351f7250857e22ceaa.worker.js", "?", 70179, 15)},
			},
		},
		{
			name: "chrome 73 native code frames",
			in: ErrorLike{
				Message: "test",
				Name:    "Error",
				Stack: "Error: test\n" +
					"          at fooIterator (http://localhost:5000/test:20:17)\n" +
					"          at Array.map (<anonymous>)\n" +
					"          at foo (http://localhost:5000/test:19:19)\n" +
					"          at http://localhost:5000/test:24:7",
			},
			want: StackTrace{
				Message: "test",
				Name:    "Error",
				Stack: []Frame{
					fr("http://localhost:5000/test", "fooIterator", 20, 17),
					fr("<anonymous>", "Array.map"),
					fr("http://localhost:5000/test", "foo", 19, 19),
					fr("http://localhost:5000/test", "?", 24, 7),
				},
			},
		},
		{
			name: "chrome 73 eval frames",
			in: ErrorLike{
				Message: "bad",
				Name:    "Error",
				Stack: "Error: bad\n" +
					"          at Object.aha (http://localhost:5000/:19:13)\n" +
					"          at callAnotherThing (http://localhost:5000/:20:16)\n" +
					"          at Object.callback (http://localhost:5000/:25:7)\n" +
					"          at http://localhost:5000/:34:17\n" +
					"          at Array.map (<anonymous>)\n" +
					"          at test (http://localhost:5000/:33:23)\n" +
					"          at eval (eval at aha (http://localhost:5000/:37:5), <anonymous>:1:1)\n" +
					"          at aha (http://localhost:5000/:39:5)\n" +
					"          at Foo.testMethod (http://localhost:5000/:44:7)\n" +
					"          at http://localhost:5000/:50:19",
			},
			want: StackTrace{
				Message: "bad",
				Name:    "Error",
				Stack: []Frame{
					fr("http://localhost:5000/", "Object.aha", 19, 13),
					fr("http://localhost:5000/", "callAnotherThing", 20, 16),
					fr("http://localhost:5000/", "Object.callback", 25, 7),
					fr("http://localhost:5000/", "?", 34, 17),
					fr("<anonymous>", "Array.map"),
					fr("http://localhost:5000/", "test", 33, 23),
					fr("http://localhost:5000/", "eval", 37, 5),
					fr("http://localhost:5000/", "aha", 39, 5),
					fr("http://localhost:5000/", "Foo.testMethod", 44, 7),
					fr("http://localhost:5000/", "?", 50, 19),
				},
			},
		},
		{
			name: "electron renderer windows path",
			in: ErrorLike{
				Message: "Cannot read property 'error' of undefined",
				Name:    "TypeError",
				Stack: "TypeError: Cannot read property 'error' of undefined\n" +
					"            at TESTTESTTEST.someMethod (C:\\Users\\user\\path\\to\\file.js:295:108)",
			},
			want: StackTrace{
				Message: "Cannot read property 'error' of undefined",
				Name:    "TypeError",
				Stack:   []Frame{fr("C:\\Users\\user\\path\\to\\file.js", "TESTTESTTEST.someMethod", 295, 108)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStackTrace(tt.in))
		})
	}
}

func TestComputeStackTrace_V8WasmFrameKeptVerbatim(t *testing.T) {
	st := ComputeStackTrace(ErrorLike{
		Name:    "RuntimeError",
		Message: "unreachable",
		Stack: "RuntimeError: unreachable\n" +
			"    at crash (http://localhost:8001/main.wasm:wasm-function[48]:0x3f1a)\n" +
			"    at run (http://localhost:8001/main.js:12:9)",
	})

	assert.Equal(t, []Frame{
		fr("http://localhost:8001/main.wasm:wasm-function[48]:0x3f1a", "crash"),
		fr("http://localhost:8001/main.js", "run", 12, 9),
	}, st.Stack)
}

func TestParseLine_V8(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Frame
		ok   bool
	}{
		{name: "named", line: "at bar (http://path/to/file.js:13:17)", want: fr("http://path/to/file.js", "bar", 13, 17), ok: true},
		{name: "bare", line: "at http://path/to/file.js:24:4", want: fr("http://path/to/file.js", "", 24, 4), ok: true},
		{name: "native", line: "at Array.forEach (native)", want: fr("native", "Array.forEach"), ok: true},
		{name: "relative path", line: "    at main (./src/index.js:3:1)", want: fr("./src/index.js", "main", 3, 1), ok: true},
		{name: "file without slash", line: "    at foo (app.js:10:5)", want: fr("app.js", "foo", 10, 5), ok: true},
		{name: "bare file without slash", line: "    at app.js:7", want: fr("app.js", "", 7), ok: true},
		{name: "anonymous script", line: "    at foo (<anonymous>:1:5)", want: fr("<anonymous>", "foo", 1, 5), ok: true},
		{name: "bare anonymous script", line: "    at <anonymous>:3:9", want: fr("<anonymous>", "", 3, 9), ok: true},
		{name: "node internal", line: "    at Module._compile (node:internal/modules/cjs/loader:1105:14)", want: fr("node:internal/modules/cjs/loader", "Module._compile", 1105, 14), ok: true},
		{name: "header", line: "TypeError: boom", ok: false},
		{name: "file without position", line: "at foo (app.js)", ok: false},
		{name: "no location", line: "at somewhere over the rainbow", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(DialectV8, tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestComputeStackTrace_V8LineShapes(t *testing.T) {
	tests := []struct {
		name  string
		stack string
		want  []Frame
	}{
		{
			name: "multi-line message",
			stack: "Error: first line\n" +
				"second line of message\n" +
				"third line of message\n" +
				"    at foo (http://a/b.js:1:2)",
			want: []Frame{fr("http://a/b.js", "foo", 1, 2)},
		},
		{
			name: "anonymous scripts",
			stack: "Error: x\n" +
				"    at foo (<anonymous>:1:5)\n" +
				"    at bar (<anonymous>:2:7)\n" +
				"    at http://a/b.js:3:4",
			want: []Frame{
				fr("<anonymous>", "foo", 1, 5),
				fr("<anonymous>", "bar", 2, 7),
				fr("http://a/b.js", "?", 3, 4),
			},
		},
		{
			name: "files without slash",
			stack: "TypeError: boom\n" +
				"    at foo (app.js:10:5)\n" +
				"    at app.js:20:1",
			want: []Frame{fr("app.js", "foo", 10, 5), fr("app.js", "?", 20, 1)},
		},
		{
			name: "half of the lines parsed",
			stack: "Error: x\n" +
				"    at foo (http://a/b.js:1:2)\n" +
				"    -- noise --",
			want: []Frame{fr("http://a/b.js", "foo", 1, 2)},
		},
		{
			name: "less than half parsed",
			stack: "Error: x\n" +
				"    at foo (http://a/b.js:1:2)\n" +
				"    -- noise --\n" +
				"    -- more noise --",
			want: []Frame{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := ComputeStackTrace(ErrorLike{Name: "Error", Stack: tt.stack})
			assert.Equal(t, tt.want, st.Stack)
		})
	}
}
