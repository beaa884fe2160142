package smoosh

import "context"

var defaultCompiler = New()

// Run compiles text with the reference parser and emitter and no logging.
func Run(text []byte, opts CompileOptions) Outcome {
	return defaultCompiler.Run(context.Background(), text, opts)
}

// ProbeParseScript reports whether text parses as a script.
func ProbeParseScript(text []byte) bool {
	return defaultCompiler.ProbeParseScript(context.Background(), text)
}

// ProbeParseModule reports whether text parses as a module.
func ProbeParseModule(text []byte) bool {
	return defaultCompiler.ProbeParseModule(context.Background(), text)
}
