// Package smoosh compiles source text to bytecode and hands the result across
// a memory-ownership boundary.
//
// A call to [Compiler.Run] validates the text, parses it, emits bytecode and
// returns an [Outcome]. Every buffer in the Outcome is owned by a
// [cvec.Vec] descriptor; the caller owns the Outcome until it passes it to
// [Release], exactly once.
//
// # Basic Usage
//
//	c := smoosh.New(smoosh.WithLogger(logger))
//
//	out := c.Run(ctx, []byte("2+2"), smoosh.CompileOptions{})
//	defer smoosh.Release(out)
//
//	switch out.Status {
//	case smoosh.StatusSuccess:
//	    fmt.Printf("%d bytes, stack depth %d\n", out.Bytecode.Len, out.MaximumStackDepth)
//	case smoosh.StatusNotImplemented:
//	    // fall back to another compiler
//	case smoosh.StatusError:
//	    fmt.Println(out.Message())
//	}
//
// The scoped form releases the Outcome on every return path:
//
//	err := c.Compile(ctx, src, smoosh.CompileOptions{}, func(out *smoosh.Outcome) error {
//	    return store(out.BytecodeView())
//	})
//
// # Outcome Layout
//
// The Outcome field order is fixed by [OutcomeLayoutVersion]. Fields that are
// not valid for the active [Status] hold the canonical empty descriptor or
// zero, so releasing any Outcome is uniform.
//
// # Capability Gaps
//
// A parser or emitter that meets a valid construct it cannot handle returns
// an error matching [frontend.ErrNotImplemented]. Run maps it to
// [StatusNotImplemented] and logs an "unimplemented construct" warning on the
// injected logger, so the gap is visible during development without
// reaching the host as a syntax error.
package smoosh
