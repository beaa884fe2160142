package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/smooshjs/smoosh-go/pkg/smoosh"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
)

// validFormats lists the output formats of compile and tail.
var validFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

// Summary is the printable form of one Outcome.
type Summary struct {
	Source        string   `json:"source"`
	Status        string   `json:"status"`
	Message       string   `json:"message,omitempty"`
	BytecodeLen   int      `json:"bytecode_len,omitempty"`
	Atoms         int      `json:"atoms,omitempty"`
	MaxStackDepth uint32   `json:"max_stack_depth,omitempty"`
	NumICEntries  uint32   `json:"num_ic_entries,omitempty"`
	MainOffset    uint64   `json:"main_offset,omitempty"`
	Flags         []string `json:"flags,omitempty"`
	Cached        bool     `json:"cached,omitempty"`
}

var flagNames = []struct {
	flag frontend.ScriptFlags
	name string
}{
	{frontend.FlagStrict, "strict"},
	{frontend.FlagIsModule, "module"},
	{frontend.FlagHasModuleGoal, "module_goal"},
	{frontend.FlagNoScriptRval, "no_script_rval"},
	{frontend.FlagBindingsAccessedDynamically, "dynamic_bindings"},
}

// FlagNames lists the set flags in a fixed order.
func FlagNames(f frontend.ScriptFlags) []string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

// Summarize copies what is printed out of o; o may be released afterwards.
func Summarize(source string, o *smoosh.Outcome) Summary {
	s := Summary{Source: source, Status: o.Status.String()}
	switch o.Status {
	case smoosh.StatusError:
		s.Message = o.Message()
	case smoosh.StatusSuccess:
		s.BytecodeLen = len(o.BytecodeView())
		s.Atoms = len(o.Atoms())
		s.MaxStackDepth = o.MaximumStackDepth
		s.NumICEntries = o.NumICEntries
		s.MainOffset = uint64(o.MainOffset)
		s.Flags = FlagNames(o.Flags)
	}
	return s
}

// OutputSummary writes s in the given format.
func OutputSummary(format string, s Summary, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(s, out)
	case "pretty":
		return OutputPretty(s, out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes s as one JSON line.
func OutputJSON(s Summary, out io.Writer) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// OutputPretty writes s for humans.
func OutputPretty(s Summary, out io.Writer) error {
	suffix := ""
	if s.Cached {
		suffix = " (cached)"
	}

	var err error
	switch s.Status {
	case "success":
		flags := "-"
		if len(s.Flags) > 0 {
			flags = strings.Join(s.Flags, ",")
		}
		_, err = fmt.Fprintf(out, "%s: ok bytecode=%d atoms=%d depth=%d ics=%d main=%d flags=%s%s\n",
			s.Source, s.BytecodeLen, s.Atoms, s.MaxStackDepth, s.NumICEntries, s.MainOffset, flags, suffix)
	case "error":
		_, err = fmt.Fprintf(out, "%s: error %s\n", s.Source, quoteIfNeeded(s.Message))
	case "not_implemented":
		_, err = fmt.Fprintf(out, "%s: not implemented\n", s.Source)
	default:
		_, err = fmt.Fprintf(out, "%s: %s\n", s.Source, s.Status)
	}
	return err
}

// quoteIfNeeded quotes v when it contains spaces, quotes, backslashes or
// control characters.
func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}

	needsQuote := false
	for _, c := range v {
		if c == ' ' || c == '=' || c == '"' || c == '\\' || c < 0x20 || c == 0x7F {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return v
	}

	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range v {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c == 0x7F:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
