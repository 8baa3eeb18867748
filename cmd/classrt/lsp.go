package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"

	"github.com/mgomes/classrt/classrt"
)

const (
	severityError   = 1
	severityWarning = 2
)

var (
	mainHeaderPattern = regexp.MustCompile(`^\s*\[\[\s*main\s*\]\]`)
	mainStepPattern   = regexp.MustCompile(`^main step ([0-9]+)`)
	locationPattern   = regexp.MustCompile(`^(?:define |lookup |construct )?([A-Za-z_][A-Za-z0-9_]*)[#. :]`)
)

var lspStepKeys = map[string]string{
	"emit":       "emit a literal value to the sink",
	"emit_arg":   "emit the call argument at the given index",
	"emit_ivar":  "emit an instance variable of self",
	"emit_class": "emit the name of the receiver's concrete class",
	"set":        "assign an instance variable from value or from_arg",
	"call":       "dispatch a method on self",
	"super":      "invoke the next ancestor definition of the current method",
	"return":     "return a literal from the method",
	"fail":       "abort with an error message",
	"value":      "literal assigned by set",
	"from_arg":   "argument index assigned by set",
	"args":       "arguments passed to call or super",
}

var lspProgramKeys = map[string]string{
	"new":         "construct an instance of the named class",
	"as":          "session variable bound to a new instance",
	"on":          "session variable receiving a call",
	"name":        "class name",
	"parent":      "parent class name",
	"constructor": "steps run when the class's level of an instance is constructed",
	"methods":     "method name to step list",
}

type lspInboundMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type lspResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type lspOutboundMessage struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      *json.RawMessage  `json:"id,omitempty"`
	Method  string            `json:"method,omitempty"`
	Params  any               `json:"params,omitempty"`
	Result  any               `json:"result,omitempty"`
	Error   *lspResponseError `json:"error,omitempty"`
}

type lspDidOpenParams struct {
	TextDocument struct {
		URI  string `json:"uri"`
		Text string `json:"text"`
	} `json:"textDocument"`
}

type lspDidChangeParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	ContentChanges []struct {
		Text string `json:"text"`
	} `json:"contentChanges"`
}

type lspTextDocumentPositionParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	Position struct {
		Line      int `json:"line"`
		Character int `json:"character"`
	} `json:"position"`
}

type lspServer struct {
	reader *bufio.Reader
	writer *bufio.Writer
	docs   map[string]string
}

func runLSP() error {
	server := &lspServer{
		reader: bufio.NewReader(os.Stdin),
		writer: bufio.NewWriter(os.Stdout),
		docs:   make(map[string]string),
	}
	return server.serve()
}

func (s *lspServer) serve() error {
	for {
		payload, err := s.readPayload()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		var incoming lspInboundMessage
		if err := json.Unmarshal(payload, &incoming); err != nil {
			continue
		}

		messages := s.handleMessage(incoming)
		for _, msg := range messages {
			if err := s.writePayload(msg); err != nil {
				return err
			}
		}

		if incoming.Method == "exit" {
			return nil
		}
	}
}

func (s *lspServer) handleMessage(incoming lspInboundMessage) []lspOutboundMessage {
	switch incoming.Method {
	case "initialize":
		return []lspOutboundMessage{
			{
				JSONRPC: "2.0",
				ID:      incoming.ID,
				Result: map[string]any{
					"capabilities": map[string]any{
						"textDocumentSync": 1,
						"hoverProvider":    true,
						"completionProvider": map[string]any{
							"resolveProvider": false,
						},
					},
				},
			},
		}
	case "initialized", "exit":
		return nil
	case "shutdown":
		if incoming.ID == nil {
			return nil
		}
		return []lspOutboundMessage{{JSONRPC: "2.0", ID: incoming.ID, Result: nil}}
	case "textDocument/didOpen":
		var params lspDidOpenParams
		if err := json.Unmarshal(incoming.Params, &params); err != nil {
			return nil
		}
		s.docs[params.TextDocument.URI] = params.TextDocument.Text
		return []lspOutboundMessage{
			s.publishDiagnostics(params.TextDocument.URI, params.TextDocument.Text),
		}
	case "textDocument/didChange":
		var params lspDidChangeParams
		if err := json.Unmarshal(incoming.Params, &params); err != nil {
			return nil
		}
		if len(params.ContentChanges) == 0 {
			return nil
		}
		latest := params.ContentChanges[len(params.ContentChanges)-1].Text
		s.docs[params.TextDocument.URI] = latest
		return []lspOutboundMessage{
			s.publishDiagnostics(params.TextDocument.URI, latest),
		}
	case "textDocument/completion":
		if incoming.ID == nil {
			return nil
		}
		var params lspTextDocumentPositionParams
		_ = json.Unmarshal(incoming.Params, &params)
		return []lspOutboundMessage{
			{
				JSONRPC: "2.0",
				ID:      incoming.ID,
				Result: map[string]any{
					"isIncomplete": false,
					"items":        completionItems(s.docs[params.TextDocument.URI]),
				},
			},
		}
	case "textDocument/hover":
		if incoming.ID == nil {
			return nil
		}
		var params lspTextDocumentPositionParams
		if err := json.Unmarshal(incoming.Params, &params); err != nil {
			return []lspOutboundMessage{
				{
					JSONRPC: "2.0",
					ID:      incoming.ID,
					Error:   &lspResponseError{Code: -32602, Message: "invalid hover params"},
				},
			}
		}
		source := s.docs[params.TextDocument.URI]
		word := wordAtPosition(source, params.Position.Line, params.Position.Character)
		text := hoverText(source, word)
		if text == "" {
			return []lspOutboundMessage{
				{JSONRPC: "2.0", ID: incoming.ID, Result: nil},
			}
		}
		return []lspOutboundMessage{
			{
				JSONRPC: "2.0",
				ID:      incoming.ID,
				Result: map[string]any{
					"contents": map[string]any{
						"kind":  "markdown",
						"value": text,
					},
				},
			},
		}
	default:
		if incoming.ID == nil {
			return nil
		}
		return []lspOutboundMessage{
			{
				JSONRPC: "2.0",
				ID:      incoming.ID,
				Error: &lspResponseError{
					Code:    -32601,
					Message: "method not found",
				},
			},
		}
	}
}

func (s *lspServer) publishDiagnostics(uri, source string) lspOutboundMessage {
	return lspOutboundMessage{
		JSONRPC: "2.0",
		Method:  "textDocument/publishDiagnostics",
		Params: map[string]any{
			"uri":         uri,
			"diagnostics": diagnosticsForSource(source),
		},
	}
}

// diagnosticsForSource reports decode errors, validation and compile
// failures, and check warnings for a program document.
func diagnosticsForSource(source string) []map[string]any {
	prog, err := classrt.ParseProgram(source)
	if err != nil {
		var parseErr toml.ParseError
		if errors.As(err, &parseErr) {
			line := max(0, parseErr.Position.Line-1)
			return []map[string]any{newDiagnostic(line, 0, severityError, parseErr.Message)}
		}
		return errorDiagnostics(source, err)
	}

	_, warnings, err := prog.Check()
	if err != nil {
		return errorDiagnostics(source, err)
	}
	out := make([]map[string]any, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, newDiagnostic(locateLine(source, warning.Location), 0, severityWarning, warning.String()))
	}
	return out
}

// errorDiagnostics splits joined validation errors into one diagnostic each.
func errorDiagnostics(source string, err error) []map[string]any {
	var out []map[string]any
	for _, message := range strings.Split(err.Error(), "\n") {
		if message == "" {
			continue
		}
		out = append(out, newDiagnostic(locateLine(source, message), 0, severityError, message))
	}
	return out
}

// locateLine maps a location prefix such as "Cat#speak step 1" or
// "main step 2" to the line declaring that class or main step.
func locateLine(source, location string) int {
	lines := strings.Split(source, "\n")
	if match := mainStepPattern.FindStringSubmatch(location); match != nil {
		want, _ := strconv.Atoi(match[1])
		seen := 0
		for i, line := range lines {
			if mainHeaderPattern.MatchString(line) {
				seen++
				if seen == want {
					return i
				}
			}
		}
		return 0
	}
	match := locationPattern.FindStringSubmatch(location)
	if match == nil {
		return 0
	}
	if line, ok := classLine(lines, match[1]); ok {
		return line
	}
	return 0
}

func classLine(lines []string, class string) (int, bool) {
	pattern := regexp.MustCompile(`^\s*name\s*=\s*"` + regexp.QuoteMeta(class) + `"`)
	for i, line := range lines {
		if pattern.MatchString(line) {
			return i, true
		}
	}
	return 0, false
}

func newDiagnostic(line, character, severity int, message string) map[string]any {
	return map[string]any{
		"range": map[string]any{
			"start": map[string]any{
				"line":      line,
				"character": character,
			},
			"end": map[string]any{
				"line":      line,
				"character": character + 1,
			},
		},
		"severity": severity,
		"source":   "classrt-lsp",
		"message":  message,
	}
}

// completionItems offers program keys plus the classes defined by source.
func completionItems(source string) []map[string]any {
	details := make(map[string]string, len(lspStepKeys)+len(lspProgramKeys))
	kinds := make(map[string]int, len(details))
	for key, doc := range lspStepKeys {
		details[key] = doc
		kinds[key] = 10 // Property
	}
	for key, doc := range lspProgramKeys {
		details[key] = doc
		kinds[key] = 10
	}
	if prog, err := classrt.ParseProgram(source); err == nil {
		for _, class := range prog.Classes {
			details[class.Name] = "class"
			kinds[class.Name] = 7 // Class
		}
	}

	labels := make([]string, 0, len(details))
	for label := range details {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	items := make([]map[string]any, 0, len(labels))
	for _, label := range labels {
		items = append(items, map[string]any{
			"label":  label,
			"kind":   kinds[label],
			"detail": details[label],
		})
	}
	return items
}

// hoverText describes a class's ancestry and methods, or documents a
// program key. It returns "" when the word is neither.
func hoverText(source, word string) string {
	if word == "" {
		return ""
	}
	if prog, err := classrt.ParseProgram(source); err == nil {
		if reg, _, err := prog.Check(); err == nil {
			if def, err := reg.Lookup(word); err == nil {
				return describeClassMarkdown(reg, def)
			}
		}
	}
	if doc, ok := lspStepKeys[word]; ok {
		return fmt.Sprintf("`%s`\n\nstep key: %s", word, doc)
	}
	if doc, ok := lspProgramKeys[word]; ok {
		return fmt.Sprintf("`%s`\n\nprogram key: %s", word, doc)
	}
	return ""
}

func describeClassMarkdown(reg *classrt.Registry, def *classrt.ClassDef) string {
	chain := reg.AncestryChain(def)
	names := make([]string, len(chain))
	for i, ancestor := range chain {
		names[i] = ancestor.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "`class %s`\n\nancestry: %s", def.Name, strings.Join(names, " > "))
	for _, name := range def.MethodNames() {
		fmt.Fprintf(&b, "\n\n- `#%s`", name)
		if shadowed, ok := reg.Shadowed(def, name); ok {
			fmt.Fprintf(&b, " overrides %s#%s", shadowed.Owner.Name, name)
		}
	}
	return b.String()
}

func wordAtPosition(source string, line, character int) string {
	lines := strings.Split(source, "\n")
	if line < 0 || line >= len(lines) {
		return ""
	}

	runes := []rune(lines[line])
	if len(runes) == 0 {
		return ""
	}
	if character < 0 {
		character = 0
	}
	if character > len(runes) {
		character = len(runes)
	}

	cursor := character
	if cursor == len(runes) {
		cursor--
	}
	if cursor < 0 {
		return ""
	}
	if !isWordRune(runes[cursor]) {
		if cursor > 0 && isWordRune(runes[cursor-1]) {
			cursor--
		} else {
			return ""
		}
	}

	start := cursor
	for start > 0 && isWordRune(runes[start-1]) {
		start--
	}
	end := cursor
	for end < len(runes) && isWordRune(runes[end]) {
		end++
	}
	return string(runes[start:end])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func (s *lspServer) readPayload() ([]byte, error) {
	contentLength := -1
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if strings.EqualFold(name, "Content-Length") {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
			contentLength = n
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *lspServer) writePayload(msg lspOutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	return s.writer.Flush()
}
