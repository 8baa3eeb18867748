package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mgomes/classrt/classrt"
)

var (
	accentColor    = lipgloss.Color("#3B82F6")
	successColor   = lipgloss.Color("#10B981")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#F59E0B")

	promptStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(successColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true).
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(highlightColor)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)

type historyEntry struct {
	input  string
	output string
	isErr  bool
}

type replModel struct {
	textInput   textinput.Model
	session     *classrt.Session
	program     *classrt.Program
	out         *classrt.RecordingSink
	history     []historyEntry
	cmdHistory  []string
	historyIdx  int
	width       int
	height      int
	showHelp    bool
	showVars    bool
	quitting    bool
	initialized bool
}

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	CtrlC key.Binding
	CtrlD key.Binding
	CtrlL key.Binding
	Tab   key.Binding
	CtrlV key.Binding
	CtrlH key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "previous command"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next command"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "execute"),
	),
	CtrlC: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	CtrlD: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("ctrl+d", "quit"),
	),
	CtrlL: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "autocomplete"),
	),
	CtrlV: key.NewBinding(
		key.WithKeys("ctrl+v"),
		key.WithHelp("ctrl+v", "toggle vars"),
	),
	CtrlH: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("ctrl+k", "toggle help"),
	),
}

func newREPLModel() replModel {
	ti := textinput.New()
	ti.Placeholder = "new Cat as cat, cat.speak, :load file.toml ..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60
	ti.PromptStyle = promptStyle
	ti.Prompt = "classrt> "

	out := &classrt.RecordingSink{}

	return replModel{
		textInput:  ti,
		session:    newREPLSession(classrt.NewRegistry(), out),
		out:        out,
		history:    make([]historyEntry, 0),
		cmdHistory: make([]string, 0),
		historyIdx: -1,
	}
}

func newREPLSession(reg *classrt.Registry, out classrt.Sink) *classrt.Session {
	return classrt.NewSession(classrt.NewRuntime(reg, out, classrt.Config{}))
}

func (m replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tea.EnterAltScreen)
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.CtrlC), key.Matches(msg, keys.CtrlD):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.CtrlL):
			m.history = make([]historyEntry, 0)
			return m, nil

		case key.Matches(msg, keys.CtrlV):
			m.showVars = !m.showVars
			return m, nil

		case key.Matches(msg, keys.CtrlH):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, keys.Up):
			if len(m.cmdHistory) > 0 {
				if m.historyIdx == -1 {
					m.historyIdx = len(m.cmdHistory) - 1
				} else if m.historyIdx > 0 {
					m.historyIdx--
				}
				m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Down):
			if m.historyIdx != -1 {
				if m.historyIdx < len(m.cmdHistory)-1 {
					m.historyIdx++
					m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				} else {
					m.historyIdx = -1
					m.textInput.SetValue("")
				}
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Tab):
			m = m.handleAutocomplete()
			return m, nil

		case key.Matches(msg, keys.Enter):
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}

			if strings.HasPrefix(input, ":") {
				var cmd tea.Cmd
				m, cmd = m.handleCommand(input)
				m.textInput.SetValue("")
				m.historyIdx = -1
				return m, cmd
			}

			output, isErr := m.evaluate(input)
			m.history = append(m.history, historyEntry{
				input:  input,
				output: output,
				isErr:  isErr,
			})
			m.cmdHistory = append(m.cmdHistory, input)
			m.textInput.SetValue("")
			m.historyIdx = -1
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m replModel) handleCommand(input string) (replModel, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case ":help", ":h":
		m.showHelp = !m.showHelp
	case ":clear", ":c":
		m.history = make([]historyEntry, 0)
	case ":vars", ":v":
		m.showVars = !m.showVars
	case ":reset", ":r":
		m.session.Reset()
		m = m.record(input, "Variables reset", false)
	case ":classes":
		m = m.record(input, m.describeClasses(), false)
	case ":load", ":l":
		if len(parts) != 2 {
			return m.record(input, "usage: :load <program.toml>", true), nil
		}
		output, isErr := m.load(parts[1])
		m = m.record(input, output, isErr)
	case ":run":
		output, isErr := m.runMain()
		m = m.record(input, output, isErr)
	case ":quit", ":q":
		m.quitting = true
		return m, tea.Quit
	default:
		m = m.record(input, fmt.Sprintf("Unknown command: %s", cmd), true)
	}
	return m, nil
}

func (m replModel) record(input, output string, isErr bool) replModel {
	m.history = append(m.history, historyEntry{
		input:  input,
		output: output,
		isErr:  isErr,
	})
	return m
}

func (m *replModel) load(path string) (string, bool) {
	prog, err := classrt.LoadProgram(path)
	if err != nil {
		return err.Error(), true
	}
	reg := classrt.NewRegistry()
	if _, err := prog.Compile(reg); err != nil {
		return err.Error(), true
	}
	m.program = prog
	m.session = newREPLSession(reg, m.out)
	return fmt.Sprintf("Loaded %d class(es) from %s", reg.Len(), path), false
}

func (m *replModel) runMain() (string, bool) {
	if m.program == nil {
		return "no program loaded (use :load)", true
	}
	m.out.Reset()
	for i, step := range m.program.Main {
		if _, err := m.session.Exec(context.Background(), step); err != nil {
			return fmt.Sprintf("main step %d: %v", i+1, err), true
		}
	}
	return formatOutcome(m.out.Strings(), classrt.NewNil()), false
}

func (m replModel) describeClasses() string {
	classes := m.session.Runtime().Registry().Classes()
	if len(classes) == 0 {
		return "No classes defined"
	}
	lines := make([]string, len(classes))
	for i, def := range classes {
		chain := def.Chain()
		names := make([]string, len(chain))
		for j, ancestor := range chain {
			names[j] = ancestor.Name
		}
		lines[i] = fmt.Sprintf("%s [%s] %s", def.Name, strings.Join(names, " > "), strings.Join(def.MethodNames(), " "))
	}
	return strings.Join(lines, "\n    ")
}

func (m replModel) handleAutocomplete() replModel {
	input := m.textInput.Value()
	if input == "" {
		return m
	}

	words := strings.Fields(input)
	if len(words) == 0 {
		return m
	}
	lastWord := words[len(words)-1]

	var completions []string
	if receiver, methodPrefix, ok := strings.Cut(lastWord, "."); ok {
		if inst, found := m.session.Lookup(receiver); found {
			for _, name := range respondsTo(inst.Class) {
				if strings.HasPrefix(name, methodPrefix) {
					completions = append(completions, receiver+"."+name)
				}
			}
		}
	} else {
		candidates := []string{"new", "as", ":load", ":run", ":classes", ":vars", ":help", ":reset", ":quit"}
		for _, def := range m.session.Runtime().Registry().Classes() {
			candidates = append(candidates, def.Name)
		}
		candidates = append(candidates, m.session.Vars()...)
		for _, c := range candidates {
			if strings.HasPrefix(c, lastWord) {
				completions = append(completions, c)
			}
		}
	}

	if len(completions) == 1 {
		prefix := strings.TrimSuffix(input, lastWord)
		m.textInput.SetValue(prefix + completions[0])
		m.textInput.CursorEnd()
	} else if len(completions) > 1 {
		m.history = append(m.history, historyEntry{
			input:  "",
			output: "Completions: " + strings.Join(completions, ", "),
			isErr:  false,
		})
	}

	return m
}

// respondsTo lists every method name an instance of def can dispatch.
func respondsTo(def *classrt.ClassDef) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, ancestor := range def.Chain() {
		for _, name := range ancestor.MethodNames() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// evaluate handles `new <Class> as <var> [args...]` and
// `<var>.<method> [args...]`.
func (m replModel) evaluate(input string) (string, bool) {
	step, err := parseREPLStep(input)
	if err != nil {
		return err.Error(), true
	}

	m.out.Reset()
	result, err := m.session.Exec(context.Background(), step)
	if err != nil {
		return err.Error(), true
	}
	return formatOutcome(m.out.Strings(), result), false
}

func parseREPLStep(input string) (classrt.MainStep, error) {
	fields := strings.Fields(input)
	if fields[0] == "new" {
		if len(fields) < 4 || fields[2] != "as" {
			return classrt.MainStep{}, fmt.Errorf("usage: new <Class> as <var> [args...]")
		}
		args, err := parseLiterals(fields[4:])
		if err != nil {
			return classrt.MainStep{}, err
		}
		return classrt.MainStep{New: fields[1], As: fields[3], Args: args}, nil
	}

	receiver, method, ok := strings.Cut(fields[0], ".")
	if !ok || receiver == "" || method == "" {
		return classrt.MainStep{}, fmt.Errorf("expected <var>.<method> or new <Class> as <var>")
	}
	args, err := parseLiterals(fields[1:])
	if err != nil {
		return classrt.MainStep{}, err
	}
	return classrt.MainStep{Call: method, On: receiver, Args: args}, nil
}

// parseLiterals reads each word as a TOML value; bare words are taken as
// strings.
func parseLiterals(words []string) ([]any, error) {
	if len(words) == 0 {
		return nil, nil
	}
	out := make([]any, len(words))
	for i, word := range words {
		var doc struct {
			V any `toml:"v"`
		}
		if _, err := toml.Decode("v = "+word, &doc); err != nil {
			out[i] = word
			continue
		}
		if _, err := classrt.FromGo(doc.V); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = doc.V
	}
	return out, nil
}

func formatOutcome(emitted []string, result classrt.Value) string {
	var parts []string
	if len(emitted) > 0 {
		parts = append(parts, "emitted "+strings.Join(emitted, ", "))
	}
	if !result.IsNil() {
		parts = append(parts, result.String())
	}
	if len(parts) == 0 {
		return "nil"
	}
	return strings.Join(parts, "; ")
}

func (m replModel) View() string {
	if !m.initialized {
		return "Loading..."
	}

	if m.quitting {
		return mutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder

	header := headerStyle.Render("classrt REPL")
	version := mutedStyle.Render("v0.1.0")
	b.WriteString(header + " " + version + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", min(m.width-2, 60))) + "\n\n")

	reservedLines := 8
	if m.showHelp {
		reservedLines += 12
	}
	vars := m.session.Vars()
	if m.showVars {
		reservedLines += len(vars) + 3
	}
	availableHeight := m.height - reservedLines

	historyStart := 0
	if len(m.history) > availableHeight {
		historyStart = len(m.history) - availableHeight
	}
	if historyStart < 0 {
		historyStart = 0
	}

	for i := historyStart; i < len(m.history); i++ {
		entry := m.history[i]
		if entry.input != "" {
			b.WriteString(mutedStyle.Render("  › ") + entry.input + "\n")
		}
		if entry.isErr {
			b.WriteString("  " + errorStyle.Render("✗ "+entry.output) + "\n")
		} else {
			b.WriteString("  " + resultStyle.Render("→ "+entry.output) + "\n")
		}
		b.WriteString("\n")
	}

	if m.showVars {
		b.WriteString(renderVarsPanel(m.session, vars))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(renderHelpPanel())
		b.WriteString("\n")
	}

	b.WriteString(m.textInput.View() + "\n\n")

	footer := helpKeyStyle.Render("ctrl+k") + helpDescStyle.Render(" help  ") +
		helpKeyStyle.Render("ctrl+v") + helpDescStyle.Render(" vars  ") +
		helpKeyStyle.Render("ctrl+l") + helpDescStyle.Render(" clear  ") +
		helpKeyStyle.Render("ctrl+c") + helpDescStyle.Render(" quit")
	b.WriteString(footer)

	return b.String()
}

func renderVarsPanel(session *classrt.Session, vars []string) string {
	if len(vars) == 0 {
		return borderStyle.Render(mutedStyle.Render("No variables defined"))
	}

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Variables"))
	varNameStyle := lipgloss.NewStyle().Foreground(highlightColor)
	for _, name := range vars {
		inst, _ := session.Lookup(name)
		line := fmt.Sprintf("  %s = %s", varNameStyle.Render(name), classrt.NewInstance(inst).String())
		lines = append(lines, line)
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}

func renderHelpPanel() string {
	help := []struct {
		key  string
		desc string
	}{
		{"↑/↓", "Navigate command history"},
		{"Tab", "Autocomplete classes, variables, methods"},
		{"new", "new <Class> as <var> [args...]"},
		{"v.m", "<var>.<method> [args...]"},
		{":load", "Load classes from a program file"},
		{":run", "Run the loaded program's main steps"},
		{":classes", "List classes and their ancestry"},
		{":vars", "Toggle variables panel"},
		{":clear", "Clear history"},
		{":reset", "Forget all variables"},
		{":quit", "Exit REPL"},
	}

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Help"))
	for _, h := range help {
		line := fmt.Sprintf("  %s  %s",
			helpKeyStyle.Render(fmt.Sprintf("%-8s", h.key)),
			helpDescStyle.Render(h.desc))
		lines = append(lines, line)
	}

	return borderStyle.Render(strings.Join(lines, "\n"))
}

func runREPL() error {
	p := tea.NewProgram(newREPLModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
