// Package repl implements the interactive Read-Eval-Print Loop for moha.
//
// Unlike a tree-walking REPL that keeps one persistent Environment, moha
// has no such value: each line is compiled into its own bytecode chunk via
// compiler.NewWithState, sharing the vars/names symbol tables and constant
// pool accumulated so far, and run in a fresh vm.VM seeded with the
// previous line's locals via vm.NewWithLocals. Because symtab.Table only
// ever appends, a name's slot index never changes across lines, so this is
// always safe.
//
// The terminal UI follows the teacher's Charm stack (bubbletea model/
// Update/View, bubbles/textinput + spinner, lipgloss styling), adapted
// from Monkey's single-line, environment-chain REPL to moha's multi-line,
// brace-balanced, compile-and-run-per-chunk model.
package repl

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mohalang/moha/bytecode"
	"github.com/mohalang/moha/compiler"
	"github.com/mohalang/moha/lexer"
	"github.com/mohalang/moha/loader"
	"github.com/mohalang/moha/object"
	"github.com/mohalang/moha/parser"
	"github.com/mohalang/moha/sys"
	"github.com/mohalang/moha/symtab"
	"github.com/mohalang/moha/token"
	"github.com/mohalang/moha/vm"
)

const (
	// Prompt is the default prompt shown before a new top-level line.
	Prompt = "moha> "

	// ContPrompt continues a multi-line entry until its braces balance.
	ContPrompt = " ...> "
)

// Options configures the REPL's startup behavior.
type Options struct {
	Debug bool
}

// Start launches the bubbletea program driving the REPL until the user
// quits.
func Start(options Options) {
	p := tea.NewProgram(initialModel(options))
	if _, err := p.Run(); err != nil {
		fmt.Println("Error running REPL:", err)
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))

	parseErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	runtimeErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8700")).Bold(true)
	historyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))

	keywordStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6")).Bold(true)
	identifierStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F8F8F2"))
	literalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1FA8C"))
	operatorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	delimiterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#BD93F9"))
	stringStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
)

// errClass distinguishes a parse failure from a compile/runtime one so the
// View can color and label them differently.
type errClass int

const (
	noErr errClass = iota
	parseErr
	runtimeErr
)

type historyEntry struct {
	input    string
	output   string
	errClass errClass
	elapsed  time.Duration
}

// session carries the incremental-compilation state that lets each REPL
// line be its own bytecode chunk while still seeing variables bound by
// earlier lines.
type session struct {
	vars      *symtab.Table
	names     *symtab.Table
	constants []bytecode.Constant
	locals    []object.Value
	importer  vm.Importer
}

func newSession() *session {
	env, err := sys.New("")
	var imp vm.Importer
	if err == nil {
		imp = loader.New(env).ImporterFor(env.Cwd)
	}
	return &session{
		vars:     symtab.New(),
		names:    symtab.New(),
		importer: imp,
	}
}

// run compiles and executes one line against the accumulated session
// state, advancing it on success. The returned errClass is only meaningful
// when err is non-nil.
func (s *session) run(line string) (object.Value, errClass, error) {
	p := parser.New(lexer.New(line))
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		return nil, parseErr, fmt.Errorf("%s", strings.Join(p.Errors(), "; "))
	}

	comp := compiler.NewWithState(s.vars, s.names, s.constants)
	if err := comp.Compile(program); err != nil {
		return nil, runtimeErr, err
	}

	bc := comp.Bytecode()
	machine := vm.NewWithLocals(bc, s.importer, s.locals)
	if err := machine.Run(); err != nil {
		return nil, runtimeErr, err
	}

	s.constants = bc.Constants
	s.locals = machine.Locals()
	return machine.LastPoppedStackItem(), noErr, nil
}

type evalResultMsg struct {
	output   string
	errClass errClass
	value    string // raw, unstyled result text, for :copy
	elapsed  time.Duration
}

type model struct {
	textInput   textinput.Model
	spinner     spinner.Model
	history     []historyEntry
	sess        *session
	evaluating  bool
	currentLine string
	buffer      string
	multiline   bool
	lastResult  string
	options     Options
}

func initialModel(options Options) model {
	ti := textinput.New()
	ti.Placeholder = "enter moha code"
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		textInput: ti,
		spinner:   sp,
		sess:      newSession(),
		options:   options,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// isBalanced reports whether every (), {}, [] in input is closed.
func isBalanced(input string) bool {
	var stack []rune
	pairs := map[rune]rune{')': '(', '}': '{', ']': '['}
	for _, ch := range input {
		switch ch {
		case '(', '{', '[':
			stack = append(stack, ch)
		case ')', '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[ch] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

func evalCmd(sess *session, line string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		result, class, err := sess.run(line)
		elapsed := time.Since(start)

		if err != nil {
			return evalResultMsg{output: err.Error(), errClass: class, elapsed: elapsed}
		}

		if result == nil {
			result = object.NullValue
		}
		return evalResultMsg{output: result.String(), value: result.String(), elapsed: elapsed}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.evaluating {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case evalResultMsg:
		m.evaluating = false
		if msg.value != "" {
			m.lastResult = msg.value
		}
		m.history = append(m.history, historyEntry{
			input:    m.currentLine,
			output:   msg.output,
			errClass: msg.errClass,
			elapsed:  msg.elapsed,
		})
		m.currentLine = ""
		return m, nil

	case tea.KeyMsg:
		if m.evaluating && msg.Type != tea.KeyCtrlC {
			return m, m.spinner.Tick
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.handleEnter()
		}
	}

	if !m.evaluating {
		m.textInput, cmd = m.textInput.Update(msg)
	} else {
		return m, m.spinner.Tick
	}

	return m, cmd
}

func (m model) handleEnter() (tea.Model, tea.Cmd) {
	input := m.textInput.Value()

	if !m.multiline && input == ":copy" {
		m.textInput.SetValue("")
		copyToClipboard(m.lastResult)
		return m, nil
	}

	if input == "" {
		if m.multiline {
			if m.buffer == "" {
				m.multiline = false
				return m, nil
			}
			return m.startEval(m.buffer)
		}
		return m, nil
	}

	if m.multiline {
		m.buffer += "\n" + input
		m.textInput.SetValue("")
		if isBalanced(m.buffer) {
			return m.startEval(m.buffer)
		}
		return m, nil
	}

	if !isBalanced(input) {
		m.multiline = true
		m.buffer = input
		m.textInput.SetValue("")
		return m, nil
	}

	return m.startEval(input)
}

func (m model) startEval(line string) (tea.Model, tea.Cmd) {
	m.evaluating = true
	m.currentLine = line
	m.multiline = false
	m.buffer = ""
	m.textInput.SetValue("")
	return m, evalCmd(m.sess, line)
}

// copyToClipboard gives go-osc52/clipboard a genuine call site: try the
// local system clipboard first, then fall back to an OSC52 escape sequence
// so the value reaches the user's terminal even over an SSH session.
func copyToClipboard(text string) {
	if text == "" {
		return
	}
	if err := clipboard.WriteAll(text); err == nil {
		return
	}
	osc52.New(text).WriteTo(os.Stdout)
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" moha REPL "))
	s.WriteString("\n\n")

	for _, entry := range m.history {
		for i, line := range strings.Split(entry.input, "\n") {
			if i == 0 {
				s.WriteString(promptStyle.Render(Prompt))
			} else {
				s.WriteString(promptStyle.Render(ContPrompt))
			}
			s.WriteString(highlightCode(line))
			s.WriteString("\n")
		}

		switch entry.errClass {
		case parseErr:
			s.WriteString(parseErrorStyle.Render("parse error: " + entry.output))
		case runtimeErr:
			s.WriteString(runtimeErrorStyle.Render("error: " + entry.output))
		default:
			s.WriteString(resultStyle.Render(entry.output))
		}

		if entry.elapsed > 10*time.Millisecond {
			s.WriteString(historyStyle.Render(fmt.Sprintf(" (%.2fs)", entry.elapsed.Seconds())))
		}
		s.WriteString("\n\n")
	}

	if m.evaluating {
		s.WriteString(promptStyle.Render(Prompt))
		s.WriteString(highlightCode(m.currentLine))
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" evaluating...\n\n")
	}

	if m.multiline && !m.evaluating {
		s.WriteString(historyStyle.Render("continuing (empty line to run):\n"))
		s.WriteString(highlightCode(m.buffer))
		s.WriteString("\n")
	}

	if !m.evaluating {
		if m.multiline {
			m.textInput.Prompt = promptStyle.Render(ContPrompt)
		} else {
			m.textInput.Prompt = promptStyle.Render(Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	help := "\nEsc/Ctrl+C/Ctrl+D to exit | :copy copies the last result"
	s.WriteString(historyStyle.Render(help))

	return s.String()
}

var (
	keywordTokens = map[token.Type]bool{
		token.DEF: true, token.IF: true, token.DO: true, token.RETURN: true,
		token.IMPORT: true, token.EXPORT: true, token.FROM: true, token.AS: true,
		token.ABORT: true, token.PASS: true, token.UNBOUND: true, token.IN: true,
		token.TRUE: true, token.FALSE: true, token.NULL: true,
	}

	operatorTokens = map[token.Type]bool{
		token.ASSIGN: true, token.PLUS: true, token.MINUS: true, token.BANG: true,
		token.ASTERISK: true, token.SLASH: true, token.PERCENT: true, token.TILDE: true,
		token.AMP: true, token.PIPE: true, token.CARET: true, token.SHL: true, token.SHR: true,
		token.LT: true, token.GT: true, token.LTE: true, token.GTE: true,
		token.EQ: true, token.NOT_EQ: true, token.AND: true, token.OR: true,
	}

	delimiterTokens = map[token.Type]bool{
		token.COMMA: true, token.COLON: true, token.SEMICOLON: true, token.DOT: true,
		token.LPAREN: true, token.RPAREN: true, token.LBRACE: true, token.RBRACE: true,
		token.LBRACKET: true, token.RBRACKET: true,
	}
)

// highlightCode tokenizes line and renders it with moha's keyword/operator/
// literal/delimiter styles, joining adjacent tokens with a single space.
func highlightCode(line string) string {
	l := lexer.New(line)
	var s strings.Builder

	for i := 0; ; i++ {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		if i > 0 {
			s.WriteString(" ")
		}

		switch {
		case keywordTokens[tok.Type]:
			s.WriteString(keywordStyle.Render(tok.Literal))
		case tok.Type == token.IDENT:
			s.WriteString(identifierStyle.Render(tok.Literal))
		case tok.Type == token.INT || tok.Type == token.FLOAT:
			s.WriteString(literalStyle.Render(tok.Literal))
		case tok.Type == token.STRING:
			s.WriteString(stringStyle.Render("\"" + tok.Literal + "\""))
		case operatorTokens[tok.Type]:
			s.WriteString(operatorStyle.Render(tok.Literal))
		case delimiterTokens[tok.Type]:
			s.WriteString(delimiterStyle.Render(tok.Literal))
		default:
			s.WriteString(tok.Literal)
		}
	}

	return s.String()
}
