package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/wasm-host/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	globalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD580"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var exploreCmd = &cobra.Command{
	Use:   "explore <file.wasm>",
	Short: "Browse and drive an instance in a terminal UI",
	Long: `Instantiate the module and open a terminal UI listing its exported
functions and globals. Select a function to call it, or a mutable global to
write it. Requires an interactive terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("explore requires a terminal; use invoke, get or set instead")
		}
		ctx := context.Background()
		s, err := openSession(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		p := tea.NewProgram(newExploreModel(args[0], s), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(exploreCmd)
}

// member is one selectable row: a function or a global.
type member struct {
	fn     *runtime.Function
	global *runtime.Global
}

func (m member) name() string {
	if m.fn != nil {
		return m.fn.Name()
	}
	return m.global.Name()
}

func (m member) params() []runtime.ValueKind {
	if m.fn != nil {
		return m.fn.Type().Params
	}
	if m.global.Mutable() {
		return []runtime.ValueKind{m.global.Kind()}
	}
	return nil
}

type modelState int

const (
	stateSelect modelState = iota
	stateInput
	stateResult
)

type exploreModel struct {
	err      error
	session  *session
	filename string
	result   string
	members  []member
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

func newExploreModel(filename string, s *session) *exploreModel {
	m := &exploreModel{filename: filename, session: s, state: stateSelect}
	for _, f := range s.inst.Functions() {
		m.members = append(m.members, member{fn: f})
	}
	for _, g := range s.inst.Globals() {
		m.members = append(m.members, member{global: g})
	}
	return m
}

type resultMsg struct {
	err    error
	result string
}

func (m *exploreModel) Init() tea.Cmd {
	return nil
}

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInput {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelect && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelect && m.selected < len(m.members)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelect:
				if len(m.members) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.run
				}
				m.state = stateInput
				return m, nil

			case stateInput:
				return m, m.run

			case stateResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInput && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			if m.state != stateSelect {
				m.reset()
			}
		}

	case resultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateResult
	}

	if m.state == stateInput {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *exploreModel) reset() {
	m.state = stateSelect
	m.inputs = nil
	m.result = ""
	m.err = nil
}

func (m *exploreModel) prepareInputs() {
	sel := m.members[m.selected]
	kinds := sel.params()
	m.inputs = make([]textinput.Model, len(kinds))
	for i, k := range kinds {
		ti := textinput.New()
		ti.Placeholder = k.String()
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		if sel.global != nil {
			ti.Prompt = "value: "
		}
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// run calls the selected function, or writes then reads the selected
// global, with the values typed into the inputs.
func (m *exploreModel) run() tea.Msg {
	ctx := context.Background()
	sel := m.members[m.selected]

	raw := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		raw[i] = strings.TrimSpace(in.Value())
	}

	var out strings.Builder
	var err error
	if sel.fn != nil {
		err = callFunction(ctx, &out, m.session, sel.fn.Name(), raw)
	} else {
		err = m.runGlobal(&out, sel.global, raw)
	}
	return resultMsg{result: strings.TrimSpace(out.String()), err: err}
}

func (m *exploreModel) runGlobal(w io.Writer, g *runtime.Global, raw []string) error {
	if len(raw) == 0 {
		v, err := g.Get()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, formatValue(v.Any()))
		return nil
	}
	return setGlobal(w, m.session, g.Name(), raw[0])
}

func (m *exploreModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("wasmhost"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if len(m.members) == 0 {
		b.WriteString("The instance exports no functions or globals.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelect:
		b.WriteString("Select a function to call or a global to read:\n\n")
		for i, mem := range m.members {
			line := m.formatMember(mem)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • q quit"))

	case stateInput:
		sel := m.members[m.selected]
		kinds := sel.params()
		fmt.Fprintf(&b, "%s\n\n", m.formatMember(sel))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(kinds[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter run • esc back"))

	case stateResult:
		sel := m.members[m.selected]
		fmt.Fprintf(&b, "Result of %s:\n\n", funcStyle.Render(sel.name()))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *exploreModel) formatMember(mem member) string {
	if mem.fn != nil {
		return funcStyle.Render(mem.fn.Name()) + " " + typeStyle.Render(mem.fn.Type().String())
	}
	value := formatValue(mem.global.Value())
	return globalStyle.Render(mem.global.Name()) + " " + typeStyle.Render(mem.global.Type().String()) + " = " + value
}
