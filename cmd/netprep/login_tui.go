package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var errLoginCancelled = errors.New("login cancelled")

type loginView int

const (
	emailView loginView = iota
	passwordView
)

const (
	txtEmailPlaceholder    = "you@example.com"
	txtPasswordPlaceholder = "password"
	txtEmailPrompt         = "Email"
	txtPasswordPrompt      = "Password for %s"
	txtLoggingIn           = "Logging in..."
	txtInvalidEmail        = "Invalid email"
	txtEmptyPassword       = "Password is required"
	txtLoginHelp           = "Enter to submit. Esc to go back. Ctrl+C to quit."
)

var (
	tuiFocused     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	tuiGray        = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	tuiRed         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	tuiCyan        = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	tuiTitle       = tuiCyan.Bold(true)
	tuiErrorHeader = tuiRed.Bold(true)
)

type loginTUIOpts struct {
	Email     string
	ServerURL string
	DataDir   string
	Remember  bool
	// Submit performs the login. The prompt stays open and shows the error when it fails.
	Submit func(email, password string) error
}

type loginModel struct {
	opts *loginTUIOpts

	emailInput    textinput.Model
	passwordInput textinput.Model
	spinner       spinner.Model

	view      loginView
	isLoading bool
	errorMsg  string
	loggedIn  bool
	email     string
}

type loginDoneMsg struct{ err error }

func newLoginModel(opts *loginTUIOpts) loginModel {
	email := textinput.New()
	email.Placeholder = txtEmailPlaceholder
	email.CharLimit = 128
	email.Width = 48
	email.PromptStyle = tuiFocused
	email.TextStyle = tuiFocused
	email.PlaceholderStyle = tuiGray
	email.SetValue(opts.Email)

	password := textinput.New()
	password.Placeholder = txtPasswordPlaceholder
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 48
	password.PromptStyle = tuiFocused
	password.TextStyle = tuiFocused
	password.PlaceholderStyle = tuiGray

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = tuiCyan

	m := loginModel{
		opts:          opts,
		emailInput:    email,
		passwordInput: password,
		spinner:       s,
	}

	// an email given on the command line skips straight to the password
	if opts.Email != "" && isValidEmail(opts.Email) {
		m.email = opts.Email
		m.view = passwordView
		m.passwordInput.Focus()
	} else {
		m.emailInput.Focus()
	}
	return m
}

func (m loginModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			return m.back()
		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			if m.view == emailView {
				return m.submitEmail()
			}
			return m.submitPassword()
		}

		m.errorMsg = ""
		if m.emailInput.Focused() {
			m.emailInput, cmd = m.emailInput.Update(msg)
			cmds = append(cmds, cmd)
		} else if m.passwordInput.Focused() {
			m.passwordInput, cmd = m.passwordInput.Update(msg)
			cmds = append(cmds, cmd)
		}

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case loginDoneMsg:
		m.isLoading = false
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("%s %s", tuiErrorHeader.Render("ERROR:"), msg.err.Error())
			m.passwordInput.SetValue("")
			m.passwordInput.Focus()
			return m, textinput.Blink
		}
		m.loggedIn = true
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

func (m loginModel) back() (tea.Model, tea.Cmd) {
	if m.view == passwordView && !m.isLoading {
		m.view = emailView
		m.passwordInput.Blur()
		m.passwordInput.SetValue("")
		m.emailInput.Focus()
		m.errorMsg = ""
		return m, textinput.Blink
	}
	return m, tea.Quit
}

func (m loginModel) submitEmail() (tea.Model, tea.Cmd) {
	email := strings.TrimSpace(m.emailInput.Value())
	if !isValidEmail(email) {
		m.errorMsg = txtInvalidEmail
		return m, nil
	}

	m.errorMsg = ""
	m.email = email
	m.view = passwordView
	m.emailInput.Blur()
	m.passwordInput.Focus()
	return m, textinput.Blink
}

func (m loginModel) submitPassword() (tea.Model, tea.Cmd) {
	password := m.passwordInput.Value()
	if password == "" {
		m.errorMsg = txtEmptyPassword
		return m, nil
	}

	m.errorMsg = ""
	m.isLoading = true
	m.passwordInput.Blur()

	email, submit := m.email, m.opts.Submit
	return m, func() tea.Msg {
		return loginDoneMsg{err: submit(email, password)}
	}
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString(tuiTitle.Render("Netprep login"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%s\n", tuiGray.Render("Server  "), tuiFocused.Render(m.opts.ServerURL))
	fmt.Fprintf(&b, "%s%s\n", tuiGray.Render("Data    "), tuiFocused.Render(m.opts.DataDir))
	if m.opts.Remember {
		fmt.Fprintf(&b, "%s%s\n", tuiGray.Render("Session "), "remembered on this device")
	}
	b.WriteString("\n")

	switch m.view {
	case emailView:
		b.WriteString(txtEmailPrompt)
		b.WriteString("\n\n")
		b.WriteString(m.emailInput.View())
	case passwordView:
		fmt.Fprintf(&b, txtPasswordPrompt, tuiFocused.Render(m.email))
		b.WriteString("\n\n")
		b.WriteString(m.passwordInput.View())
	}

	if m.isLoading {
		fmt.Fprintf(&b, "\n\n%s %s", m.spinner.View(), txtLoggingIn)
	}
	if m.errorMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(tuiRed.Render(m.errorMsg))
	}
	b.WriteString("\n\n")
	b.WriteString(tuiGray.Render(txtLoginHelp))
	b.WriteString("\n")
	return b.String()
}

// runLoginTUI prompts for the missing credentials on the terminal and logs in through
// opts.Submit. It returns the email that logged in.
func runLoginTUI(opts loginTUIOpts, progOpts ...tea.ProgramOption) (string, error) {
	final, err := tea.NewProgram(newLoginModel(&opts), progOpts...).Run()
	if err != nil {
		return "", fmt.Errorf("login prompt: %w", err)
	}

	fm, ok := final.(loginModel)
	if !ok || !fm.loggedIn {
		return "", errLoginCancelled
	}
	return fm.email, nil
}

func isValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t") &&
		strings.Contains(email[at+1:], ".")
}
