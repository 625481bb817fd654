package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nyxkrage/quotabar/pkg/client"
	"github.com/nyxkrage/quotabar/pkg/dashboard"
	"github.com/nyxkrage/quotabar/pkg/engine"
	"github.com/nyxkrage/quotabar/pkg/provider"
	"github.com/nyxkrage/quotabar/pkg/statuspage"
)

// Config
const (
	pollRate     = 2 * time.Second
	fetchTimeout = time.Second
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Width(10)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(64)
)

type tickMsg time.Time

type dataMsg struct {
	usage   map[provider.ID]engine.ProviderState
	status  map[provider.ID]statuspage.Status
	credits engine.CreditsState
	dash    *dashboard.View
	err     error
}

type refreshedMsg struct{ err error }

type model struct {
	api     *client.Client
	spinner spinner.Model
	bar     progress.Model

	usage   map[provider.ID]engine.ProviderState
	status  map[provider.ID]statuspage.Status
	credits engine.CreditsState
	dash    *dashboard.View
	err     error
	ready   bool
}

func initialModel(api *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:     api,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, requestRefresh(m.api)
		}

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api), tick())

	case refreshedMsg:
		if msg.err != nil {
			m.err = msg.err
		}

	case dataMsg:
		m.err = msg.err
		if msg.err == nil {
			m.usage = msg.usage
			m.status = msg.status
			m.credits = msg.credits
			m.dash = msg.dash
		}
		m.ready = true
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting to quotabar-d...", m.spinner.View())
	}

	var panes []string
	for _, id := range provider.All() {
		state, ok := m.usage[id]
		if !ok {
			continue
		}
		panes = append(panes, paneStyle.Render(m.renderProvider(id, state)))
	}

	if m.credits.Snapshot != nil || m.credits.Loading || m.credits.Err != "" {
		panes = append(panes, paneStyle.Render(m.renderCredits()))
	}
	if m.dash != nil && (m.dash.Snapshot != nil || m.dash.RequiresLogin || m.dash.Err != "") {
		panes = append(panes, paneStyle.Render(m.renderDashboard()))
	}

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render("Online")
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress r to refresh, q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, append(panes, footer)...)
}

func (m model) renderProvider(id provider.ID, state engine.ProviderState) string {
	var sb strings.Builder

	title := titleStyle.Render(strings.ToUpper(string(id)))
	if st, ok := m.status[id]; ok && st.Indicator != statuspage.IndicatorNone {
		title += "  " + warnStyle.Render(fmt.Sprintf("[%s] %s", st.Indicator, st.Description))
	}
	sb.WriteString(title + "\n")

	if state.Err != "" {
		sb.WriteString(errorStyle.Render(state.Err))
		return sb.String()
	}
	if state.Snapshot == nil {
		sb.WriteString(subtleStyle.Render("no data yet"))
		return sb.String()
	}

	snap := state.Snapshot
	sb.WriteString(m.renderWindow("session", snap.Primary))
	sb.WriteString(m.renderWindow("weekly", snap.Secondary))
	if snap.Tertiary != nil {
		sb.WriteString(m.renderWindow("opus", *snap.Tertiary))
	}
	if snap.AccountEmail != "" {
		sb.WriteString(subtleStyle.Render(snap.AccountEmail))
	}
	if state.LastTransition == engine.TransitionDepleted {
		sb.WriteString("  " + errorStyle.Render("depleted"))
	}
	return sb.String()
}

func (m model) renderWindow(name string, w provider.RateWindow) string {
	line := labelStyle.Render(name) + m.bar.ViewAs(w.UsedPercent/100)
	if w.ResetsAt != nil {
		line += subtleStyle.Render("  resets " + w.ResetsAt.Local().Format("15:04"))
	}
	return line + "\n"
}

func (m model) renderCredits() string {
	title := titleStyle.Render("CREDITS") + "\n"
	switch {
	case m.credits.Loading:
		return title + subtleStyle.Render("still loading...")
	case m.credits.Err != "":
		return title + errorStyle.Render(m.credits.Err)
	default:
		s := m.credits.Snapshot
		return title + fmt.Sprintf("%.2f %s", s.Balance, s.Currency)
	}
}

func (m model) renderDashboard() string {
	title := titleStyle.Render("DASHBOARD") + "\n"
	v := m.dash
	if v.RequiresLogin && v.Snapshot == nil {
		return title + warnStyle.Render("login required")
	}
	if v.Snapshot == nil {
		return title + errorStyle.Render(v.Err)
	}
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString(fmt.Sprintf("%s (%s)\n", v.Snapshot.SignedInEmail, v.Snapshot.PlanType))
	sb.WriteString(fmt.Sprintf("tokens today %d, this week %d", v.Snapshot.DailyTokens, v.Snapshot.WeeklyTokens))
	if v.Cached {
		sb.WriteString("  " + warnStyle.Render("(cached, refresh failed)"))
	}
	return sb.String()
}

// Commands

func fetchData(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		usage, err := api.Usage(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		status, err := api.Status(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		credits, err := api.Credits(ctx)
		if err != nil {
			return dataMsg{err: err}
		}

		msg := dataMsg{usage: usage, status: status, credits: credits}
		// Dashboard may be disabled; a 404 is not an error here.
		if view, err := api.Dashboard(ctx); err == nil {
			msg.dash = &view
		}
		return msg
	}
}

func requestRefresh(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return refreshedMsg{err: api.Refresh(ctx)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	api := client.NewClient(os.Getenv("QUOTABAR_API_URL"))

	p := tea.NewProgram(initialModel(api), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
