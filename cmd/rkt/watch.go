package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"racket/internal/game"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	readyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func newWatchCmd(apiBase *string) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of your slots and claimable earnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if every < time.Second {
				return fmt.Errorf("--every must be at least 1s")
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			sess, err := loadSession(ctx, client)
			cancel()
			if err != nil {
				return err
			}
			load := func(ctx context.Context) (game.PlayerView, error) {
				return client.Player(ctx, sess.AccessToken)
			}
			_, err = tea.NewProgram(newWatchModel(load, every)).Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&every, "every", 5*time.Second, "refresh interval")
	return cmd
}

type playerMsg struct {
	view game.PlayerView
	err  error
	at   time.Time
}

type refreshMsg struct{}

type watchModel struct {
	load    func(ctx context.Context) (game.PlayerView, error)
	every   time.Duration
	spinner spinner.Model
	view    *game.PlayerView
	err     error
	fetched time.Time
	loading bool
}

func newWatchModel(load func(ctx context.Context) (game.PlayerView, error), every time.Duration) watchModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = dimStyle
	return watchModel{load: load, every: every, spinner: s, loading: true}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m watchModel) fetch() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		view, err := load(ctx)
		return playerMsg{view: view, err: err, at: time.Now()}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.fetch()
		}
	case playerMsg:
		m.loading = false
		m.fetched = msg.at
		m.err = msg.err
		if msg.err == nil {
			view := msg.view
			m.view = &view
		}
		return m, tea.Tick(m.every, func(time.Time) tea.Msg { return refreshMsg{} })
	case refreshMsg:
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.fetch()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RACKET"))
	if m.loading {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n")

	if m.view == nil {
		if m.err != nil {
			b.WriteString(errStyle.Render(m.err.Error()) + "\n")
		} else {
			b.WriteString(dimStyle.Render("loading ledger...") + "\n")
		}
		b.WriteString(dimStyle.Render("q quit") + "\n")
		return b.String()
	}

	v := m.view
	claim := formatCoins(v.Claimable)
	if v.CanClaim && v.Claimable > 0 {
		claim = readyStyle.Render(claim + " ready")
	} else if v.NextClaimAt > 0 {
		claim += dimStyle.Render(" next " + formatUnix(v.NextClaimAt))
	}
	summary := fmt.Sprintf("Claimable  %s\nEarned     %s\nInvested   %s\nActive     %d / %d",
		claim, formatCoins(v.TotalEarned), formatCoins(v.TotalInvested), v.ActiveBusinesses, game.SlotCount)
	b.WriteString(boxStyle.Render(summary) + "\n")

	for _, s := range v.Slots {
		line := fmt.Sprintf("%d %-10s ", s.Index, s.Tier)
		switch {
		case !s.Unlocked:
			line += dimStyle.Render("locked")
		case s.Business == nil:
			line += dimStyle.Render("empty")
		default:
			line += fmt.Sprintf("%-20s L%d  %s/day  %s", truncate(s.Business.Name, 20), s.Business.UpgradeLevel,
				formatCoins(s.Business.DailyEarnings), formatCoins(s.Business.Claimable))
		}
		b.WriteString(line + "\n")
	}

	if m.err != nil {
		b.WriteString(errStyle.Render("refresh failed: "+m.err.Error()) + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("updated %s  r refresh  q quit", m.fetched.Local().Format("15:04:05"))) + "\n")
	return b.String()
}
