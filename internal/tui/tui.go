package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func padToWidth(s string, width int) string {
	current := runewidth.StringWidth(s)
	if current >= width {
		return s
	}
	return s + strings.Repeat(" ", width-current)
}

func truncToWidth(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	truncated := ""
	for _, r := range []rune(s) {
		if runewidth.StringWidth(truncated+string(r)) > width-3 {
			break
		}
		truncated += string(r)
	}
	return truncated + "..."
}

func separatorLine(width int) string {
	if width < 2 {
		return strings.Repeat("─", width)
	}
	return "├" + strings.Repeat("─", width-2) + "┤"
}

func formatInfoLine(text string, width int) string {
	if width < 2 {
		return padToWidth(text, width)
	}
	return "│" + padToWidth(text, width-2) + "│"
}

// EngineInfo is the dashboard header state
type EngineInfo struct {
	Now               time.Time
	LastRecompute     time.Time
	SystemTotalWeight float64
	Contributors      int
	OpenProposals     int
	DBDialect         string
}

// ProposalInfo is one row of the proposals table
type ProposalInfo struct {
	ID             string
	Tier           int
	Status         string
	Round          int
	RequiredRounds int
	RoundClosesAt  time.Time
	Support        float64
	Veto           float64
	Abstain        float64
	Threshold      float64
	HasTally       bool // false until the first round of this proposal closes
}

// UpdateMsg is sent when engine info should be updated
type UpdateMsg struct {
	Info EngineInfo
}

// ProposalsUpdateMsg is sent when the proposals list should be updated
type ProposalsUpdateMsg struct {
	Proposals []ProposalInfo
}

// Model holds the TUI state
type Model struct {
	info      EngineInfo
	proposals []ProposalInfo
	width     int
	height    int
}

// NewModel creates a new TUI model
func NewModel() Model {
	return Model{}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case UpdateMsg:
		m.info = msg.Info
		return m, nil

	case ProposalsUpdateMsg:
		m.proposals = msg.Proposals
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	table := m.renderProposals()

	return lipgloss.JoinVertical(lipgloss.Left, header, table)
}

// renderHeader renders the top header section
func (m Model) renderHeader() string {
	colWidth := (m.width - 4) / 3
	rightColWidth := m.width - colWidth*2 - 4

	recompute := "never"
	if !m.info.LastRecompute.IsZero() {
		recompute = m.info.LastRecompute.Format("15:04:05")
	}

	leftLines := []string{
		"governance engine",
		fmt.Sprintf("db: %s", m.info.DBDialect),
		fmt.Sprintf("last recompute: %s", recompute),
	}
	middleLines := []string{
		fmt.Sprintf("contributors: %d", m.info.Contributors),
		fmt.Sprintf("system weight: %.2f", m.info.SystemTotalWeight),
		fmt.Sprintf("open proposals: %d", m.info.OpenProposals),
	}
	rightLines := []string{
		"",
		"",
		m.info.Now.Format("2006-01-02 15:04:05"),
	}

	var rows []string
	for i := 0; i < 3; i++ {
		left := truncToWidth(leftLines[i], colWidth-2)
		middle := truncToWidth(middleLines[i], colWidth-2)
		right := truncToWidth(rightLines[i], rightColWidth-2)
		rows = append(rows, fmt.Sprintf("│ %s │ %s │ %s │",
			padToWidth(left, colWidth-2),
			padToWidth(middle, colWidth-2),
			padToWidth(right, rightColWidth-2)))
	}

	topBorder := fmt.Sprintf("┌%s┬%s┬%s┐",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))
	separator := fmt.Sprintf("├%s┴%s┴%s┤",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))

	return topBorder + "\n" + strings.Join(rows, "\n") + "\n" + separator
}

// renderProposals renders the open proposals table
func (m Model) renderProposals() string {
	availableHeight := m.height - 7
	if availableHeight <= 2 {
		return ""
	}

	maxRows := availableHeight - 3
	if maxRows <= 0 {
		return ""
	}

	var lines []string
	for i, p := range m.proposals {
		if i >= maxRows {
			break
		}

		tally := "awaiting first close"
		if p.HasTally {
			tally = fmt.Sprintf("support=%8.2f veto=%8.2f abstain=%8.2f thr=%6.0f",
				p.Support, p.Veto, p.Abstain, p.Threshold)
		}
		closes := p.RoundClosesAt.Format("2006-01-02 15:04")
		line := fmt.Sprintf(" %-20s tier=%d round=%d/%d closes=%s  %s",
			truncToWidth(p.ID, 20), p.Tier, p.Round, p.RequiredRounds, closes, tally)
		lines = append(lines, formatInfoLine(truncToWidth(line, m.width-2), m.width))
	}
	if len(lines) == 0 {
		lines = append(lines, formatInfoLine(" no open proposals", m.width))
	}

	bottomBorder := "└" + strings.Repeat("─", m.width-2) + "┘"

	return strings.Join(lines, "\n") + "\n" +
		separatorLine(m.width) + "\n" +
		formatInfoLine(" ID, Tier, Round, Window Close, Last Tally", m.width) + "\n" +
		bottomBorder
}

// Run starts the TUI and processes updates from the channel until it closes
func Run(updateCh <-chan interface{}) error {
	m := NewModel()
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Start goroutine to receive updates
	go func() {
		for data := range updateCh {
			if info, ok := data.(EngineInfo); ok {
				p.Send(UpdateMsg{Info: info})
			} else if proposals, ok := data.([]ProposalInfo); ok {
				p.Send(ProposalsUpdateMsg{Proposals: proposals})
			}
		}
		p.Quit()
	}()

	_, err := p.Run()
	return err
}
