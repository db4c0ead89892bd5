package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/roost/internal/engine"
)

func (m Model) renderDashboard() string {
	header := m.renderHeader()
	footer := m.renderFooter()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	body := lipgloss.Place(
		m.width,
		max(bodyHeight, 0),
		lipgloss.Center,
		lipgloss.Top,
		m.renderTiles(),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()

	left := styles.Logo.Render("roost")
	if m.controllerURL != "" {
		left += styles.MutedText.Render("  " + m.controllerURL)
	}

	right := m.connectionLabel()

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	line := left + strings.Repeat(" ", max(gap, 1)) + right
	return styles.Header.Width(m.width).Render(line)
}

func (m Model) connectionLabel() string {
	styles := m.theme.Styles()
	switch {
	case !m.reported:
		return styles.FaintText.Render("○ connecting")
	case m.online:
		return styles.SuccessText.Render("● online") +
			styles.MutedText.Render("  synced "+formatAge(m.now.Sub(m.lastSync)))
	default:
		label := styles.DangerText.Render("● offline")
		if !m.lastSync.IsZero() {
			label += styles.MutedText.Render("  last sync " + m.lastSync.Format("15:04:05"))
		}
		return label
	}
}

func (m Model) renderTiles() string {
	styles := m.theme.Styles()

	rows := make([]string, 0, len(m.tiles)+2)
	for i, t := range m.tiles {
		rows = append(rows, m.renderTile(i, t))
		if i == 0 {
			rows = append(rows, styles.FaintText.Render(strings.Repeat("─", 36)))
		}
	}
	if !m.manual {
		rows = append(rows, "", styles.WarningText.Render("Automation is on; devices are locked."))
	}

	return styles.Tile.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderTile(i int, t tile) string {
	styles := m.theme.Styles()
	enabled := t.target.IsAutomation() || m.manual

	shortcut := "a"
	if !t.target.IsAutomation() {
		shortcut = fmt.Sprintf("%d", i)
	}

	label := lipgloss.NewStyle().Width(14).Render(t.target.Label())
	if !enabled {
		label = styles.FaintText.Render(label)
	}

	value := "--"
	if t.known {
		value = strings.ToUpper(onOff(t.on))
	}
	badge := styles.BadgeStyle(t.on, t.known, enabled).Width(5).Align(lipgloss.Center).Render(value)

	status := "  "
	if t.pending {
		status = m.spinner.View()
	}

	row := fmt.Sprintf(" %s  %s %s %s ", styles.AccentText.Render(shortcut), label, badge, status)
	if i == m.selected {
		return styles.Selected.Render(row)
	}
	return row
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.notice.text == "" {
		return styles.Footer.Width(m.width).Render(m.help.View(m.keys))
	}
	return styles.Footer.Width(m.width).Render(m.noticeStyle().Render(m.notice.text))
}

func (m Model) noticeStyle() lipgloss.Style {
	styles := m.theme.Styles()
	switch m.notice.severity {
	case engine.SeverityError:
		return styles.DangerText
	case engine.SeverityWarning:
		return styles.WarningText
	case engine.SeveritySuccess:
		return styles.SuccessText
	default:
		return styles.InfoText
	}
}

// formatAge renders a duration since the last sync for the header.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	default:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
