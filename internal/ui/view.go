package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tasks/internal/config"
	"tasks/internal/tasks"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	doneStyle    = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("243"))
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Task Manager"))
	b.WriteString("\n\n")

	if m.lastError != "" {
		b.WriteString(errorStyle.Render(m.lastError))
		b.WriteString("\n\n")
	}

	if m.mode == modeAdd {
		b.WriteString(m.renderForm())
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Filter by Category: %s\n\n", m.filterCategory))
	b.WriteString(m.renderTaskList())

	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(renderHelp(m.cfg.Keys))

	return b.String()
}

func (m Model) renderForm() string {
	label := func(f field, name string) string {
		if m.focus == f {
			return focusStyle.Render("> " + name)
		}
		return "  " + name
	}
	var b strings.Builder
	b.WriteString(label(fieldText, "Task    : "))
	b.WriteString(m.draftText.View())
	b.WriteString("\n")
	b.WriteString(label(fieldCategory, "Category: "))
	b.WriteString(fmt.Sprintf("< %s >", m.categories[m.draftCategory]))
	b.WriteString("\n")
	b.WriteString(label(fieldDue, "Due     : "))
	b.WriteString(m.draftDue.View())
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderTaskList() string {
	view := m.FilteredTasks()
	if len(view) == 0 {
		return "No tasks yet\n"
	}
	var b strings.Builder
	for i, e := range view {
		cursor := " "
		if m.cursor == i && m.mode == modeList {
			cursor = ">"
		}
		checkbox := "[ ]"
		if e.Done {
			checkbox = "[x]"
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n", cursor, checkbox, styleEntry(e)))
		b.WriteString("      ")
		b.WriteString(metaStyle.Render(describe(e)))
		b.WriteString("\n")
	}
	return b.String()
}

func styleEntry(e tasks.Entry) string {
	switch {
	case e.Done:
		return doneStyle.Render(e.Text)
	case e.Overdue:
		return overdueStyle.Render(e.Text)
	default:
		return e.Text
	}
}

func describe(e tasks.Entry) string {
	due := e.DueString()
	if due == "" {
		due = "No due date"
	}
	return fmt.Sprintf("%s | %s", e.CategoryOr("No category"), due)
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s toggle • %s delete • %s filter • %s refresh • %s quit",
		k.Up, k.Down, k.Add, keyName(k.Toggle), k.Delete, k.Filter, k.Refresh, k.Quit)
}

func keyName(k string) string {
	if k == " " {
		return "space"
	}
	return k
}
