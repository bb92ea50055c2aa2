package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/money"
)

var debtFilters = []struct {
	label    string
	statuses []ledger.Status
}{
	{"Outstanding", []ledger.Status{ledger.StatusPending, ledger.StatusOverdue}},
	{"Overdue", []ledger.Status{ledger.StatusOverdue}},
	{"Paid", []ledger.Status{ledger.StatusPaid}},
	{"All", nil},
}

type DebtsModel struct {
	CommonModel
	ledger LedgerService

	// memberName is empty when listing every member's debts.
	memberID   *uuid.UUID
	memberName string

	table     table.Model
	debts     []*ledger.Debt
	filterIdx int

	loading bool
	err     error
}

func NewDebtsModel(l LedgerService, memberID *uuid.UUID, memberName string) DebtsModel {
	return DebtsModel{
		ledger:     l,
		memberID:   memberID,
		memberName: memberName,
		table: newTable([]table.Column{
			{Title: "Due", Width: 11},
			{Title: "Description", Width: 34},
			{Title: "Type", Width: 13},
			{Title: "Amount", Width: 10},
			{Title: "Status", Width: 8},
		}),
		loading: true,
	}
}

func (m DebtsModel) Title() string { return "Debts" }

func (m DebtsModel) ShortHelp() string {
	return "Esc: back | s: status filter | r: refresh"
}

func (m DebtsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m DebtsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadDebtsMsg:
		m.loading = false
		m.err = msg.err
		m.debts = msg.debts
		m.table.SetRows(debtRows(m.debts))

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-10, 5))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "s":
			m.filterIdx = (m.filterIdx + 1) % len(debtFilters)
			return m, m.loadCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m DebtsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading debts...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n(r to retry, Esc to go back)")
	}

	who := "All members"
	if m.memberName != "" {
		who = m.memberName
	}

	header := fmt.Sprintf("%s | [s] Status: %s | Outstanding: %s",
		who,
		activeStyle(debtFilters[m.filterIdx].label),
		money.Display(ledger.TotalOutstanding(m.debts)),
	)

	return lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		framed(m.table.View()),
	))
}

func debtRows(debts []*ledger.Debt) []table.Row {
	rows := make([]table.Row, 0, len(debts))
	for _, d := range debts {
		rows = append(rows, table.Row{
			FormatDate(d.DueDate),
			d.Description,
			string(d.Type),
			money.Display(d.Amount),
			string(d.Status),
		})
	}

	return rows
}

type loadDebtsMsg struct {
	debts []*ledger.Debt
	err   error
}

func (m DebtsModel) loadCmd() tea.Cmd {
	filter := ledger.DebtFilter{
		MemberID: m.memberID,
		Statuses: debtFilters[m.filterIdx].statuses,
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		debts, err := m.ledger.ListDebts(ctx, filter)

		return loadDebtsMsg{debts: debts, err: err}
	}
}
