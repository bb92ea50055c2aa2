package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/money"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

type membersState int

const (
	membersStateBrowse membersState = iota
	membersStateAdd
	membersStatePay
)

// OpenDebtsMsg asks the console to show one member's debts.
type OpenDebtsMsg struct {
	MemberID uuid.UUID
	Name     string
}

// memberForm and paymentForm live behind pointers so huh keeps writing to the same
// values while the model is copied between updates.
type memberForm struct {
	name     string
	phone    string
	dues     string
	joinDate string
}

type paymentForm struct {
	amount string
	date   string
	notes  string
}

type MembersModel struct {
	CommonModel
	members  MemberService
	ledger   LedgerService
	payments PaymentService

	state   membersState
	table   table.Model
	rows    []*member.Member
	form    *huh.Form
	newForm *memberForm
	payForm *paymentForm

	statusFilterIdx int
	filter          member.ListFilter
	defaultDues     int64

	loading bool
	saving  bool
	err     error
	status  string
}

func NewMembersModel(members MemberService, l LedgerService, payments PaymentService, defaultDues int64) MembersModel {
	return MembersModel{
		members:  members,
		ledger:   l,
		payments: payments,
		table: newTable([]table.Column{
			{Title: "Name", Width: 24},
			{Title: "Phone", Width: 14},
			{Title: "Status", Width: 9},
			{Title: "Joined", Width: 11},
			{Title: "Dues", Width: 10},
			{Title: "Total Debt", Width: 12},
		}),
		defaultDues: defaultDues,
		loading:     true,
	}
}

func (m MembersModel) Title() string { return "Members" }

func (m MembersModel) ShortHelp() string {
	if m.state != membersStateBrowse {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | a: add | p: record payment | d: debts | s: status filter | r: refresh"
}

func (m MembersModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m MembersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadMembersMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.rows = msg.members
		m.table.SetRows(memberRows(m.rows))

		return m, nil

	case memberSavedMsg:
		m.status = msg.text
		m.closeForm()

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-10, 5))
		return m, nil
	}

	if m.state != membersStateBrowse {
		return m.updateForm(msg)
	}

	return m.updateBrowse(msg)
}

func (m MembersModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % 3
			m.applyFilter()

			return m, m.loadCmd()
		case "a":
			return m.openAddForm()
		case "p":
			return m.openPayForm()
		case "d":
			if sel := m.selected(); sel != nil {
				return m, func() tea.Msg { return OpenDebtsMsg{MemberID: sel.ID, Name: sel.Name} }
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m *MembersModel) applyFilter() {
	switch m.statusFilterIdx {
	case 1:
		m.filter.Status = new(member.StatusActive)
	case 2:
		m.filter.Status = new(member.StatusInactive)
	default:
		m.filter.Status = nil
	}
}

func (m MembersModel) selected() *member.Member {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return nil
	}

	return m.rows[idx]
}

func (m MembersModel) openAddForm() (tea.Model, tea.Cmd) {
	m.newForm = &memberForm{
		dues:     money.Format(m.defaultDues),
		joinDate: FormatDate(time.Now()),
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&m.newForm.name).Validate(func(s string) error {
				if len(strings.TrimSpace(s)) < 2 {
					return fmt.Errorf("name must be at least 2 characters")
				}
				return nil
			}),
			huh.NewInput().Title("Phone").Placeholder("+923001234567").Value(&m.newForm.phone),
			huh.NewInput().Title("Monthly dues").Value(&m.newForm.dues).Validate(validAmount),
			huh.NewInput().Title("Join date").Placeholder(time.DateOnly).Value(&m.newForm.joinDate).Validate(validDate),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = membersStateAdd
	m.table.Blur()

	return m, m.form.Init()
}

func (m MembersModel) openPayForm() (tea.Model, tea.Cmd) {
	if m.selected() == nil {
		return m, nil
	}

	m.payForm = &paymentForm{date: FormatDate(time.Now())}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Amount").Value(&m.payForm.amount).Validate(validAmount),
			huh.NewInput().Title("Payment date").Placeholder(time.DateOnly).Value(&m.payForm.date).Validate(validDate),
			huh.NewInput().Title("Notes").Value(&m.payForm.notes),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = membersStatePay
	m.table.Blur()

	return m, m.form.Init()
}

func (m *MembersModel) closeForm() {
	m.state = membersStateBrowse
	m.saving = false
	m.form = nil
	m.newForm = nil
	m.payForm = nil
	m.table.Focus()
}

func (m MembersModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.saving {
		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.closeForm()
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.saving = true

	if m.state == membersStateAdd {
		return m, m.createCmd(*m.newForm)
	}

	return m, m.payCmd(m.selected(), *m.payForm)
}

func (m MembersModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading members...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n(r to retry, Esc to go back)")
	}

	statusLabels := []string{"All", "Active", "Inactive"}
	header := fmt.Sprintf("Filter: [s] Status: %s | %d members", activeStyle(statusLabels[m.statusFilterIdx]), len(m.rows))

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		framed(m.table.View()),
	)

	if m.form != nil {
		title := "New Member"
		if m.state == membersStatePay {
			if sel := m.selected(); sel != nil {
				title = fmt.Sprintf("Payment from %s\nOwes %s", sel.Name, money.Display(sel.TotalDebt))
			}
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(title + "\n\n" + m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func memberRows(members []*member.Member) []table.Row {
	rows := make([]table.Row, 0, len(members))
	for _, mb := range members {
		phone := ""
		if mb.Phone != nil {
			phone = *mb.Phone
		}

		rows = append(rows, table.Row{
			mb.Name,
			phone,
			string(mb.Status),
			FormatDate(mb.JoinDate),
			money.Display(mb.MonthlyDues),
			money.Display(mb.TotalDebt),
		})
	}

	return rows
}

func validAmount(s string) error {
	_, err := money.Parse(s)
	return err
}

func validDate(s string) error {
	_, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	return err
}

func (f memberForm) params() (member.CreateParams, error) {
	dues, err := money.Parse(f.dues)
	if err != nil {
		return member.CreateParams{}, err
	}

	joined, err := time.Parse(time.DateOnly, strings.TrimSpace(f.joinDate))
	if err != nil {
		return member.CreateParams{}, fmt.Errorf("join date: %w", err)
	}

	p := member.CreateParams{
		Name:        strings.TrimSpace(f.name),
		Status:      member.StatusActive,
		JoinDate:    joined,
		MonthlyDues: dues,
	}

	if phone := strings.TrimSpace(f.phone); phone != "" {
		p.Phone = &phone
	}

	return p, nil
}

func (f paymentForm) params(memberID uuid.UUID) (payment.CreateParams, error) {
	amount, err := money.Parse(f.amount)
	if err != nil {
		return payment.CreateParams{}, err
	}

	date, err := time.Parse(time.DateOnly, strings.TrimSpace(f.date))
	if err != nil {
		return payment.CreateParams{}, fmt.Errorf("payment date: %w", err)
	}

	p := payment.CreateParams{
		MemberID:    memberID,
		Amount:      amount,
		PaymentDate: date,
		Month:       int(date.Month()),
		Year:        date.Year(),
	}

	if notes := strings.TrimSpace(f.notes); notes != "" {
		p.Notes = &notes
	}

	return p, nil
}

// describeReceipt summarises where a recorded payment went.
func describeReceipt(name string, r *payment.Receipt) string {
	if r == nil || r.Allocation == nil {
		return fmt.Sprintf("Payment from %s saved but not yet applied to debts.", name)
	}

	a := r.Allocation

	var b strings.Builder
	fmt.Fprintf(&b, "%s paid %s: %d debt(s) cleared", name, money.Display(a.Amount), len(a.Paid))

	if a.Remainder != nil {
		fmt.Fprintf(&b, ", %s still owed on %s", money.Display(a.Remainder.Amount), a.Remainder.Description)
	}

	if a.Unapplied > 0 {
		fmt.Fprintf(&b, ", %s unapplied", money.Display(a.Unapplied))
	}

	fmt.Fprintf(&b, ". Total debt now %s.", money.Display(a.TotalDebt))

	return b.String()
}

// Messages

type loadMembersMsg struct {
	members []*member.Member
	err     error
}

type memberSavedMsg struct {
	text string
}

func (m MembersModel) loadCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		members, err := m.members.List(ctx, filter)

		return loadMembersMsg{members: members, err: err}
	}
}

func (m MembersModel) createCmd(f memberForm) tea.Cmd {
	return func() tea.Msg {
		params, err := f.params()
		if err != nil {
			return memberSavedMsg{text: fmt.Sprintf("Error: %v", err)}
		}

		ctx, cancel := DbCtx()
		defer cancel()

		mb, err := m.members.Create(ctx, params)
		if err != nil {
			return memberSavedMsg{text: fmt.Sprintf("Error creating member: %v", err)}
		}

		res, err := m.ledger.GenerateHistoricalDebts(ctx, mb.ID)
		if err != nil {
			return memberSavedMsg{text: fmt.Sprintf("Added %s, but backfilling dues failed: %v", mb.Name, err)}
		}

		return memberSavedMsg{text: fmt.Sprintf("Added %s with %d dues month(s) backfilled.", mb.Name, res.Created)}
	}
}

func (m MembersModel) payCmd(mb *member.Member, f paymentForm) tea.Cmd {
	if mb == nil {
		return nil
	}

	return func() tea.Msg {
		params, err := f.params(mb.ID)
		if err != nil {
			return memberSavedMsg{text: fmt.Sprintf("Error: %v", err)}
		}

		ctx, cancel := DbCtx()
		defer cancel()

		receipt, err := m.payments.Record(ctx, params)
		if err != nil && (receipt == nil || receipt.Payment == nil) {
			return memberSavedMsg{text: fmt.Sprintf("Error recording payment: %v", err)}
		}

		return memberSavedMsg{text: describeReceipt(mb.Name, receipt)}
	}
}
