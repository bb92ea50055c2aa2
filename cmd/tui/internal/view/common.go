package view

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/importer"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

const dbTimeout = 5 * time.Second

type MemberService interface {
	List(ctx context.Context, filter member.ListFilter) ([]*member.Member, error)
	Create(ctx context.Context, params member.CreateParams) (*member.Member, error)
}

type LedgerService interface {
	ListDebts(ctx context.Context, filter ledger.DebtFilter) ([]*ledger.Debt, error)
	GenerateHistoricalDebts(ctx context.Context, memberID uuid.UUID) (*ledger.GenerationResult, error)
	GenerateMonthlyDebts(ctx context.Context) (*ledger.GenerationResult, error)
	UpdateOverdueDebts(ctx context.Context) (int, error)
	InitializeDebtSystem(ctx context.Context) (*ledger.GenerationResult, error)
}

type PaymentService interface {
	Record(ctx context.Context, params payment.CreateParams) (*payment.Receipt, error)
}

type Scheduler interface {
	RunOnce(ctx context.Context) (*ledger.RunReport, error)
}

type Importer interface {
	Members(r io.Reader) (*importer.Result, error)
}

type CommonModel struct {
	Width  int
	Height int
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func framed(v string) string {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(v)
}
