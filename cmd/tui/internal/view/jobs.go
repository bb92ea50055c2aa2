package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
)

const jobTimeout = 5 * time.Minute

type job int

const (
	jobGenerate job = iota
	jobSweep
	jobRun
	jobInitialize
)

func (j job) String() string {
	switch j {
	case jobGenerate:
		return "Generate this month's dues"
	case jobSweep:
		return "Mark overdue debts"
	case jobRun:
		return "Run full monthly job (generate, sweep, recalculate)"
	case jobInitialize:
		return "Initialize: backfill dues for all active members"
	}

	return "Unknown"
}

var jobs = []job{jobGenerate, jobSweep, jobRun, jobInitialize}

type JobsModel struct {
	CommonModel
	ledger    LedgerService
	scheduler Scheduler

	cursor  int
	running bool
	spinner spinner.Model
	result  string
	err     error
}

func NewJobsModel(l LedgerService, s Scheduler) JobsModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return JobsModel{ledger: l, scheduler: s, spinner: sp}
}

func (m JobsModel) Title() string { return "Ledger Jobs" }

func (m JobsModel) ShortHelp() string { return "Esc: back | Enter: run" }

func (m JobsModel) Init() tea.Cmd { return nil }

func (m JobsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case jobDoneMsg:
		m.running = false
		m.result = msg.text
		m.err = msg.err

		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case tea.KeyMsg:
		if m.running {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyEsc:
			return m, Back
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown:
			if m.cursor < len(jobs)-1 {
				m.cursor++
			}
		case tea.KeyEnter:
			m.running = true
			m.result = ""
			m.err = nil

			return m, tea.Batch(m.spinner.Tick, m.runCmd(jobs[m.cursor]))
		}
	}

	return m, nil
}

func (m JobsModel) View() string {
	var b strings.Builder

	b.WriteString("Ledger jobs:\n\n")

	for i, j := range jobs {
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}

		fmt.Fprintf(&b, "%s %s\n", cursor, j)
	}

	switch {
	case m.running:
		fmt.Fprintf(&b, "\n%s Running %s...", m.spinner.View(), strings.ToLower(jobs[m.cursor].String()))
	case m.err != nil:
		b.WriteString("\n" + m.result + "\n" + errorStyle.Render(m.err.Error()))
	case m.result != "":
		b.WriteString("\n" + okStyle.Render(m.result))
	}

	return lipgloss.NewStyle().Padding(2).Render(b.String())
}

type jobDoneMsg struct {
	text string
	err  error
}

func (m JobsModel) runCmd(j job) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		switch j {
		case jobGenerate:
			res, err := m.ledger.GenerateMonthlyDebts(ctx)
			return jobDoneMsg{text: describeGeneration(res), err: err}
		case jobSweep:
			n, err := m.ledger.UpdateOverdueDebts(ctx)
			return jobDoneMsg{text: fmt.Sprintf("%d debt(s) marked overdue.", n), err: err}
		case jobRun:
			rep, err := m.scheduler.RunOnce(ctx)
			return jobDoneMsg{text: describeRun(rep), err: err}
		case jobInitialize:
			res, err := m.ledger.InitializeDebtSystem(ctx)
			return jobDoneMsg{text: describeGeneration(res), err: err}
		}

		return jobDoneMsg{err: fmt.Errorf("unknown job %d", j)}
	}
}

func describeGeneration(res *ledger.GenerationResult) string {
	if res == nil {
		return ""
	}

	return fmt.Sprintf("%d created, %d already existed, %d skipped, %d failed.",
		res.Created, res.Existing, res.Skipped, len(res.Failures))
}

func describeRun(rep *ledger.RunReport) string {
	if rep == nil {
		return ""
	}

	return fmt.Sprintf("%s %d marked overdue. %d totals recalculated, %d failed.",
		describeGeneration(rep.Generation), rep.MarkedOverdue, rep.Recalculated, rep.RecalcFailed)
}
