package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/saadkhan2003/masjid-ledger/cmd/tui/internal/view"
	"github.com/saadkhan2003/masjid-ledger/internal/app"
	"github.com/saadkhan2003/masjid-ledger/internal/config"
	"github.com/saadkhan2003/masjid-ledger/internal/logging"
)

type model struct {
	app *app.App

	currentView View

	membersView view.MembersModel
	debtsView   view.DebtsModel
	importView  view.ImportModel
	jobsView    view.JobsModel
}

type View int

const (
	ViewMenu    View = 0
	ViewMembers View = 1
	ViewDebts   View = 2
	ViewImport  View = 3
	ViewJobs    View = 4
)

func initialModel(a *app.App) model {
	return model{
		app:         a,
		currentView: ViewMenu,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewMembers
				m.membersView = view.NewMembersModel(m.app.Members, m.app.Ledger, m.app.Payments, m.app.Config.Ledger.DefaultMonthlyDues)

				return m, m.membersView.Init()
			case "2":
				m.currentView = ViewDebts
				m.debtsView = view.NewDebtsModel(m.app.Ledger, nil, "")

				return m, m.debtsView.Init()
			case "3":
				m.currentView = ViewImport
				m.importView = view.NewImportModel(m.app.Importer, m.app.Members, m.app.Ledger)

				return m, m.importView.Init()
			case "4":
				m.currentView = ViewJobs
				m.jobsView = view.NewJobsModel(m.app.Ledger, m.app.Scheduler)

				return m, m.jobsView.Init()
			}
		}
	case view.OpenDebtsMsg:
		m.currentView = ViewDebts
		m.debtsView = view.NewDebtsModel(m.app.Ledger, &msg.MemberID, msg.Name)

		return m, m.debtsView.Init()
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewMembers:
		var newModel tea.Model
		newModel, cmd = m.membersView.Update(msg)
		m.membersView = newModel.(view.MembersModel)
	case ViewDebts:
		var newModel tea.Model
		newModel, cmd = m.debtsView.Update(msg)
		m.debtsView = newModel.(view.DebtsModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewJobs:
		var newModel tea.Model
		newModel, cmd = m.jobsView.Update(msg)
		m.jobsView = newModel.(view.JobsModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			m.app.Config.App.Name + "\n\n" +
				"1. Members and Payments\n" +
				"2. Debts\n" +
				"3. Import Member Roster\n" +
				"4. Ledger Jobs\n\n" +
				"q. Quit",
		)
	case ViewMembers:
		return withHelp(m.membersView.View(), m.membersView.ShortHelp())
	case ViewDebts:
		return withHelp(m.debtsView.View(), m.debtsView.ShortHelp())
	case ViewImport:
		return withHelp(m.importView.View(), m.importView.ShortHelp())
	case ViewJobs:
		return withHelp(m.jobsView.View(), m.jobsView.ShortHelp())
	}

	return "Unknown View"
}

func withHelp(body, help string) string {
	return body + "\n" + lipgloss.NewStyle().Faint(true).PaddingLeft(1).Render(help)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; only errors go to stderr.
	logging.Setup("error")

	a, err := app.Open(cfg, app.WithoutRelay())
	if err != nil {
		slog.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	p := tea.NewProgram(initialModel(a), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		a.Close()
		os.Exit(1)
	}
}
