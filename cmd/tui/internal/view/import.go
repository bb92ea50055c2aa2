package view

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/saadkhan2003/masjid-ledger/internal/importer"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateFilePick importState = iota
	importStateImporting
	importStateResult
)

type ImportModel struct {
	CommonModel
	importer Importer
	members  MemberService
	ledger   LedgerService

	state      importState
	filePicker filepicker.Model

	status string
	err    error
}

func NewImportModel(imp Importer, members MemberService, l LedgerService) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		importer:   imp,
		members:    members,
		ledger:     l,
		filePicker: fp,
	}
}

func (m ImportModel) Title() string { return "Import Members" }

func (m ImportModel) ShortHelp() string { return "Esc: back | Enter: select" }

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			if m.state == importStateResult {
				m.state = importStateFilePick
				m.status = ""
				m.err = nil

				return m, nil
			}

			return m, Back
		}

	case importDoneMsg:
		m.state = importStateResult
		m.status = msg.text
		m.err = msg.err

		return m, nil
	}

	if m.state != importStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Importing members from %s...", path)

		return m, m.importCmd(path)
	}

	return m, cmd
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			"Select a member roster (CSV):\n\n" + m.filePicker.View(),
		)
	case importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStateResult:
		body := okStyle.Render(m.status)
		if m.err != nil {
			body = errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
		}

		return lipgloss.NewStyle().Padding(2).Render(body + "\n\n(Esc to go back)")
	}

	return ""
}

type importDoneMsg struct {
	text string
	err  error
}

func (m ImportModel) importCmd(path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importDoneMsg{err: err}
		}
		defer f.Close()

		res, err := m.importer.Members(f)
		if err != nil {
			return importDoneMsg{err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		return importDoneMsg{text: m.apply(ctx, res)}
	}
}

// apply creates every parsed member and backfills their dues. It returns a summary
// listing each row that could not be imported.
func (m ImportModel) apply(ctx context.Context, res *importer.Result) string {
	var (
		created  int
		problems []string
	)

	for _, row := range res.Rejected {
		problems = append(problems, fmt.Sprintf("line %d: %v", row.Line, row.Err))
	}

	for _, params := range res.Members {
		mb, err := m.members.Create(ctx, params)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", params.Name, err))
			continue
		}

		created++

		if _, err := m.ledger.GenerateHistoricalDebts(ctx, mb.ID); err != nil {
			problems = append(problems, fmt.Sprintf("%s: backfill failed: %v", mb.Name, err))
		}
	}

	summary := fmt.Sprintf("Imported %d member(s) (%s).", created, res.Charset)
	if len(problems) > 0 {
		summary += "\n\nProblems:\n  " + strings.Join(problems, "\n  ")
	}

	return summary
}
