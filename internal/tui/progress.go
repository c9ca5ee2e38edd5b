package tui

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fbhash/internal/corpus"
)

// FileMsg reports one finished file.
type FileMsg corpus.FileResult

// DoneMsg ends a progress run.
type DoneMsg struct{ Err error }

// Progress shows a progress bar while files are processed.
type Progress struct {
	title    string
	total    int
	done     int
	failed   int
	last     string
	bar      progress.Model
	cancel   func()
	err      error
	finished bool
	aborted  bool
}

// NewProgress creates a progress view for total files. cancel is called
// when the user interrupts.
func NewProgress(title string, total int, cancel func()) Progress {
	return Progress{
		title:  title,
		total:  total,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel: cancel,
	}
}

func (p Progress) Init() tea.Cmd { return nil }

func (p Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.bar.Width = min(60, max(10, msg.Width-20))
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			p.aborted = true
			if p.cancel != nil {
				p.cancel()
			}
			return p, tea.Quit
		}
	case FileMsg:
		p.done++
		if msg.Err != nil {
			p.failed++
		}
		p.last = msg.Path
	case DoneMsg:
		p.err = msg.Err
		p.finished = true
		return p, tea.Quit
	}
	return p, nil
}

// Percent returns the fraction of files finished.
func (p Progress) Percent() float64 {
	if p.total <= 0 {
		return 0
	}
	return min(1, float64(p.done)/float64(p.total))
}

// Err returns the error the run finished with.
func (p Progress) Err() error { return p.err }

// Finished reports whether the run completed.
func (p Progress) Finished() bool { return p.finished }

func (p Progress) View() string {
	if p.finished || p.aborted {
		return ""
	}
	counts := fmt.Sprintf("%d/%d files", p.done, p.total)
	if p.failed > 0 {
		counts += errorStyle.Render(fmt.Sprintf("  %d failed", p.failed))
	}
	return titleStyle.Render(p.title) + "\n" +
		p.bar.ViewAs(p.Percent()) + "  " + counts + "\n" +
		dimStyle.Render(filepath.Base(p.last)) + "\n"
}

// RunProgress runs work while rendering progress to out. work reports each
// finished file through its callback. If the view exits early, cancel is
// called and RunProgress still waits for work to return.
func RunProgress(out io.Writer, title string, total int, cancel func(), work func(onFile func(corpus.FileResult)) error) error {
	p := tea.NewProgram(NewProgress(title, total, cancel), tea.WithOutput(out))
	errc := make(chan error, 1)
	go func() {
		err := work(func(r corpus.FileResult) { p.Send(FileMsg(r)) })
		errc <- err
		p.Send(DoneMsg{Err: err})
	}()
	final, runErr := p.Run()
	if pm, ok := final.(Progress); (!ok || !pm.finished) && cancel != nil {
		cancel()
	}
	err := <-errc
	if runErr != nil && err == nil {
		return runErr
	}
	return err
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
