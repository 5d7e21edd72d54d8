// Package tui renders a running subprocess's piped output in a live
// two-pane terminal view backed by tview.
package tui

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/spawn/subprocess"
)

const (
	stdoutTitle      = "stdout"
	stderrTitle      = "stderr"
	pollStep         = 100 * time.Millisecond
	joinPollInterval = 50 * time.Millisecond
)

var errViewClosed = errors.New("view closed before the child was joined")

// UI owns the tview application and the goroutine pumping child output into
// it. The pump goroutine is the only caller of any subprocess operation; key
// handlers queue signal requests on a channel the pump drains, so the child
// is never signalled after it has been joined.
type UI struct {
	app    *tview.Application
	stdout *tview.TextView
	stderr *tview.TextView
	status *tview.TextView

	proc    *subprocess.Subprocess
	signals chan os.Signal

	mu     sync.Mutex
	result *subprocess.ExitStatus

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// New constructs a view bound to proc. The subprocess must have been spawned
// with stdout and stderr piped.
func New(proc *subprocess.Subprocess) *UI {
	app := tview.NewApplication()

	stdout := tview.NewTextView().SetWrap(false).SetScrollable(true)
	stdout.SetBorder(true).SetTitle(stdoutTitle)
	stdout.SetChangedFunc(func() {
		app.Draw()
	})

	stderr := tview.NewTextView().SetWrap(false).SetScrollable(true)
	stderr.SetBorder(true).SetTitle(stderrTitle)
	stderr.SetChangedFunc(func() {
		app.Draw()
	})

	status := tview.NewTextView().SetDynamicColors(true)

	panes := tview.NewFlex().
		AddItem(stdout, 0, 1, true).
		AddItem(stderr, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(panes, 0, 1, true).
		AddItem(status, 1, 0, false)

	ui := &UI{
		app:     app,
		stdout:  stdout,
		stderr:  stderr,
		status:  status,
		proc:    proc,
		signals: make(chan os.Signal, 4),
		done:    make(chan struct{}),
	}

	app.SetRoot(root, true)
	app.SetInputCapture(ui.handleKey)

	status.SetText(fmt.Sprintf("[yellow]running[-] pid %d  (Ctrl-C interrupt, k kill, q quit)", proc.Pid()))
	return ui
}

// Run starts the application loop and pumps output until both streams close
// and the child is joined, or the user quits. If the view is quit while the
// child is still running, the child is left for the caller to reap. Run
// returns the child's failure, if any, once the view closes.
func Run(proc *subprocess.Subprocess) error {
	return New(proc).Run()
}

// Run drives the view. It blocks until the user quits.
func (u *UI) Run() error {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.pump()
	}()

	err := u.app.Run()
	u.Stop()
	u.wg.Wait()
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.result != nil {
		return u.result.Err()
	}
	return nil
}

// Stop terminates the application loop. Safe to call more than once and from
// any goroutine.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		close(u.done)
		u.app.Stop()
	})
}

func (u *UI) stopped() bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

// pump relays piped output into the panes until both streams reach end of
// output, then joins the child and reports its status in the status bar.
func (u *UI) pump() {
	var (
		out        subprocess.Output
		nOut, nErr int
	)
	for !u.stopped() && (u.proc.HasStdout() || u.proc.HasStderr()) {
		u.forwardPending()
		if err := u.proc.ReadOutputInto(&out, pollStep); err != nil {
			var sigErr *subprocess.SignalError
			if !errors.As(err, &sigErr) {
				u.setStatus(fmt.Sprintf("[red]read failed[-] %v  (q quit)", err))
				return
			}
			subprocess.ResetSignal()
			if sigErr.Signal != 0 {
				_ = u.proc.Signal(sigErr.Signal)
			}
		}
		nOut = u.append(u.stdout, out.Stdout, nOut)
		nErr = u.append(u.stderr, out.Stderr, nErr)
	}
	if u.stopped() {
		return
	}

	status, err := u.joinPatiently()
	if err != nil {
		if !errors.Is(err, errViewClosed) {
			u.setStatus(fmt.Sprintf("[red]join failed[-] %v  (q quit)", err))
		}
		return
	}
	if status.Success() {
		u.setStatus("[green]exited with code 0[-]  (q quit)")
	} else {
		u.setStatus(fmt.Sprintf("[red]%s[-]  (q quit)", status))
	}
}

// joinPatiently reaps the child without parking the pump: queued key signals
// keep flowing while waiting, and quitting the view abandons the wait so the
// caller can reap instead.
func (u *UI) joinPatiently() (subprocess.ExitStatus, error) {
	for !u.stopped() {
		u.forwardPending()
		st, err := u.proc.TryJoin()
		if err != nil {
			var sigErr *subprocess.SignalError
			if !errors.As(err, &sigErr) {
				return subprocess.ExitStatus{}, err
			}
			subprocess.ResetSignal()
			if sigErr.Signal != 0 {
				_ = u.proc.Signal(sigErr.Signal)
			}
			continue
		}
		if st != nil {
			u.mu.Lock()
			u.result = st
			u.mu.Unlock()
			return *st, nil
		}
		time.Sleep(joinPollInterval)
	}
	return subprocess.ExitStatus{}, errViewClosed
}

// forwardPending sends queued key-requested signals to the child. Only the
// pump goroutine calls this; requests still queued once the child is joined
// are dropped.
func (u *UI) forwardPending() {
	for {
		select {
		case sig := <-u.signals:
			_ = u.proc.Signal(sig)
		default:
			return
		}
	}
}

func (u *UI) append(pane *tview.TextView, buf []byte, consumed int) int {
	if len(buf) > consumed && !u.stopped() {
		chunk := append([]byte(nil), buf[consumed:]...)
		u.app.QueueUpdateDraw(func() {
			pane.Write(chunk)
			pane.ScrollToEnd()
		})
	}
	return len(buf)
}

func (u *UI) setStatus(text string) {
	if u.stopped() {
		return
	}
	u.app.QueueUpdateDraw(func() {
		u.status.SetText(text)
	})
}

// deliver queues a signal request for the pump goroutine. It never blocks;
// when the queue is full the request is dropped.
func (u *UI) deliver(sig os.Signal) {
	select {
	case u.signals <- sig:
	default:
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC:
		u.deliver(os.Interrupt)
		return nil
	case tcell.KeyTab:
		if u.stdout.HasFocus() {
			u.app.SetFocus(u.stderr)
		} else {
			u.app.SetFocus(u.stdout)
		}
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case 'k', 'K':
			u.deliver(os.Kill)
			return nil
		}
	}
	return event
}
