package commands

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/AlexMikhalev/stackup/pkg/config"
	"github.com/AlexMikhalev/stackup/pkg/i18n"
	"github.com/AlexMikhalev/stackup/pkg/tasks"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const defaultGrace = 5 * time.Second

// Dispatcher runs one compiled invocation across a set of clients, honoring
// the once/serial/parallel policy, and reports a per-host outcome.
type Dispatcher struct {
	Log       *logrus.Entry
	Out       *Output
	OSCommand *OSCommand
	Tr        *i18n.TranslationSet

	// Grace bounds how long a terminated process gets to die before its
	// client is force-closed.
	Grace time.Duration
}

// Dispatch executes inv and returns the per-host outcome, keyed by client
// name. Hosts the policy skipped (everything but the first for a once
// command, everything for a local one) have no entry.
//
// A canceled context terminates every active process; a window in which a
// host failed still runs to completion, but no later window starts.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *Invocation, clients []Client, local Client) map[string]error {
	targets := clients
	switch {
	case inv.Local:
		targets = []Client{local}
	case inv.Once:
		targets = clients[:1]
	}

	windows := [][]Client{targets}
	if inv.Serial > 0 {
		windows = lo.Chunk(targets, inv.Serial)
	}

	results := make(map[string]error, len(targets))
	var mu sync.Mutex

	for _, window := range windows {
		group := tasks.NewGroup()
		settled := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				group.Stop()
			case <-settled:
			}
		}()

		for _, client := range window {
			client := client
			group.Go(func(stop <-chan struct{}) {
				err := d.runOne(stop, inv, client)
				mu.Lock()
				results[client.Name()] = err
				mu.Unlock()
			})
		}
		group.Wait()
		close(settled)

		if ctx.Err() != nil {
			break
		}

		failed := false
		mu.Lock()
		for _, err := range results {
			if err != nil {
				failed = true
				break
			}
		}
		mu.Unlock()
		if failed {
			break
		}
	}

	return results
}

func (d *Dispatcher) runOne(stop <-chan struct{}, inv *Invocation, client Client) error {
	if len(inv.Uploads) > 0 {
		return d.uploadAll(stop, inv, client)
	}

	hostName := client.Name()
	supHost := hostName
	if inv.Local {
		supHost = ""
	}
	spec := inv.ProcSpecFor(supHost)

	proc, err := client.Run(spec)
	if err != nil {
		d.reportError(hostName, err)
		return err
	}

	if spec.TTY {
		werr := d.waitOnTerminal(stop, proc, client)
		if werr != nil {
			// reported after the terminal is restored, or the line would
			// land in raw mode
			d.reportError(hostName, werr)
		}
		return werr
	}

	outW := d.Out.StdoutWriter(hostName)
	errW := d.Out.StderrWriter(hostName)

	var copies sync.WaitGroup
	copies.Add(2)
	go func() {
		defer copies.Done()
		_, _ = io.Copy(outW, proc.Stdout())
	}()
	go func() {
		defer copies.Done()
		_, _ = io.Copy(errW, proc.Stderr())
	}()

	if spec.Stdin == nil {
		// nothing feeds this process; close stdin so filters see EOF
		_ = proc.Stdin().Close()
	}

	werr := d.wait(stop, proc, client)
	copies.Wait()
	outW.Close()
	errW.Close()

	if werr != nil {
		d.reportError(hostName, werr)
	}
	return werr
}

// waitOnTerminal runs a process that owns the invoker's terminal. Output
// bypasses the prefixing sink: an interactive session is raw passthrough.
func (d *Dispatcher) waitOnTerminal(stop <-chan struct{}, proc Process, client Client) error {
	restore, err := attachTerminal(proc, d.Log)
	if err != nil {
		_ = proc.Terminate()
		return err
	}
	defer restore()

	return d.wait(stop, proc, client)
}

// uploadAll streams each upload pair to the client: a local tar subprocess
// produces the bytes and the client's tar extracts them under dst.
func (d *Dispatcher) uploadAll(stop <-chan struct{}, inv *Invocation, client Client) error {
	for _, up := range inv.Uploads {
		if err := d.uploadOne(stop, up, client); err != nil {
			d.reportError(client.Name(), fmt.Errorf("%s: %s", d.tr().UploadFailed, err.Error()))
			return err
		}
	}
	return nil
}

func (d *Dispatcher) uploadOne(stop <-chan struct{}, up config.Upload, client Client) error {
	producer := d.OSCommand.ExecutableFromString(LocalTarCommand(up.Src, up.Exc))
	d.OSCommand.PrepareForChildren(producer)

	producerErrW := d.Out.StderrWriter(LocalName)
	defer producerErrW.Close()
	producer.Stderr = producerErrW

	stream, err := producer.StdoutPipe()
	if err != nil {
		return WrapError(err)
	}

	d.Log.WithField("src", up.Src).WithField("dst", up.Dst).Debug("uploading")
	if err := producer.Start(); err != nil {
		return WrapError(err)
	}

	proc, err := client.Upload(stream, up.Dst)
	if err != nil {
		_ = d.OSCommand.Kill(producer)
		_ = producer.Wait()
		return err
	}

	outW := d.Out.StdoutWriter(client.Name())
	errW := d.Out.StderrWriter(client.Name())
	var copies sync.WaitGroup
	copies.Add(2)
	go func() {
		defer copies.Done()
		_, _ = io.Copy(outW, proc.Stdout())
	}()
	go func() {
		defer copies.Done()
		_, _ = io.Copy(errW, proc.Stderr())
	}()

	werr := d.wait(stop, proc, client)
	if werr != nil {
		// the extractor died; make sure the producer isn't left blocked
		// on a full pipe
		_ = d.OSCommand.Kill(producer)
	}
	perr := producer.Wait()
	copies.Wait()
	outW.Close()
	errW.Close()

	if werr != nil {
		return werr
	}
	if perr != nil {
		return WrapError(perr)
	}
	return nil
}

// wait blocks for the process, or for the stop signal. On stop the process
// is terminated and given a bounded grace period before its client is
// force-closed.
func (d *Dispatcher) wait(stop <-chan struct{}, proc Process, client Client) error {
	done := make(chan error, 1)
	go func() {
		done <- proc.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-stop:
		_ = proc.Terminate()
		select {
		case err := <-done:
			return err
		case <-time.After(d.grace()):
			_ = client.Close()
			return interruptedError(d.tr().Interrupted)
		}
	}
}

func (d *Dispatcher) tr() *i18n.TranslationSet {
	if d.Tr != nil {
		return d.Tr
	}
	return i18n.EnglishTranslationSet()
}

func (d *Dispatcher) grace() time.Duration {
	if d.Grace > 0 {
		return d.Grace
	}
	return defaultGrace
}

func (d *Dispatcher) reportError(host string, err error) {
	w := d.Out.StderrWriter(host)
	fmt.Fprintln(w, err.Error())
	w.Close()
}
