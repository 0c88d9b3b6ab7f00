// Package interactive provides the interactive command-line interface
// for the pushsync device.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/pushsync/pushsync-go/pkg/auth"
	"github.com/pushsync/pushsync-go/pkg/dispatch"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/service"
)

// DeviceConfig provides configuration information to the interactive device.
// This interface allows the interactive layer to access device settings
// without depending on the main package's config structure.
type DeviceConfig interface {
	// InstanceID returns the service instance to start.
	InstanceID() string

	// UserTokens returns the provider used for SetUserID. May be nil.
	UserTokens() auth.TokenProvider
}

// opTimeout bounds how long a command waits for an operation to resolve.
const opTimeout = 30 * time.Second

// Device handles interactive mode for pushsync-device.
type Device struct {
	rt      *service.Runtime
	config  DeviceConfig
	history *log.MemoryLogger
	rl      *readline.Instance
	out     io.Writer

	// listening is the instance the change listener is attached to.
	listening *service.Instance
}

// New creates a new interactive device handler. history, when not nil,
// backs the history command.
func New(rt *service.Runtime, cfg DeviceConfig, history *log.MemoryLogger) (*Device, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "device> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	d := newDevice(rt, cfg, history, rl.Stdout())
	d.rl = rl
	return d, nil
}

func newDevice(rt *service.Runtime, cfg DeviceConfig, history *log.MemoryLogger, out io.Writer) *Device {
	d := &Device{
		rt:      rt,
		config:  cfg,
		history: history,
		out:     out,
	}
	if inst := rt.Instance(); inst != nil {
		d.attach(inst)
	}
	return d
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (d *Device) Stdout() io.Writer {
	return d.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (d *Device) Stderr() io.Writer {
	return d.rl.Stderr()
}

// Run starts the interactive command loop.
func (d *Device) Run(ctx context.Context, cancel context.CancelFunc) {
	defer d.rl.Close()

	d.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := d.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(d.out, "Exiting...")
			cancel()
			return
		}

		if quit := d.Exec(line); quit {
			fmt.Fprintln(d.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one command line. It reports whether the user asked to quit.
func (d *Device) Exec(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		d.printHelp()

	case "start":
		d.cmdStart()

	case "status", "state":
		d.cmdStatus()

	case "subscribe", "sub":
		d.cmdSubscribe(args)

	case "unsubscribe", "unsub":
		d.cmdUnsubscribe(args)

	case "set":
		d.cmdSet(args)

	case "clear":
		d.withInstance(func(inst *service.Instance) {
			d.report(inst.UnsubscribeAll())
		})

	case "list", "ls":
		d.cmdList()

	case "resync":
		d.withInstance(func(inst *service.Instance) {
			d.report(inst.Resync())
		})

	case "user":
		d.cmdUser(args)

	case "clear-user":
		d.withInstance(func(inst *service.Instance) {
			d.wait("clear user", inst.ClearUserID())
		})

	case "token":
		d.cmdToken(args)

	case "stop":
		d.withInstance(func(inst *service.Instance) {
			d.wait("stop", inst.Stop())
		})

	case "reset":
		d.wait("clear all state", d.rt.ClearAllState())

	case "history", "h":
		d.cmdHistory(args)

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(d.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (d *Device) printHelp() {
	fmt.Fprintln(d.out, `
Push Sync Device Commands:
  Lifecycle:
    start                  - Start the instance (after stop or reset)
    status                 - Show instance and device state
    stop                   - Delete the device and all local state
    reset                  - Clear all state, running or not
    token <push-token>     - Report a new platform push token

  Interests:
    sub <name>...          - Subscribe to interests
    unsub <name>...        - Unsubscribe from interests
    set <name>...          - Replace the interest set
    clear                  - Unsubscribe from everything
    list                   - Show desired and confirmed interests
    resync                 - Reconcile again after errors

  User:
    user <id>              - Associate the device with a user
    clear-user             - Remove the user association

  General:
    history [n]            - Show the last n sync events (default 20)
    help                   - Show this help
    quit                   - Exit (registration is kept)`)
}

// withInstance runs fn on the current instance, or explains why it can't.
func (d *Device) withInstance(fn func(inst *service.Instance)) {
	inst := d.rt.Instance()
	if inst == nil {
		fmt.Fprintln(d.out, "No instance running (use 'start')")
		return
	}
	fn(inst)
}

func (d *Device) report(err error) {
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(d.out, "OK")
}

// wait blocks until op resolves and prints its outcome.
func (d *Device) wait(what string, op *dispatch.Op) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := op.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(d.out, "%s still pending after %s\n", what, opTimeout)
		return
	}
	if err != nil {
		fmt.Fprintf(d.out, "%s failed: %v\n", what, err)
		return
	}
	fmt.Fprintf(d.out, "%s: OK\n", what)
}

// attach installs the change listener on inst.
func (d *Device) attach(inst *service.Instance) {
	if d.listening == inst {
		return
	}
	d.listening = inst
	inst.SetOnSubscriptionsChangedListener(dispatch.ListenerFuncs{
		SubscriptionsChanged: func(interests []string) {
			fmt.Fprintf(d.out, "\n[interests] confirmed: %s\n", formatNames(interests))
		},
		Error: func(err error) {
			fmt.Fprintf(d.out, "\n[error] %v\n", err)
		},
	})
}

func (d *Device) cmdStart() {
	inst, err := d.rt.Start(d.config.InstanceID(), d.config.UserTokens())
	if err != nil {
		fmt.Fprintf(d.out, "Start failed: %v\n", err)
		return
	}
	d.attach(inst)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := inst.AwaitRegistered(ctx); err != nil {
		fmt.Fprintf(d.out, "Not registered: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Registered as %s\n", inst.DeviceID())
}

func (d *Device) cmdStatus() {
	fmt.Fprintln(d.out, "\nDevice Status")
	fmt.Fprintln(d.out, "-------------------------------------------")
	fmt.Fprintf(d.out, "  Runtime State:  %s\n", d.rt.State())

	inst := d.rt.Instance()
	if inst == nil {
		fmt.Fprintln(d.out)
		return
	}
	fmt.Fprintf(d.out, "  Instance:       %s\n", inst.InstanceID())
	fmt.Fprintf(d.out, "  Session:        %s\n", inst.SessionID())
	fmt.Fprintf(d.out, "  State:          %s\n", inst.State())
	if id := inst.DeviceID(); id != "" {
		fmt.Fprintf(d.out, "  Device ID:      %s\n", id)
	}
	if user := inst.UserID(); user != "" {
		fmt.Fprintf(d.out, "  User:           %s\n", user)
	}
	desired, confirmed := inst.Subscriptions(), inst.ConfirmedSubscriptions()
	sync := "in sync"
	if !equalNames(desired, confirmed) {
		sync = "pending"
	}
	fmt.Fprintf(d.out, "  Interests:      %d desired, %d confirmed (%s)\n", len(desired), len(confirmed), sync)
	if err := inst.Err(); err != nil {
		fmt.Fprintf(d.out, "  Ended With:     %v\n", err)
	}
	fmt.Fprintln(d.out)
}

func (d *Device) cmdSubscribe(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(d.out, "Usage: sub <name>...")
		return
	}
	d.withInstance(func(inst *service.Instance) {
		for _, name := range args {
			if err := inst.Subscribe(name); err != nil {
				fmt.Fprintf(d.out, "Error: %v\n", err)
				return
			}
		}
		fmt.Fprintln(d.out, "OK")
	})
}

func (d *Device) cmdUnsubscribe(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(d.out, "Usage: unsub <name>...")
		return
	}
	d.withInstance(func(inst *service.Instance) {
		for _, name := range args {
			if err := inst.Unsubscribe(name); err != nil {
				fmt.Fprintf(d.out, "Error: %v\n", err)
				return
			}
		}
		fmt.Fprintln(d.out, "OK")
	})
}

func (d *Device) cmdSet(args []string) {
	d.withInstance(func(inst *service.Instance) {
		d.report(inst.SetSubscriptions(args))
	})
}

func (d *Device) cmdList() {
	d.withInstance(func(inst *service.Instance) {
		fmt.Fprintf(d.out, "  Desired:   %s\n", formatNames(inst.Subscriptions()))
		fmt.Fprintf(d.out, "  Confirmed: %s\n", formatNames(inst.ConfirmedSubscriptions()))
	})
}

func (d *Device) cmdUser(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.out, "Usage: user <id>")
		return
	}
	d.withInstance(func(inst *service.Instance) {
		d.wait("set user", inst.SetUserID(args[0]))
	})
}

func (d *Device) cmdToken(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.out, "Usage: token <push-token>")
		return
	}
	d.withInstance(func(inst *service.Instance) {
		d.report(inst.PushTokenChanged(args[0]))
	})
}

func (d *Device) cmdHistory(args []string) {
	if d.history == nil {
		fmt.Fprintln(d.out, "History not available")
		return
	}
	n := 20
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			fmt.Fprintln(d.out, "Usage: history [n]")
			return
		}
		n = v
	}

	events := d.history.Events(log.Filter{})
	if len(events) > n {
		events = events[len(events)-n:]
	}
	if len(events) == 0 {
		fmt.Fprintln(d.out, "No events")
		return
	}
	for _, e := range events {
		fmt.Fprintln(d.out, formatEvent(e))
	}
}

// formatEvent renders one event on a line.
func formatEvent(e log.Event) string {
	ts := e.Timestamp.Format("15:04:05.000")
	switch {
	case e.Request != nil:
		return fmt.Sprintf("%s -> %s #%d %s", ts, e.Request.Operation, e.Request.Attempt,
			strings.TrimSpace(formatNames(e.Request.Interests)+" "+e.Request.UserID))
	case e.Response != nil:
		s := fmt.Sprintf("%s <- %s #%d %s (%s)", ts, e.Response.Operation, e.Response.Attempt,
			e.Response.Result, e.Response.Duration.Round(time.Microsecond))
		if e.Response.Discarded {
			s += " discarded"
		}
		return s
	case e.StateChange != nil:
		return fmt.Sprintf("%s %s %s -> %s %s", ts, e.StateChange.Entity,
			e.StateChange.OldState, e.StateChange.NewState, e.StateChange.Reason)
	case e.Notification != nil:
		n := e.Notification
		return fmt.Sprintf("%s notify %s %s %s", ts, n.Type, n.Operation, n.Result)
	case e.Error != nil:
		return fmt.Sprintf("%s error %s: %s", ts, e.Error.Context, e.Error.Message)
	}
	return ts + " ?"
}

func formatNames(names []string) string {
	if names == nil {
		return "[]"
	}
	return "[" + strings.Join(names, " ") + "]"
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
