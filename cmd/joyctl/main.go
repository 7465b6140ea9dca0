// Command joyctl talks to a running joyctrl daemon over its websocket.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"

	"github.com/soar/joyctrl/internal/channels"
)

const usage = `usage: joyctl [flags] <command> [args]

commands:
  status              show the runtime status
  toggle              toggle mapping
  on | off            turn mapping on or off
  watch [channel]     print every update of a stream (default controllers-states)
  keyboard            toggle the on-screen keyboard
  press <key>...      press the keys in order, then release them in reverse
  type <text>         type text
  get [key]           print the rule set document, or one key of it
  set <key> <json>    replace one key of the rule set document

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("joyctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "ws://127.0.0.1:8080/ws", "daemon websocket address")
	timeout := fs.Duration("timeout", 5*time.Second, "timeout for one-shot commands")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	c, err := dial(*addr)
	if err != nil {
		fmt.Fprintln(stderr, "joyctl:", err)
		return 1
	}
	defer c.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd != "watch" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	if err := dispatch(ctx, c, cmd, rest, stdout); err != nil {
		if errors.Is(err, errUsage) {
			if err != errUsage {
				fmt.Fprintln(stderr, "joyctl:", err)
			}
			fs.Usage()
			return 2
		}
		fmt.Fprintln(stderr, "joyctl:", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func dispatch(ctx context.Context, c *client, cmd string, args []string, out io.Writer) error {
	show := func(raw json.RawMessage, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintln(out, pretty(raw))
		return nil
	}

	switch cmd {
	case "status":
		return show(c.call(ctx, channels.RuntimeStatus, nil))
	case "toggle":
		return show(c.call(ctx, channels.ToggleMappingActive, nil))
	case "on", "off":
		return show(c.call(ctx, channels.SetMappingActive, cmd == "on"))
	case "keyboard":
		return show(c.call(ctx, channels.ToggleVirtualKeyboard, nil))
	case "press":
		if len(args) == 0 {
			return errUsage
		}
		if _, err := c.call(ctx, channels.PressKeys, args); err != nil {
			return err
		}
		_, err := c.call(ctx, channels.ReleaseKeys, args)
		return err
	case "type":
		if len(args) == 0 {
			return errUsage
		}
		_, err := c.call(ctx, channels.WriteText, map[string]string{"text": strings.Join(args, " ")})
		return err
	case "get":
		var data any
		if len(args) > 0 {
			data = map[string]string{"key": args[0]}
		}
		return show(c.call(ctx, channels.GetConfig, data))
	case "set":
		if len(args) != 2 {
			return errUsage
		}
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("value %q is not JSON", args[1])
		}
		return show(c.call(ctx, channels.SetConfig, struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}{args[0], json.RawMessage(args[1])}))
	case "watch":
		channel := channels.ControllersStates
		if len(args) > 0 {
			channel = args[0]
		}
		err := c.watch(ctx, channel, nil, func(p json.RawMessage) bool {
			fmt.Fprintln(out, string(p))
			return true
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func pretty(raw json.RawMessage) string {
	return strings.TrimRight(gjson.GetBytes(raw, "@pretty").Raw, "\n")
}
