// Package sh provides an interactive shell operating on message queues
// and files.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rtos.go/pkg/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Session *Session
}

const (
	shellKey = "$shell"
	prompt   = "mq > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&NewCmd,
		&PutCmd,
		&GetCmd,
		&StatCmd,
		&CloseCmd,
		&ListCmd,
		&CatCmd,
		&WriteCmd,
		&AppendCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:   ishell.New(),
		Session: NewSession(conf),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MinArgs wraps command func requiring at least n arguments.
func MinArgs(n int, fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) < n {
			c.Err(fmt.Errorf("expect at least %d arguments", n))
			return
		}
		fn(c)
	}
}

// Print prints v as JSON when OutputJSON is set, or text otherwise.
func Print(c *ishell.Context, v interface{}, text string) {
	if !ShellFrom(c).OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

func timeoutArg(c *ishell.Context, index int) (timeout string) {
	if len(c.Args) > index {
		timeout = c.Args[index]
	}
	return
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Session.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// NewCmd creates a queue.
	NewCmd = ishell.Cmd{
		Name:    "new",
		Aliases: []string{"n"},
		Help:    "NAME [CAPACITY]",
		Func: MinArgs(1, func(c *ishell.Context) {
			var capacity int
			if len(c.Args) > 1 {
				val, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(fmt.Errorf("invalid capacity %q", c.Args[1]))
					return
				}
				capacity = val
			}
			if err := ShellFrom(c).Session.NewQueue(c.Args[0], capacity); err != nil {
				c.Err(err)
			}
		}),
	}

	// PutCmd sends text to a queue.
	PutCmd = ishell.Cmd{
		Name:    "put",
		Aliases: []string{"p"},
		Help:    "NAME TEXT [TIMEOUT]",
		Func: MinArgs(2, func(c *ishell.Context) {
			timeout, err := ParseTimeout(timeoutArg(c, 2))
			if err != nil {
				c.Err(err)
				return
			}
			if err = ShellFrom(c).Session.Put(c.Args[0], c.Args[1], timeout); err != nil {
				c.Err(err)
				return
			}
			Print(c, map[string]bool{"ok": true}, "OK")
		}),
	}

	// GetCmd receives text from a queue.
	GetCmd = ishell.Cmd{
		Name:    "get",
		Aliases: []string{"g"},
		Help:    "NAME [TIMEOUT]",
		Func: MinArgs(1, func(c *ishell.Context) {
			timeout, err := ParseTimeout(timeoutArg(c, 1))
			if err != nil {
				c.Err(err)
				return
			}
			msg, err := ShellFrom(c).Session.Get(c.Args[0], timeout)
			if err != nil {
				c.Err(err)
				return
			}
			Print(c, map[string]string{"payload": string(msg.Payload)}, string(msg.Payload))
		}),
	}

	// StatCmd prints the occupancy of a queue.
	StatCmd = ishell.Cmd{
		Name:    "stat",
		Aliases: []string{"s"},
		Help:    "NAME",
		Func: MinArgs(1, func(c *ishell.Context) {
			stat, err := ShellFrom(c).Session.Stat(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			Print(c, stat, formatStat(stat))
		}),
	}

	// CloseCmd destroys a queue.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"c"},
		Help:    "NAME",
		Func: MinArgs(1, func(c *ishell.Context) {
			dropped, err := ShellFrom(c).Session.CloseQueue(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			Print(c, map[string]int{"dropped": dropped}, fmt.Sprintf("closed, %d dropped", dropped))
		}),
	}

	// ListCmd prints all queues.
	ListCmd = ishell.Cmd{
		Name:    "list",
		Aliases: []string{"l", "ls"},
		Help:    "",
		Func: func(c *ishell.Context) {
			stats := ShellFrom(c).Session.List()
			if ShellFrom(c).OutputJSON {
				Print(c, stats, "")
				return
			}
			if len(stats) == 0 {
				c.Println("No queues")
				return
			}
			for _, stat := range stats {
				c.Println(formatStat(stat))
			}
		},
	}

	// CatCmd prints a file.
	CatCmd = ishell.Cmd{
		Name: "cat",
		Help: "PATH",
		Func: MinArgs(1, func(c *ishell.Context) {
			data, err := ShellFrom(c).Session.ReadFile(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			Print(c, map[string]string{"content": string(data)}, string(data))
		}),
	}

	// WriteCmd replaces the content of a file.
	WriteCmd = ishell.Cmd{
		Name: "write",
		Help: "PATH TEXT",
		Func: MinArgs(2, func(c *ishell.Context) {
			if err := ShellFrom(c).Session.WriteFile(c.Args[0], []byte(c.Args[1]), false); err != nil {
				c.Err(err)
			}
		}),
	}

	// AppendCmd appends to a file.
	AppendCmd = ishell.Cmd{
		Name: "append",
		Help: "PATH TEXT",
		Func: MinArgs(2, func(c *ishell.Context) {
			if err := ShellFrom(c).Session.WriteFile(c.Args[0], []byte(c.Args[1]), true); err != nil {
				c.Err(err)
			}
		}),
	}
)

func formatStat(stat QueueStat) string {
	return fmt.Sprintf("%s: %d/%d (%d free)", stat.Name, stat.Len, stat.Capacity, stat.Space)
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.MustLoad()).Run(flag.Args()...)
}
