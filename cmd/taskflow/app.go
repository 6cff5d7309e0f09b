package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/client"
	"github.com/taskflow/taskflow-go/internal/client/board"
	"github.com/taskflow/taskflow-go/internal/client/session"
	"github.com/taskflow/taskflow-go/internal/client/transport"
	"github.com/taskflow/taskflow-go/internal/logger"
	"github.com/taskflow/taskflow-go/internal/model"
	"github.com/taskflow/taskflow-go/internal/service"
)

// Env is everything the client reads from its environment.
type Env struct {
	BaseURL string
	Timeout time.Duration
	// Dir holds the persisted session and cookie jar.
	Dir string
	Log logger.Config
}

var errNotSignedIn = errors.New("not signed in, run `taskflow login`")

type app struct {
	api   *client.API
	store *session.Store
	jar   *transport.Jar
	board *board.Board
	log   *zap.Logger
	out   io.Writer
	errw  io.Writer
}

type command struct {
	usage string
	auth  bool
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"signup": {"signup --first NAME --last NAME --email EMAIL --username NAME --password PW", false, cmdSignup},
	"login":  {"login --email EMAIL --password PW [--remember]", false, cmdLogin},
	"logout": {"logout", true, cmdLogout},
	"whoami": {"whoami", true, cmdWhoami},
	"profile": {"profile [--first NAME] [--last NAME] [--username NAME] [--current-password PW --new-password PW]",
		true, cmdProfile},
	"list":   {"list [--search TEXT]", true, cmdList},
	"add":    {"add --title TITLE --description TEXT [--priority low|medium|high] [--status STATUS] [--deadline YYYY-MM-DD]", true, cmdAdd},
	"move":   {"move ID STATUS|TASK-ID", true, cmdMove},
	"edit":   {"edit ID [--title T] [--description D] [--priority P] [--status S] [--deadline YYYY-MM-DD]", true, cmdEdit},
	"rm":     {"rm ID", true, cmdRemove},
	"forgot": {"forgot --email EMAIL", false, cmdForgot},
	"reset":  {"reset TOKEN --password PW", false, cmdReset},
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: taskflow <command> [flags]")
	for _, name := range names {
		fmt.Fprintln(w, "  taskflow", commands[name].usage)
	}
}

func run(ctx context.Context, args []string, env Env, out, errw io.Writer) int {
	if len(args) == 0 {
		usage(errw)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(errw, "unknown command %q\n", args[0])
		usage(errw)
		return 2
	}

	a, err := newApp(env, out, errw)
	if err != nil {
		fmt.Fprintln(errw, "taskflow:", err)
		return 1
	}
	defer a.log.Sync()

	if cmd.auth {
		// A failed check just leaves the store signed out.
		_ = session.Boot(ctx, a.store, a.api)
		if !a.store.IsAuthenticated() {
			fmt.Fprintln(errw, "taskflow:", errNotSignedIn)
			return 1
		}
	}

	err = cmd.run(ctx, a, args[1:])
	a.board.Wait()
	if err != nil {
		fmt.Fprintln(errw, "taskflow:", describe(err))
		return 1
	}
	return 0
}

func newApp(env Env, out, errw io.Writer) (*app, error) {
	log, err := logger.Init(env.Log)
	if err != nil {
		return nil, err
	}

	jar, err := transport.OpenJar(filepath.Join(env.Dir, "cookies.json"))
	if err != nil {
		return nil, err
	}
	store := session.New(session.NewFileStorage(env.Dir), log)

	tc, err := transport.New(transport.Config{
		BaseURL: env.BaseURL,
		Timeout: env.Timeout,
		Jar:     jar,
		Hooks:   store,
		OnRedirect: func(reason string) {
			if reason == transport.ReasonSessionExpired {
				fmt.Fprintln(errw, "Your session has expired. Please log in again.")
			}
		},
		Log: log,
	})
	if err != nil {
		return nil, err
	}

	api := client.NewAPI(tc)
	return &app{
		api:   api,
		store: store,
		jar:   jar,
		board: board.New(api, log),
		log:   log,
		out:   out,
		errw:  errw,
	}, nil
}

// describe flattens API validation errors into one readable line.
func describe(err error) string {
	var se *transport.StatusError
	if !errors.As(err, &se) {
		return err.Error()
	}
	msg := se.Message
	if msg == "" {
		msg = se.Error()
	}
	var body struct {
		Errors []service.FieldIssue `json:"errors"`
	}
	if json.Unmarshal(se.Body, &body) == nil && len(body.Errors) > 0 {
		parts := make([]string, 0, len(body.Errors))
		for _, issue := range body.Errors {
			parts = append(parts, issue.Message)
		}
		msg += ": " + strings.Join(parts, "; ")
	}
	return msg
}

func newFlagSet(name string, errw io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errw)
	return fs
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

// optional returns a pointer to v when the flag was given on the command line.
func optional(fs *flag.FlagSet, name string, v string) *string {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	if !set {
		return nil
	}
	return &v
}

func printUser(w io.Writer, u model.UserResponse) {
	fmt.Fprintf(w, "%s %s (@%s) <%s>\n", u.FirstName, u.LastName, u.Username, u.Email)
}
