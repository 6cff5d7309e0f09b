package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/taskflow/taskflow-go/internal/client/board"
	"github.com/taskflow/taskflow-go/internal/client/session"
	"github.com/taskflow/taskflow-go/internal/model"
)

func cmdSignup(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("signup", a.errw)
	var req model.SignupRequest
	fs.StringVar(&req.FirstName, "first", "", "first name")
	fs.StringVar(&req.LastName, "last", "", "last name")
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.StringVar(&req.Username, "username", "", "username")
	fs.StringVar(&req.Password, "password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg, err := a.api.Signup(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login", a.errw)
	var req model.LoginRequest
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.StringVar(&req.Password, "password", "", "password")
	fs.BoolVar(&req.RememberMe, "remember", false, "keep the session for 30 days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.api.Login(ctx, req)
	if err != nil {
		return err
	}
	a.store.SetAuth(user)
	fmt.Fprintf(a.out, "Signed in as %s\n", user.Username)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	apiErr := a.api.Logout(ctx)
	a.store.Logout()
	if err := a.jar.Clear(); err != nil {
		return err
	}
	if apiErr != nil {
		a.log.Debug("server logout failed, local session cleared anyway")
	}
	fmt.Fprintln(a.out, "Logged out successfully")
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	st := a.store.State()
	if st.User == nil {
		return errNotSignedIn
	}
	printUser(a.out, *st.User)
	return nil
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("profile", a.errw)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	username := fs.String("username", "", "username")
	current := fs.String("current-password", "", "current password")
	next := fs.String("new-password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NFlag() == 0 {
		user, err := a.api.Profile(ctx)
		if err != nil {
			return err
		}
		printUser(a.out, user)
		return nil
	}

	user, err := a.api.UpdateProfile(ctx, model.UpdateProfileRequest{
		FirstName:       *first,
		LastName:        *last,
		Username:        *username,
		CurrentPassword: *current,
		NewPassword:     *next,
	})
	if err != nil {
		return err
	}
	a.store.UpdateUser(session.UserPatch{
		FirstName: &user.FirstName,
		LastName:  &user.LastName,
		Username:  &user.Username,
	})
	fmt.Fprintln(a.out, "Profile updated successfully")
	printUser(a.out, user)
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("list", a.errw)
	search := fs.String("search", "", "only show tasks whose title contains TEXT")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.board.Refresh(ctx); err != nil {
		return err
	}
	tasks := a.board.Tasks()

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, col := range board.Columns(tasks, *search) {
		fmt.Fprintf(tw, "%s (%d)\n", col.Label, len(col.Tasks))
		for _, t := range col.Tasks {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", t.ID, t.Title, t.Priority, deadline(t))
		}
	}
	tw.Flush()

	s := board.Summarize(tasks)
	fmt.Fprintf(a.out, "\n%d tasks, %d done, %d pending (%d%% complete)\n", s.Total, s.Done, s.Pending, s.Percent)
	return nil
}

func cmdAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("add", a.errw)
	var req model.CreateTodoRequest
	fs.StringVar(&req.Title, "title", "", "task title")
	fs.StringVar(&req.Description, "description", "", "task description")
	fs.StringVar(&req.Priority, "priority", "", "low, medium or high")
	fs.StringVar(&req.Status, "status", "", "todo, in-progress or done")
	fs.StringVar(&req.Deadline, "deadline", "", "due date")
	if err := fs.Parse(args); err != nil {
		return err
	}

	todo, err := a.board.Create(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Todo created (%d)\n", todo.ID)
	return nil
}

func cmdMove(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: taskflow move ID STATUS|TASK-ID")
	}
	if _, err := parseID(args[0]); err != nil {
		return err
	}

	if err := a.board.Refresh(ctx); err != nil {
		return err
	}
	moved, err := a.board.Drop(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !moved {
		fmt.Fprintln(a.out, "Nothing to move")
		return nil
	}
	fmt.Fprintln(a.out, "Updated successfully")
	return nil
}

func cmdEdit(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: taskflow edit ID [flags]")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	fs := newFlagSet("edit", a.errw)
	title := fs.String("title", "", "task title")
	description := fs.String("description", "", "task description")
	priority := fs.String("priority", "", "low, medium or high")
	status := fs.String("status", "", "todo, in-progress or done")
	due := fs.String("deadline", "", "due date, empty to clear")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	patch := model.UpdateTodoRequest{
		Title:       optional(fs, "title", *title),
		Description: optional(fs, "description", *description),
		Priority:    optional(fs, "priority", *priority),
		Status:      optional(fs, "status", *status),
		Deadline:    optional(fs, "deadline", *due),
	}
	if err := a.board.Refresh(ctx); err != nil {
		return err
	}
	if err := a.board.UpdateTask(ctx, id, patch); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Updated successfully")
	return nil
}

func cmdRemove(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: taskflow rm ID")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.board.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Todo deleted successfully")
	return nil
}

func cmdForgot(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("forgot", a.errw)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg, err := a.api.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func cmdReset(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: taskflow reset TOKEN --password PW")
	}
	token := args[0]

	fs := newFlagSet("reset", a.errw)
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	msg, err := a.api.ResetPassword(ctx, token, model.ResetPasswordRequest{Password: *password, ConfirmPassword: *password})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func deadline(t model.Todo) string {
	if t.Deadline == nil {
		return "-"
	}
	return t.Deadline.Format("2006-01-02")
}
