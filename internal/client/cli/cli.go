// Package cli implements the taskkeeper command line client.
package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/iudanet/taskkeeper/internal/client/iocli"
	"github.com/iudanet/taskkeeper/internal/client/storage"
	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/pkg/api"
)

//go:generate moq -out client_mock.go . APIClient

// PasswordEnv позволяет передать пароль без интерактивного ввода
const PasswordEnv = "TASKKEEPER_PASSWORD"

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("invalid usage")

// APIClient is the server API as seen by the CLI.
type APIClient interface {
	Register(ctx context.Context, username, password string) (*api.UserResponse, error)
	Login(ctx context.Context, username, password string) (*storage.Session, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.UserResponse, error)
	CreateTask(ctx context.Context, req api.CreateTaskRequest) (*api.TaskResponse, error)
	ListTasks(ctx context.Context, status string) ([]api.TaskResponse, error)
	GetTask(ctx context.Context, id int64) (*api.TaskResponse, error)
	UpdateTask(ctx context.Context, id int64, req api.UpdateTaskRequest) (*api.TaskResponse, error)
	DeleteTask(ctx context.Context, id int64) error
}

type Cli struct {
	io     iocli.IO
	client APIClient
	getenv func(string) string
}

func New(io iocli.IO, client APIClient, getenv func(string) string) *Cli {
	return &Cli{
		io:     io,
		client: client,
		getenv: getenv,
	}
}

// Run executes a single command. args[0] is the command name.
func (c *Cli) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.PrintUsage()
		return ErrUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "register":
		return c.runRegister(ctx, rest)
	case "login":
		return c.runLogin(ctx, rest)
	case "logout":
		return c.runLogout(ctx)
	case "whoami":
		return c.runWhoami(ctx)
	case "add":
		return c.runAdd(ctx, rest)
	case "list":
		return c.runList(ctx, rest)
	case "show":
		return c.runShow(ctx, rest)
	case "update":
		return c.runUpdate(ctx, rest)
	case "delete":
		return c.runDelete(ctx, rest)
	case "help", "-h", "--help":
		c.PrintUsage()
		return nil
	default:
		c.io.Printf("Unknown command: %s\n\n", command)
		c.PrintUsage()
		return ErrUsage
	}
}

func (c *Cli) PrintUsage() {
	statuses := make([]string, 0, len(models.TaskStatuses))
	for _, s := range models.TaskStatuses {
		statuses = append(statuses, string(s))
	}

	c.io.Println("TaskKeeper Client")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  taskkeeper [OPTIONS] COMMAND [ARGS]")
	c.io.Println()
	c.io.Println("Options:")
	c.io.Println("  --version       Show version information")
	c.io.Println("  --server URL    Server URL (default: http://localhost:8000)")
	c.io.Println("  --db PATH       Path to local session database (default: taskkeeper-client.db)")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  register [-username NAME]                         Register new user")
	c.io.Println("  login [-username NAME]                            Login and save session")
	c.io.Println("  logout                                            Revoke session and forget it")
	c.io.Println("  whoami                                            Show current user")
	c.io.Println("  add -title T [-description D] [-status S]         Create task")
	c.io.Println("  list [-status S]                                  List tasks")
	c.io.Println("  show <id>                                         Show task")
	c.io.Println("  update <id> [-title T] [-description D] [-status S]  Update task")
	c.io.Println("  delete <id>                                       Delete task")
	c.io.Println()
	c.io.Printf("Statuses: %s\n", strings.Join(statuses, ", "))
	c.io.Println()
	c.io.Printf("Password is read from %s if set, otherwise prompted.\n", PasswordEnv)
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  taskkeeper register -username alice")
	c.io.Println("  taskkeeper login -username alice")
	c.io.Println("  taskkeeper add -title 'Write report' -status not_started")
	c.io.Println("  taskkeeper list -status completed")
	c.io.Println("  taskkeeper update 3 -status completed")
	c.io.Println("  taskkeeper --server https://tasks.example.com login")
}
