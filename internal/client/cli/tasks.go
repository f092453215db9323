package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/taskkeeper/pkg/api"
)

func (c *Cli) runAdd(ctx context.Context, args []string) error {
	fs := c.newFlagSet("add")
	title := fs.String("title", "", "task title")
	description := fs.String("description", "", "task description")
	status := fs.String("status", "", "initial status (default in_progress)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	req := api.CreateTaskRequest{
		Title:       strings.TrimSpace(*title),
		Description: *description,
	}
	if req.Title == "" {
		return fmt.Errorf("%w: -title is required", ErrUsage)
	}
	if *status != "" {
		req.Status = status
	}

	task, err := c.client.CreateTask(ctx, req)
	if err != nil {
		return err
	}

	c.io.Printf("✓ Task %d created\n", task.ID)
	c.printTask(task)
	return nil
}

func (c *Cli) runList(ctx context.Context, args []string) error {
	fs := c.newFlagSet("list")
	status := fs.String("status", "", "filter by status")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	tasks, err := c.client.ListTasks(ctx, *status)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		c.io.Println("No tasks found.")
		return nil
	}

	c.io.Printf("%-6s %-12s %s\n", "ID", "STATUS", "TITLE")
	for _, t := range tasks {
		c.io.Printf("%-6d %-12s %s\n", t.ID, t.Status, t.Title)
	}
	c.io.Printf("Total: %d\n", len(tasks))
	return nil
}

func (c *Cli) runShow(ctx context.Context, args []string) error {
	fs := c.newFlagSet("show")
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}

	task, err := c.client.GetTask(ctx, id)
	if err != nil {
		return err
	}
	c.printTask(task)
	return nil
}

func (c *Cli) runUpdate(ctx context.Context, args []string) error {
	fs := c.newFlagSet("update")
	title := fs.String("title", "", "new title")
	description := fs.String("description", "", "new description")
	status := fs.String("status", "", "new status")
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}

	// только явно переданные флаги попадают в запрос
	var req api.UpdateTaskRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			req.Title = title
		case "description":
			req.Description = description
		case "status":
			req.Status = status
		}
	})

	task, err := c.client.UpdateTask(ctx, id, req)
	if err != nil {
		return err
	}

	c.io.Printf("✓ Task %d updated\n", task.ID)
	c.printTask(task)
	return nil
}

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	fs := c.newFlagSet("delete")
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}

	if err := c.client.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.io.Printf("✓ Task %d deleted\n", id)
	return nil
}

func (c *Cli) printTask(t *api.TaskResponse) {
	c.io.Printf("ID:          %d\n", t.ID)
	c.io.Printf("Title:       %s\n", t.Title)
	c.io.Printf("Status:      %s\n", t.Status)
	if t.Description != "" {
		c.io.Printf("Description: %s\n", t.Description)
	}
	c.io.Printf("Created:     %s\n", t.CreatedAt.Local().Format(time.DateTime))
}

// parseID разбирает "<id> [flags]" и "[flags] <id>".
// Пакет flag прекращает разбор на первом позиционном аргументе.
func parseID(fs *flag.FlagSet, args []string) (int64, error) {
	var raw string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		raw, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if raw == "" {
		raw = fs.Arg(0)
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: missing task id. Usage: taskkeeper %s <id>", ErrUsage, fs.Name())
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid task id %q", ErrUsage, raw)
	}
	return id, nil
}
