package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runRegister(ctx context.Context, args []string) error {
	fs := c.newFlagSet("register")
	username := fs.String("username", "", "username")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	c.io.Println("=== Register ===")

	name, err := c.readUsername(*username)
	if err != nil {
		return err
	}
	password, err := c.readPassword(true)
	if err != nil {
		return err
	}

	user, err := c.client.Register(ctx, name, password)
	if err != nil {
		return err
	}

	c.io.Println("✓ Registration successful!")
	c.io.Printf("Username: %s\n", user.Username)
	c.io.Printf("User ID:  %d\n", user.ID)
	c.io.Println("Run 'taskkeeper login' to start a session.")
	return nil
}

func (c *Cli) runLogin(ctx context.Context, args []string) error {
	fs := c.newFlagSet("login")
	username := fs.String("username", "", "username")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	c.io.Println("=== Login ===")

	name, err := c.readUsername(*username)
	if err != nil {
		return err
	}
	password, err := c.readPassword(false)
	if err != nil {
		return err
	}

	session, err := c.client.Login(ctx, name, password)
	if err != nil {
		return err
	}

	c.io.Println("✓ Login successful!")
	c.io.Printf("Username: %s\n", session.Username)
	if session.ExpiresAt > 0 {
		c.io.Printf("Access token expires at: %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
	}
	return nil
}

func (c *Cli) runLogout(ctx context.Context) error {
	if err := c.client.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session has been deleted.")
	return nil
}

func (c *Cli) runWhoami(ctx context.Context) error {
	user, err := c.client.Me(ctx)
	if err != nil {
		return err
	}
	c.io.Printf("%s (id %d)\n", user.Username, user.ID)
	return nil
}
