package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

func (c *Cli) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.io)
	return fs
}

func (c *Cli) readUsername(fromFlag string) (string, error) {
	if name := strings.TrimSpace(fromFlag); name != "" {
		return name, nil
	}

	name, err := c.io.ReadInput("Username: ")
	if err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	if name == "" {
		return "", errors.New("username cannot be empty")
	}
	return name, nil
}

// readPassword берёт пароль из окружения, иначе спрашивает.
// confirm требует повторного ввода (только для интерактивного режима).
func (c *Cli) readPassword(confirm bool) (string, error) {
	if c.getenv != nil {
		if password := c.getenv(PasswordEnv); password != "" {
			return password, nil
		}
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	if confirm {
		again, err := c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if again != password {
			return "", errors.New("passwords do not match")
		}
	}
	return password, nil
}
