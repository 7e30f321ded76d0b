package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/katanos/katanos/internal/auth"
	"github.com/katanos/katanos/internal/models"
)

// RunRegister creates a new account interactively.
func (c *CLI) RunRegister(ctx context.Context) error {
	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return err
	}

	password, err := c.io.ReadPassword("Password (empty for none): ")
	if err != nil {
		return err
	}

	question, err := c.io.ReadInput("Security question id (empty to skip): ")
	if err != nil {
		return err
	}

	var answer string
	if question != "" {
		answer, err = c.io.ReadInput("Security answer: ")
		if err != nil {
			return err
		}
	}

	user, err := c.creds.Register(ctx, auth.RegisterParams{
		Username:           username,
		Password:           password,
		SecurityQuestionID: question,
		SecurityAnswer:     answer,
	})
	if err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			return fmt.Errorf("username %q is taken", username)
		}
		return err
	}

	c.io.Printf("Registered %s (%s)\n", user.Username, user.ID)
	return nil
}

// RunLogin authenticates and arms the backup scheduler for the user.
func (c *CLI) RunLogin(ctx context.Context) error {
	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return err
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return err
	}

	user, err := c.creds.Login(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			return fmt.Errorf("no such user")
		case errors.Is(err, auth.ErrInvalidCredentials):
			return fmt.Errorf("invalid credentials")
		default:
			return err
		}
	}

	c.scheduler.Start(user.ID, user.Backup)

	c.io.Printf("Logged in as %s\n", user.Username)
	return nil
}

// RunLogout clears the session and disarms the scheduler.
func (c *CLI) RunLogout(ctx context.Context) error {
	c.scheduler.Stop()
	if err := c.creds.Sessions().Clear(ctx); err != nil {
		return err
	}
	c.io.Println("Logged out")
	return nil
}

// RunStatus prints the active session and last backup outcome.
func (c *CLI) RunStatus(ctx context.Context) error {
	user := c.creds.Sessions().Current()
	if user == nil {
		c.io.Println("Not logged in")
		return nil
	}

	c.io.Printf("Logged in as %s (%s)\n", user.Username, user.ID)
	c.io.Printf("Backups enabled: %v\n", user.Backup.Enabled)
	if user.Backup.LastBackupAt != "" {
		c.io.Printf("Last backup: %s (%s)\n", user.Backup.LastBackupAt, user.Backup.LastBackupStatus)
	}
	c.io.Printf("Scheduler armed: %v\n", c.scheduler.Armed())
	return nil
}

// RunBackup triggers an immediate backup for the active user.
func (c *CLI) RunBackup(ctx context.Context) error {
	user := c.creds.Sessions().Current()
	if user == nil {
		return fmt.Errorf("log in first")
	}

	result := c.runner.TriggerBackupNow(ctx, user.ID, user.Backup)
	if result.Err != nil {
		return fmt.Errorf("backup failed: %w", result.Err)
	}

	if result.Path != "" {
		c.io.Printf("Backup written to %s (%d bytes)\n", result.Path, result.SizeBytes)
	} else {
		c.io.Printf("Backup produced as %s (%d bytes)\n", result.FileName, result.SizeBytes)
	}
	return nil
}

// RunExport writes a global manifest to the given path.
func (c *CLI) RunExport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: katanos export <path>")
	}

	manifest, err := c.builder.BuildGlobal(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(args[0], data, 0600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	c.io.Printf("Exported %d bytes to %s\n", len(data), args[0])
	return nil
}

// RunRestore ingests a backup file.
func (c *CLI) RunRestore(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: katanos restore <path>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	var payload models.BackupManifest
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid backup file: %w", err)
	}

	summary, err := c.restore.Restore(ctx, &payload)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	c.io.Printf("Restored %d collections (scope %s)\n", len(summary.Collections), summary.Scope)
	return nil
}

// RunErase cascade-deletes the active user.
func (c *CLI) RunErase(ctx context.Context) error {
	user := c.creds.Sessions().Current()
	if user == nil {
		return fmt.Errorf("log in first")
	}

	confirm, err := c.io.ReadInput(fmt.Sprintf("Type %q to delete all data: ", user.Username))
	if err != nil {
		return err
	}
	if confirm != user.Username {
		c.io.Println("Aborted")
		return nil
	}

	c.scheduler.Stop()
	if err := c.creds.DeleteUserData(ctx, user.ID); err != nil {
		return err
	}

	c.io.Println("User data deleted")
	return nil
}
