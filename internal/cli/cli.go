// Package cli implements the katanos terminal commands on top of the core
// services.
package cli

import (
	"github.com/katanos/katanos/internal/auth"
	"github.com/katanos/katanos/internal/backup"
	"github.com/katanos/katanos/internal/iocli"
)

// CLI bundles the services the commands operate on.
type CLI struct {
	io        iocli.IO
	creds     *auth.Service
	builder   *backup.Builder
	runner    *backup.Runner
	restore   *backup.RestoreEngine
	scheduler *backup.Scheduler
}

func New(
	io iocli.IO,
	creds *auth.Service,
	builder *backup.Builder,
	runner *backup.Runner,
	restore *backup.RestoreEngine,
	scheduler *backup.Scheduler,
) *CLI {
	return &CLI{
		io:        io,
		creds:     creds,
		builder:   builder,
		runner:    runner,
		restore:   restore,
		scheduler: scheduler,
	}
}

// PrintUsage prints the command summary.
func (c *CLI) PrintUsage() {
	c.io.Println("Usage: katanos [flags] <command>")
	c.io.Println("")
	c.io.Println("Commands:")
	c.io.Println("  register   Create a new user")
	c.io.Println("  login      Log in and arm the backup scheduler")
	c.io.Println("  logout     Log out and disarm the scheduler")
	c.io.Println("  status     Show session and backup status")
	c.io.Println("  backup     Run a backup for the active user now")
	c.io.Println("  export     Write a global backup manifest to stdout path")
	c.io.Println("  restore    Restore from a backup file")
	c.io.Println("  erase      Delete the active user and all owned data")
}
