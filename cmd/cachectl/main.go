package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"source-seeker/internal/cachegroups"
	"source-seeker/internal/database"
	"source-seeker/internal/startup"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Minute

// cli carries the streams a command reads and writes.
type cli struct {
	stdout      io.Writer
	stderr      io.Writer
	stdin       io.Reader
	interactive bool
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	c := cli{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		stdin:       os.Stdin,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}

	cfg, err := startup.ReadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(c.run(ctx, os.Args[1:], cfg.DatabasePath))
}

// run executes one command and returns the process exit code.
func (c cli) run(ctx context.Context, args []string, dbPath string) int {
	if len(args) < 1 {
		c.printUsage()
		return 1
	}

	command := args[0]
	switch command {
	case "list", "remove", "stats", "vacuum":
	case "help", "-h", "--help":
		c.printUsage()
		return 0
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", sanitizeCommand(command))
		c.printUsage()
		return 1
	}

	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(c.stderr, "Error: no cache at %s\n", dbPath)
		fmt.Fprintln(c.stderr, "Make sure DATABASE_DIR is set correctly.")
		return 1
	}

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: Failed to open cache: %v\n", err)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(c.stderr, "Warning: failed to close cache: %v\n", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ok bool
	switch command {
	case "list":
		ok = c.listGroups(ctx, cachegroups.New(db))
	case "remove":
		ok = c.removeGroups(ctx, cachegroups.New(db), args[1:])
	case "stats":
		ok = c.showStats(ctx, db)
	case "vacuum":
		ok = c.vacuum(ctx, db)
	}
	if !ok {
		return 1
	}
	return 0
}

// sanitizeCommand returns a safe representation of a command string for display.
// Any character that is not alphanumeric, a hyphen or an underscore becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func (c cli) printUsage() {
	fmt.Fprintln(c.stdout, "source-seeker cache management")
	fmt.Fprintln(c.stdout, "")
	fmt.Fprintln(c.stdout, "Usage: cachectl <command> [folder...]")
	fmt.Fprintln(c.stdout, "")
	fmt.Fprintln(c.stdout, "Commands:")
	fmt.Fprintln(c.stdout, "  list               - List cached folders with file counts and status")
	fmt.Fprintln(c.stdout, "  remove <folder>... - Remove cached fingerprints for folders and their subfolders")
	fmt.Fprintln(c.stdout, "  stats              - Show cache row counts and size")
	fmt.Fprintln(c.stdout, "  vacuum             - Reclaim space after removals")
	fmt.Fprintln(c.stdout, "")
	fmt.Fprintln(c.stdout, "Environment:")
	fmt.Fprintf(c.stdout, "  DATABASE_DIR - Path to cache directory (default: ~/%s)\n", startup.DefaultDatabaseDirName)
}

func (c cli) listGroups(ctx context.Context, g *cachegroups.Grouper) bool {
	groups, err := g.ListGroups(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: Failed to list cached folders: %v\n", err)
		return false
	}
	if len(groups) == 0 {
		fmt.Fprintln(c.stdout, "Cache is empty.")
		return true
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tFILES\tFOLDER")
	for _, group := range groups {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", group.Status, group.Count, group.Folder)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return false
	}
	return true
}

func (c cli) removeGroups(ctx context.Context, g *cachegroups.Grouper, folders []string) bool {
	if len(folders) == 0 {
		fmt.Fprintln(c.stderr, "Error: remove needs at least one folder")
		return false
	}

	for i, folder := range folders {
		if abs, err := filepath.Abs(folder); err == nil {
			folders[i] = abs
		}
	}

	if c.interactive && !c.confirm(fmt.Sprintf("Remove cached fingerprints for %d folder(s) and all subfolders? [y/N] ", len(folders))) {
		fmt.Fprintln(c.stdout, "Aborted.")
		return false
	}

	results, err := g.RemoveGroups(ctx, folders)
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(c.stderr, "  [FAIL] %s: %s\n", r.Folder, r.Error)
			continue
		}
		fmt.Fprintf(c.stdout, "  [OK] %s: %d entries removed\n", r.Folder, r.Removed)
	}
	if err != nil {
		fmt.Fprintln(c.stderr, "Error: Some folders could not be removed.")
		return false
	}
	return true
}

func (c cli) confirm(prompt string) bool {
	fmt.Fprint(c.stdout, prompt)
	answer, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (c cli) showStats(ctx context.Context, db *database.Database) bool {
	stats, err := db.Stats(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: Failed to read cache statistics: %v\n", err)
		return false
	}
	fmt.Fprintf(c.stdout, "Cache:         %s\n", db.Path())
	fmt.Fprintf(c.stdout, "Fingerprints:  %d\n", stats.Files)
	fmt.Fprintf(c.stdout, "Scan roots:    %d\n", stats.Roots)
	fmt.Fprintf(c.stdout, "Size on disk:  %s\n", startup.FormatBytes(stats.SizeBytes))
	return true
}

func (c cli) vacuum(ctx context.Context, db *database.Database) bool {
	before, err := db.Stats(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: Failed to read cache statistics: %v\n", err)
		return false
	}
	if err := db.Vacuum(ctx); err != nil {
		fmt.Fprintf(c.stderr, "Error: Vacuum failed: %v\n", err)
		return false
	}
	after, err := db.Stats(ctx)
	if err != nil {
		fmt.Fprintln(c.stdout, "Vacuum complete.")
		fmt.Fprintf(c.stderr, "Warning: failed to read cache size after vacuum: %v\n", err)
		return true
	}
	fmt.Fprintf(c.stdout, "Vacuum complete: %s -> %s\n",
		startup.FormatBytes(before.SizeBytes), startup.FormatBytes(after.SizeBytes))
	return true
}
