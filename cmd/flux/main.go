// Command flux is the thin CLI wiring the solver, lockfile
// reconciliation, the build plan, the content-addressed cache, and the
// install registry behind one subcommand per phase. The dispatch shape
// — a command interface, a flag.FlagSet per subcommand, a usage table —
// is the teacher's cmd/dep main.go, generalized from dep's single
// global GOPATH context to flux's layered config.Config.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
)

type command interface {
	Name() string           // "solve"
	Args() string           // "[manifest flags...]"
	ShortHelp() string      // one-line summary for the usage table
	LongHelp() string       // full help text
	Register(*flag.FlagSet) // command-specific flags
	Run(ctx *Ctx, args []string) error
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "flux: failed to get working directory:", err)
		os.Exit(1)
	}
	c := &Config{
		Args:       os.Args,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		WorkingDir: wd,
		Env:        os.Environ(),
	}
	os.Exit(c.Run())
}

// Config specifies a full flux invocation.
type Config struct {
	WorkingDir     string
	Args           []string
	Env            []string
	Stdout, Stderr io.Writer
}

// Run executes the configured invocation and returns an exit code,
// matching spec's "0 success; nonzero on any phase failure" rule.
func (c *Config) Run() (exitCode int) {
	commands := []command{
		&solveCommand{},
		&buildCommand{},
		&installCommand{},
		&uninstallCommand{},
		&versionCommand{},
	}

	errLogger := log.New(c.Stderr, "", 0)

	usage := func() {
		errLogger.Println("flux resolves, builds, and installs packages for a statically compiled functional language")
		errLogger.Println()
		errLogger.Println("Usage: flux <command>")
		errLogger.Println()
		errLogger.Println("Commands:")
		errLogger.Println()
		w := tabwriter.NewWriter(c.Stderr, 0, 4, 2, ' ', 0)
		for _, cmd := range commands {
			fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
		}
		w.Flush()
		errLogger.Println()
		errLogger.Println("Use \"flux help <command>\" for more information about a command.")
	}

	cmdName, printCommandHelp, exit := parseArgs(c.Args)
	if exit {
		usage()
		return 1
	}

	for _, cmd := range commands {
		if cmd.Name() != cmdName {
			continue
		}

		fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		fs.SetOutput(c.Stderr)
		verbose := fs.Bool("v", false, "enable verbose logging")
		cmd.Register(fs)
		resetUsage(errLogger, fs, cmdName, cmd.Args(), cmd.LongHelp())

		if printCommandHelp {
			fs.Usage()
			return 1
		}
		if err := fs.Parse(c.Args[2:]); err != nil {
			return 1
		}

		ctx, err := newCtx(c.WorkingDir, c.Env, c.Stdout, c.Stderr, *verbose)
		if err != nil {
			errLogger.Printf("flux: %v\n", err)
			return 1
		}

		if err := cmd.Run(ctx, fs.Args()); err != nil {
			errLogger.Printf("flux: %v\n", err)
			return 1
		}
		return 0
	}

	errLogger.Printf("flux: %s: no such command\n", cmdName)
	usage()
	return 1
}

func resetUsage(logger *log.Logger, fs *flag.FlagSet, name, args, longHelp string) {
	var (
		hasFlags   bool
		flagBlock  bytes.Buffer
		flagWriter = tabwriter.NewWriter(&flagBlock, 0, 4, 2, ' ', 0)
	)
	fs.VisitAll(func(f *flag.Flag) {
		hasFlags = true
		defValue := f.DefValue
		if defValue == "" {
			defValue = "<none>"
		}
		fmt.Fprintf(flagWriter, "\t-%s\t%s (default: %s)\n", f.Name, f.Usage, defValue)
	})
	flagWriter.Flush()
	fs.Usage = func() {
		logger.Printf("Usage: flux %s %s\n", name, args)
		logger.Println()
		logger.Println(strings.TrimSpace(longHelp))
		logger.Println()
		if hasFlags {
			logger.Println("Flags:")
			logger.Println()
			logger.Println(flagBlock.String())
		}
	}
}

// parseArgs determines the subcommand name and whether the user asked
// for help, mirroring the teacher's own parseArgs.
func parseArgs(args []string) (cmdName string, printCmdUsage bool, exit bool) {
	isHelpArg := func() bool {
		return strings.Contains(strings.ToLower(args[1]), "help") || strings.ToLower(args[1]) == "-h"
	}

	switch len(args) {
	case 0, 1:
		exit = true
	case 2:
		if isHelpArg() {
			exit = true
		}
		cmdName = args[1]
	default:
		if isHelpArg() {
			cmdName = args[2]
			printCmdUsage = true
		} else {
			cmdName = args[1]
		}
	}
	return cmdName, printCmdUsage, exit
}
