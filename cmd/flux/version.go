package main

import (
	"flag"
	"fmt"
)

// Version is the flux binary's own version, bumped by hand per release
// the way the teacher's cmd/dep does.
const Version = "0.1.0"

type versionCommand struct{}

func (c *versionCommand) Name() string      { return "version" }
func (c *versionCommand) Args() string      { return "" }
func (c *versionCommand) ShortHelp() string { return "print the flux version" }
func (c *versionCommand) LongHelp() string  { return "Prints the version of this flux binary." }
func (c *versionCommand) Register(fs *flag.FlagSet) {}

func (c *versionCommand) Run(ctx *Ctx, args []string) error {
	fmt.Fprintln(ctx.Out, Version)
	return nil
}
