package main

import (
	"flag"
	"fmt"

	"github.com/fncraft/flux/internal/install"
)

type uninstallCommand struct {
	byName bool
}

func (c *uninstallCommand) Name() string      { return "uninstall" }
func (c *uninstallCommand) Args() string      { return "<binary-name-or-package-spec>" }
func (c *uninstallCommand) ShortHelp() string { return "remove an installed binary" }
func (c *uninstallCommand) LongHelp() string {
	return `Removes a binary from the install directory. By default the argument is
a package spec (group/name [@ resolution] [| constraint]); pass -name to
instead remove by the exact binary name it was installed under.`
}
func (c *uninstallCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.byName, "name", false, "treat the argument as an installed binary name, not a package spec")
}

func (c *uninstallCommand) Run(ctx *Ctx, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("uninstall requires exactly one argument")
	}
	registry := &install.Registry{BinDir: ctx.Config.Install.BinDir}

	if c.byName {
		if err := registry.UninstallByName(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(ctx.Out, "uninstalled %s\n", args[0])
		return nil
	}

	spec, err := install.ParseSpec(args[0])
	if err != nil {
		return err
	}
	removed, err := registry.UninstallBySpec(spec)
	if err != nil {
		return err
	}
	for _, name := range removed {
		fmt.Fprintf(ctx.Out, "uninstalled %s\n", name)
	}
	return nil
}
