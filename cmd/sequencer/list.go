package main

import (
	"flag"
	"fmt"

	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/midi"
	"github.com/dudk/sequencer/plugin/builtin"
	"github.com/dudk/sequencer/vst2"
)

type listCommand struct {
	scan stringList
}

func (cmd *listCommand) Name() string {
	return "list"
}

func (cmd *listCommand) Help() string {
	return "Show the list of available plugins and midi inputs"
}

func (cmd *listCommand) Register(fs *flag.FlagSet) {
	fs.Var(&cmd.scan, "scan", "semicolon separated paths to scan for plugins")
}

func (cmd *listCommand) Run() error {
	cache := vst2.NewCache(log.GetLogger(), cmd.scan...)
	fmt.Printf("Builtin plugins:\n")
	for _, name := range builtin.Names() {
		fmt.Printf("\t%s\n", name)
	}
	fmt.Printf("Scan paths:\n%v", cache)
	fmt.Printf("Available plugins:\n%v", cache.Libs)
	fmt.Printf("Midi inputs:\n")
	for _, port := range midi.Ports() {
		fmt.Printf("\t%s\n", port)
	}
	return nil
}
