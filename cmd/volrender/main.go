package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/janelia-flyem/volrender/catalog"
	"github.com/janelia-flyem/volrender/server"
	"github.com/janelia-flyem/volrender/volrender"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to the TOML server configuration.
	configFile = flag.String("config", "", "")

	// Number of logical CPUs to use for rendering.
	useCPU = flag.Int("numcpu", 0, "")
)

const helpMessage = `
volrender serves rendered images of volumetric datasets over HTTP

Usage: volrender [options] <config dir> <port | socket path>

      -config     =string   TOML server configuration file.
      -numcpu     =number   Number of logical CPUs to use for rendering.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

The config dir holds one dataset descriptor (.json, .yaml or .yml) per dataset.
A bind target made only of digits is a TCP port; anything else is the path of a
Unix domain socket, which is replaced if it already exists.
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	if *runVerbose {
		volrender.Verbose = true
		volrender.SetLogMode(volrender.DebugMode)
	}

	if *useCPU > 0 {
		volrender.NumCPU = *useCPU
	}
	runtime.GOMAXPROCS(volrender.NumCPU)

	if err := run(flag.Arg(0), flag.Arg(1)); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		volrender.Shutdown()
		os.Exit(1)
	}
	volrender.Shutdown()
}

func run(configDir, target string) error {
	if *configFile != "" {
		if err := server.LoadConfig(*configFile); err != nil {
			return err
		}
	}
	server.LogConfig().SetLogger()

	cat, err := catalog.Build(configDir, server.CatalogOptions())
	if err != nil {
		return err
	}
	if len(cat) == 0 {
		volrender.Warningf("No datasets found in %s\n", configDir)
	}

	ln, err := server.Listen(target, server.MaxConnections())
	if err != nil {
		return fmt.Errorf("cannot listen on %q: %v", target, err)
	}

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	volrender.Infof("Serving %d datasets with %d CPUs\n", len(cat), volrender.NumCPU)
	if err := server.Serve(ctx, ln, server.New(cat), server.ShutdownTimeout()); err != nil {
		return err
	}
	volrender.Infof("Server stopped.\n")
	return nil
}
