package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tacitsys/dncdbg-mcp/internal/config"
	"github.com/tacitsys/dncdbg-mcp/internal/engine"
	"github.com/tacitsys/dncdbg-mcp/internal/ffi"
	"github.com/tacitsys/dncdbg-mcp/internal/mcp"
	"github.com/tacitsys/dncdbg-mcp/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	mode := flag.String("mode", "", "Capability mode: 'readonly' or 'full' (overrides the config file)")
	helperPath := flag.String("helper-path", "", "Explicit path to the CoreCLR debug helper library, tried before the search order")
	showVersion := flag.Bool("version", false, "Show version and exit")
	help := flag.Bool("help", false, "Show help and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("dncdbg-mcp version %s\n", version.Version)
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	switch *mode {
	case "readonly":
		cfg.Mode = config.ModeReadOnly
	case "full":
		cfg.Mode = config.ModeFull
	}
	if *helperPath != "" {
		cfg.HelperPath = *helperPath
	}

	helper, err := ffi.Locate(cfg.HelperPath)
	if err != nil {
		log.Fatalf("Failed to locate the CoreCLR debug helper library: %v", err)
	}

	eng := engine.New(cfg, helper)
	server := mcp.NewServer(cfg, eng)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		server.Close()
		os.Exit(0)
	}()

	log.Println("dncdbg-mcp server starting...")
	if err := server.ServeStdio(); err != nil {
		server.Close()
		log.Fatalf("Server error: %v", err)
	}
	server.Close()
}

func printHelp() {
	fmt.Println(`dncdbg-mcp: CoreCLR Debug Engine MCP Server

A Model Context Protocol (MCP) server that drives CoreCLR's native debugging
interface directly, exposing breakpoints, stepping, and inspection of a
managed .NET process to an LLM agent.

USAGE:
    dncdbg-mcp [OPTIONS]

OPTIONS:
    -config <path>       Path to configuration file (JSON)
    -mode <mode>         Capability mode: 'readonly' or 'full' (default: full)
    -helper-path <path>  Explicit path to the debug helper library, tried
                         before DBGSHIM_PATH/DOTNET_ROOT/NETCOREDBG_PATH and
                         the well-known search locations
    -version             Show version and exit
    -help                 Show this help message

ENVIRONMENT:
    DBGSHIM_PATH      Path to the debug helper library
    DOTNET_ROOT       .NET install root, searched for the helper library
    NETCOREDBG_PATH   Alternate helper library location

CONFIGURATION:
    {
        "mode": "full",
        "buildConfiguration": "Debug",
        "firstChanceExceptions": false,
        "eventWaitTimeout": 30000000000
    }
    eventWaitTimeout is given in nanoseconds.
`)
}
