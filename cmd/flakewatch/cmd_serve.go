package main

import (
	"context"

	"github.com/spf13/cobra"

	"flakewatch/internal/logging"
	mcpserver "flakewatch/internal/mcp"
	"flakewatch/internal/store"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveFlags struct {
	dbPath  string
	cfgPath string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the engine operations
(classify, quarantine transitions, resolutions, verification, reports)
as tools.

The server monitors for parent process death. When the client disconnects,
the server self-terminates to prevent zombie processes.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	f.StringVar(&serveFlags.cfgPath, "config", "", "Engine config file (YAML/JSON)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	eng, st, err := openEngine(serveFlags.dbPath, serveFlags.cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := mcpserver.NewServer(eng)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting flakewatch MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
