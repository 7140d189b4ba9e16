package commands

import (
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API in the foreground",
	Long: `Serve the session HTTP API (the same one warrend runs) until interrupted.

Routes are rooted at /api/v1; /healthz and /metrics are also exposed.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	addr := e.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	printer.Step("Serving namespace '%s' on %s\n", e.cfg.Redis.Namespace, addr)
	return server.New(e.svc, e.client, e.logger).ListenAndServe(ctx, addr)
}
