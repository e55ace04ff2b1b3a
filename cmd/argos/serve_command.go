package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/argos/shield"
)

const version = "0.3.0"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer app.close()
			if addr == "" {
				addr = app.cfg.Serve.Addr
			}
			logger := ctx.logger()

			srv := &http.Server{
				Addr:              addr,
				Handler:           app.svc.Routes(shield.DefaultLimits()),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("argos: listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-cmd.Context().Done():
			}
			logger.Info("argos: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	return cmd
}

func newMCPCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the argos tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer app.close()

			srv := mcp.NewServer(&mcp.Implementation{Name: "argos", Version: version}, nil)
			app.svc.RegisterMCP(srv)
			err = srv.Run(cmd.Context(), &mcp.StdioTransport{})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
