package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manash/olive/internal/server"
)

var flagAddr string

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the design HTTP API",
		Long: `Serve exposes the design collaborators over HTTP:

  POST /api/style-analyze      POST /api/design-generate
  POST /api/design-variations  POST /api/materials-extract
  GET  /api/naver-search       GET  /api/models
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, app)
		},
	}
	cmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func runServe(cmd *cobra.Command, app *App) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	e, err := setup(app)
	if err != nil {
		return err
	}
	defer e.Close()

	addr := flagAddr
	if addr == "" {
		addr = e.cfg.Server.Addr
	}

	srv := server.New(server.Deps{
		Designer: e.designer,
		Search:   e.search,
		Keys: server.Availability{
			Anthropic: e.avail.anthropic,
			OpenAI:    e.avail.openai,
			Naver:     e.avail.naver,
		},
		Logger: e.logger,
	})

	fmt.Fprintf(app.Out, "Listening on %s (anthropic=%t openai=%t naver=%t)\n",
		addr, e.avail.anthropic, e.avail.openai, e.avail.naver)
	return srv.Run(ctx, addr)
}
