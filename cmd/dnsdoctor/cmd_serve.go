package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httphandler "maildns/internal/handler/http"
)

func newCmdServe() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			if listen == "" {
				listen = app.Config.HTTPListen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := httphandler.NewServer(app.Usecase, listen)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Println("Shutting down...")
			return srv.Stop()
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default: env HTTP_LISTEN or :8080)")
	return cmd
}
