package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/longkey1/llmnote/internal/api"
	"github.com/longkey1/llmnote/internal/llmnote/config"
	"github.com/longkey1/llmnote/internal/llmnote/conversation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversation store over HTTP",
	Long: `Start a JSON HTTP API over the configured conversation store.

Routes:
  GET    /api/conversations?user_id=     list conversations
  POST   /api/conversations              create a conversation
  GET    /api/conversations/:id?limit=   get a conversation with its messages
  PATCH  /api/conversations/:id          update title or task
  DELETE /api/conversations/:id          delete a conversation
  POST   /api/conversations/delete       delete several conversations
  POST   /api/conversations/:id/messages append messages with the message cap

Request bodies must be sent as application/json. Browsers may only call the
API from the origins listed in allowed_origins; by default none can.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		return withStore(cmd.Context(), func(cfg *config.Config, svc *conversation.Service, logger *zap.Logger) error {
			if addr == "" {
				addr = cfg.ServeAddr
			}
			if !verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			handler := api.NewHandler(svc, api.Options{
				DefaultUserID: currentUser(cfg),
				MessageCap:    cfg.MessageCap,
				Logger:        logger,
			})
			server := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(handler, logger, cfg.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", zap.String("addr", addr))
				fmt.Fprintf(os.Stderr, "Serving on http://%s\n", addr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			logger.Info("shutting down")
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from serve_addr)")
}
