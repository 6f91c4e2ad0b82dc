package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smallyu/go-sm2/internal/demo/client"
	"github.com/smallyu/go-sm2/internal/demo/metrics"
	"github.com/smallyu/go-sm2/internal/demo/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the responder side of the key exchange demo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			srv, err := server.New(cfg, eng, logger, metrics.New())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
}

func clientCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run the initiator side against a demo server and test the channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			c, err := client.New(cfg, eng, nil, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Client ID: %s\nClient public key: %s\n", cfg.ClientID, c.PublicKey())

			sess, err := c.Exchange(cmd.Context())
			if err != nil {
				return fmt.Errorf("key exchange failed: %w", err)
			}
			defer sess.Destroy()
			fmt.Fprintf(out, "Session: %s\nServer ID: %s\nNegotiated key: %s\n", sess.ID, sess.ServerID, hex.EncodeToString(sess.Key))

			report, err := c.CryptoTest(cmd.Context(), sess, message)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "[Server decrypted client message]: %s\n", passFail(report.ServerDecryptMatch))
			fmt.Fprintf(out, "[Client decrypted server message]: %s\n", passFail(report.ClientDecrypted == report.ServerPlaintext))
			fmt.Fprintf(out, "  Server plaintext: %s\n", report.ServerPlaintext)
			if !report.Passed() {
				return fmt.Errorf("bidirectional crypto test failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "Hello from Go Client!", "plaintext sent through the negotiated channel")
	return cmd
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
