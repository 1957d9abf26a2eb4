package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <jid> <text>...",
	Short: "Connect, send one message and disconnect",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 15*time.Second, "give up connecting after this long")
}

func runSend(cmd *cobra.Command, args []string) error {
	rt, err := setup(true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()

	if err := rt.app.Connect(ctx); err != nil {
		return err
	}

	id, err := rt.app.SendMessage(args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	rt.logger.Debug("Message written", zap.String("id", id), zap.String("to", args[0]))

	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s\n", id, args[0])
	return nil
}
