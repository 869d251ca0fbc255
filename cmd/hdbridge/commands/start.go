package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hdbridge/hdbridge/node"
)

// StartCmd runs the bridge node until interrupted. Alongside the node it
// runs a bus subscriber that mirrors every bridge event into the log, as the
// built-in audit consumer.
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the hdbridge node",
	RunE:  startNode,
}

func startNode(cmd *cobra.Command, args []string) error {
	n, err := node.New(config, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := n.Start(ctx); err != nil {
		return err
	}

	sub, err := n.Bridge().EventBus().Subscribe(128)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case event, ok := <-sub.Out():
				if !ok {
					return nil
				}
				logger.Info("bridge event",
					"kind", event.Kind, "ref", event.Ref, "actor", event.Actor)
			}
		}
	})
	g.Go(func() error {
		// the node stops itself when the context is canceled
		n.Wait()
		return nil
	})
	return g.Wait()
}
