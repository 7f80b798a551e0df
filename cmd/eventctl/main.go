// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/recommender/internal/bus"
	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/logging"
)

// app carries the dependencies shared by every command. Tests replace the
// loader and the publisher factory.
type app struct {
	loadConfig   func() (*config.Config, error)
	newPublisher func(*config.BusConfig) (bus.Publisher, error)

	cfg *config.Config
}

func newApp() *app {
	return &app{loadConfig: config.Load, newPublisher: newPublisher}
}

func newPublisher(cfg *config.BusConfig) (bus.Publisher, error) {
	switch cfg.Driver {
	case config.BusDriverKafka:
		return bus.NewKafkaPublisher(&cfg.Kafka)
	case config.BusDriverNATS:
		return bus.NewNATSPublisher(cfg.NATS.URL)
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "eventctl",
		Short:         "Publish product and interaction events to the recommender bus",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			a.cfg = cfg
			logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})
			return nil
		},
	}
	root.AddCommand(newProductCmd(a), newInteractionCmd(a), newSeedCmd(a))
	return root
}

func newProductCmd(a *app) *cobra.Command {
	var p productData
	cmd := &cobra.Command{
		Use:       "product <created|updated|deleted> --id ID",
		Short:     "Publish one product event",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"created", "updated", "deleted"},
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := productEvent(a.cfg.Bus.ProductTopic, "product_"+args[0], p)
			if err != nil {
				return err
			}
			return a.publish(cmd.Context(), args[0], []bus.Message{msg})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.ProductID, "id", "", "product id")
	f.StringVar(&p.Name, "name", "", "product name")
	f.StringVar(&p.Description, "description", "", "product description")
	f.Float64Var(&p.Price, "price", 0, "product price")
	f.Int64Var(&p.AccountID, "account", 0, "owning account id")
	f.StringVar(&p.Category, "category", "", "product category")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newInteractionCmd(a *app) *cobra.Command {
	var userID, productID string
	cmd := &cobra.Command{
		Use:   "interaction <type> --user USER --product PRODUCT",
		Short: "Publish one interaction event (view, purchase, or any other type)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := interactionEvent(a.cfg.Bus.InteractionTopic, args[0], userID, productID)
			if err != nil {
				return err
			}
			return a.publish(cmd.Context(), args[0], []bus.Message{msg})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&productID, "product", "", "product id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	s := SeedConfig{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Publish a generated catalog and interaction history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.ProductTopic = a.cfg.Bus.ProductTopic
			s.InteractionTopic = a.cfg.Bus.InteractionTopic
			msgs, err := seedEvents(s)
			if err != nil {
				return err
			}
			return a.publish(cmd.Context(), "seed", msgs)
		},
	}
	f := cmd.Flags()
	f.IntVar(&s.Products, "products", 20, "number of products")
	f.IntVar(&s.Users, "users", 10, "number of users")
	f.IntVar(&s.Interactions, "interactions", 200, "number of interactions")
	f.Float64Var(&s.PurchaseRatio, "purchase-ratio", 0.2, "share of interactions that are purchases")
	f.Uint64Var(&s.Seed, "random-seed", 1, "random seed")
	return cmd
}

func (a *app) publish(ctx context.Context, kind string, msgs []bus.Message) error {
	pub, err := a.newPublisher(&a.cfg.Bus)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing publisher")
		}
	}()

	sent, err := publishAll(ctx, pub, msgs)
	logging.Info().
		Str("driver", a.cfg.Bus.Driver).
		Str("kind", kind).
		Int("published", sent).
		Int("total", len(msgs)).
		Msg("Publish finished")
	return err
}

func publishAll(ctx context.Context, pub bus.Publisher, msgs []bus.Message) (int, error) {
	for i, msg := range msgs {
		if err := pub.Publish(ctx, msg); err != nil {
			return i, err
		}
	}
	return len(msgs), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "eventctl:", err)
		os.Exit(1)
	}
}
