package main

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/galette-community/plugin-oauth2/internal/binding"
)

type bindingFlags struct {
	dir       string
	redisAddr string
	redisDB   int
	prefix    string
	ttl       time.Duration
}

func (f *bindingFlags) store() (binding.Durable, func(), error) {
	if f.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: f.redisAddr, DB: f.redisDB})
		return binding.NewRedisStore(client, f.prefix, f.ttl), func() { _ = client.Close() }, nil
	}
	store, err := binding.NewFileStore(f.dir, f.ttl)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func newBindingCmd() *cobra.Command {
	flags := &bindingFlags{}
	cmd := &cobra.Command{
		Use:   "binding",
		Short: "Inspect or repair first-use redirect URI bindings",
	}
	cmd.PersistentFlags().StringVar(&flags.dir, "dir", "cache", "Binding directory (file backend)")
	cmd.PersistentFlags().StringVar(&flags.redisAddr, "redis-addr", "", "Redis address (redis backend)")
	cmd.PersistentFlags().IntVar(&flags.redisDB, "redis-db", 0, "Redis database")
	cmd.PersistentFlags().StringVar(&flags.prefix, "prefix", "oauth2", "Redis key prefix")
	cmd.PersistentFlags().DurationVar(&flags.ttl, "ttl", 0, "Binding TTL, 0 keeps bindings forever")

	cmd.AddCommand(&cobra.Command{
		Use:   "get CLIENT_ID",
		Short: "Print the redirect URI bound to a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := flags.store()
			if err != nil {
				return err
			}
			defer closeFn()
			uri, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if uri == "" {
				return fmt.Errorf("no redirect uri bound to %s", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set CLIENT_ID REDIRECT_URI",
		Short: "Replace the redirect URI bound to a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := flags.store()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := store.Put(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
			return err
		},
	})
	return cmd
}
