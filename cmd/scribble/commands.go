package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ella-cms/scribble/internal/catalog"
	"github.com/ella-cms/scribble/internal/core/entity"
	"github.com/ella-cms/scribble/internal/core/ports"
	"github.com/ella-cms/scribble/internal/core/service"
	redisdb "github.com/ella-cms/scribble/internal/infrastructure/db/redis"
	"github.com/ella-cms/scribble/internal/infrastructure/queue"
	"github.com/ella-cms/scribble/internal/infrastructure/rest"
	"github.com/ella-cms/scribble/internal/pkg/config"
	"github.com/ella-cms/scribble/pkg/logger"
)

// app holds what every subcommand needs once the root command has run.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	types  *entity.Registry
	client *rest.Client
	sync   *service.SyncService
	events *queue.Dispatcher
	close  []func()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var verbose bool

	root := &cobra.Command{
		Use:          "scribble",
		Short:        "Save, fetch, load and delete catalog entities",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), verbose)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.shutdown()
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newTypesCmd(a),
		newFetchCmd(a),
		newLoadCmd(a),
		newSaveCmd(a),
		newDeleteCmd(a),
		newLoginCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context, verbose bool) error {
	a.cfg = config.Load()
	level := a.cfg.LogLevel
	if verbose {
		level = "debug"
	}
	a.log = logger.Init(logger.Options{Level: level, Pretty: !a.cfg.IsProduction(), Service: "scribble"})
	a.types = catalog.MustNew(entity.WithLogger(logger.Component("entity")))

	opts := rest.Options{
		BaseURL: a.cfg.Client.BaseURL,
		Prefix:  a.cfg.Client.APIPrefix,
		Timeout: a.cfg.Client.Timeout,
		Token:   a.cfg.Client.Token,
	}
	if a.cfg.JWTSecret != "" {
		opts.Signer = rest.NewTokenSigner(a.cfg.JWTSecret, a.cfg.Client.Subject, a.cfg.Client.Role, time.Hour)
	}
	client, err := rest.NewClient(opts, logger.Component("rest"))
	if err != nil {
		return err
	}

	// Saved events fan out through the dispatcher; redis is one optional sink.
	a.events = queue.NewDispatcher(2, logger.Component("events"))
	a.events.Subscribe("log", func(_ context.Context, ev ports.SavedEvent) error {
		a.log.Debug().Stringer("entity", ev.Entity).Msg("saved")
		return nil
	})
	if a.cfg.Redis.Enabled {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: a.cfg.Redis.Addr, DB: a.cfg.Redis.DB})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.close = append(a.close, func() { _ = rdb.Close() })
		a.events.Subscribe("redis", redisdb.NewSavedPublisher(rdb, a.cfg.Redis.Channel).Handle)
	}
	a.events.Start(ctx)

	a.client = client
	a.sync = service.NewSyncService(client, a.events, logger.Component("sync"))
	return nil
}

func (a *app) shutdown() {
	if a.events != nil {
		a.events.Close()
	}
	for i := len(a.close) - 1; i >= 0; i-- {
		a.close[i]()
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List entity types and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printTypes(cmd.OutOrStdout(), a.types)
		},
	}
}

func newFetchCmd(a *app) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "fetch <type> [field=value ...]",
		Short: "List every object matching the given fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			probe, err := a.entity(args[0], raw, args[1:])
			if err != nil {
				return err
			}
			found, err := a.sync.Fetch(cmd.Context(), probe)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), found)
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "field values as a JSON object")
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "load <type> [field=value ...]",
		Short: "Print the single object matching the given fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			probe, err := a.entity(args[0], raw, args[1:])
			if err != nil {
				return err
			}
			match, err := a.sync.Load(cmd.Context(), probe)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), match)
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "field values as a JSON object")
	return cmd
}

func newSaveCmd(a *app) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "save <type> [field=value ...]",
		Short: "Save an object and every unsaved object it references",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.entity(args[0], raw, args[1:])
			if err != nil {
				return err
			}
			if err := a.sync.Save(cmd.Context(), e); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "field values as a JSON object")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete the object with the given id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.entity(args[0], "", []string{entity.IDField + "=" + args[1]})
			if err != nil {
				return err
			}
			if err := a.sync.Delete(cmd.Context(), e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", args[0], args[1])
			return nil
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Print a bearer token for SCRIBBLE_TOKEN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.client.Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (a *app) entity(typeName, raw string, assignments []string) (*entity.Entity, error) {
	typ, ok := a.types.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown type %q (see `scribble types`)", typeName)
	}
	values, err := parseValues(raw, assignments)
	if err != nil {
		return nil, err
	}
	return typ.New(values)
}

// parseValues merges a JSON object with field=value assignments. Assigned
// values that parse as JSON keep their JSON type; anything else is text.
func parseValues(raw string, assignments []string) (map[string]any, error) {
	values := map[string]any{}
	if raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("--json: %w", err)
		}
	}
	for _, kv := range assignments {
		name, text, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected field=value, got %q", kv)
		}
		values[name] = scalar(text)
	}
	return values, nil
}

func scalar(text string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return text
	}
	return v
}

func printTypes(w io.Writer, types *entity.Registry) error {
	names := types.Names()
	sort.Strings(names)
	for _, name := range names {
		typ := types.MustLookup(name)
		fmt.Fprintf(w, "%s\n", name)
		for _, f := range typ.FieldNames() {
			decl, _ := typ.Declaration(f)
			kind := string(decl.Kind())
			if t := decl.Target(); t != nil {
				kind += " -> " + t.TypeName()
			}
			fmt.Fprintf(w, "  %-16s %s\n", f, kind)
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
