package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	config "github.com/hanpama/gqlguard/internal/config"
	schema "github.com/hanpama/gqlguard/internal/schema"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every command.
type app struct {
	v          *viper.Viper
	configFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	root := &cobra.Command{
		Use:   "gqlguard",
		Short: "gqlguard validates GraphQL requests before they reach your server",
		Long: `gqlguard sits in front of a GraphQL server and rejects operations that are
too deep, use too many aliases or tokens, or query the introspection system.

Every setting can come from a config file (--config), a GQLGUARD_* environment
variable (dots and dashes become underscores) or a flag.`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	pf.String("schema", "./schema.graphql", "schema file or directory of *.graphql files")
	pf.String("log.level", "info", "log level (debug, info, warn, error)")
	pf.Bool("log.development", false, "human readable logs")

	root.AddCommand(a.serveCmd(), a.checkCmd(), a.printSchemaCmd())
	return root
}

func addLimitFlags(fs *pflag.FlagSet) {
	fs.Int("limits.depth", 10, "maximum operation depth, 0 disables the limit")
	fs.StringSlice("limits.depth-ignore", nil, "field names or /regex/ patterns excluded from depth accounting")
	fs.Int("limits.aliases", 15, "maximum number of aliases per document, 0 disables the limit")
	fs.Int("limits.tokens", 1000, "maximum number of tokens per document, 0 disables the limit")
	fs.Bool("limits.introspection", true, "allow introspection queries")
	fs.Int("cache.parser-size", 1000, "parsed documents to keep, 0 disables the cache")
	fs.Int("cache.validation-size", 1000, "validation results to keep, 0 disables the cache")
}

// load merges flags, environment and config file into a Config.
func (a *app) load(cmd *cobra.Command) (*config.Config, error) {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return nil, err
	}
	return config.Load(a.v, a.configFile)
}

func loadSchema(ctx context.Context, cfg *config.Config, logger abstractlogger.Logger) (*schema.Schema, error) {
	d, err := schema.NewFileSystemDiscovery(cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("schema discovery: %w", err)
	}
	exts, err := cfg.Extensions(logger)
	if err != nil {
		return nil, err
	}
	return schema.Load(ctx, d, exts...)
}
