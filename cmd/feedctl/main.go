package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/socialfeed/feedclient/auth"
	"github.com/socialfeed/feedclient/auth/authn"
	"github.com/socialfeed/feedclient/client"
	"github.com/socialfeed/feedclient/config"
	"github.com/socialfeed/feedclient/feed"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app holds the dependencies shared by every command.
type app struct {
	configFile string
	server     string
	debug      bool

	config        config.Config
	logger        *zap.Logger
	store         auth.TokenStore
	client        *client.Client
	api           *feed.API
	authenticator authn.Authenticator

	notifier auth.SessionNotifier
	expired  atomic.Bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	a := &app{}

	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)

	if closer, ok := a.store.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && a.logger != nil {
			a.logger.Warn("closing token store", zap.Error(cerr))
		}
	}

	if a.logger != nil {
		_ = a.logger.Sync()
	}

	if a.expired.Load() {
		fmt.Fprintln(stderr, "session expired, run feedctl login")

		return 1
	}

	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)

		return 1
	}

	return 0
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedctl",
		Short: "Command line client for the social feed API",
		Long: `feedctl talks to the social feed API on behalf of a logged in user.

Run "feedctl login <username>" first. The session is kept in the configured
token store and renewed automatically when the access token expires.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Configuration file (YAML)")
	cmd.PersistentFlags().StringVar(&a.server, "server", "", "API base URL (overrides the configuration)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Debug mode")

	cmd.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.signupCommand(),
		a.statusCommand(),
		a.whoamiCommand(),
		a.avatarCommand(),
		a.routeCommand(),
		a.postsCommand(),
		a.categoriesCommand(),
		a.commentsCommand(),
		a.likeCommand(),
		a.reportCommand(),
		a.viewCommand(),
		a.searchCommand(),
		a.uploadCommand(),
	)

	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error

	if a.configFile != "" {
		a.config, err = config.Load(a.configFile)
	} else {
		a.config, err = config.Default()
	}
	if err != nil {
		return err
	}

	if a.server != "" {
		a.config.BaseURL = a.server
	}

	if a.debug {
		a.config.Log = config.Log{Level: "debug", Development: true}
	}

	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.logger, err = config.NewLogger(a.config.Log)
	if err != nil {
		return err
	}

	a.store, err = a.config.TokenStore.Config.CreateTokenStore()
	if err != nil {
		return fmt.Errorf("creating token store: %w", err)
	}

	a.notifier.Subscribe(auth.SessionObserverFunc(func(_ context.Context, reason error) {
		a.logger.Debug("session expired", zap.Error(reason))
		a.expired.Store(true)
	}))

	a.client, err = client.New(
		a.config.BaseURL,
		a.store,
		client.WithLogger(a.logger),
		client.WithTimeout(a.config.Timeout),
		client.WithSingleFlightRefresh(a.config.SingleFlightRefresh),
		client.WithSessionObserver(&a.notifier),
	)
	if err != nil {
		return err
	}

	a.api = feed.New(a.client)
	a.authenticator = authn.NewAuthenticator(a.client.BaseURL(), a.store)

	a.logger.Debug("configured client", zap.String("baseURL", a.client.BaseURL()), zap.String("tokenStore", a.config.TokenStore.Type))

	return nil
}

// requireSession fails early when nobody is logged in.
func (a *app) requireSession(cmd *cobra.Command, _ []string) error {
	ok, err := a.authenticator.Authenticated(cmd.Context())
	if err != nil {
		return err
	}

	if !ok {
		return errors.New("not logged in, run feedctl login")
	}

	return nil
}
