package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/socialfeed/feedclient/auth"
	"github.com/socialfeed/feedclient/auth/authz"
	"github.com/socialfeed/feedclient/auth/token/jwt"
	"github.com/socialfeed/feedclient/feed"
)

// readPassword returns the flag value or the first line of stdin.
func readPassword(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) loginCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and store the session",
		Long: `Log in with a username and password.

The password is read from stdin unless --password is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, password)
			if err != nil {
				return err
			}

			if _, err := a.authenticator.Login(cmd.Context(), args[0], password); err != nil {
				if errors.Is(err, auth.ErrAuthenticationFailed) {
					return errors.New("login failed: invalid username or password")
				}

				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password (read from stdin if empty)")

	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.authenticator.Logout(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")

			return nil
		},
	}
}

func (a *app) signupCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "signup <username>",
		Short: "Register a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, password)
			if err != nil {
				return err
			}

			user, err := a.api.Signup(cmd.Context(), feed.SignupRequest{
				Username:        args[0],
				Password:        password,
				ConfirmPassword: password,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s, run feedctl login %s\n", user.Username, user.Username)

			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password (read from stdin if empty)")

	return cmd
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			access, err := a.store.AccessToken(cmd.Context())
			if err != nil {
				return err
			}

			if access == "" {
				fmt.Fprintln(out, "Not logged in")

				return nil
			}

			refresh, err := a.store.RefreshToken(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Server: %s\n", a.client.BaseURL())

			inspector := jwt.NewInspector()

			claims, err := inspector.Inspect(access)
			if err != nil {
				a.logger.Debug("access token is not a readable JWT")
				fmt.Fprintln(out, "Logged in")
			} else {
				user := claims.UserID
				if user == "" {
					user = claims.Subject
				}

				fmt.Fprintf(out, "Logged in as: %s\n", user)

				if remaining, err := inspector.Remaining(access); err == nil {
					if remaining > 0 {
						fmt.Fprintf(out, "Access token expires in: %s\n", remaining.Round(time.Second))
					} else {
						fmt.Fprintln(out, "Access token expired (renewed on next request)")
					}
				}
			}

			fmt.Fprintf(out, "Refresh token stored: %t\n", refresh != "")

			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Short:   "Show the current user",
		Args:    cobra.NoArgs,
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.api.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Username: %s\n", user.Username)

			if user.Email != "" {
				fmt.Fprintf(out, "Email: %s\n", user.Email)
			}

			if user.ProfileImg != "" {
				fmt.Fprintf(out, "Profile image: %s\n", user.ProfileImg)
			}

			return nil
		},
	}
}

func (a *app) avatarCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "avatar <image>",
		Short:   "Replace the profile image",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			response, err := a.api.UploadProfileImage(cmd.Context(), file)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Profile image: %s\n", response.ProfileImg)

			return nil
		},
	}
}

func (a *app) routeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "route <path>",
		Short: "Show where the web app lands for a path with the stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authenticated, err := a.authenticator.Authenticated(cmd.Context())
			if err != nil {
				return err
			}

			decision := authz.NewGuard(authz.DefaultRoutes).Authorize(args[0], authenticated)

			out := cmd.OutOrStdout()

			if decision.Allowed() {
				fmt.Fprintf(out, "%s: allowed (%s)\n", args[0], routeName(decision.Route))
			} else {
				fmt.Fprintf(out, "%s: redirect to %s\n", args[0], decision.Redirect)
			}

			return nil
		},
	}
}

func routeName(route authz.Route) string {
	if route.Name == "" {
		return "unknown route"
	}

	return route.Name
}
