package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/izposoja/internal/app"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/session"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <contact>",
	Short: "Sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			p, err := a.Login(ctx, args[0], loginPassword)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s, %s mode)\n", p.Name, p.Role, a.Session.Mode())
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		})
	},
}

var modeCmd = &cobra.Command{
	Use:   "mode [connected|local]",
	Short: "Show or switch the operating mode",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if len(args) == 0 {
				fmt.Println(a.Session.Mode())
				return nil
			}
			mode, err := session.ParseMode(args[0])
			if err != nil {
				return errs.Validation("%s", err.Error())
			}
			if err := a.SetMode(ctx, mode); err != nil {
				return err
			}
			fmt.Printf("Mode set to %s\n", mode)
			return nil
		})
	},
}

var endpointCmd = &cobra.Command{
	Use:   "endpoint [url]",
	Short: "Show or change the service address",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if len(args) == 0 {
				fmt.Println(a.Remote.BaseURL())
				return nil
			}
			a.SetEndpoint(args[0])
			if err := a.Config.Save(configPath); err != nil {
				return err
			}
			fmt.Printf("Service address set to %s\n", args[0])
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password")
	_ = loginCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginCmd, logoutCmd, modeCmd, endpointCmd)
}
