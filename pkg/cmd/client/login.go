package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/mpapenbr/lanerace-service-go/pkg/config"
)

const loginCmdName = "login"

var errNoIDToken = errors.New("token response carries no id_token")

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   loginCmdName,
		Short: "obtains a player ID token via the OIDC device flow",
		Long: `Obtains a player ID token via the OIDC device flow.
The token is written to stdout and can be passed with --id-token (or LRS_ID_TOKEN).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return login(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&config.OIDCIssuerURL,
		"oidc-issuer",
		"",
		"issuer url of the OIDC provider")
	cmd.Flags().StringVar(&config.OIDCClientID,
		"oidc-client-id",
		"lanerace",
		"client id registered at the OIDC provider")
	return cmd
}

func login(ctx context.Context, out, info io.Writer) error {
	if config.OIDCIssuerURL == "" {
		return errors.New("--oidc-issuer is required")
	}
	provider, err := oidc.NewProvider(ctx, config.OIDCIssuerURL)
	if err != nil {
		return err
	}
	conf := oauth2.Config{
		ClientID: config.OIDCClientID,
		Endpoint: provider.Endpoint(),
		Scopes:   []string{oidc.ScopeOpenID},
	}
	da, err := conf.DeviceAuth(ctx)
	if err != nil {
		return err
	}
	if da.VerificationURIComplete != "" {
		fmt.Fprintf(info, "Open %s to log in\n", da.VerificationURIComplete)
	} else {
		fmt.Fprintf(info, "Open %s and enter code %s\n", da.VerificationURI, da.UserCode)
	}
	token, err := conf.DeviceAccessToken(ctx, da)
	if err != nil {
		return err
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return errNoIDToken
	}
	idToken, err := provider.Verifier(&oidc.Config{ClientID: config.OIDCClientID}).
		Verify(ctx, raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(info, "Logged in as player %s\n", idToken.Subject)
	_, err = fmt.Fprintln(out, raw)
	return err
}
