package main

import (
	"context"
	"fmt"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/auth"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/config"
	"github.com/urfave/cli/v3"
)

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokens(cfg.JWTSecret)
	if err != nil {
		return err
	}

	tok, err := tokens.Issue(cmd.String("subject"), cmd.Duration("ttl"))
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.Root().Writer, tok)
	return nil
}
