package main

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"otoanaliz/config"
)

func newUpdateCmd() *cobra.Command {
	var checkOnly bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "GitHub sürümlerinden en son sürüme güncelle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runUpdate(cmd.Context(), cmd.OutOrStdout(), cfg.UpdateRepo, checkOnly)
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Sadece yeni sürüm olup olmadığını kontrol et")
	return cmd
}

func runUpdate(ctx context.Context, w io.Writer, repo string, checkOnly bool) error {
	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repo))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found from %s", runtime.GOOS, runtime.GOARCH, repo)
	}

	if version != "dev" && latest.LessOrEqual(version) {
		fmt.Fprintln(w, successStyle.Render("En güncel sürümü kullanıyorsunuz: "+version))
		return nil
	}
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("Yeni sürüm mevcut: %s (şu anki: %s)", latest.Version(), version)))
	if checkOnly {
		return nil
	}
	if version == "dev" {
		return fmt.Errorf("development builds cannot be updated in place, download %s", latest.URL)
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}
	fmt.Fprintln(w, successStyle.Render("Güncellendi: "+latest.Version()))
	return nil
}
