package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mvail/odsync/internal/config"
	"github.com/mvail/odsync/internal/graph"
)

func newAuthCmd() *cobra.Command {
	var syncRoot string

	var useBrowser bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with OneDrive",
		Long: `Authenticate with OneDrive using the device code flow (default) or browser-based
authorization code flow (--browser).

Discovers the personal drive to sync and writes (or updates) the config file.
On first run, --sync-root must be given to choose the local directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuth(cmd, syncRoot, useBrowser)
		},
	}

	cmd.Flags().StringVar(&syncRoot, "sync-root", "", "absolute path to the local directory to sync (required on first auth)")
	cmd.Flags().BoolVar(&useBrowser, "browser", false, "use browser-based auth (authorization code + PKCE) instead of device code")

	return cmd
}

// openBrowser attempts to open a URL in the user's default browser. Uses
// "open" on macOS and "xdg-open" on Linux.
func openBrowser(rawURL string) error {
	ctx := context.Background()

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", rawURL)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", rawURL)
	default:
		return fmt.Errorf("unsupported platform %s: open the URL manually", runtime.GOOS)
	}

	return cmd.Start()
}

// runAuth performs device-code (or browser) login, discovers the
// authenticated user's personal drive, and writes the resulting config.
func runAuth(cmd *cobra.Command, syncRoot string, useBrowser bool) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger
	ctx := cmd.Context()

	cfg := cc.Cfg
	if syncRoot != "" {
		cfg.Sync.SyncRoot = syncRoot
	}

	if cfg.Sync.SyncRoot == "" {
		return fmt.Errorf("auth: --sync-root is required on first login")
	}

	if err := os.MkdirAll(cfg.Sync.SyncRoot, 0o755); err != nil {
		return fmt.Errorf("auth: creating sync root %s: %w", cfg.Sync.SyncRoot, err)
	}

	logger.Info("auth started", slog.Bool("browser", useBrowser))

	var (
		ts  graph.TokenSource
		err error
	)

	if useBrowser {
		ts, err = graph.LoginWithBrowser(ctx, cfg.Auth.TokenPath, openBrowser, logger)
	} else {
		ts, err = graph.Login(ctx, cfg.Auth.TokenPath, func(da graph.DeviceAuth) {
			// Device code prompts must always be visible — not suppressed by --quiet.
			fmt.Fprintf(os.Stderr, "To sign in, visit: %s\n", da.VerificationURI)
			fmt.Fprintf(os.Stderr, "Enter code: %s\n", da.UserCode)
		}, logger)
	}

	if err != nil {
		return err
	}

	client := newGraphClient(ts, logger)

	user, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("auth: fetching user profile: %w", err)
	}

	drives, err := client.Drives(ctx)
	if err != nil {
		return fmt.Errorf("auth: listing drives: %w", err)
	}

	drive, err := choosePersonalDrive(drives)
	if err != nil {
		return err
	}

	logger.Info("discovered drive",
		slog.String("drive_id", drive.ID.String()),
		slog.String("drive_type", drive.DriveType),
	)

	if metaErr := graph.SaveTokenMeta(cfg.Auth.TokenPath, map[string]string{
		"user_id":      user.ID,
		"display_name": user.DisplayName,
		"email":        user.Email,
		"drive_id":     drive.ID.String(),
	}); metaErr != nil {
		logger.Warn("failed to save cached metadata", slog.String("error", metaErr.Error()))
	}

	cfg.Auth.DriveID = drive.ID.String()

	if err := config.Save(cc.CfgPath, cfg); err != nil {
		return fmt.Errorf("auth: saving config: %w", err)
	}

	fmt.Printf("Signed in as %s. Syncing %q with drive %s.\n", user.Email, cfg.Sync.SyncRoot, drive.ID.String())

	return nil
}

// choosePersonalDrive picks the drive to sync from the accounts accessible
// drives. odsync syncs exactly one drive; among several, the personal drive
// is preferred since it is the only type every account has.
func choosePersonalDrive(drives []graph.Drive) (graph.Drive, error) {
	if len(drives) == 0 {
		return graph.Drive{}, fmt.Errorf("auth: account has no accessible drives")
	}

	for _, d := range drives {
		if d.DriveType == "personal" {
			return d, nil
		}
	}

	return drives[0], nil
}
