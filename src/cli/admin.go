package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/stake-plus/govcurator/src/actions"
	sharedconfig "github.com/stake-plus/govcurator/src/config"
	"github.com/stake-plus/govcurator/src/curation"
	shareddata "github.com/stake-plus/govcurator/src/data"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer closeDB()
			if err := actions.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func NewGrantAdminCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grant-admin <user-id>",
		Short: "Give a Discord user the curator admin flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			db, closeDB, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := actions.Migrate(db); err != nil {
				return err
			}
			stores, err := actions.OpenStores(db)
			if err != nil {
				return err
			}
			cfg := sharedconfig.LoadCuratorConfig(db)
			svc := curation.NewService(stores.Repository, nil, nil, nil, curation.Config{OwnerID: cfg.OwnerID})
			if err := svc.GrantAdmin(userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d is now an admin\n", userID)
			return nil
		},
	}
}

func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Store a setting in the database",
		Long: `Store a setting in the settings table. Database settings take
precedence over environment variables, e.g. "curator set invite_url https://discord.gg/x".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := shareddata.Migrate(db); err != nil {
				return err
			}
			if err := shareddata.PutSetting(db, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	}
}

func NewEntriesCommand(rootOpts *RootOptions) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Print archived entries as JSON lines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := actions.Migrate(db); err != nil {
				return err
			}
			stores, err := actions.OpenStores(db)
			if err != nil {
				return err
			}
			entries, err := stores.Archive.List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}
