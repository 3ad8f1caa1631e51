// Package cli is the curator command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	shareddata "github.com/stake-plus/govcurator/src/data"
	"gorm.io/gorm"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DSN string
}

// NewRootCommand creates the curator command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "curator",
		Short:         "Curate Discord messages into a consented research archive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", shareddata.DSN(), "database DSN (sqlite:<path> or a MySQL DSN)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewGrantAdminCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewEntriesCommand(opts))

	return cmd
}

func (o *RootOptions) open() (*gorm.DB, func(), error) {
	db, err := shareddata.Connect(o.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closeDB, nil
}
