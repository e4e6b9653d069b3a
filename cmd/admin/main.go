package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"takas-go/internal/core/config"
	"takas-go/internal/core/database"
	"takas-go/internal/core/logger"
	"takas-go/internal/domain"
	"takas-go/internal/repo"
)

// 运维命令行：角色只能由服务端写入，这里是除后台接口外的唯一入口
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type env struct {
	db  *gorm.DB
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	e := &env{}
	var cleanup func()

	root := &cobra.Command{
		Use:           "takas-admin",
		Short:         "Takas Go operations CLI",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			e.log, cleanup = logger.New(cfg.Log.Level, cfg.Log.JSON, logger.FileRotate{})
			// 有特权连接时优先用它
			dsn := cfg.DB.DSN
			if cfg.AdminEnabled() {
				dsn = cfg.DB.AdminDSN
			}
			e.db, err = database.NewGorm(database.Opts{
				Driver:   cfg.DB.Driver,
				DSN:      dsn,
				Username: cfg.DB.Username,
				Password: cfg.DB.Password,
				LogLevel: cfg.DB.LogLevel,
				Logger:   e.log,
			})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if cleanup != nil {
				cleanup()
			}
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Create tables and seed categories and cities",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := repo.Migrate(cmd.Context(), e.db); err != nil {
					return err
				}
				e.log.Info("migrate done")
				return nil
			},
		},
		&cobra.Command{
			Use:   "grant-role <email> <admin|super_admin|user>",
			Short: "Assign a role to a user",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setRole(cmd.Context(), e, args[0], domain.Role(args[1]))
			},
		},
		&cobra.Command{
			Use:   "revoke-role <email>",
			Short: "Reset a user back to the plain user role",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setRole(cmd.Context(), e, args[0], domain.RoleUser)
			},
		},
	)
	return root
}

func setRole(ctx context.Context, e *env, email string, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	u, err := repo.NewUserRepo(e.db).FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("no user with email %q", email)
	}
	if err := repo.NewRoleRepo(e.db).Assign(ctx, u.ID, role, "cli"); err != nil {
		return err
	}
	e.log.Info("role assigned", zap.String("uid", u.ID), zap.String("email", u.Email), zap.String("role", string(role)))
	return nil
}
