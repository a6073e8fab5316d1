package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/V4T54L/vetclinic/internal/adapter/pii"
	"github.com/V4T54L/vetclinic/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/vetclinic/internal/adapter/repository/redis"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/pkg/config"
	"github.com/V4T54L/vetclinic/internal/pkg/logger"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

// env holds the connections shared by every subcommand.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *redis.Client
	admin  *usecase.TenantAdmin
	out    io.Writer
}

func (e *env) close() {
	if e.redis != nil {
		e.redis.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}

// connect opens Postgres and, when withAdmin is set, Redis plus the tenant
// admin use case.
func connect(ctx context.Context, out io.Writer, withAdmin bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StorageDriver != config.StoragePostgres {
		return nil, fmt.Errorf("tenantctl requires STORAGE_DRIVER=%s", config.StoragePostgres)
	}
	e := &env{cfg: cfg, logger: logger.New(cfg.LogLevel), out: out}

	e.db, err = postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if !withAdmin {
		return e, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		e.close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	e.redis = redis.NewClient(opts)
	if err := e.redis.Ping(ctx).Err(); err != nil {
		e.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	stream, err := redisrepo.NewAuditStream(ctx, e.redis, e.logger, cfg.AuditStream, cfg.AuditDLQStream, cfg.AuditGroup)
	if err != nil {
		e.close()
		return nil, err
	}
	recorder := usecase.NewAuditRecorder(stream, pii.NewRedactor(cfg.PIIRedactionFields, e.logger), e.logger, nil)
	bus := redisrepo.NewInvalidationBus(e.redis, cfg.InvalidationChan, e.logger)
	e.admin = usecase.NewTenantAdmin(postgres.NewTenantDirectory(e.db), postgres.NewStaffRepository(e.db), bus, recorder, e.logger)
	return e, nil
}

func actor() string {
	if u := os.Getenv("USER"); u != "" {
		return "tenantctl:" + u
	}
	return "tenantctl"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Administer veterinary clinic tenants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCommand(),
		newCreateCommand(),
		newShowCommand(),
		newListCommand(),
		newStatusCommand(),
		newAddStaffCommand(),
		newAdminKeyCommand(),
	)
	return root
}

// withEnv runs fn with a connected env and closes it afterwards.
func withEnv(cmd *cobra.Command, withAdmin bool, fn func(*env) error) error {
	e, err := connect(cmd.Context(), cmd.OutOrStdout(), withAdmin)
	if err != nil {
		return err
	}
	defer e.close()
	return fn(e)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, false, func(e *env) error {
				if err := postgres.Migrate(cmd.Context(), e.db); err != nil {
					return err
				}
				fmt.Fprintln(e.out, "schema is up to date")
				return nil
			})
		},
	}
}

func newCreateCommand() *cobra.Command {
	var in usecase.CreateTenantInput
	cmd := &cobra.Command{
		Use:   "create <subdomain>",
		Short: "Register a new clinic in trial status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Subdomain = args[0]
			return withEnv(cmd, true, func(e *env) error {
				t, err := e.admin.CreateTenant(cmd.Context(), actor(), in)
				if err != nil {
					return err
				}
				return printJSON(e.out, t)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "clinic display name (required)")
	f.StringVar(&in.Domain, "domain", "", "custom domain served in addition to the subdomain")
	f.StringVar(&in.Plan, "plan", "", "billing plan (default trial)")
	f.IntVar(&in.Limits.MaxStaff, "max-staff", 0, "staff account limit, 0 for unlimited")
	f.IntVar(&in.Limits.MaxClients, "max-clients", 0, "client record limit, 0 for unlimited")
	f.IntVar(&in.Limits.StorageQuotaMB, "storage-quota-mb", 0, "file storage quota in MB, 0 for unlimited")
	f.StringVar(&in.Owner.Name, "owner-name", "", "owner's full name")
	f.StringVar(&in.Owner.Email, "owner-email", "", "owner's email address")
	f.StringVar(&in.Owner.Phone, "owner-phone", "", "owner's phone number")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <subdomain>",
		Short: "Print a clinic's tenant record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, false, func(e *env) error {
				t, err := postgres.NewTenantDirectory(e.db).FindBySubdomain(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				return printJSON(e.out, t)
			})
		},
	}
}

func newListCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clinics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := domain.TenantStatus(status)
			if s != "" && !s.Valid() {
				return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
			}
			return withEnv(cmd, false, func(e *env) error {
				tenants, err := postgres.NewTenantDirectory(e.db).List(cmd.Context(), s)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SUBDOMAIN\tDOMAIN\tNAME\tPLAN\tSTATUS\tCREATED")
				for _, t := range tenants {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.Subdomain, t.Domain, t.Name, t.Plan, t.Status, t.CreatedAt.Format(time.DateOnly))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list clinics in this status")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "status <subdomain> <trial|active|suspended|cancelled>",
		Short:     "Move a clinic through its lifecycle",
		Long:      "Move a clinic through its lifecycle. Suspended and cancelled clinics stop resolving on every server immediately.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"active", "suspended", "cancelled"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, true, func(e *env) error {
				t, err := e.admin.ChangeStatus(cmd.Context(), actor(), args[0], domain.TenantStatus(args[1]))
				if err != nil {
					return err
				}
				fmt.Fprintf(e.out, "%s is now %s\n", t.Subdomain, t.Status)
				return nil
			})
		},
	}
}

func newAddStaffCommand() *cobra.Command {
	var in usecase.NewStaffInput
	var role string
	cmd := &cobra.Command{
		Use:   "add-staff <subdomain>",
		Short: "Create a staff account for a clinic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = domain.StaffRole(role)
			if in.Password == "" {
				in.Password = os.Getenv("TENANTCTL_STAFF_PASSWORD")
			}
			return withEnv(cmd, true, func(e *env) error {
				member, err := e.admin.AddStaff(cmd.Context(), actor(), args[0], in)
				if err != nil {
					return err
				}
				return printJSON(e.out, member)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "login email (required)")
	f.StringVar(&in.Name, "name", "", "display name")
	f.StringVar(&role, "role", string(domain.RoleOwner), "owner, vet, nurse or reception")
	f.StringVar(&in.Password, "password", "", "initial password; falls back to $TENANTCTL_STAFF_PASSWORD")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newAdminKeyCommand() *cobra.Command {
	var (
		description string
		ttl         time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admin-key",
		Short: "Generate a key for the tenant administration API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := generateKey()
			if err != nil {
				return err
			}
			var expiresAt *time.Time
			if ttl > 0 {
				t := time.Now().Add(ttl).UTC()
				expiresAt = &t
			}
			return withEnv(cmd, false, func(e *env) error {
				repo := postgres.NewAdminKeyRepository(e.db, e.logger, 0, nil)
				if err := repo.Create(cmd.Context(), key, description, expiresAt); err != nil {
					return err
				}
				fmt.Fprintln(e.out, key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "who or what the key is for")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire the key after this long, 0 for never")
	return cmd
}

func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
