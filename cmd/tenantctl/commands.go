package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/protocolo/protocolo-backend/internal/tenancy/domain"
	tenancyservice "github.com/protocolo/protocolo-backend/internal/tenancy/service"
	userdomain "github.com/protocolo/protocolo-backend/internal/user/domain"
	userservice "github.com/protocolo/protocolo-backend/internal/user/service"
	"github.com/protocolo/protocolo-backend/pkg/actor"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/httputil"
	"github.com/spf13/cobra"
)

// app holds what the subcommands operate on.
type app struct {
	db          *database.DB
	provisioner *tenancyservice.Provisioner
	users       *userservice.UserService
	closers     []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Flag names
const (
	nameFlag          = "name"
	codeFlag          = "code"
	schemaFlag        = "schema"
	idFlag            = "id"
	inactiveFlag      = "inactive"
	adminLoginFlag    = "admin-login"
	adminPasswordFlag = "admin-password"
)

// newRootCommand builds the command tree. The returned func releases what
// open acquired and is safe to call when nothing was opened.
func newRootCommand(open func() (*app, error)) (*cobra.Command, func()) {
	var a *app

	root := &cobra.Command{
		Use:               serviceName,
		Short:             "Manage protocolo tenants",
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			var err error
			a, err = open()
			return err
		},
	}

	get := func() *app { return a }
	root.AddCommand(
		newInitDBCommand(get),
		newCreateCommand(get),
		newDeleteCommand(get),
		newListCommand(get),
		newActivateCommand(get),
	)
	return root, func() {
		if a != nil {
			a.Close()
		}
	}
}

func newInitDBCommand(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the tenant registry and provision the default tenants",
		Long: `Create the tenant registry and provision the default tenants
(alpha, beta, gamma, delta, epsilon). Tenants that are already registered are
left untouched, so running it twice is harmless.

With --admin-password every newly created tenant also gets an admin user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			ctx := cmd.Context()

			if err := a.provisioner.Bootstrap(ctx); err != nil {
				return err
			}
			results, err := a.provisioner.Seed(ctx)
			if err != nil {
				return err
			}

			login, _ := cmd.Flags().GetString(adminLoginFlag)
			password, _ := cmd.Flags().GetString(adminPasswordFlag)
			for _, res := range results {
				if res.AlreadyExisted || password == "" {
					continue
				}
				if err := a.createAdmin(ctx, res.Tenant, login, password); err != nil {
					return err
				}
			}

			return printResults(cmd.OutOrStdout(), results)
		},
	}
	addAdminFlags(cmd)
	return cmd
}

func newCreateCommand(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision one tenant schema and register it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			ctx := cmd.Context()

			req := &domain.CreateTenantRequest{}
			req.Name, _ = cmd.Flags().GetString(nameFlag)
			req.ClientCode, _ = cmd.Flags().GetString(codeFlag)
			req.SchemaName, _ = cmd.Flags().GetString(schemaFlag)

			t, existed, err := a.provisioner.Create(ctx, req)
			if err != nil {
				return err
			}

			password, _ := cmd.Flags().GetString(adminPasswordFlag)
			if !existed && password != "" {
				login, _ := cmd.Flags().GetString(adminLoginFlag)
				if err := a.createAdmin(ctx, t, login, password); err != nil {
					return err
				}
			}

			return printResults(cmd.OutOrStdout(), []domain.ProvisionResult{{Tenant: t, AlreadyExisted: existed}})
		},
	}
	cmd.Flags().String(nameFlag, "", "Organization name")
	cmd.Flags().String(codeFlag, "", "Client code used at login")
	cmd.Flags().String(schemaFlag, "", "Schema name (defaults to the client code)")
	cmd.MarkFlagRequired(nameFlag)
	cmd.MarkFlagRequired(codeFlag)
	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		if s, _ := cmd.Flags().GetString(schemaFlag); s == "" {
			code, _ := cmd.Flags().GetString(codeFlag)
			cmd.Flags().Set(schemaFlag, code)
		}
	}
	addAdminFlags(cmd)
	return cmd
}

func newDeleteCommand(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Drop a tenant schema with all its data and unregister it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetInt64(idFlag)
			if err := get().provisioner.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %d deleted\n", id)
			return nil
		},
	}
	cmd.Flags().Int64(idFlag, 0, "Tenant ID")
	cmd.MarkFlagRequired(idFlag)
	return cmd
}

func newListCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenants, err := get().provisioner.List(cmd.Context())
			if err != nil {
				return err
			}
			return printTenants(cmd.OutOrStdout(), tenants)
		},
	}
}

func newActivateCommand(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Enable a tenant, or disable it with --inactive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetInt64(idFlag)
			inactive, _ := cmd.Flags().GetBool(inactiveFlag)

			t, err := get().provisioner.SetActive(cmd.Context(), id, !inactive)
			if err != nil {
				return err
			}
			return printTenants(cmd.OutOrStdout(), []*domain.Tenant{t})
		},
	}
	cmd.Flags().Int64(idFlag, 0, "Tenant ID")
	cmd.Flags().Bool(inactiveFlag, false, "Disable the tenant instead")
	cmd.MarkFlagRequired(idFlag)
	return cmd
}

func addAdminFlags(cmd *cobra.Command) {
	cmd.Flags().String(adminLoginFlag, "admin", "Login of the first admin user")
	cmd.Flags().String(adminPasswordFlag, "", "Password of the first admin user; no user is created when empty")
}

// createAdmin adds the first admin user to a freshly provisioned tenant.
func (a *app) createAdmin(ctx context.Context, t *domain.Tenant, login, password string) error {
	req := &userdomain.CreateUserRequest{
		Login:    login,
		Password: password,
		Nome:     "Administrador",
		Role:     actor.RoleAdmin,
	}
	if err := httputil.Validate(req); err != nil {
		return err
	}

	ctx = actor.WithActor(ctx, &actor.Actor{Login: serviceName, Role: actor.RoleSuperAdmin})
	return a.db.InSchema(ctx, t.SchemaName, func(ctx context.Context) error {
		_, err := a.users.Create(ctx, req)
		return err
	})
}

func printResults(w io.Writer, results []domain.ProvisionResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tSCHEMA\tNAME\tRESULT")
	for _, r := range results {
		status := "created"
		if r.AlreadyExisted {
			status = "already existed"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Tenant.ID, r.Tenant.ClientCode, r.Tenant.SchemaName, r.Tenant.Name, status)
	}
	return tw.Flush()
}

func printTenants(w io.Writer, tenants []*domain.Tenant) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tSCHEMA\tNAME\tACTIVE\tCREATED")
	for _, t := range tenants {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%s\n", t.ID, t.ClientCode, t.SchemaName, t.Name, t.IsActive, t.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}
