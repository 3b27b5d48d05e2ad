package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvsfs/kvsfs/export"
	"github.com/kvsfs/kvsfs/nsal"
	"github.com/kvsfs/kvsfs/server"
)

var fsCmd = &cobra.Command{
	Use:   "fs",
	Short: "Administer namespaces against the configured backends",
}

// openServer opens a server against Config for the lifetime of a single
// admin subcommand invocation. These commands are one-shot: each opens the
// backends, does one thing, and closes them, unlike `serve` which stays up.
func openServer(ctx context.Context) (*server.Server, error) {
	return server.Open(ctx, Config)
}

var fsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new, empty namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srv, err := openServer(ctx)
		if err != nil {
			return err
		}
		defer srv.Close(ctx)

		rootAttr := nsal.Stat{Mode: nsal.ModeDir | 0o755, Nlink: 2}
		m, err := srv.CreateFS(ctx, args[0], rootAttr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %q (fs_id=%d)\n", m.NS.Name, m.NS.ID)
		return nil
	},
}

var fsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete an empty, unexported namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srv, err := openServer(ctx)
		if err != nil {
			return err
		}
		defer srv.Close(ctx)
		return srv.DeleteFS(ctx, args[0])
	},
}

var fsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mounted namespaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srv, err := openServer(ctx)
		if err != nil {
			return err
		}
		defer srv.Close(ctx)

		for _, ns := range srv.List() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\texported=%v\n", ns.ID, ns.Name, len(ns.Endpoint) > 0)
		}
		return nil
	},
}

var (
	bindClients    []string
	bindSquash     string
	bindAccess     string
	bindProtocols  []string
	bindSecType    string
	bindFilesystem string
)

var fsBindCmd = &cobra.Command{
	Use:   "bind NAME",
	Short: "Bind an NFS export endpoint to a mounted namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srv, err := openServer(ctx)
		if err != nil {
			return err
		}
		defer srv.Close(ctx)

		protos := make([]export.Protocol, 0, len(bindProtocols))
		for _, p := range bindProtocols {
			protos = append(protos, export.Protocol(p))
		}
		ep := export.Endpoint{
			Clients:      bindClients,
			Squash:       export.Squash(bindSquash),
			AccessType:   export.AccessType(bindAccess),
			Protocols:    protos,
			SecType:      export.SecType(bindSecType),
			FilesystemID: bindFilesystem,
		}
		return srv.BindEndpoint(ctx, args[0], ep)
	},
}

var fsUnbindCmd = &cobra.Command{
	Use:   "unbind NAME",
	Short: "Remove a namespace's export endpoint binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srv, err := openServer(ctx)
		if err != nil {
			return err
		}
		defer srv.Close(ctx)
		return srv.UnbindEndpoint(ctx, args[0])
	},
}

var fsExportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Print the rendered endpoint list as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srv, err := openServer(ctx)
		if err != nil {
			return err
		}
		defer srv.Close(ctx)

		b, err := json.MarshalIndent(srv.Exports.Snapshot(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

func init() {
	fsBindCmd.Flags().StringSliceVar(&bindClients, "client", nil, "Client address/netgroup pattern allowed to mount (repeatable)")
	fsBindCmd.Flags().StringVar(&bindSquash, "squash", "root_squash", "Credential-squashing policy")
	fsBindCmd.Flags().StringVar(&bindAccess, "access-type", "RW", "Access type: RW, RO, MDONLY, MDONLY_RO, None")
	fsBindCmd.Flags().StringSliceVar(&bindProtocols, "protocol", []string{"NFSv4"}, "NFS protocol version string (repeatable)")
	fsBindCmd.Flags().StringVar(&bindSecType, "sec-type", "sys", "RPC security flavor: none, sys, krb5, krb5i, krb5p")
	fsBindCmd.Flags().StringVar(&bindFilesystem, "filesystem-id", "", "Filesystem id in major.minor form, e.g. 1.1")

	fsCmd.AddCommand(fsCreateCmd, fsDeleteCmd, fsListCmd, fsBindCmd, fsUnbindCmd, fsExportsCmd)
}
