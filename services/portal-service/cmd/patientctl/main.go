package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/api"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(context.Background(), newRootCmd(os.Stdout, os.Stderr), os.Args[1:], os.Stderr); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, api.ErrAuth):
		return 3
	case errors.Is(err, api.ErrValidation):
		return 4
	case errors.Is(err, api.ErrNetwork):
		return 5
	default:
		return 1
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var a *app
	root := &cobra.Command{
		Use:           "patientctl",
		Short:         "Browse doctors, pick a slot and manage your patient profile",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), cfg, out, errOut)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.close()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	registerFlags(root.PersistentFlags())

	get := func() *app { return a }
	root.AddCommand(
		loginCmd(get),
		registerCmd(get),
		logoutCmd(get),
		doctorsCmd(get),
		slotsCmd(get),
		profileCmd(get),
		bookCmd(get),
		appointmentsCmd(get),
	)
	return root
}

// run executes root with args. Backend and session failures were already shown as
// notices, so only other errors are printed here.
func run(ctx context.Context, root *cobra.Command, args []string, errOut io.Writer) error {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	var apiErr *api.Error
	if err != nil && !errors.As(err, &apiErr) {
		fmt.Fprintln(errOut, "error:", err)
	}
	return err
}
