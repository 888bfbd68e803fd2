package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "brewctl",
		Short: "Client for the slide brew service",
		Long: `brewctl starts presentation generations against a brew service,
follows their event streams and inspects past runs.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().String("server", "http://localhost:5001", "brew service base URL")
	root.PersistentFlags().String("token", "", "bearer token sent with /api requests")
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("token", root.PersistentFlags().Lookup("token"))
	v.SetEnvPrefix("BREWCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	clientFn := func() *client {
		return newClient(v.GetString("server"), v.GetString("token"))
	}
	root.AddCommand(
		newPlansCmd(clientFn),
		newGenerateCmd(clientFn),
		newRunsCmd(clientFn),
		newTokenCmd(),
	)
	return root
}
