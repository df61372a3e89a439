package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newServicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the services and operations in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}

			var rows [][]string
			for _, svc := range cat.Services() {
				rows = append(rows, []string{svc.Name, strconv.Itoa(svc.Operations), svc.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Services (%d)", len(rows))))
			fmt.Fprintln(out, renderTable([]string{"SERVICE", "OPERATIONS", "DESCRIPTION"}, rows))
			return nil
		},
	}
}

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe SERVICE[.OPERATION]",
		Short: "Show a service's operations or one operation's documentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			service, operation, ok := strings.Cut(args[0], ".")
			if !ok {
				ops, err := cat.Operations(service)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s operations (%d)", service, len(ops))))
				var rows [][]string
				for _, op := range ops {
					rows = append(rows, []string{op.Name, op.Method, op.Path})
				}
				fmt.Fprintln(out, renderTable([]string{"OPERATION", "METHOD", "PATH"}, rows))
				return nil
			}

			text, err := cat.Describe(service, operation)
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
			return nil
		},
	}
}
