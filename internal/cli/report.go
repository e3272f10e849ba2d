package cli

import (
	"github.com/spf13/cobra"

	"github.com/librarydesk/lending-engine/lending/report"
)

func reportCmd(a *app) *cobra.Command {
	var export string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print or export library reports",
	}

	cmd.PersistentFlags().StringVar(&export, "export", "", "write the report to this file instead of stdout")

	kinds := []struct {
		use   string
		short string
		build func(report.Data) report.Report
	}{
		{use: "overdue", short: "Overdue loans and the fines owed today", build: func(d report.Data) report.Report { return report.Overdue(d) }},
		{use: "activity", short: "Member activity and top borrowers", build: func(d report.Data) report.Report { return report.Activity(d) }},
		{use: "popularity", short: "Titles ranked by times borrowed", build: func(d report.Data) report.Report { return report.Popularity(d) }},
		{use: "stats", short: "Library statistics", build: func(d report.Data) report.Report { return report.Stats(d) }},
	}

	for _, kind := range kinds {
		build := kind.build

		cmd.AddCommand(&cobra.Command{
			Use:   kind.use,
			Short: kind.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := a.open(cmd.Context())
				if err != nil {
					return err
				}

				data, err := report.Load(cmd.Context(), s.engine)
				if err != nil {
					return err
				}

				format := report.FormatText
				if a.flags.json {
					format = report.FormatJSON
				}

				r := build(data)
				if export == "" {
					return report.Render(a.stdout, r, format)
				}

				if err := report.Export(export, r, format); err != nil {
					return err
				}

				return a.printer().message("%s written to %s", r.Title(), export)
			},
		})
	}

	return cmd
}
