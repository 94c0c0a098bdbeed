package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/natijti/internal/core"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and seed the wilaya reference rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer backend.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage exam sessions",
	}
	cmd.AddCommand(newSessionAddCmd(a), newSessionListCmd(a))
	return cmd
}

type sessionAddOptions struct {
	year        int
	examType    string
	name        string
	published   bool
	publication string
}

func newSessionAddCmd(a *app) *cobra.Command {
	var opts sessionAddOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an exam session and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			examType := core.ExamType(strings.ToLower(opts.examType))
			if !examType.Valid() {
				return withCode(exitUsage, fmt.Errorf("--type must be one of bac, bepc, concours"))
			}
			sess := core.ExamSession{
				Year:      opts.year,
				ExamType:  examType,
				Name:      opts.name,
				Published: opts.published,
			}
			if sess.Name == "" {
				sess.Name = fmt.Sprintf("%s %d", strings.ToUpper(opts.examType), opts.year)
			}
			if opts.publication != "" {
				d, err := time.Parse("2006-01-02", opts.publication)
				if err != nil {
					return withCode(exitUsage, fmt.Errorf("invalid --publication-date: %w", err))
				}
				sess.PublicationDate = &d
			}

			backend, err := a.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer backend.Close()

			if err := backend.CreateSession(cmd.Context(), &sess); err != nil {
				return withCode(exitDB, fmt.Errorf("create session: %w", err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.year, "year", 0, "Session year (required)")
	cmd.Flags().StringVar(&opts.examType, "type", "", "Exam type: bac, bepc or concours (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Display name (default: TYPE YEAR)")
	cmd.Flags().BoolVar(&opts.published, "published", true, "Make the session's results public")
	cmd.Flags().StringVar(&opts.publication, "publication-date", "", "Publication date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newSessionListCmd(a *app) *cobra.Command {
	var (
		examType string
		year     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published sessions with their statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			backend, err := a.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer backend.Close()

			svc := core.NewService(backend, nil, serviceOptions(cfg))
			sessions, err := svc.ListSessions(cmd.Context(), core.SessionFilter{
				ExamType: core.ExamType(strings.ToLower(examType)),
				Year:     year,
			})
			if err != nil {
				return withCode(exitDB, err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tYEAR\tTYPE\tNAME\tCANDIDATES\tPASSED\tRATE")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%d\t%.2f%%\n",
					s.ID, s.Year, s.ExamType, s.Name, s.TotalCandidates, s.TotalPassed, s.PassRate)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&examType, "type", "", "Filter by exam type")
	cmd.Flags().IntVar(&year, "year", 0, "Filter by year")
	return cmd
}

func newRefCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ref",
		Short: "Manage reference data (establishments, regions, series)",
	}
	cmd.AddCommand(newRefAddCmd(a))
	return cmd
}

type refAddOptions struct {
	kind   string
	code   string
	nameFr string
	nameAr string
}

func newRefAddCmd(a *app) *cobra.Command {
	var opts refAddOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update a reference entry by code and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := core.RefKind(strings.ToLower(opts.kind))
			if !kind.Valid() {
				return withCode(exitUsage, fmt.Errorf("--kind must be one of establishment, region, series"))
			}
			if strings.TrimSpace(opts.code) == "" {
				return withCode(exitUsage, fmt.Errorf("--code must not be empty"))
			}

			backend, err := a.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer backend.Close()

			entry := core.RefEntry{Code: strings.TrimSpace(opts.code), NameFr: opts.nameFr, NameAr: opts.nameAr}
			if err := backend.AddReference(cmd.Context(), kind, &entry); err != nil {
				return withCode(exitDB, fmt.Errorf("add %s %q: %w", kind, entry.Code, err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.kind, "kind", "", "establishment, region or series (required)")
	cmd.Flags().StringVar(&opts.code, "code", "", "Reference code (required)")
	cmd.Flags().StringVar(&opts.nameFr, "name-fr", "", "French name")
	cmd.Flags().StringVar(&opts.nameAr, "name-ar", "", "Arabic name")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}
