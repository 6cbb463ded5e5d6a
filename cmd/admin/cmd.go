package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"edupulse/internal/app"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	app *app.App
	out io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate                             - apply the database schema")
	fmt.Fprintln(cli.out, "  import -owner EMAIL -file PATH      - import a roster CSV for a teacher")
	fmt.Fprintln(cli.out, "  remind                              - send today's missing-attendance reminders")
	fmt.Fprintln(cli.out, "  percentages                         - recompute cached attendance percentages")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importCmd.SetOutput(cli.out)
	importOwner := importCmd.String("owner", "", "The teacher's email.")
	importFile := importCmd.String("file", "", "Path to the roster CSV.")

	switch args[1] {
	case "migrate":
		if err := cli.app.DB.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "schema is up to date")
		return nil
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importOwner == "" || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importRoster(ctx, *importOwner, *importFile)
	case "remind":
		n, err := cli.app.Notify.RemindMissing(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%d reminders sent\n", n)
		return nil
	case "percentages":
		n, err := cli.app.Notify.RefreshPercentages(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%d students updated\n", n)
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) importRoster(ctx context.Context, email, path string) error {
	teacher, err := cli.app.Teachers.TeacherByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("find teacher %s: %w", email, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := cli.app.Importer.Import(ctx, teacher.ID, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported %d students, %d failed\n", res.Success, res.Failed)
	for _, e := range res.Errors {
		fmt.Fprintln(cli.out, "  "+e)
	}
	return nil
}
