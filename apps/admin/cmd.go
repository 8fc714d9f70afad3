package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

var (
	isTerminalFunc = term.IsTerminal // mockable
	readLineFunc   = readLine        // mockable

	errHelp      = errors.New("help provided")
	errAborted   = errors.New("aborted")
	errLocalOnly = errors.New("command not available with -api")
	errNotSQL    = errors.New("migrations need a SQL database engine")
	errConfirm   = errors.New("stdin is not a terminal, pass -yes to confirm")
)

type commandLine struct {
	out    io.Writer
	db     *sql.DB // nil unless a SQL engine is configured
	engine string
	repo   course.Repository // nil when working through the API
	store  course.Store
	linker course.Linker
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage: admin [-api URL] COMMAND [OPTIONS]")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                        - run goose migrations (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  seed                                          - load the demo courses")
	_, _ = fmt.Fprintln(cli.out, "  list [-search S] [-needs-setup] [-ordering O] - list courses")
	_, _ = fmt.Fprintln(cli.out, "  show -id ID                                   - show a course")
	_, _ = fmt.Fprintln(cli.out, "  init -id ID -type TYPE                        - create a new resource")
	_, _ = fmt.Fprintln(cli.out, "  link -id ID -type TYPE -resource RESOURCE_ID  - attach an existing resource")
	_, _ = fmt.Fprintln(cli.out, "  unlink -id ID [-type TYPE]                    - detach one or all resources")
	_, _ = fmt.Fprintln(cli.out, "  bulk-init -ids ID,ID [-types TYPE,TYPE]       - create the missing resources of courses")
	_, _ = fmt.Fprintln(cli.out, "  bulk-unlink -ids ID,ID [-yes]                 - detach all resources of courses")
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseOrdering(s string) []core.DBOrdering {
	var ordering []core.DBOrdering
	for _, field := range splitList(s) {
		desc := strings.HasPrefix(field, "-")
		ordering = append(ordering, core.DBOrdering{Field: strings.TrimPrefix(field, "-"), Ascending: !desc})
	}
	return ordering
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	listCmd := flag.NewFlagSet("list", flag.ContinueOnError)
	listSearch := listCmd.String("search", "", "Case-insensitive search on name and description.")
	listNeedsSetup := listCmd.Bool("needs-setup", false, "Only courses missing a resource.")
	listOrdering := listCmd.String("ordering", "", "Comma-separated fields, prefixed with - for descending order.")

	showCmd := flag.NewFlagSet("show", flag.ContinueOnError)
	showID := showCmd.String("id", "", "The course ID.")

	initCmd := flag.NewFlagSet("init", flag.ContinueOnError)
	initID := initCmd.String("id", "", "The course ID.")
	initType := initCmd.String("type", "", "One of whiteboard, chat or meeting.")

	linkCmd := flag.NewFlagSet("link", flag.ContinueOnError)
	linkID := linkCmd.String("id", "", "The course ID.")
	linkType := linkCmd.String("type", "", "One of whiteboard, chat or meeting.")
	linkResource := linkCmd.String("resource", "", "The ID of the existing resource.")

	unlinkCmd := flag.NewFlagSet("unlink", flag.ContinueOnError)
	unlinkID := unlinkCmd.String("id", "", "The course ID.")
	unlinkType := unlinkCmd.String("type", "", "One of whiteboard, chat or meeting. All resources when omitted.")

	bulkInitCmd := flag.NewFlagSet("bulk-init", flag.ContinueOnError)
	bulkInitIDs := bulkInitCmd.String("ids", "", "Comma-separated course IDs.")
	bulkInitTypes := bulkInitCmd.String("types", "", "Comma-separated resource types. All types when omitted.")

	bulkUnlinkCmd := flag.NewFlagSet("bulk-unlink", flag.ContinueOnError)
	bulkUnlinkIDs := bulkUnlinkCmd.String("ids", "", "Comma-separated course IDs.")
	bulkUnlinkYes := bulkUnlinkCmd.Bool("yes", false, "Do not ask for confirmation.")

	for _, fs := range []*flag.FlagSet{listCmd, showCmd, initCmd, linkCmd, unlinkCmd, bulkInitCmd, bulkUnlinkCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "seed":
		return cli.seed()

	case "list":
		if err := listCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.list(course.QueryFilter{Search: *listSearch, NeedsSetup: *listNeedsSetup}, parseOrdering(*listOrdering))

	case "show":
		if err := showCmd.Parse(args[2:]); err != nil || *showID == "" {
			showCmd.Usage()
			return errHelp
		}
		return cli.show(*showID)

	case "init":
		if err := initCmd.Parse(args[2:]); err != nil || *initID == "" || *initType == "" {
			initCmd.Usage()
			return errHelp
		}
		return cli.initialize(*initID, *initType)

	case "link":
		if err := linkCmd.Parse(args[2:]); err != nil || *linkID == "" || *linkType == "" {
			linkCmd.Usage()
			return errHelp
		}
		return cli.link(*linkID, *linkType, *linkResource)

	case "unlink":
		if err := unlinkCmd.Parse(args[2:]); err != nil || *unlinkID == "" {
			unlinkCmd.Usage()
			return errHelp
		}
		return cli.unlink(*unlinkID, *unlinkType)

	case "bulk-init":
		if err := bulkInitCmd.Parse(args[2:]); err != nil || *bulkInitIDs == "" {
			bulkInitCmd.Usage()
			return errHelp
		}
		return cli.bulkInitialize(splitList(*bulkInitIDs), splitList(*bulkInitTypes))

	case "bulk-unlink":
		if err := bulkUnlinkCmd.Parse(args[2:]); err != nil || *bulkUnlinkIDs == "" {
			bulkUnlinkCmd.Usage()
			return errHelp
		}
		return cli.bulkUnlink(splitList(*bulkUnlinkIDs), *bulkUnlinkYes)

	default:
		cli.printUsage()
		return errHelp
	}
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question on the terminal.
func (cli *commandLine) confirm(question string) error {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return errConfirm
	}
	_, _ = fmt.Fprintf(cli.out, "%s [y/N] ", question)
	answer, err := readLineFunc()
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	}
	return errAborted
}
