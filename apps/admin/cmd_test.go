package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
	"github.com/coreymead/zoom-class-builder/storage/database"
	"github.com/coreymead/zoom-class-builder/storage/database/dummy"
	"github.com/coreymead/zoom-class-builder/storage/database/sqlx"
	"github.com/coreymead/zoom-class-builder/tests"
)

var (
	repo course.Repository
	prov *testutil.StubProvisioner
	out  *bytes.Buffer
)

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	repo = dummydb.NewCourseRepository(db)
	if _, err = course.Seed(context.Background(), repo); err != nil {
		t.Fatalf("course.Seed(): %v", err)
	}
	prov = &testutil.StubProvisioner{}
	out = new(bytes.Buffer)

	svc := testutil.NewCourseService(repo, prov)
	return &commandLine{
		out:    out,
		repo:   repo,
		store:  svc,
		linker: svc,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    []string // substrings of the output
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			case err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
			for _, s := range tt.wantOut {
				if !strings.Contains(out.String(), s) {
					t.Errorf("cli.run() output = %q; want it to contain %q", out.String(), s)
				}
			}
		})
	}
}

func getCourse(t *testing.T, id string) course.Course {
	c, err := repo.GetCourse(context.Background(), id)
	if err != nil {
		t.Fatalf("getCourse(%s): %v", id, err)
	}
	return c
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no database", args: []string{"migrate", "up"}, wantErr: errNotSQL},
	}
	runCLITests(t, cli, tests)

	cli.db, cli.engine = testutil.OpenSQLite(t).DB, database.SQLite

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		if dir != "migrations/sqlite" {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests = []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	runCLITests(t, cli, tests)
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	db := testutil.OpenSQLite(t)
	cli.repo = sqlxrepos.NewCourseRepository(db)

	runCLITests(t, cli, []cliTest{
		{name: "first run", args: []string{"seed"}, wantOut: []string{"2 course(s) created"}},
		{name: "second run", args: []string{"seed"}, wantOut: []string{"0 course(s) created"}},
	})

	cli.repo = nil
	runCLITests(t, cli, []cliTest{
		{name: "remote", args: []string{"seed"}, wantErr: errLocalOnly},
	})
}

func Test_commandLine_read(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "list", args: []string{"list"}, wantOut: []string{"Introduction to Programming", "Web Development", "needs setup", "ready"}},
		{name: "list search", args: []string{"list", "-search", "lol"}, wantOut: []string{"no courses"}},
		{name: "list needs setup", args: []string{"list", "-needs-setup", "-ordering", "-name"}, wantOut: []string{"Web Development"}},
		{name: "list bad flag", args: []string{"list", "-lol"}, wantErr: errHelp},
		{name: "show: no id", args: []string{"show"}, wantErr: errHelp},
		{name: "show: not found", args: []string{"show", "-id", "lol"}, wantErr: course.ErrNotFound},
		{
			name: "show", args: []string{"show", "-id", "1"},
			wantOut: []string{
				"Introduction to Programming  [1]",
				"Dates: 2024-01-01 to 2024-04-30",
				"Participants (2)",
				"john@example.com",
				"chat",
				"created (chat-456)",
			},
		},
	}
	runCLITests(t, cli, tests)
}

func Test_commandLine_resources(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "init: no type", args: []string{"init", "-id", "2"}, wantErr: errHelp},
		{name: "init: bad type", args: []string{"init", "-id", "2", "-type", "lol"}, wantErr: course.ErrInvalidResourceType},
		{name: "init: not found", args: []string{"init", "-id", "lol", "-type", "chat"}, wantErr: course.ErrNotFound},
		{name: "init", args: []string{"init", "-id", "2", "-type", "chat"}, wantOut: []string{"chat: pending...", "chat: created (chat-2-1)"}},
		{name: "link", args: []string{"link", "-id", "2", "-type", "meeting", "-resource", "meet-2"}, wantOut: []string{"meeting: created (meet-2)"}},
		{name: "unlink one", args: []string{"unlink", "-id", "2", "-type", "chat"}, wantOut: []string{"chat: none"}},
		{name: "unlink: no id", args: []string{"unlink"}, wantErr: errHelp},
	}
	runCLITests(t, cli, tests)

	c := getCourse(t, "2")
	if c.ZoomResources.Chat.ResourceID != nil || *c.ZoomResources.Meeting.ResourceID != "meet-2" {
		t.Errorf("unexpected resources %+v", c.ZoomResources)
	}

	t.Run("link: bad id is rejected", func(t *testing.T) {
		out.Reset()
		err := cli.run([]string{"admin", "link", "-id", "2", "-type", "meeting", "-resource", "a b"})
		if !core.IsInvalidInput(err) {
			t.Errorf("cli.run() error = %v, want invalid input", err)
		}
		if !strings.Contains(out.String(), "meeting: created (meet-2)") {
			t.Errorf("cli.run() output = %q; the previous resource should be shown", out.String())
		}
	})

	t.Run("init: provisioner failure", func(t *testing.T) {
		prov.FailOn = map[course.ResourceType]bool{course.Whiteboard: true}
		defer func() { prov.FailOn = nil }()

		out.Reset()
		err := cli.run([]string{"admin", "init", "-id", "2", "-type", "whiteboard"})
		if !core.IsTransport(err) {
			t.Errorf("cli.run() error = %v, want transport error", err)
		}
		if !strings.Contains(out.String(), "whiteboard: error") {
			t.Errorf("cli.run() output = %q", out.String())
		}
	})

	runCLITests(t, cli, []cliTest{
		{name: "unlink all", args: []string{"unlink", "-id", "2"}, wantOut: []string{"meeting", "none"}},
	})
	if !getCourse(t, "2").NeedsSetup() {
		t.Error("course 2 should need setup")
	}
}

func Test_commandLine_bulk(t *testing.T) {
	cli := setup(t)

	isTerminalFunc = func(fd int) bool { return true }
	answer := "n"
	readLineFunc = func() (string, error) { return answer, nil }

	tests := []cliTest{
		{name: "bulk-init: no ids", args: []string{"bulk-init"}, wantErr: errHelp},
		{name: "bulk-init: bad type", args: []string{"bulk-init", "-ids", "2", "-types", "chat,lol"}, wantErr: course.ErrInvalidResourceType},
		{
			name: "bulk-init", args: []string{"bulk-init", "-ids", "1, 2", "-types", "chat,meeting"},
			wantOut: []string{"completed: 2", "skipped: 1"},
		},
		{name: "bulk-unlink: no ids", args: []string{"bulk-unlink"}, wantErr: errHelp},
		{name: "bulk-unlink: declined", args: []string{"bulk-unlink", "-ids", "1,2"}, wantErr: errAborted, wantOut: []string{"Unlink all the resources of 2 course(s)? [y/N]"}},
		{
			name: "bulk-unlink: stops on failure", args: []string{"bulk-unlink", "-ids", "1,lol,2", "-yes"},
			wantErr: course.ErrNotFound, wantOut: []string{"completed: 1", "failed: lol", "untouched: 2"},
		},
	}
	runCLITests(t, cli, tests)

	if getCourse(t, "2").ZoomResources.Chat.ResourceID == nil {
		t.Error("course 2 should be untouched")
	}

	answer = "y"
	runCLITests(t, cli, []cliTest{
		{name: "bulk-unlink: confirmed", args: []string{"bulk-unlink", "-ids", "2"}, wantOut: []string{"completed: 2"}},
	})
	if getCourse(t, "2").ZoomResources.Chat.ResourceID != nil {
		t.Error("course 2 should be unlinked")
	}

	isTerminalFunc = func(fd int) bool { return false }
	runCLITests(t, cli, []cliTest{
		{name: "bulk-unlink: not a terminal", args: []string{"bulk-unlink", "-ids", "1"}, wantErr: errConfirm},
	})
}
