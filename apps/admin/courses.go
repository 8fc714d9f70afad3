package main

import (
	"context"
	"fmt"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

func (cli *commandLine) seed() error {
	if cli.repo == nil {
		return errLocalOnly
	}
	n, err := course.Seed(context.Background(), cli.repo)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d course(s) created\n", n)
	return nil
}

func (cli *commandLine) list(filter course.QueryFilter, ordering []core.DBOrdering) error {
	courses, err := cli.store.Query(context.Background(), filter, ordering...)
	if err != nil {
		return err
	}
	renderCourseList(cli.out, courses)
	return nil
}

func (cli *commandLine) show(id string) error {
	c, err := cli.store.GetByID(context.Background(), id)
	if err != nil {
		return err
	}
	newCourseView(c).render(cli.out)
	return nil
}

// runOnPanel shows the slot as pending while fn runs, then the resulting state.
// When fn is rejected without reaching the store the panel goes back to its previous state.
func (cli *commandLine) runOnPanel(id string, t course.ResourceType, fn func(ctx context.Context) (course.Course, error)) error {
	ctx := context.Background()
	c, err := cli.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	view := newCourseView(c)
	restore := view.markPending(t)
	_, _ = fmt.Fprintf(cli.out, "%s: %s\n", t, view.panel(t))

	c, err = fn(ctx)
	if err != nil {
		if refreshed, gErr := cli.store.GetByID(ctx, id); gErr == nil {
			view = newCourseView(refreshed)
		} else {
			restore()
		}
		_, _ = fmt.Fprintf(cli.out, "%s: %s\n", t, view.panel(t))
		return err
	}
	view = newCourseView(c)
	_, _ = fmt.Fprintf(cli.out, "%s: %s\n", t, view.panel(t))
	return nil
}

func (cli *commandLine) initialize(id, typ string) error {
	t, err := course.ParseResourceType(typ)
	if err != nil {
		return err
	}
	return cli.runOnPanel(id, t, func(ctx context.Context) (course.Course, error) {
		return cli.linker.InitializeResource(ctx, id, t)
	})
}

func (cli *commandLine) link(id, typ, resourceID string) error {
	t, err := course.ParseResourceType(typ)
	if err != nil {
		return err
	}
	return cli.runOnPanel(id, t, func(ctx context.Context) (course.Course, error) {
		return cli.linker.LinkResource(ctx, id, t, resourceID)
	})
}

func (cli *commandLine) unlink(id, typ string) error {
	ctx := context.Background()
	if typ == "" {
		c, err := cli.linker.UnlinkResources(ctx, id)
		if err != nil {
			return err
		}
		newCourseView(c).renderPanels(cli.out)
		return nil
	}

	t, err := course.ParseResourceType(typ)
	if err != nil {
		return err
	}
	return cli.runOnPanel(id, t, func(ctx context.Context) (course.Course, error) {
		return cli.linker.UnlinkResource(ctx, id, t)
	})
}

func (cli *commandLine) bulkInitialize(ids, typs []string) error {
	types := make([]course.ResourceType, 0, len(typs))
	for _, typ := range typs {
		t, err := course.ParseResourceType(typ)
		if err != nil {
			return err
		}
		types = append(types, t)
	}
	res, err := cli.linker.BulkInitialize(context.Background(), ids, types)
	renderBulkResult(cli.out, res)
	return err
}

func (cli *commandLine) bulkUnlink(ids []string, yes bool) error {
	if !yes {
		if err := cli.confirm(fmt.Sprintf("Unlink all the resources of %d course(s)?", len(ids))); err != nil {
			return err
		}
	}
	res, err := cli.linker.BulkUnlink(context.Background(), ids)
	renderBulkResult(cli.out, res)
	return err
}
