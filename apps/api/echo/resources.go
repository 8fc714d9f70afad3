package echoapi

import (
	"context"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
	queuesvc "github.com/coreymead/zoom-class-builder/services/queue"
)

type (
	BulkInitializeRequest struct {
		CourseIDs []string              `json:"courseIds"`
		Types     []course.ResourceType `json:"types"`
	}

	BulkUnlinkRequest struct {
		CourseIDs []string `json:"courseIds"`
	}

	// BulkResponse is the outcome of a bulk operation; Message describes the failure of the course it stopped on.
	BulkResponse struct {
		course.BulkResult
		Message string `json:"message,omitempty"`
	}
)

type resourceApi struct {
	svc        course.Service
	tasks      queuesvc.Client
	validate   *validator.Validate
	translator ut.Translator
}

func registerResourceAPI(
	g *echo.Group,
	svc course.Service,
	tasks queuesvc.Client,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := resourceApi{
		svc:        svc,
		tasks:      tasks,
		validate:   validate,
		translator: translator,
	}

	bg := g.Group("/courses/bulk/zoom-resources")
	bg.POST("", api.bulkInitialize)
	bg.POST("/unlink", api.bulkUnlink)

	rg := g.Group("/courses/:id/zoom-resources")
	rg.GET("", api.list)
	rg.DELETE("", api.unlinkAll)
	rg.POST("/:type", api.initialize)
	rg.DELETE("/:type", api.unlink)
	rg.POST("/:type/link", api.link)
}

func resourceType(ctx echo.Context) (course.ResourceType, error) {
	return course.ParseResourceType(ctx.Param("type"))
}

// Handlers

func (api *resourceApi) list(ctx echo.Context) error {
	ids, err := api.svc.GetResources(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting resources")
	}
	return ctx.JSON(http.StatusOK, ids)
}

// initialize provisions the resource inline, or hands it to the workers when a queue is configured.
func (api *resourceApi) initialize(ctx echo.Context) error {
	t, err := resourceType(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")

	if api.tasks == nil {
		// a started provisioning outlives the request
		c, err := api.svc.InitializeResource(context.Background(), id, t)
		if err != nil {
			return errors.Wrap(err, "initializing resource")
		}
		return ctx.JSON(http.StatusOK, c)
	}

	c, err := api.svc.BeginResource(ctx.Request().Context(), id, t)
	if err != nil {
		return errors.Wrap(err, "initializing resource")
	}
	job := queuesvc.Job{CourseID: id, Type: t}
	if err = api.tasks.Publish(ctx.Request().Context(), job.String()); err != nil {
		err = core.NewTransportError(fmt.Sprintf("publishing job %s", job), err)
		if _, fErr := api.svc.FailResource(context.Background(), id, t, err); fErr != nil {
			return errors.Wrap(fErr, "failing resource")
		}
		return err
	}
	return ctx.JSON(http.StatusAccepted, c)
}

func (api *resourceApi) link(ctx echo.Context) error {
	t, err := resourceType(ctx)
	if err != nil {
		return err
	}
	var data course.LinkRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkRequest")
	}
	data.Clean()
	if err = api.validate.Struct(data); err != nil {
		return core.TranslateValidationErrors(err, api.translator)
	}

	c, err := api.svc.LinkResource(ctx.Request().Context(), ctx.Param("id"), t, data.ResourceID)
	if err != nil {
		return errors.Wrap(err, "linking resource")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *resourceApi) unlink(ctx echo.Context) error {
	t, err := resourceType(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.UnlinkResource(ctx.Request().Context(), ctx.Param("id"), t)
	if err != nil {
		return errors.Wrap(err, "unlinking resource")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *resourceApi) unlinkAll(ctx echo.Context) error {
	c, err := api.svc.UnlinkResources(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unlinking resources")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *resourceApi) bulkInitialize(ctx echo.Context) error {
	var data BulkInitializeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkInitializeRequest")
	}
	// bulk operations run to completion or to the first failure, whatever happens to the request
	res, err := api.svc.BulkInitialize(context.Background(), data.CourseIDs, data.Types)
	return api.bulkResponse(ctx, res, err)
}

func (api *resourceApi) bulkUnlink(ctx echo.Context) error {
	var data BulkUnlinkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkUnlinkRequest")
	}
	res, err := api.svc.BulkUnlink(context.Background(), data.CourseIDs)
	return api.bulkResponse(ctx, res, err)
}

// bulkResponse reports the partial result along with the error of a stopped bulk operation.
func (api *resourceApi) bulkResponse(ctx echo.Context, res course.BulkResult, err error) error {
	if err == nil {
		return ctx.JSON(http.StatusOK, BulkResponse{BulkResult: res})
	}
	var bulkErr *course.BulkError
	if !errors.As(err, &bulkErr) {
		return err
	}
	code, body := errorStatus(bulkErr.Err)
	if code == http.StatusInternalServerError {
		return err
	}
	return ctx.JSON(code, BulkResponse{BulkResult: res, Message: body.Message})
}
