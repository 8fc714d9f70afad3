package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core/course"
)

type courseApi struct {
	svc course.Store
}

func registerCourseAPI(g *echo.Group, svc course.Store) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.POST("", api.create)

	// detail endpoints
	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	// participants
	dg.POST("/users", api.addUser)
	dg.DELETE("/users/:userId", api.removeUser)
	dg.PATCH("/users/:userId", api.setUserRole)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	var filter course.QueryFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var ordering Ordering
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	c, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) addUser(ctx echo.Context) error {
	var data course.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	c, err := api.svc.AddUser(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding user")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) removeUser(ctx echo.Context) error {
	c, err := api.svc.RemoveUser(ctx.Request().Context(), ctx.Param("id"), ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "removing user")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) setUserRole(ctx echo.Context) error {
	var data course.UpdateUserRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUserRole")
	}

	c, err := api.svc.SetUserRole(ctx.Request().Context(), ctx.Param("id"), ctx.Param("userId"), data.Role)
	if err != nil {
		return errors.Wrap(err, "setting user role")
	}
	return ctx.JSON(http.StatusOK, c)
}
