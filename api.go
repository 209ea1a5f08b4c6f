package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/usktea/lunch-indexer/index"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// API serves the restaurant queries
type API struct {
	engine *index.Engine
	checks map[string]HealthCheck

	// lag reports the time since the replication stream was last heard from
	lag    func() time.Duration
	maxLag time.Duration
}

func NewAPI(engine *index.Engine, checks map[string]HealthCheck, lag func() time.Duration, maxLag time.Duration) *API {
	return &API{engine: engine, checks: checks, lag: lag, maxLag: maxLag}
}

type HealthResponse struct {
	Status                string            `json:"status"`
	Checks                map[string]string `json:"checks"`
	ReplicationLagSeconds *float64          `json:"replicationLagSeconds,omitempty"`
}

//	@title			Lunch Indexer API
//	@version		1.0.0
//	@description	Restaurant search over the Seoul open data registry, indexed by H3 cells.
//  @query.collection.format multi

// @summary		Search restaurants in a viewport
// @description	Returns open restaurants inside the boundary, grouped into clusters by the H3 cell of the resolution matching the zoom level.
// @id	api_get_restaurants
// @tags	restaurants
// @Accept       json
// @Produce      json
// @success		200	{object}	index.SearchRestaurantsResponse
// @failure		400	{object}	index.RequestError
// @param	boundary query string true "Viewport as `seLon;seLat;nwLon;nwLat`."
// @param	zoomLevel query int true "Map zoom level. 14 to 19 select H3 resolutions 7 to 11." minimum(1)
// @router			/api/restaurants [get]
func (a *API) GetRestaurants(c *fiber.Ctx) error {
	req := index.SearchRestaurantsRequest{}
	if err := c.QueryParser(&req); err != nil {
		return index.RequestError{Code: 422, Message: err.Error()}
	}
	if req.Boundary == "" {
		return index.RequestError{Code: 400, Message: "boundary is required"}
	}
	if req.ZoomLevel == nil {
		return index.RequestError{Code: 400, Message: "zoomLevel is required"}
	}

	resp, err := a.engine.SearchRestaurants(c.UserContext(), req.Boundary, *req.ZoomLevel)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// @summary		Search places around a point
// @description	Returns up to 50 open restaurants within maxDistance meters of the center, with walking time and average price.
// @id	api_get_restaurants_search
// @tags	restaurants
// @Accept       json
// @Produce      json
// @success		200	{object}	index.SearchPlacesResponse
// @failure		400	{object}	index.RequestError
// @param	centerLat query number true "Latitude of the search center."
// @param	centerLon query number true "Longitude of the search center."
// @param	keyword query string false "Substring of the restaurant name."
// @param	category query string false "Main category." Enums(KOREAN, CHINESE, JAPANESE, WESTERN)
// @param	sortBy query string false "Result order." Enums(distance, rating, reviewCount) default(distance)
// @param	maxDistance query int false "Search radius in meters." minimum(1) maximum(20000) default(500)
// @router			/api/restaurants/search [get]
func (a *API) SearchPlaces(c *fiber.Ctx) error {
	req := index.SearchPlacesRequest{}
	if err := c.QueryParser(&req); err != nil {
		return index.RequestError{Code: 422, Message: err.Error()}
	}

	resp, err := a.engine.SearchPlaces(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// @summary		Get business info
// @description	Returns the details of a restaurant with its business hours and menus.
// @id	api_get_restaurant
// @tags	restaurants
// @Accept       json
// @Produce      json
// @success		200	{object}	index.BusinessInfoResponse
// @failure		404	{object}	index.RequestError
// @param	managementNumber path string true "Registry management number."
// @router			/api/restaurants/{managementNumber} [get]
func (a *API) GetBusinessInfo(c *fiber.Ctx) error {
	resp, err := a.engine.GetBusinessInfo(c.UserContext(), c.Params("managementNumber"))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// @summary		Health check
// @id	api_get_health
// @tags	system
// @Produce      json
// @success		200	{object}	HealthResponse
// @failure		503	{object}	HealthResponse
// @router			/health [get]
func (a *API) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: map[string]string{}}
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	if a.lag != nil {
		lag := a.lag()
		seconds := lag.Seconds()
		resp.ReplicationLagSeconds = &seconds
		if a.maxLag > 0 && lag > a.maxLag {
			resp.Status = "degraded"
			resp.Checks["replication"] = fmt.Sprintf("no message for %s", lag.Truncate(time.Second))
		} else {
			resp.Checks["replication"] = "ok"
		}
	}

	if resp.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

func ErrorHandlerFunc(ctx *fiber.Ctx, err error) error {
	ip := ctx.IP()
	if ips := ctx.IPs(); len(ips) > 0 {
		ip = ips[0]
	}

	var reqErr index.RequestError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &reqErr):
		if reqErr.Code >= 500 {
			log.WithFields(log.Fields{"path": ctx.Path(), "ip": ip, "queries": ctx.Queries()}).Error(err)
		}
		return ctx.Status(reqErr.Code).JSON(reqErr)
	case errors.As(err, &fiberErr):
		return ctx.Status(fiberErr.Code).JSON(index.RequestError{Code: fiberErr.Code, Message: fiberErr.Message})
	case errors.Is(err, context.DeadlineExceeded):
		log.WithFields(log.Fields{"path": ctx.Path(), "ip": ip, "queries": ctx.Queries()}).Warn(err)
		return ctx.Status(fiber.StatusGatewayTimeout).JSON(index.RequestError{Code: fiber.StatusGatewayTimeout, Message: "query timed out"})
	default:
		log.WithFields(log.Fields{"path": ctx.Path(), "ip": ip, "queries": ctx.Queries()}).Error(err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(index.RequestError{
			Code:    fiber.StatusInternalServerError,
			Message: fmt.Sprintf("internal server error: %s", err.Error()),
		})
	}
}

// NewApp builds the fiber app with every route of the API
func NewApp(api *API, accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Lunch Indexer API",
		ErrorHandler: ErrorHandlerFunc,
	})

	app.Use("/api/", func(c *fiber.Ctx) error {
		c.Accepts("application/json")
		start := time.Now()
		err := c.Next()
		stop := time.Now()
		c.Append("Server-timing", fmt.Sprintf("app;dur=%v", stop.Sub(start).String()))
		return err
	})
	if accessLog {
		app.Use("/api/", logger.New(logger.Config{Format: "[${ip}]:${port} ${status} - ${method} ${path}\n"}))
	}

	app.Get("/health", api.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/api/restaurants", api.GetRestaurants)
	app.Get("/api/restaurants/search", api.SearchPlaces)

	// swagger
	app.Get("/api/docs/*", swagger.New(swagger.Config{
		Title:           "Lunch Indexer - Swagger UI",
		Layout:          "BaseLayout",
		DeepLinking:     true,
		TryItOutEnabled: true,
	}))
	app.Get("/api/restaurants/:managementNumber", api.GetBusinessInfo)
	return app
}
