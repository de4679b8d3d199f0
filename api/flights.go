package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Domenick1991/galaxium/internal/domain"
	"github.com/Domenick1991/galaxium/internal/orchestrator"
	"github.com/gin-gonic/gin"
)

type FlightBrowser interface {
	RefreshCatalog(ctx context.Context) error
	Search(term string)
	View() orchestrator.View
}

type FlightFinder interface {
	Find(id int64) (domain.Flight, bool)
}

type FlightHandler struct {
	browser FlightBrowser
	finder  FlightFinder
}

type searchRequest struct {
	Term string `json:"term"`
}

func NewFlightHandler(browser FlightBrowser, finder FlightFinder) *FlightHandler {
	return &FlightHandler{browser: browser, finder: finder}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.POST("/refresh", h.refresh)
	router.POST("/search", h.search)
}

// list returns the cached flights. ?q= sets the search term first and
// ?refresh=true reloads from the inventory service.
func (h *FlightHandler) list(c *gin.Context) {
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		if err := h.browser.RefreshCatalog(c.Request.Context()); err != nil {
			writeError(c, err)
			return
		}
	}
	if term, ok := c.GetQuery("q"); ok {
		h.browser.Search(term)
	}
	c.JSON(http.StatusOK, h.browser.View().Flights)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	flight, ok := h.finder.Find(id)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "flight not found"})
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) refresh(c *gin.Context) {
	if err := h.browser.RefreshCatalog(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.browser.View())
}

func (h *FlightHandler) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.browser.Search(req.Term)
	c.JSON(http.StatusOK, h.browser.View())
}
