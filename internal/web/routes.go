package web

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/vinyard/internal/merge"
	"github.com/zulandar/vinyard/internal/models"
	"github.com/zulandar/vinyard/internal/store"
)

// registerRoutes sets up all routes on the gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/health", handleHealth())

	router.POST("/listings", handleSubmit(opts))
	router.GET("/listings", handleList(opts))
	router.GET("/listings/:id", handleGet(opts))
	router.PATCH("/listings/:id", handleEdit(opts))
	router.PUT("/listings/:id/comments", handleComments(opts))
	router.DELETE("/listings/:id", handleDelete(opts))

	if opts.Settings != nil {
		router.GET("/config", handleConfigGet(opts))
		router.PUT("/config", handleConfigPut(opts))
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

// handleSubmit accepts a flat JSON object of raw extracted fields plus the
// "site" key, as posted by the scraping extension.
func handleSubmit(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw map[string]string
		if err := c.ShouldBindJSON(&raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a flat JSON object of strings"})
			return
		}
		site := raw["site"]

		result, err := opts.Merge.Upsert(site, raw)
		if err != nil {
			abortWithError(c, opts, err)
			return
		}

		switch result.Status {
		case merge.StatusCreated:
			if l, err := opts.Store.GetByID(result.ID); err == nil {
				opts.Notifier.ListingCreated(c.Request.Context(), l)
			}
			c.JSON(http.StatusCreated, gin.H{
				"message": "Listing added successfully",
				"id":      result.ID,
				"updated": false,
			})
		case merge.StatusUpdated:
			c.JSON(http.StatusOK, gin.H{
				"message": "Listing updated: " + result.Summary,
				"id":      result.ID,
				"updated": true,
				"changes": result.Changes,
			})
		default:
			c.JSON(http.StatusOK, gin.H{
				"message": "No changes detected",
				"id":      result.ID,
				"updated": false,
			})
		}
	}
}

// listingView is a listing plus its computed desirability score.
type listingView struct {
	*models.Listing
	DesirabilityScore float64 `json:"desirability_score"`
}

func handleList(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		listings, err := opts.Store.AllActive()
		if err != nil {
			abortWithError(c, opts, err)
			return
		}
		scores := opts.Scorer.Scores(listings)

		views := make([]listingView, 0, len(listings))
		for _, l := range listings {
			views = append(views, listingView{Listing: l, DesirabilityScore: scores[l.ID]})
		}
		sortViews(views, c.DefaultQuery("sort", "score"))

		c.JSON(http.StatusOK, gin.H{"count": len(views), "listings": views})
	}
}

func sortViews(views []listingView, key string) {
	less := func(i, j int) bool {
		return views[i].DesirabilityScore > views[j].DesirabilityScore
	}
	switch key {
	case "price":
		less = func(i, j int) bool {
			return numericField(views[i].Data.Price) < numericField(views[j].Data.Price)
		}
	case "mileage":
		less = func(i, j int) bool {
			return numericField(views[i].Data.Mileage) < numericField(views[j].Data.Mileage)
		}
	case "year":
		less = func(i, j int) bool {
			return yearField(views[i].Data.Year) > yearField(views[j].Data.Year)
		}
	}
	sort.SliceStable(views, less)
}

func handleGet(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		l, err := opts.Store.GetByID(c.Param("id"))
		if err != nil {
			abortWithError(c, opts, err)
			return
		}
		c.JSON(http.StatusOK, l)
	}
}

// editRequest carries the user-editable fields. Pointers distinguish
// "absent" from "set to empty".
type editRequest struct {
	TrimLevel          *string `json:"trim_level"`
	Accidents          *string `json:"accidents"`
	PreviousOwners     *string `json:"previous_owners"`
	ExteriorColor      *string `json:"exterior_color"`
	InteriorColor      *string `json:"interior_color"`
	PerformancePackage *bool   `json:"performance_package"`
}

func handleEdit(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req editRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid edit request"})
			return
		}
		l, err := opts.Store.UpdateFn(c.Param("id"), func(l *models.Listing) (bool, error) {
			changed := false
			apply := func(field string, v *string) {
				if v != nil && l.Data.Field(field) != *v {
					l.Data.SetField(field, *v)
					changed = true
				}
			}
			apply("trim_level", req.TrimLevel)
			apply("accidents", req.Accidents)
			apply("previous_owners", req.PreviousOwners)
			apply("exterior_color", req.ExteriorColor)
			apply("interior_color", req.InteriorColor)
			if req.PerformancePackage != nil {
				if l.Data.PerformancePackage == nil || *l.Data.PerformancePackage != *req.PerformancePackage {
					l.Data.PerformancePackage = req.PerformancePackage
					changed = true
				}
			}
			if changed {
				l.LastModifiedDate = timeNow().UTC()
			}
			return changed, nil
		})
		if err != nil {
			abortWithError(c, opts, err)
			return
		}
		c.JSON(http.StatusOK, l)
	}
}

func handleComments(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Comments string `json:"comments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comments request"})
			return
		}
		l, err := opts.Store.UpdateFn(c.Param("id"), func(l *models.Listing) (bool, error) {
			if l.Comments == req.Comments {
				return false, nil
			}
			l.Comments = req.Comments
			l.LastModifiedDate = timeNow().UTC()
			return true, nil
		})
		if err != nil {
			abortWithError(c, opts, err)
			return
		}
		c.JSON(http.StatusOK, l)
	}
}

func handleDelete(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := opts.Store.SoftDelete(c.Param("id")); err != nil {
			abortWithError(c, opts, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Listing deleted"})
	}
}

func handleConfigGet(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, opts.Settings.All())
	}
}

func handleConfigPut(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var values map[string]string
		if err := c.ShouldBindJSON(&values); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a flat JSON object of strings"})
			return
		}
		if err := opts.Settings.Update(values); err != nil {
			abortWithError(c, opts, err)
			return
		}
		c.JSON(http.StatusOK, opts.Settings.All())
	}
}

// abortWithError maps core errors onto HTTP status codes.
func abortWithError(c *gin.Context, opts StartOpts, err error) {
	status := http.StatusInternalServerError
	var verr *merge.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		opts.Log.Errorf("web: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
