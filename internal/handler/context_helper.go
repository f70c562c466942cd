package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-crm-api/internal/middleware"
	"github.com/noah-isme/edu-crm-api/internal/models"
	"github.com/noah-isme/edu-crm-api/internal/service"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/response"
	"github.com/noah-isme/edu-crm-api/pkg/table"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// bindJSON decodes the body into dest. Strapi clients wrap payloads in
// {"data": {...}}; both shapes are accepted.
func bindJSON(c *gin.Context, dest interface{}, what string) bool {
	var wrapped struct {
		Data map[string]interface{} `json:"data"`
	}
	body, err := c.GetRawData()
	if err != nil {
		badPayload(c, err, what)
		return false
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		if body, err = json.Marshal(wrapped.Data); err != nil {
			badPayload(c, err, what)
			return false
		}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		badPayload(c, err, what)
		return false
	}
	return true
}

func badPayload(c *gin.Context, err error, what string) {
	c.Abort()
	response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+what+" payload"))
}

// queryInt reads the first non-empty key as an int. Missing or malformed values yield 0.
func queryInt(c *gin.Context, keys ...string) int {
	for _, key := range keys {
		if raw := strings.TrimSpace(c.Query(key)); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				return v
			}
			return 0
		}
	}
	return 0
}

// populate reports whether the request asks for relation expansion.
func populate(c *gin.Context) bool {
	raw := strings.TrimSpace(c.Query("populate"))
	return raw != "" && raw != "false" && raw != "0"
}

func listPaging(c *gin.Context) (int, int) {
	return queryInt(c, "pagination[page]", "page"), queryInt(c, "pagination[pageSize]", "page_size", "pageSize")
}

func listFilter(c *gin.Context) (models.ListFilter, error) {
	page, size := listPaging(c)
	filter := models.ListFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Status:    strings.TrimSpace(c.Query("status")),
		Country:   strings.TrimSpace(c.Query("country")),
		AgencyID:  strings.TrimSpace(c.Query("agency_id")),
		UserID:    strings.TrimSpace(c.Query("user_id")),
		Page:      page,
		PageSize:  size,
		SortBy:    strings.TrimSpace(c.Query("sort")),
		SortOrder: strings.TrimSpace(c.Query("order")),
	}
	if strings.EqualFold(filter.Status, "all") {
		filter.Status = ""
	}
	var err error
	if filter.From, err = queryDate(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryUpperDate(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, ok := table.ParseDate(raw)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}

// queryUpperDate reads the inclusive end of a range; a bare day runs to its last instant.
func queryUpperDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, ok := table.ParseUpperBound(raw)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}

// tableQuery reads the committed table state from the query string.
func tableQuery(c *gin.Context) (service.TableQuery, error) {
	q := service.TableQuery{
		Criteria: table.Criteria{
			Search:   strings.TrimSpace(c.Query("search")),
			Status:   c.Query("status"),
			Category: c.Query("country"),
		},
		Sort: table.SortSpec{
			Key: strings.TrimSpace(c.Query("sort")),
			Dir: table.ParseDirection(c.Query("dir")),
		},
		ToggleSort: strings.TrimSpace(c.Query("toggle")),
		Page:       queryInt(c, "page", "pagination[page]"),
		PageSize:   queryInt(c, "page_size", "pagination[pageSize]"),
		ToggleID:   strings.TrimSpace(c.Query("toggle_id")),
	}
	if q.Sort.Key == "" {
		q.Sort.Dir = ""
	}
	for _, raw := range c.QueryArray("selected") {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.Selected = append(q.Selected, id)
			}
		}
	}
	var err error
	if raw := strings.TrimSpace(c.Query("toggle_all")); raw != "" {
		if q.ToggleAll, err = strconv.ParseBool(raw); err != nil {
			return q, appErrors.Clone(appErrors.ErrValidation, "toggle_all must be true or false")
		}
	}
	if q.Criteria.From, err = queryDate(c, "from"); err != nil {
		return q, err
	}
	if q.Criteria.To, err = queryUpperDate(c, "to"); err != nil {
		return q, err
	}
	return q, nil
}

func actor(c *gin.Context) models.Actor {
	return middleware.Actor(c)
}
