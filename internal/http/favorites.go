package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrlokans/favsync/internal/entities"
	"github.com/mrlokans/favsync/internal/favorites"
)

// FavoritesResponse is the read model of the shared favorites state.
type FavoritesResponse struct {
	Scope     string                   `json:"scope"`
	UserID    string                   `json:"user_id,omitempty"`
	Status    favorites.Status         `json:"status"`
	Loading   bool                     `json:"loading"`
	Count     int                      `json:"count"`
	Version   uint64                   `json:"version"`
	Favorites []entities.FavoriteEntry `json:"favorites"`
}

// MembershipResponse reports whether an item is a favorite after a request.
type MembershipResponse struct {
	ID         string `json:"id"`
	IsFavorite bool   `json:"is_favorite"`
	Count      int    `json:"count"`
}

// SyncStatusResponse is the last reconciliation run plus the schedule.
type SyncStatusResponse struct {
	*entities.SyncProgress
	Schedule *ScheduleResponse `json:"schedule,omitempty"`
}

type ScheduleResponse struct {
	Enabled bool       `json:"enabled"`
	Syncing bool       `json:"syncing"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

type FavoritesController struct {
	service  FavoritesService
	progress SyncProgressReader
	schedule ScheduleStatus
}

// NewFavoritesController creates the favorites controller. progress and
// schedule may be nil.
func NewFavoritesController(service FavoritesService, progress SyncProgressReader, schedule ScheduleStatus) *FavoritesController {
	return &FavoritesController{service: service, progress: progress, schedule: schedule}
}

func newFavoritesResponse(state *favorites.State) FavoritesResponse {
	return FavoritesResponse{
		Scope:     state.Scope.Key(),
		UserID:    state.Scope.UserID,
		Status:    state.Status,
		Loading:   state.Loading,
		Count:     state.Count(),
		Version:   state.Version,
		Favorites: entities.CloneFavorites(state.Entries),
	}
}

func (fc *FavoritesController) membership(id string) MembershipResponse {
	state := fc.service.State()
	return MembershipResponse{ID: id, IsFavorite: state.Has(id), Count: state.Count()}
}

// ListFavorites handles GET /api/favorites
func (fc *FavoritesController) ListFavorites(c *gin.Context) {
	c.JSON(http.StatusOK, newFavoritesResponse(fc.service.State()))
}

// ListFavoriteIDs handles GET /api/favorites/ids
// Ids are listed newest first.
func (fc *FavoritesController) ListFavoriteIDs(c *gin.Context) {
	state := fc.service.State()
	ids := make([]string, 0, state.Count())
	for _, e := range state.Entries {
		ids = append(ids, e.ID)
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids, "count": len(ids)})
}

// GetFavorite handles GET /api/favorites/:id
func (fc *FavoritesController) GetFavorite(c *gin.Context) {
	id := c.Param("id")
	for _, e := range fc.service.State().Entries {
		if e.ID == id {
			c.JSON(http.StatusOK, e)
			return
		}
	}
	respondNotFound(c, "favorite")
}

// AddFavorite handles POST /api/favorites
func (fc *FavoritesController) AddFavorite(c *gin.Context) {
	entry, ok := bindEntry(c)
	if !ok {
		return
	}

	if err := fc.service.AddFavorite(c.Request.Context(), entry); err != nil {
		fc.respondMutationError(c, err)
		return
	}
	respondCreated(c, fc.membership(entry.ID))
}

// RemoveFavorite handles DELETE /api/favorites/:id
func (fc *FavoritesController) RemoveFavorite(c *gin.Context) {
	id := c.Param("id")
	if err := fc.service.RemoveFavorite(c.Request.Context(), id); err != nil {
		fc.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, fc.membership(id))
}

// ToggleFavorite handles POST /api/favorites/toggle
func (fc *FavoritesController) ToggleFavorite(c *gin.Context) {
	entry, ok := bindEntry(c)
	if !ok {
		return
	}

	if _, err := fc.service.ToggleFavorite(c.Request.Context(), entry); err != nil {
		fc.respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, fc.membership(entry.ID))
}

// RefreshFavorites handles POST /api/favorites/refresh
// Runs load and reconciliation before responding. Backend failures still
// answer 200 with the local state.
func (fc *FavoritesController) RefreshFavorites(c *gin.Context) {
	fc.service.RefreshFavorites(c.Request.Context())
	c.JSON(http.StatusOK, newFavoritesResponse(fc.service.State()))
}

// GetSyncStatus handles GET /api/favorites/sync
func (fc *FavoritesController) GetSyncStatus(c *gin.Context) {
	if fc.progress == nil {
		respondNotFound(c, "sync progress")
		return
	}

	schedule := fc.scheduleResponse()

	progress, err := fc.progress.GetSyncProgress()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response := gin.H{"status": "never_run"}
		if schedule != nil {
			response["schedule"] = schedule
		}
		c.JSON(http.StatusOK, response)
		return
	}
	if err != nil {
		respondInternalError(c, err, "get sync progress")
		return
	}
	c.JSON(http.StatusOK, SyncStatusResponse{SyncProgress: progress, Schedule: schedule})
}

func (fc *FavoritesController) scheduleResponse() *ScheduleResponse {
	if fc.schedule == nil {
		return nil
	}
	return &ScheduleResponse{
		Enabled: fc.schedule.IsRunning(),
		Syncing: fc.schedule.IsSyncing(),
		NextRun: fc.schedule.NextRunTime(),
	}
}

func bindEntry(c *gin.Context) (entities.FavoriteEntry, bool) {
	var entry entities.FavoriteEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		respondBadRequest(c, "invalid favorite: "+err.Error())
		return entry, false
	}
	return entry, true
}

// respondMutationError maps engine errors. Only invalid input and local
// persistence failures reach here; backend errors never do.
func (fc *FavoritesController) respondMutationError(c *gin.Context, err error) {
	if errors.Is(err, favorites.ErrInvalidEntry) {
		respondBadRequest(c, err.Error())
		return
	}
	respondInternalError(c, err, "persist favorites")
}
