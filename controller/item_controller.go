package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	"github.com/cordon-dev/cordon/model"
	"github.com/cordon-dev/cordon/service"
	"github.com/cordon-dev/cordon/util"
	helper_util "github.com/cordon-dev/cordon/util/helper"
)

type ItemController struct {
	itemService service.IItemService
}

func NewItemController(itemService service.IItemService) *ItemController {
	return &ItemController{
		itemService: itemService,
	}
}

// RegisterRoutes registers the API routes for items
func (ic *ItemController) RegisterRoutes(r *gin.RouterGroup) {
	items := r.Group("/items")
	{
		items.POST("", ic.CreateItem)
		items.PUT("/:id", ic.UpdateItem)
		items.DELETE("/:id", ic.DeleteItem)
		items.GET("/:id", ic.GetItem)
		items.GET("", ic.ListItems)
		items.GET("/search", ic.SearchItems)
	}
}

// CreateItem endpoint
func (ic *ItemController) CreateItem(c *gin.Context) {
	var req model.ItemAddReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid item data", cordon_errors.ErrInvalidItemData)
		return
	}
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	id, err := ic.itemService.AddItem(c, ictx, &req)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateItem endpoint
func (ic *ItemController) UpdateItem(c *gin.Context) {
	itemID := c.Param("id")
	var req model.ItemModifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid item data", err)
		return
	}
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	updated, err := ic.itemService.ModifyItem(c, ictx, itemID, &req)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteItem endpoint
func (ic *ItemController) DeleteItem(c *gin.Context) {
	itemID := c.Param("id")
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	if err := ic.itemService.DeleteItem(c, ictx, itemID); err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetItem endpoint
func (ic *ItemController) GetItem(c *gin.Context) {
	itemID := c.Param("id")
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	item, err := ic.itemService.GetItem(c, ictx, itemID)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// ListItems endpoint
func (ic *ItemController) ListItems(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}
	pageNumber, pageSize, err := helper_util.GetPageParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	filter := &model.ItemFilter{
		Kind:            model.ItemKind(c.Query("kind")),
		WithSubOwnPaths: c.Query("with_sub") == "true",
	}
	page, err := ic.itemService.PaginateItems(c, ictx, filter, pageNumber, pageSize)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// SearchItems endpoint
func (ic *ItemController) SearchItems(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	filter := &model.ItemFilter{
		Kind:            model.ItemKind(c.Query("kind")),
		Name:            c.Query("name"),
		Code:            c.Query("code"),
		WithSubOwnPaths: c.Query("with_sub") == "true",
		DescByCreate:    c.Query("sort") == "create_desc",
		DescByUpdate:    c.Query("sort") == "update_desc",
	}
	if disabled := c.Query("disabled"); disabled != "" {
		v := disabled == "true"
		filter.Disabled = &v
	}

	items, err := ic.itemService.FindItems(c, ictx, filter)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}
