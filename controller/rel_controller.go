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

type RelController struct {
	relService service.IRelService
}

func NewRelController(relService service.IRelService) *RelController {
	return &RelController{
		relService: relService,
	}
}

// RegisterRoutes registers the API routes for relations
func (rc *RelController) RegisterRoutes(r *gin.RouterGroup) {
	rels := r.Group("/rels")
	{
		rels.POST("", rc.CreateRel)
		rels.DELETE("/:tag", rc.DeleteRel)
		rels.GET("/:tag/exists", rc.CheckRel)
		rels.GET("/:tag/from/:id", rc.ListFromRels)
		rels.GET("/:tag/to/:id", rc.ListToRels)
		rels.GET("/:tag/from/:id/bones", rc.ListFromBones)
		rels.GET("/:tag/to/:id/bones", rc.ListToBones)
		rels.GET("/:tag/from/:id/page", rc.PaginateFromIDs)
		rels.GET("/:tag/to/:id/page", rc.PaginateToIDs)
		rels.GET("/:tag/from/:id/count", rc.CountFrom)
		rels.GET("/:tag/to/:id/count", rc.CountTo)
	}
}

// CreateRel endpoint
func (rc *RelController) CreateRel(c *gin.Context) {
	var req model.RelAddReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid relation data", cordon_errors.ErrInvalidRelData)
		return
	}
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	id, err := rc.relService.AddRel(c, ictx, &req)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// DeleteRel endpoint
func (rc *RelController) DeleteRel(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	tag := model.RelTag(c.Param("tag"))
	fromID, toID := c.Query("from_id"), c.Query("to_id")
	if fromID == "" || toID == "" {
		util.RespondWithError(c, http.StatusBadRequest, "from_id and to_id are required", cordon_errors.ErrInvalidRelData)
		return
	}
	if err := rc.relService.DeleteRel(c, ictx, tag, fromID, toID); err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListFromRels endpoint
func (rc *RelController) ListFromRels(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	rels, err := rc.relService.FindFromRels(c, ictx, model.RelTag(c.Param("tag")), c.Param("id"))
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, rels)
}

// ListToRels endpoint
func (rc *RelController) ListToRels(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	rels, err := rc.relService.FindToRels(c, ictx, model.RelTag(c.Param("tag")), c.Param("id"))
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, rels)
}

// ListFromBones endpoint
func (rc *RelController) ListFromBones(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	bones, err := rc.relService.FindFromBones(c, ictx, model.RelTag(c.Param("tag")), c.Param("id"), c.Query("with_sub") == "true")
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, bones)
}

// ListToBones endpoint
func (rc *RelController) ListToBones(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	bones, err := rc.relService.FindToBones(c, ictx, model.RelTag(c.Param("tag")), c.Param("id"))
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, bones)
}

// PaginateFromIDs endpoint
func (rc *RelController) PaginateFromIDs(c *gin.Context) {
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

	page, err := rc.relService.PaginateFromIDs(c, ictx, model.RelTag(c.Param("tag")), c.Param("id"), c.Query("with_sub") == "true", pageNumber, pageSize)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// PaginateToIDs endpoint
func (rc *RelController) PaginateToIDs(c *gin.Context) {
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

	page, err := rc.relService.PaginateToIDs(c, ictx, model.RelTag(c.Param("tag")), c.Param("id"), pageNumber, pageSize)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// CountFrom endpoint
func (rc *RelController) CountFrom(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	count, err := rc.relService.CountFrom(c, ictx, model.RelTag(c.Param("tag")), c.Param("id"), c.Query("with_sub") == "true")
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// CountTo endpoint
func (rc *RelController) CountTo(c *gin.Context) {
	ictx, ok := util.GetIdentity(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	count, err := rc.relService.CountTo(c, ictx, model.RelTag(c.Param("tag")), c.Param("id"))
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// CheckRel endpoint
func (rc *RelController) CheckRel(c *gin.Context) {
	if _, ok := util.GetIdentity(c); !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", cordon_errors.ErrUnauthorized)
		return
	}

	fromID, toID := c.Query("from_id"), c.Query("to_id")
	if fromID == "" || toID == "" {
		util.RespondWithError(c, http.StatusBadRequest, "from_id and to_id are required", cordon_errors.ErrInvalidRelData)
		return
	}
	exists, err := rc.relService.ExistsRel(c, model.RelTag(c.Param("tag")), fromID, toID)
	if err != nil {
		util.RespondWithKernelError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exists": exists})
}
