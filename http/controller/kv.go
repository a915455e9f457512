package controller

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-kv-orchestrator/http/controller/dto"
	"github.com/tnqbao/gau-kv-orchestrator/infra"
	"github.com/tnqbao/gau-kv-orchestrator/utils"
	"gorm.io/datatypes"
)

// Read-side passthroughs to the remote store, for inspecting collections
// before and after bulk jobs.

func (ctrl *Controller) ListCollections(c *gin.Context) {
	ctx := c.Request.Context()

	collections, err := ctrl.Infra.KVStore.ListCollections(ctx)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[KV] Failed to list collections: %v", err)
		utils.JSON500(c, "Failed to list collections")
		return
	}
	utils.JSON200(c, gin.H{"collections": collections})
}

func (ctrl *Controller) ListKeys(c *gin.Context) {
	ctx := c.Request.Context()
	collectionID := c.Param("collection_id")

	page, err := ctrl.Infra.KVStore.ListKeys(ctx, collectionID, c.Query("prefix"), c.Query("cursor"))
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[KV] Failed to list keys in %s: %v", collectionID, err)
		utils.JSON500(c, "Failed to list keys")
		return
	}
	utils.JSON200(c, page)
}

func (ctrl *Controller) GetValue(c *gin.Context) {
	ctx := c.Request.Context()
	collectionID := c.Param("collection_id")
	key := c.Param("key")

	value, err := ctrl.Infra.KVStore.GetValue(ctx, collectionID, key)
	if err != nil {
		if errors.Is(err, infra.ErrKeyNotFound) {
			utils.JSON404(c, "Key not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[KV] Failed to get %s/%s: %v", collectionID, key, err)
		utils.JSON500(c, "Failed to get value")
		return
	}

	response := gin.H{"key": key, "value": value}
	if record, err := ctrl.Repository.KVMetadataRepo.FindByKey(collectionID, key); err == nil && record != nil {
		response["tags"] = record.Tags
		response["custom_metadata"] = record.CustomMetadata
	}
	utils.JSON200(c, response)
}

func (ctrl *Controller) PutValue(c *gin.Context) {
	ctx := c.Request.Context()
	collectionID := c.Param("collection_id")
	key := c.Param("key")

	var req dto.PutValueRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[KV] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	opts := &infra.WriteOptions{
		TTLSeconds: req.TTLSeconds,
		Expiration: req.Expiration,
		Metadata:   req.InlineMetadata,
	}
	if err := ctrl.Infra.KVStore.PutValue(ctx, collectionID, key, req.Value, opts); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[KV] Failed to put %s/%s: %v", collectionID, key, err)
		utils.JSON500(c, "Failed to put value")
		return
	}

	if len(req.Tags) > 0 || len(req.CustomMetadata) > 0 {
		tags, err := json.Marshal(req.Tags)
		if err != nil {
			utils.JSON400(c, "Invalid tags")
			return
		}
		if err := ctrl.Repository.KVMetadataRepo.Upsert(collectionID, key, tags, datatypes.JSON(req.CustomMetadata)); err != nil {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[KV] Failed to upsert side metadata for %s/%s: %v", collectionID, key, err)
		}
	}

	utils.JSON200(c, gin.H{"key": key, "message": "Value stored"})
}

func (ctrl *Controller) DeleteValue(c *gin.Context) {
	ctx := c.Request.Context()
	collectionID := c.Param("collection_id")
	key := c.Param("key")

	if err := ctrl.Infra.KVStore.DeleteValue(ctx, collectionID, key); err != nil {
		if errors.Is(err, infra.ErrKeyNotFound) {
			utils.JSON404(c, "Key not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[KV] Failed to delete %s/%s: %v", collectionID, key, err)
		utils.JSON500(c, "Failed to delete value")
		return
	}

	if err := ctrl.Repository.KVMetadataRepo.DeleteByKeys(collectionID, []string{key}); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[KV] Failed to drop side metadata for %s/%s: %v", collectionID, key, err)
	}
	utils.JSON200(c, gin.H{"message": "Key deleted"})
}

func (ctrl *Controller) ListAuditLogs(c *gin.Context) {
	ctx := c.Request.Context()
	collectionID := c.Param("collection_id")

	limit := 100
	if val := c.Query("limit"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := ctrl.Repository.AuditLogRepo.ListByCollection(collectionID, limit)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[KV] Failed to list audit logs for %s: %v", collectionID, err)
		utils.JSON500(c, "Failed to list audit logs")
		return
	}
	utils.JSON200(c, gin.H{"audit_logs": records})
}

func (ctrl *Controller) ListArchiveArtifacts(c *gin.Context) {
	ctx := c.Request.Context()
	collectionID := c.Param("collection_id")

	entries, err := ctrl.Infra.Minio.ListArtifacts(ctx, collectionID)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[KV] Failed to list archive artifacts for %s: %v", collectionID, err)
		utils.JSON500(c, "Failed to list archive artifacts")
		return
	}
	utils.JSON200(c, gin.H{"artifacts": entries})
}

func (ctrl *Controller) GetArchiveUsage(c *gin.Context) {
	ctx := c.Request.Context()

	usage, err := ctrl.Infra.Minio.Usage(ctx)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[KV] Failed to fetch archive usage: %v", err)
		utils.JSON500(c, "Failed to fetch archive usage")
		return
	}
	utils.JSON200(c, usage)
}
