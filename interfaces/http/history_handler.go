package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"my-history/domain/dto"
	"my-history/domain/model"
	"my-history/infrastructure/filecsv"
	"my-history/infrastructure/logger"
	"my-history/usecase"
)

type IHistoryHandler interface {
	SyncHistory(ctx *gin.Context)
	ListHistory(ctx *gin.Context)
	ExportHistory(ctx *gin.Context)
	DeleteHistory(ctx *gin.Context)
	GetProviders(ctx *gin.Context)
	Healthz(ctx *gin.Context)
}

type HistoryHandler struct {
	syncUsecase usecase.ISyncUsecase
}

func NewHistoryHandler(syncUsecase usecase.ISyncUsecase) IHistoryHandler {
	return &HistoryHandler{syncUsecase: syncUsecase}
}

// SyncHistory triggers a sync of all enabled providers, or a single one
// when ?platform= is given.
func (h *HistoryHandler) SyncHistory(ctx *gin.Context) {
	platform := ctx.Query("platform")
	summary, err := h.syncUsecase.SyncHistory(ctx.Request.Context(), platform)
	if err != nil {
		var notFound *model.ProviderNotFoundError
		if errors.As(err, &notFound) {
			ctx.JSON(http.StatusNotFound, dto.Res{ResponseCode: "404", ResponseMessage: err.Error()})
			return
		}
		logger.GetLogger().WithField("error", err).Error("Sync request failed")
		ctx.JSON(http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: "sync failed"})
		return
	}
	ctx.JSON(http.StatusOK, dto.Res{ResponseCode: "00", ResponseMessage: "Success", Data: summary})
}

func (h *HistoryHandler) ListHistory(ctx *gin.Context) {
	var req dto.HistoryListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.Res{ResponseCode: "400", ResponseMessage: "invalid query parameters"})
		return
	}
	res, err := h.syncUsecase.ListHistory(ctx.Request.Context(), &req)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("History listing failed")
		ctx.JSON(http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: "listing failed"})
		return
	}
	ctx.JSON(http.StatusOK, dto.Res{ResponseCode: "00", ResponseMessage: "Success", Data: res})
}

// ExportHistory streams the filtered history as a CSV download.
func (h *HistoryHandler) ExportHistory(ctx *gin.Context) {
	var req dto.HistoryListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.Res{ResponseCode: "400", ResponseMessage: "invalid query parameters"})
		return
	}
	recs, err := h.syncUsecase.ExportHistory(ctx.Request.Context(), &req)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("History export failed")
		ctx.JSON(http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: "export failed"})
		return
	}
	ctx.Header("Content-Type", "text/csv")
	ctx.Header("Content-Disposition", `attachment; filename="history.csv"`)
	ctx.Status(http.StatusOK)
	if err := filecsv.WriteHistory(ctx.Writer, recs); err != nil {
		logger.GetLogger().WithField("error", err).Error("History export write failed")
	}
}

// DeleteHistory removes a record remotely best-effort, then locally.
func (h *HistoryHandler) DeleteHistory(ctx *gin.Context) {
	platform := ctx.Param("platform")
	id := ctx.Param("id")
	business := ctx.Query("business")
	if platform == "" || id == "" {
		ctx.JSON(http.StatusBadRequest, dto.Res{ResponseCode: "400", ResponseMessage: "platform and id required"})
		return
	}
	remoteOK, err := h.syncUsecase.DeleteHistory(ctx.Request.Context(), platform, id, business)
	if err != nil {
		logger.GetLogger().WithField("platform", platform).WithField("id", id).WithField("error", err).Error("Delete failed")
		ctx.JSON(http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: "delete failed"})
		return
	}
	ctx.JSON(http.StatusOK, dto.Res{ResponseCode: "00", ResponseMessage: "Success", Data: gin.H{"remote_deleted": remoteOK}})
}

func (h *HistoryHandler) GetProviders(ctx *gin.Context) {
	providers := h.syncUsecase.GetEnabledProviders()
	out := make([]gin.H, 0, len(providers))
	for name, p := range providers {
		out = append(out, gin.H{"name": name, "platform": p.Platform()})
	}
	ctx.JSON(http.StatusOK, dto.Res{ResponseCode: "00", ResponseMessage: "Success", Data: out})
}

// Healthz returns OK for health checks
func (h *HistoryHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
