package controller

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"github.com/tnqbao/gau-kv-orchestrator/http/controller/dto"
	"github.com/tnqbao/gau-kv-orchestrator/orchestrator"
	"github.com/tnqbao/gau-kv-orchestrator/utils"
	"gorm.io/gorm"
)

func (ctrl *Controller) SubmitJob(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString("user_id")
	if userID == "" {
		utils.JSON401(c, "Unauthorized: user_id not found")
		return
	}

	var req dto.SubmitJobRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	job, err := ctrl.Orchestrator.Submit(ctx, orchestrator.SubmitRequest{
		OperationKind: entity.OperationKind(req.OperationKind),
		CollectionID:  req.CollectionID,
		Owner:         userID,
		Params:        req.Params,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrJobAlreadyActive) {
			utils.JSON409(c, err.Error())
			return
		}
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Job] Rejected %s submission: %v", req.OperationKind, err)
		utils.JSON400(c, err.Error())
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Job] Accepted %s job %s for user_id: %s",
		job.OperationKind, job.ID, userID)
	utils.JSON202(c, dto.ToJobResponse(job))
}

func (ctrl *Controller) GetJob(c *gin.Context) {
	job, ok := ctrl.ownedJob(c)
	if !ok {
		return
	}
	utils.JSON200(c, dto.ToJobResponse(job))
}

func (ctrl *Controller) ListJobs(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString("user_id")
	if userID == "" {
		utils.JSON401(c, "Unauthorized: user_id not found")
		return
	}

	jobs, err := ctrl.Repository.JobRepo.FindByOwner(userID, 100)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to list jobs: %v", err)
		utils.JSON500(c, "Failed to list jobs")
		return
	}

	responses := make([]dto.JobResponseDTO, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, dto.ToJobResponse(&jobs[i]))
	}
	utils.JSON200(c, gin.H{"jobs": responses})
}

func (ctrl *Controller) GetJobEvents(c *gin.Context) {
	ctx := c.Request.Context()
	job, ok := ctrl.ownedJob(c)
	if !ok {
		return
	}

	events, err := ctrl.Repository.JobEventRepo.ListByJobID(job.ID)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to list events for %s: %v", job.ID, err)
		utils.JSON500(c, "Failed to list job events")
		return
	}

	utils.JSON200(c, gin.H{
		"job_id": job.ID,
		"events": dto.ToJobEventResponses(events),
	})
}

// DownloadExport streams a finished export artifact. The artifact is
// consumed by the download: a second request finds nothing.
func (ctrl *Controller) DownloadExport(c *gin.Context) {
	ctx := c.Request.Context()
	job, ok := ctrl.ownedJob(c)
	if !ok {
		return
	}

	data, format, err := ctrl.Orchestrator.TakeExportArtifact(ctx, job)
	if err != nil {
		if errors.Is(err, orchestrator.ErrArtifactNotFound) {
			utils.JSON404(c, "Export artifact not found: already downloaded or expired")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to fetch export artifact for %s: %v", job.ID, err)
		utils.JSON400(c, err.Error())
		return
	}

	contentType := "application/json"
	extension := "json"
	if format == orchestrator.FormatNDJSON {
		contentType = "application/x-ndjson"
		extension = "ndjson"
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Job] Serving export artifact for %s (%d bytes)", job.ID, len(data))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", job.ID, extension))
	c.Data(200, contentType, data)
}

func (ctrl *Controller) CancelJob(c *gin.Context) {
	utils.JSON400(c, orchestrator.ErrCancelUnsupported.Error())
}

// ownedJob loads the job from the path parameter and enforces that the
// caller owns it. Another owner's job id answers 404, not 403, so job ids
// stay unguessable.
func (ctrl *Controller) ownedJob(c *gin.Context) (*entity.Job, bool) {
	ctx := c.Request.Context()
	userID := c.GetString("user_id")
	if userID == "" {
		utils.JSON401(c, "Unauthorized: user_id not found")
		return nil, false
	}

	jobID := c.Param("id")
	job, err := ctrl.Repository.JobRepo.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.JSON404(c, "Job not found")
			return nil, false
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to load job %s: %v", jobID, err)
		utils.JSON500(c, "Failed to load job")
		return nil, false
	}

	if job.Owner != userID {
		utils.JSON404(c, "Job not found")
		return nil, false
	}
	return job, true
}
