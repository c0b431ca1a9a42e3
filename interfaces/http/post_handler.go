package http

import (
	"errors"
	"io"
	"net/http"

	"autopost/domain/dto"
	"autopost/domain/errs"
	"autopost/infrastructure/logger"
	"autopost/usecase"

	"github.com/gin-gonic/gin"
)

type IPostHandler interface {
	Get(ctx *gin.Context)
	PublishNow(ctx *gin.Context)
	Retry(ctx *gin.Context)
	Engagement(ctx *gin.Context)
	Sweep(ctx *gin.Context)
}

type PostHandler struct {
	postUsecase usecase.IPostUsecase
}

func NewPostHandler(uc usecase.IPostUsecase) IPostHandler {
	return &PostHandler{postUsecase: uc}
}

// statusOf maps domain errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrClaimLost):
		return http.StatusConflict
	case errors.Is(err, errs.ErrOwnerNotEligible), errors.Is(err, errs.ErrPlanLimit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *PostHandler) fail(ctx *gin.Context, err error) {
	status := statusOf(err)
	lg := logger.GetLogger().
		WithField("post_id", ctx.Param("postId")).
		WithField("user_id", ctx.GetString("user_id")).
		WithField("status", status).
		WithError(err)
	if status >= http.StatusInternalServerError {
		lg.Error("post request failed")
	} else {
		lg.Warn("post request rejected")
	}
	ctx.JSON(status, dto.Res{ResponseCode: http.StatusText(status), ResponseMessage: err.Error()})
}

func (h *PostHandler) Get(ctx *gin.Context) {
	p, err := h.postUsecase.Get(ctx.Request.Context(), ctx.GetString("user_id"), ctx.Param("postId"))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewPostStatusResponse(p))
}

func (h *PostHandler) PublishNow(ctx *gin.Context) {
	p, err := h.postUsecase.PublishNow(ctx.Request.Context(), ctx.GetString("user_id"), ctx.Param("postId"))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewPostStatusResponse(p))
}

func (h *PostHandler) Retry(ctx *gin.Context) {
	var req dto.RetryPostRequest
	// An empty body retries right away.
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, dto.Res{ResponseCode: "400", ResponseMessage: "invalid request body"})
		return
	}
	p, err := h.postUsecase.Retry(ctx.Request.Context(), ctx.GetString("user_id"), ctx.Param("postId"), req.ScheduledAt)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewPostStatusResponse(p))
}

func (h *PostHandler) Engagement(ctx *gin.Context) {
	eng, err := h.postUsecase.Engagement(ctx.Request.Context(), ctx.GetString("user_id"), ctx.Param("postId"))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, eng)
}

func (h *PostHandler) Sweep(ctx *gin.Context) {
	res, err := h.postUsecase.Sweep(ctx.Request.Context())
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.SweepResponse{
		Found:      res.Found,
		Posted:     res.Posted,
		Failed:     res.Failed,
		Ineligible: res.Ineligible,
		Skipped:    res.Skipped,
		Errors:     res.Errors,
	})
}
