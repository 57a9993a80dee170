package service

import (
	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/biz"
	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/types"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/errors"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/response"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnalysisService handles HTTP requests for competitor analysis
type AnalysisService struct {
	pipeline *biz.Pipeline
	hub      *sse.Hub
	log      *logger.Logger
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(pipeline *biz.Pipeline, hub *sse.Hub, log *logger.Logger) *AnalysisService {
	return &AnalysisService{
		pipeline: pipeline,
		hub:      hub,
		log:      log,
	}
}

// RegisterRoutes registers analysis routes
func (s *AnalysisService) RegisterRoutes(r *gin.RouterGroup) {
	analysis := r.Group("/analysis")
	{
		analysis.POST("", s.Analyze)
		analysis.GET("/stream", s.AnalyzeStream)
	}
}

// Analyze runs a full analysis synchronously
// @Summary Run competitor analysis
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body types.AnalysisRequest true "Analysis Request"
// @Success 200 {object} types.AnalysisResult
// @Router /api/v1/analysis [post]
func (s *AnalysisService) Analyze(c *gin.Context) {
	var req types.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.HandleError(c, errors.NewValidationError(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(c, err)
		return
	}

	result, err := s.pipeline.Run(c.Request.Context(), &req, nil)
	if err != nil {
		s.log.Error("analysis failed",
			zap.String("product", req.ProductName),
			zap.Error(err))
		response.HandleError(c, err)
		return
	}

	response.Success(c, result)
}

// AnalyzeStream runs an analysis and streams progress over SSE.
// The stream carries `progress` events followed by a terminal `result` or
// `error` event; the connection closes after the terminal event. A client
// disconnect cancels the running analysis.
// @Summary Run competitor analysis with progress streaming
// @Tags analysis
// @Produce text/event-stream
// @Param domain query string false "Product domain"
// @Param features query string false "Feature description"
// @Param product_name query string true "Product name"
// @Router /api/v1/analysis/stream [get]
func (s *AnalysisService) AnalyzeStream(c *gin.Context) {
	req := types.AnalysisRequest{
		Domain:      c.Query("domain"),
		Features:    c.Query("features"),
		ProductName: c.Query("product_name"),
	}
	if err := req.Validate(); err != nil {
		response.HandleError(c, err)
		return
	}

	runID := uuid.New().String()
	log := s.log.With(zap.String("run_id", runID), zap.String("product", req.ProductName))

	stream := sse.NewStream(c, s.hub).
		WithResource(runID).
		OnError(func(err error) {
			log.Warn("stream delivery error", zap.Error(err))
		}).
		Build()

	go func() {
		defer stream.Close()

		ctx := c.Request.Context()
		result, err := s.pipeline.Run(ctx, &req, func(e types.ProgressEvent) {
			_ = stream.Send("progress", e)
		})
		// the terminal event must not be dropped on a backed-up buffer
		if err != nil {
			log.Error("streamed analysis failed", zap.Error(err))
			if sendErr := stream.SendBlocking(ctx, "error", gin.H{
				"code":    errors.ExtractCode(err),
				"message": errors.FormatError(errors.ExtractCode(err), errors.GetDetails(err)),
			}); sendErr != nil {
				log.Warn("terminal error event not delivered", zap.Error(sendErr))
			}
			return
		}
		if sendErr := stream.SendBlocking(ctx, "result", result); sendErr != nil {
			log.Warn("terminal result event not delivered", zap.Error(sendErr))
		}
	}()

	stream.StartStreaming()
}
