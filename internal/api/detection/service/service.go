package detectionService

import (
	"DetectionGateway/internal/entity"
	"DetectionGateway/pkg/invoker"
	"DetectionGateway/pkg/readiness"
	"DetectionGateway/pkg/redis"
	"DetectionGateway/pkg/staging"
	"DetectionGateway/pkg/utils"
	"context"
	"mime/multipart"

	"github.com/sirupsen/logrus"
)

type IDetectionService interface {
	DetectUpload(ctx context.Context, file *multipart.FileHeader) (*entity.DetectionResult, error)
	DetectImage(ctx context.Context, data []byte) (*entity.DetectionResult, error)
	DetectBase64(ctx context.Context, encoded string) (*entity.DetectionResult, error)
	Readiness() entity.ReadinessReport
	ModelInfo() entity.ModelMetadata
}

type detectionService struct {
	log     *logrus.Logger
	utils   utils.IUtils
	staging staging.IStaging
	invoker invoker.IInvoker
	decoder IResultDecoder
	prober  readiness.IProber
	cache   redis.IRedis
}

// NewDetectionService wires the pipeline. cache may be nil.
func NewDetectionService(
	log *logrus.Logger,
	utils utils.IUtils,
	staging staging.IStaging,
	invoker invoker.IInvoker,
	decoder IResultDecoder,
	prober readiness.IProber,
	cache redis.IRedis,
) IDetectionService {
	return &detectionService{
		log:     log,
		utils:   utils,
		staging: staging,
		invoker: invoker,
		decoder: decoder,
		prober:  prober,
		cache:   cache,
	}
}
