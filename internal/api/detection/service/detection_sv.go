package detectionService

import (
	"DetectionGateway/internal/api/detection"
	"DetectionGateway/internal/entity"
	"DetectionGateway/pkg/log"
	"DetectionGateway/pkg/staging"
	"DetectionGateway/pkg/utils"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
)

func (s *detectionService) DetectUpload(ctx context.Context, file *multipart.FileHeader) (*entity.DetectionResult, error) {
	if err := s.utils.ValidateImageFile(file); err != nil {
		return nil, uploadError(err)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	return s.detect(ctx, src, staging.Meta{
		Filename: file.Filename,
		MimeType: file.Header.Get("Content-Type"),
	})
}

func (s *detectionService) DetectImage(ctx context.Context, data []byte) (*entity.DetectionResult, error) {
	mimeType, err := s.utils.DetectImageType(data)
	if err != nil {
		return nil, uploadError(err)
	}

	return s.detect(ctx, bytes.NewReader(data), staging.Meta{MimeType: mimeType})
}

func (s *detectionService) DetectBase64(ctx context.Context, encoded string) (*entity.DetectionResult, error) {
	data, mimeType, err := s.utils.DecodeBase64Image(encoded)
	if err != nil {
		return nil, uploadError(err)
	}

	return s.detect(ctx, bytes.NewReader(data), staging.Meta{MimeType: mimeType})
}

func (s *detectionService) Readiness() entity.ReadinessReport {
	return s.prober.Probe()
}

func (s *detectionService) ModelInfo() entity.ModelMetadata {
	return entity.TrashModel()
}

// detect owns the staged file for its whole lifetime: it is released when
// this call returns, whatever the outcome, panics included.
func (s *detectionService) detect(ctx context.Context, src io.Reader, meta staging.Meta) (*entity.DetectionResult, error) {
	upload, err := s.staging.Stage(src, meta)
	if err != nil {
		return nil, uploadError(err)
	}
	defer s.release(ctx, upload)

	if cached := s.cachedResult(ctx, upload.Digest); cached != nil {
		return cached, nil
	}

	output, err := s.invoker.Run(ctx, upload.Path)
	if err != nil {
		return nil, err
	}

	result, err := s.decoder.Decode(output)
	if err != nil {
		return nil, err
	}

	s.storeResult(ctx, upload.Digest, result)

	return result, nil
}

func (s *detectionService) release(ctx context.Context, upload *staging.Upload) {
	if err := upload.Release(); err != nil {
		log.WithRequestID(s.log, ctx).WithFields(log.Fields{
			"staging_path": upload.Path,
			"error":        err.Error(),
		}).Error("Failed to remove staging file")
	}
}

func (s *detectionService) cachedResult(ctx context.Context, digest string) *entity.DetectionResult {
	if s.cache == nil {
		return nil
	}

	result, err := s.cache.GetResult(ctx, digest)
	if err != nil {
		log.WithRequestID(s.log, ctx).WithField("error", err.Error()).Warn("Result cache lookup failed")
		return nil
	}
	if result != nil {
		log.WithRequestID(s.log, ctx).WithField("digest", digest).Debug("Serving detection from cache")
	}

	return result
}

func (s *detectionService) storeResult(ctx context.Context, digest string, result *entity.DetectionResult) {
	if s.cache == nil {
		return
	}

	if err := s.cache.SetResult(ctx, digest, result); err != nil {
		log.WithRequestID(s.log, ctx).WithField("error", err.Error()).Warn("Result cache store failed")
	}
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, utils.ErrNoFile):
		return detection.ErrNoImageFile
	case errors.Is(err, utils.ErrFileTooLarge), errors.Is(err, staging.ErrTooLarge):
		return detection.ErrFileTooLarge
	case errors.Is(err, utils.ErrNotAnImage):
		return detection.ErrInvalidFileType
	case errors.Is(err, utils.ErrInvalidBase64):
		return detection.ErrInvalidImageData
	default:
		return err
	}
}
