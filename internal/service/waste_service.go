package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbonduro/ilmigreen/internal/detect"
	"github.com/vbonduro/ilmigreen/internal/domain"
	"github.com/vbonduro/ilmigreen/internal/photostore"
)

var ErrDetectionNotFound = errors.New("detection not found")

// detectionRepository is the subset of store.DetectionStore that WasteService requires.
type detectionRepository interface {
	Create(ctx context.Context, d *domain.Detection) (*domain.Detection, error)
	GetByID(ctx context.Context, id int64) (*domain.Detection, error)
	List(ctx context.Context, category domain.Category, limit int) ([]*domain.Detection, error)
	Delete(ctx context.Context, id int64) error
}

type WasteService struct {
	detections detectionRepository
	detector   detect.Detector
	photoStg   photostore.PhotoStore
	logger     *slog.Logger
}

func NewWasteService(
	detections detectionRepository,
	detector detect.Detector,
	photoStg photostore.PhotoStore,
	logger *slog.Logger,
) *WasteService {
	return &WasteService{
		detections: detections,
		detector:   detector,
		photoStg:   photoStg,
		logger:     logger,
	}
}

// DetectImage classifies the photo, stores it, and records the detection.
// Nothing is stored when classification fails.
func (s *WasteService) DetectImage(ctx context.Context, imageData []byte, mimeType string) (*domain.Detection, error) {
	s.logger.Info("image detection started", "mime_type", mimeType, "bytes", len(imageData))

	result, err := s.detector.Detect(ctx, detect.Input{
		Kind:      domain.InputImage,
		ImageData: imageData,
		MimeType:  mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to classify image: %w", err)
	}
	s.logger.Info("image classified", "category", result.Category)

	storageKey, err := s.photoStg.Save(ctx, "detection", mimeType, bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}
	s.logger.Debug("photo saved", "storage_key", storageKey)

	detection, err := s.detections.Create(ctx, &domain.Detection{
		Kind:        domain.InputImage,
		StorageKey:  storageKey,
		MimeType:    mimeType,
		Category:    result.Category,
		Explanation: result.Explanation,
		Tips:        result.Tips,
	})
	if err != nil {
		if stgErr := s.photoStg.Delete(ctx, storageKey); stgErr != nil {
			s.logger.Error("failed to roll back photo file", "storage_key", storageKey, "error", stgErr)
		}
		return nil, fmt.Errorf("failed to record detection: %w", err)
	}

	return detection, nil
}

// DetectText classifies a free-text description of a waste item.
func (s *WasteService) DetectText(ctx context.Context, text string) (*domain.Detection, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, detect.ErrEmptyInput
	}
	s.logger.Info("text detection started", "chars", len(text))

	result, err := s.detector.Detect(ctx, detect.Input{Kind: domain.InputText, Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to classify text: %w", err)
	}
	s.logger.Info("text classified", "category", result.Category)

	detection, err := s.detections.Create(ctx, &domain.Detection{
		Kind:        domain.InputText,
		InputText:   text,
		Category:    result.Category,
		Explanation: result.Explanation,
		Tips:        result.Tips,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record detection: %w", err)
	}

	return detection, nil
}

func (s *WasteService) ListDetections(ctx context.Context, category domain.Category, limit int) ([]*domain.Detection, error) {
	return s.detections.List(ctx, category, limit)
}

func (s *WasteService) GetDetection(ctx context.Context, id int64) (*domain.Detection, error) {
	d, err := s.detections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDetectionNotFound
	}
	return d, nil
}

// DeleteDetection removes the record and its stored photo, if any. A photo
// that cannot be removed is logged rather than returned.
func (s *WasteService) DeleteDetection(ctx context.Context, id int64) error {
	d, err := s.GetDetection(ctx, id)
	if err != nil {
		return err
	}

	if err := s.detections.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete detection: %w", err)
	}

	if d.StorageKey != "" {
		if err := s.photoStg.Delete(ctx, d.StorageKey); err != nil {
			s.logger.Error("failed to delete photo file", "storage_key", d.StorageKey, "error", err)
		}
	}
	return nil
}
