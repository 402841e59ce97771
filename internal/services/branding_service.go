package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"maclink/internal/apperrors"
	"maclink/internal/models"
)

const (
	AssetLogo  = "logo"
	AssetFlyer = "flyer"

	maxAssetSize = 5 << 20
)

var allowedAssetTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

type AssetUpload struct {
	Kind        string
	Alt         string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BrandingService stores a business's logo and flyer.
type BrandingService interface {
	UploadAsset(ctx context.Context, business *models.Business, upload AssetUpload) (*models.Business, error)
}

type brandingService struct {
	store      ObjectStore
	businesses BusinessService
	logger     *zap.Logger
}

func NewBrandingService(store ObjectStore, businesses BusinessService, logger *zap.Logger) BrandingService {
	return &brandingService{store: store, businesses: businesses, logger: logger}
}

func (s *brandingService) UploadAsset(ctx context.Context, business *models.Business, upload AssetUpload) (*models.Business, error) {
	if upload.Kind != AssetLogo && upload.Kind != AssetFlyer {
		return nil, apperrors.Field("asset", "Asset must be one of: logo, flyer")
	}
	ext, ok := allowedAssetTypes[upload.ContentType]
	if !ok {
		return nil, apperrors.Field("file", "File must be a PNG, JPEG, WebP or SVG image")
	}
	if upload.Size <= 0 || upload.Size > maxAssetSize {
		return nil, apperrors.BadRequest("File must be smaller than 5MB", http.StatusRequestEntityTooLarge, nil)
	}

	objectName := path.Join("businesses", business.ID.Hex(), upload.Kind+"-"+uuid.NewString()+ext)
	url, err := s.store.Upload(ctx, objectName, upload.Body, upload.Size, upload.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", upload.Kind, err)
	}

	alt := strings.TrimSpace(upload.Alt)
	if alt == "" {
		alt = business.Name + " " + upload.Kind
	}
	updated, err := s.businesses.UpdateOneByFilter(ctx, bson.M{"_id": business.ID},
		bson.M{"branding." + upload.Kind: models.Asset{URL: url, Alt: alt}}, nil, nil)
	if err != nil {
		if delErr := s.store.Delete(ctx, objectName); delErr != nil {
			s.logger.Warn("orphaned branding asset", zap.String("object", objectName), zap.Error(delErr))
		}
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NotFound("Business")
	}
	return updated, nil
}
