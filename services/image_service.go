package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/autofix-app/autofix-api/utils"
)

// workshopPhotoPrefix is the S3 key prefix for workshop gallery photos
const workshopPhotoPrefix = "uploads/workshops"

// ImageService handles workshop photo upload, retrieval and deletion
type ImageService interface {
	// UploadImage validates and uploads an image file, returns the storage key
	UploadImage(ctx context.Context, fileHeader *multipart.FileHeader) (string, error)

	// GetImageURL generates a URL for accessing an uploaded image
	GetImageURL(ctx context.Context, imageKey string) (string, error)

	// DeleteImage removes an image from storage
	DeleteImage(ctx context.Context, imageKey string) error
}

// S3ImageService implements ImageService using AWS S3 for storage
type S3ImageService struct {
	s3Service S3Interface
}

// LocalImageService implements ImageService on the local upload directory
type LocalImageService struct {
	dir string
}

var imageServiceInstance ImageService

// InitImageService initializes the image service with S3 backend
func InitImageService(s3Service S3Interface) ImageService {
	imageServiceInstance = &S3ImageService{
		s3Service: s3Service,
	}
	return imageServiceInstance
}

// InitLocalImageService initializes the image service on a local directory
func InitLocalImageService(dir string) ImageService {
	imageServiceInstance = &LocalImageService{dir: dir}
	return imageServiceInstance
}

// GetImageService returns the initialized image service instance
func GetImageService() ImageService {
	return imageServiceInstance
}

// SetImageService sets the image service instance (primarily for testing)
func SetImageService(service ImageService) {
	imageServiceInstance = service
}

// UploadImage validates and uploads an image file to S3
func (s *S3ImageService) UploadImage(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	s3Key, err := s.s3Service.UploadFile(ctx, fileHeader, workshopPhotoPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return s3Key, nil
}

// GetImageURL generates a presigned URL for accessing an image
func (s *S3ImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	url, err := s.s3Service.GetPresignedURL(ctx, imageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}

	return url, nil
}

// DeleteImage deletes an image from S3
func (s *S3ImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}

	if err := s.s3Service.DeleteFile(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	return nil
}

// UploadImage validates and saves an image file to disk
func (s *LocalImageService) UploadImage(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	filename, err := utils.SaveUploadedFile(fileHeader, s.dir)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return filename, nil
}

// GetImageURL returns the API path serving the file
func (s *LocalImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	return utils.GetImageURL(imageKey), nil
}

// DeleteImage removes the file from disk
func (s *LocalImageService) DeleteImage(ctx context.Context, imageKey string) error {
	return utils.RemoveUploadedFile(imageKey, s.dir)
}

// ResolveImageURLs maps storage keys to URLs, skipping keys that fail to resolve
func ResolveImageURLs(ctx context.Context, svc ImageService, keys []string) []string {
	urls := make([]string, 0, len(keys))
	if svc == nil {
		return urls
	}
	for _, key := range keys {
		url, err := svc.GetImageURL(ctx, key)
		if err != nil || url == "" {
			continue
		}
		urls = append(urls, url)
	}
	return urls
}
