package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/logging"
	sc "github.com/dmitrijs2005/buildingkeeper/internal/server/config"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/repomanager"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in, optFns...)
	}
)

// BuildingUpload is returned by Create: the pending record and one
// presigned PUT per file.
type BuildingUpload struct {
	Building *models.Building
	GML      models.UploadTask
	Texture  models.UploadTask
}

// BuildingView is a building with presigned GET URLs, set once the
// upload completed.
type BuildingView struct {
	Building   *models.Building
	GMLURL     string
	TextureURL string
}

// BuildingService manages the building catalog. File contents never pass
// through the server: clients upload to and download from object storage
// with presigned URLs.
type BuildingService struct {
	repomanager repomanager.RepositoryManager
	tx          dbx.Transactor
	config      *sc.Config
	logger      logging.Logger
}

func NewBuildingService(m repomanager.RepositoryManager, config *sc.Config, logger logging.Logger) *BuildingService {
	return &BuildingService{
		repomanager: m,
		tx:          m.Transactor(),
		config:      config,
		logger:      logger.With("module", "services.buildings"),
	}
}

// GetRandomStorageKey returns a fresh object-key prefix for one building.
func GetRandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("buildings/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *BuildingService) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

func (s *BuildingService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}
	return newS3PresignClient(client), nil
}

func (s *BuildingService) presignPut(ctx context.Context, pc *s3.PresignClient, key string) (string, error) {
	bucket := s.config.S3Bucket
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *BuildingService) presignGet(ctx context.Context, pc *s3.PresignClient, key string) (string, error) {
	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Create registers a pending building owned by ownerID and returns upload
// URLs for its CityGML model and texture.
func (s *BuildingService) Create(ctx context.Context, ownerID, name string) (*BuildingUpload, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: building name is required", common.ErrorValidation)
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	prefix := GetRandomStorageKey()
	b := &models.Building{
		ID:           uuid.NewString(),
		Name:         name,
		OwnerID:      ownerID,
		GMLKey:       prefix + "/model.gml",
		TextureKey:   prefix + "/texture.tif",
		UploadStatus: models.UploadStatusPending,
	}

	gmlURL, err := s.presignPut(ctx, pc, b.GMLKey)
	if err != nil {
		return nil, fmt.Errorf("%w: presign gml: %w", common.ErrorInternal, err)
	}
	textureURL, err := s.presignPut(ctx, pc, b.TextureKey)
	if err != nil {
		return nil, fmt.Errorf("%w: presign texture: %w", common.ErrorInternal, err)
	}

	if err := s.repomanager.Buildings(s.tx.Conn()).Create(ctx, b); err != nil {
		return nil, storeErr(err)
	}

	return &BuildingUpload{
		Building: b,
		GML:      models.UploadTask{Key: b.GMLKey, URL: gmlURL},
		Texture:  models.UploadTask{Key: b.TextureKey, URL: textureURL},
	}, nil
}

// MarkUploaded moves a pending building to completed.
func (s *BuildingService) MarkUploaded(ctx context.Context, id string) error {
	if err := s.repomanager.Buildings(s.tx.Conn()).MarkUploaded(ctx, id); err != nil {
		return storeErr(err)
	}
	return nil
}

// List returns the catalog, newest first.
func (s *BuildingService) List(ctx context.Context) ([]*models.Building, error) {
	list, err := s.repomanager.Buildings(s.tx.Conn()).List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

// Get returns one building; download URLs are only set for completed uploads.
func (s *BuildingService) Get(ctx context.Context, id string) (*BuildingView, error) {
	b, err := s.repomanager.Buildings(s.tx.Conn()).Get(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}

	view := &BuildingView{Building: b}
	if b.UploadStatus != models.UploadStatusCompleted {
		return view, nil
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if view.GMLURL, err = s.presignGet(ctx, pc, b.GMLKey); err != nil {
		return nil, fmt.Errorf("%w: presign gml: %w", common.ErrorInternal, err)
	}
	if view.TextureURL, err = s.presignGet(ctx, pc, b.TextureKey); err != nil {
		return nil, fmt.Errorf("%w: presign texture: %w", common.ErrorInternal, err)
	}
	return view, nil
}

// Delete removes the record, then its objects. Objects that cannot be
// removed are logged and left behind.
func (s *BuildingService) Delete(ctx context.Context, id string) error {
	repo := s.repomanager.Buildings(s.tx.Conn())
	b, err := repo.Get(ctx, id)
	if err != nil {
		return storeErr(err)
	}
	if err := repo.Delete(ctx, id); err != nil {
		return storeErr(err)
	}

	client, err := s.getClient(ctx)
	if err != nil {
		s.logger.Warn(ctx, "object storage unavailable, building files left behind", "building_id", id, "error", err)
		return nil
	}
	bucket := s.config.S3Bucket
	for _, key := range []string{b.GMLKey, b.TextureKey} {
		if _, err := deleteObject(client, ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: aws.String(key)}); err != nil {
			s.logger.Warn(ctx, "failed to delete building object", "building_id", id, "key", key, "error", err)
		}
	}
	return nil
}
