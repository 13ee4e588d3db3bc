package gstorage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var ErrObjectNotExist = storage.ErrObjectNotExist

var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImageStore keeps nudge target images in a GCS bucket. The object URL
// it hands back is what ends up in the target's image_uri column.
type ImageStore struct {
	storageClient *storage.Client
	bucket        string
	prefix        string
}

func NewImageStore(credentialsFilePath, bucket, prefix string) (*ImageStore, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(context.Background(), option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(context.Background())
	}

	if err != nil {
		return nil, fmt.Errorf("NewImageStore: %v", err)
	}

	return &ImageStore{storageClient: client, bucket: bucket, prefix: prefix}, nil
}

// UploadImage stores the image for a target & returns its public URL.
// Re-uploading for the same target overwrites the previous image.
func (store *ImageStore) UploadImage(ctx context.Context, targetID, contentType string, r io.Reader) (string, error) {
	extension, ok := contentTypeExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported image content type %q", contentType)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*50)
	defer cancel()

	objectName := store.objectName(targetID, extension)
	wc := store.storageClient.Bucket(store.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, r); err != nil {
		return "", fmt.Errorf("io.Copy: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %v", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%v/%v", store.bucket, objectName), nil
}

// DeleteImage removes the stored image for a target; missing objects
// are fine, e.g. a target that never had one.
func (store *ImageStore) DeleteImage(ctx context.Context, targetID string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*50)
	defer cancel()

	for _, extension := range contentTypeExtensions {
		objectName := store.objectName(targetID, extension)
		err := store.storageClient.Bucket(store.bucket).Object(objectName).Delete(ctx)
		if err != nil && err != storage.ErrObjectNotExist {
			return fmt.Errorf("Object(%q).Delete: %v", objectName, err)
		}
	}

	return nil
}

func (store *ImageStore) objectName(targetID, extension string) string {
	return path.Join(store.prefix, "nudge-targets", targetID+extension)
}
