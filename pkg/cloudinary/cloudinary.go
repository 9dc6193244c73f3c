package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// ProofFolder is where manual payment screenshots are stored.
const ProofFolder = "stkpay/manual-payments"

// Optimized delivery params for proof screenshots
const (
	ImageWidth = 1080
	proofEager = "q_auto,f_auto,w_1080,c_limit"
)

var eagerAsyncFalse = false

// Client uploads payment proof screenshots.
type Client struct {
	cloudName string
	folder    string
	uploader  *uploader.API
}

// BuildOptimizedImageURL returns a Cloudinary URL with transformations for optimized delivery.
func BuildOptimizedImageURL(cloudName, publicID string, width int) string {
	if width <= 0 {
		width = ImageWidth
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,c_limit/%s",
		cloudName, width, publicID)
}

// UploadProof uploads a screenshot under publicID, overwriting a previous upload for the same payment.
func (c *Client) UploadProof(ctx context.Context, file io.Reader, publicID string) (string, error) {
	overwrite := true
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     c.folder,
		PublicID:   publicID,
		Overwrite:  &overwrite,
		Eager:      proofEager,
		EagerAsync: &eagerAsyncFalse,
	})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", errors.New(result.Error.Message)
	}
	if len(result.Eager) > 0 && result.Eager[0].SecureURL != "" {
		return result.Eager[0].SecureURL, nil
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	return BuildOptimizedImageURL(c.cloudName, result.PublicID, ImageWidth), nil
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (*Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		cloudName: cloudName,
		folder:    ProofFolder,
		uploader:  up,
	}, nil
}
