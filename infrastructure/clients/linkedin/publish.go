package linkedin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"autopost/domain/dto"
	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/infrastructure/logger"
)

// externalIDSources is the precedence used to read the created post URN:
// the JSON body id first, then the Rest.li id header, then the legacy header.
var externalIDSources = []func(body dto.LinkedInPostResponse, h http.Header) string{
	func(body dto.LinkedInPostResponse, _ http.Header) string { return body.ID },
	func(_ dto.LinkedInPostResponse, h http.Header) string { return h.Get("x-restli-id") },
	func(_ dto.LinkedInPostResponse, h http.Header) string { return h.Get("x-linkedin-id") },
}

func extractExternalID(body dto.LinkedInPostResponse, h http.Header) string {
	for _, source := range externalIDSources {
		if id := strings.TrimSpace(source(body, h)); id != "" {
			return id
		}
	}
	return ""
}

// Publish uploads every image, then creates the post referencing them and
// returns the post URN. Any failing step fails the whole publish.
func (c *Client) Publish(ctx context.Context, text string, images []string, creds model.Credentials) (string, error) {
	if creds.AccountURN == "" || creds.Token == nil || creds.Token.AccessToken == "" {
		return "", errs.NewPublishError("publish", errs.ErrAuth, 0, fmt.Errorf("missing credentials"))
	}

	assets := make([]string, 0, len(images))
	for i, src := range images {
		asset, err := c.uploadImage(ctx, src, creds)
		if err != nil {
			logger.GetLogger().
				WithField("image_index", i).
				WithField("kind", errs.KindOf(err)).
				WithField("error", err).
				Warn("linkedin image upload failed")
			return "", err
		}
		assets = append(assets, asset)
	}

	body := dto.LinkedInPostRequest{
		Author:     creds.AccountURN,
		Commentary: text,
		Visibility: "PUBLIC",
		Distribution: dto.LinkedInDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		Content:        postContent(assets),
		LifecycleState: "PUBLISHED",
	}

	var out dto.LinkedInPostResponse
	resp, err := c.doJSON(ctx, request{
		op:       "create post",
		method:   http.MethodPost,
		url:      c.baseURL + "/rest/posts",
		creds:    &creds,
		platform: true,
	}, body, &out)
	if err != nil {
		return "", err
	}

	id := extractExternalID(out, resp.header)
	if id == "" {
		return "", errs.NewPublishError("create post", errs.ErrValidation, resp.status, fmt.Errorf("response carries no post id"))
	}
	return id, nil
}

func postContent(assets []string) *dto.LinkedInPostContent {
	switch len(assets) {
	case 0:
		return nil
	case 1:
		return &dto.LinkedInPostContent{Media: &dto.LinkedInMedia{ID: assets[0]}}
	default:
		imgs := make([]dto.LinkedInMedia, 0, len(assets))
		for _, a := range assets {
			imgs = append(imgs, dto.LinkedInMedia{ID: a})
		}
		return &dto.LinkedInPostContent{MultiImage: &dto.LinkedInMultiImage{Images: imgs}}
	}
}

// uploadImage registers an image asset, downloads the source and PUTs it
// to the upload URL. Returns the image URN.
func (c *Client) uploadImage(ctx context.Context, src string, creds model.Credentials) (string, error) {
	var init dto.LinkedInInitializeUploadResponse
	_, err := c.doJSON(ctx, request{
		op:       "initialize image upload",
		method:   http.MethodPost,
		url:      c.baseURL + "/rest/images?action=initializeUpload",
		creds:    &creds,
		platform: true,
	}, dto.LinkedInInitializeUploadRequest{
		InitializeUploadRequest: dto.LinkedInUploadOwner{Owner: creds.AccountURN},
	}, &init)
	if err != nil {
		return "", err
	}
	if init.Value.UploadURL == "" || init.Value.Image == "" {
		return "", errs.NewPublishError("initialize image upload", errs.ErrTransientNetwork, 0, fmt.Errorf("upload url or image urn missing"))
	}

	img, err := c.do(ctx, request{op: "download image", method: http.MethodGet, url: src})
	if err != nil {
		// A source we cannot fetch is bad media unless the host itself is failing.
		var pe *errs.PublishError
		if errors.As(err, &pe) && pe.Kind == errs.ErrAuth {
			pe.Kind = errs.ErrValidation
		}
		return "", err
	}
	contentType := img.header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := c.do(ctx, request{
		op:          "upload image",
		method:      http.MethodPut,
		url:         init.Value.UploadURL,
		body:        img.body,
		contentType: contentType,
		creds:       &creds,
	}); err != nil {
		return "", err
	}
	return init.Value.Image, nil
}
