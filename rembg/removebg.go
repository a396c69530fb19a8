package rembg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/chaos-io/rmbg/util"
	nhttp "github.com/chaos-io/rmbg/util/http"
)

const DefaultRemoveBGEndpoint = "https://api.remove.bg/v1.0/removebg"

type RemoveBGConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// RemoveBGRemover 代理到 remove.bg 接口
type RemoveBGRemover struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	cli      nhttp.IClient
}

func NewRemoveBGRemover(cfg RemoveBGConfig, cli nhttp.IClient) (*RemoveBGRemover, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("remove.bg api key is empty")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRemoveBGEndpoint
	}
	if cli == nil {
		cli = nhttp.NewHTTPClient()
	}

	return &RemoveBGRemover{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		cli:      cli,
	}, nil
}

func (r *RemoveBGRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	defer util.Trace("remove.bg remove")()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image_file", "input.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode form file: %w", err)
	}
	err = errors.Join(
		writer.WriteField("size", "auto"),
		writer.WriteField("format", "png"),
		writer.Close(),
	)
	if err != nil {
		return nil, fmt.Errorf("write form fields: %w", err)
	}

	var raw []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.endpoint,
		Method:     http.MethodPost,
		Header: map[string]string{
			"Content-Type": writer.FormDataContentType(),
			"X-Api-Key":    r.apiKey,
		},
		Body:     body,
		Response: &raw,
		Timeout:  r.timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	out, err := util.DecodeImageBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode remove.bg output: %w", err)
	}

	return ApplyMask(img, ExtractMask(out)), nil
}
