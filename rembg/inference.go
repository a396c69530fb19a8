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
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/rmbg/util"
	nhttp "github.com/chaos-io/rmbg/util/http"
)

const (
	DefaultModel     = "briaai/RMBG-1.4"
	DefaultInputSize = 1024
)

type InferenceConfig struct {
	Endpoint  string
	Model     string
	Device    string
	InputSize int
	Timeout   time.Duration
}

// InferenceRemover 调用远程分割模型服务
//
// 请求为 multipart: image(PNG), model, device；
// 响应为 PNG，灰度图直接作为掩码，其余取 alpha 通道。
// 掩码按原图尺寸还原后写回原图，输出尺寸与输入一致。
type InferenceRemover struct {
	endpoint  string
	model     string
	device    string
	inputSize int
	timeout   time.Duration
	cli       nhttp.IClient
}

func NewInferenceRemover(cfg InferenceConfig, cli nhttp.IClient) (*InferenceRemover, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse inference endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("inference endpoint must be http(s), got %q", cfg.Endpoint)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cli == nil {
		cli = nhttp.NewHTTPClient()
	}

	return &InferenceRemover{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		device:    cfg.Device,
		inputSize: cfg.InputSize,
		timeout:   cfg.Timeout,
		cli:       cli,
	}, nil
}

func (r *InferenceRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	defer util.Trace("inference remove")()

	input := resizeInput(img, r.inputSize)

	body, contentType, err := r.buildForm(input)
	if err != nil {
		return nil, err
	}

	var raw []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.endpoint,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": contentType},
		Body:       body,
		Response:   &raw,
		Timeout:    r.timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	util.Logger.Debug("get the inference response",
		zap.String("model", r.model),
		zap.Int("bytes", len(raw)))

	out, err := util.DecodeImageBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode inference output: %w", err)
	}

	return ApplyMask(img, ExtractMask(out)), nil
}

func (r *InferenceRemover) buildForm(img image.Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// image 文件字段
	part, err := writer.CreateFormFile("image", "input.png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, "", fmt.Errorf("encode form file: %w", err)
	}

	// 其他字段
	err = errors.Join(
		writer.WriteField("model", r.model),
		writer.WriteField("device", r.device),
		writer.Close(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("write form fields: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
