package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/kdimtricp/crackscan/internal/detection"
)

// ErrInferenceStatus marks a non-200 answer from the model server.
var ErrInferenceStatus = errors.New("inference server returned an error status")

// RemoteClient talks to a model server exposing /detect, /classify and
// /health. It implements both Detector and Classifier.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type wireDetection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
}

type detectResponse struct {
	Detections []wireDetection `json:"detections"`
}

type classifyResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

// Detect sends img as PNG and converts the corner boxes the server returns
// into regions.
func (c *RemoteClient) Detect(ctx context.Context, img image.Image) ([]detection.Detection, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := c.postImage(ctx, "/detect", data, &resp); err != nil {
		return nil, errors.Wrap(err, "detect")
	}

	return lo.Map(resp.Detections, func(d wireDetection, _ int) detection.Detection {
		return detection.Detection{
			Region:     detection.FromCorners(d.X1, d.Y1, d.X2, d.Y2),
			Confidence: d.Confidence,
			Class:      d.Class,
		}
	}), nil
}

// Classify sends the 227x227 grayscale rendition of img and picks the most
// likely orientation.
func (c *RemoteClient) Classify(ctx context.Context, img image.Image) (Classification, error) {
	data, err := encodePNG(ClassifierInput(img))
	if err != nil {
		return Classification{}, err
	}

	var resp classifyResponse
	if err := c.postImage(ctx, "/classify", data, &resp); err != nil {
		return Classification{}, errors.Wrap(err, "classify")
	}
	return FromProbabilities(resp.Probabilities)
}

// CheckHealth returns nil when the model server answers /health with 200.
func (c *RemoteClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrInferenceStatus, "health status %d", resp.StatusCode)
	}
	return nil
}

func (c *RemoteClient) postImage(ctx context.Context, path string, data []byte, out interface{}) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.png")
	if err != nil {
		return errors.Wrap(err, "create form file")
	}
	if _, err := part.Write(data); err != nil {
		return errors.Wrap(err, "write image data")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrap(ErrInferenceStatus, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
