package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.replicate.com"

	// Versioned training procedure all jobs are submitted against. Pinned so
	// that a trainer upgrade is an explicit config change, not a surprise.
	DefaultTrainerVersion = "ostris/flux-dev-lora-trainer/versions/26dce37af90b9d997eeb970d92e47de3064d46c300504ae376c75bef6a9022d2"

	DefaultHardware = "gpu-t4"
)

// ErrModelExists is returned by CreateModel when the remote model name is
// already taken. Callers treat this as non-fatal and reuse the model.
var ErrModelExists = errors.New("remote model already exists")

// Hyperparameters for a training job. These are fixed constants per
// deployment, never derived from the submitted batch.
type Hyperparameters struct {
	Steps              int     `json:"steps"`
	LearningRate       float64 `json:"learning_rate"`
	BatchSize          int     `json:"batch_size"`
	LoraRank           int     `json:"lora_rank"`
	Resolution         string  `json:"resolution"`
	Optimizer          string  `json:"optimizer"`
	CaptionDropoutRate float64 `json:"caption_dropout_rate"`
}

func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Steps:              1200,
		LearningRate:       1e-4,
		BatchSize:          1,
		LoraRank:           32,
		Resolution:         "1024",
		Optimizer:          "adamw8bit",
		CaptionDropoutRate: 0.05,
	}
}

type Config struct {
	BaseURL        string
	APIToken       string
	ModelOwner     string
	TrainerVersion string
	Hardware       string

	Hyperparameters Hyperparameters
}

type Client struct {
	http *resty.Client
	cfg  Config
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TrainerVersion == "" {
		cfg.TrainerVersion = DefaultTrainerVersion
	}
	if cfg.Hardware == "" {
		cfg.Hardware = DefaultHardware
	}
	if cfg.Hyperparameters == (Hyperparameters{}) {
		cfg.Hyperparameters = DefaultHyperparameters()
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthScheme("Bearer").
		SetAuthToken(cfg.APIToken).
		SetHeader("Content-Type", "application/json")

	return &Client{http: client, cfg: cfg}
}

func (c *Client) Hyperparameters() Hyperparameters {
	return c.cfg.Hyperparameters
}

// CreateModel provisions a private remote model to receive the trained
// weights. Returns ErrModelExists if the name is already taken.
func (c *Client) CreateModel(ctx context.Context, name string) error {
	body := map[string]any{
		"owner":       c.cfg.ModelOwner,
		"name":        name,
		"description": fmt.Sprintf("Personalized selfie model %s", name),
		"visibility":  "private",
		"hardware":    c.cfg.Hardware,
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v1/models")
	if err != nil {
		return fmt.Errorf("create model request failed: %w", err)
	}

	if res.IsSuccess() {
		slog.Info("created remote model", "model", name)
		return nil
	}

	// Conflict means the model already exists, which is expected on
	// retraining. The API has returned both codes for this historically.
	if res.StatusCode() == http.StatusConflict || res.StatusCode() == http.StatusUnprocessableEntity {
		return ErrModelExists
	}

	return fmt.Errorf("create model %s failed (%d): %s", name, res.StatusCode(), res.String())
}

type Training struct {
	Id     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type trainingInput struct {
	InputImages string `json:"input_images"`
	TriggerWord string `json:"trigger_word"`
	Hyperparameters
}

// SubmitTraining starts a training job against the pinned trainer version,
// pointing at the uploaded image archive. Returns the remote job id.
func (c *Client) SubmitTraining(ctx context.Context, modelName, archiveURL, triggerWord string) (string, error) {
	body := map[string]any{
		"input": trainingInput{
			InputImages:     archiveURL,
			TriggerWord:     triggerWord,
			Hyperparameters: c.cfg.Hyperparameters,
		},
		"destination": fmt.Sprintf("%s/%s", c.cfg.ModelOwner, modelName),
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/v1/models/%s/trainings", c.cfg.TrainerVersion))
	if err != nil {
		return "", fmt.Errorf("submit training request failed: %w", err)
	}

	if !res.IsSuccess() {
		// The remote error body is surfaced verbatim for diagnosis.
		return "", fmt.Errorf("submit training failed (%d): %s", res.StatusCode(), res.String())
	}

	var training Training
	if err := json.Unmarshal(res.Body(), &training); err != nil {
		return "", fmt.Errorf("error parsing training response: %w", err)
	}

	if training.Id == "" {
		return "", fmt.Errorf("training response missing job id: %s", res.String())
	}

	slog.Info("training job submitted", "training_id", training.Id, "model", modelName)

	return training.Id, nil
}

// GetTraining fetches the current state of a training job.
func (c *Client) GetTraining(ctx context.Context, trainingId string) (Training, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get("/v1/trainings/" + trainingId)
	if err != nil {
		return Training{}, fmt.Errorf("get training request failed: %w", err)
	}

	if !res.IsSuccess() {
		return Training{}, fmt.Errorf("get training %s failed (%d): %s", trainingId, res.StatusCode(), res.String())
	}

	var training Training
	if err := json.Unmarshal(res.Body(), &training); err != nil {
		return Training{}, fmt.Errorf("error parsing training response: %w", err)
	}

	return training, nil
}
