package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-jsonrender/internal/config"
	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

// Worker consumes render requests from a Redis stream
type Worker struct {
	id            string
	config        *config.Config
	redisClient   *redis.Client
	executor      *render.Executor
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
	streamKey     string
	consumerGroup string
	resultStream  string
}

// NewWorker creates a new worker
func NewWorker(
	cfg *config.Config,
	redisClient *redis.Client,
	executor *render.Executor,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		executor:      executor,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		streamKey:     cfg.Stream.Key,
		consumerGroup: cfg.Stream.ConsumerGroup,
		resultStream:  cfg.Stream.Results,
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting render worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	// Create consumer group if it doesn't exist
	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	go w.processWork()

	w.logger.Info("render worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker and waits for the in-flight request to finish
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("stopping render worker", zap.String("worker_id", w.id))

	w.cancel()

	select {
	case <-w.done:
	case <-ctx.Done():
		return fmt.Errorf("worker did not stop in time: %w", ctx.Err())
	}

	w.logger.Info("render worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork reads render requests until the worker is stopped
func (w *Worker) processWork() {
	defer close(w.done)
	w.logger.Info("starting work processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
			streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
				Group:    w.consumerGroup,
				Consumer: w.id,
				Streams:  []string{w.streamKey, ">"},
				Count:    1,
				Block:    w.config.Stream.BlockTime,
			}).Result()

			if err != nil {
				if err == redis.Nil || errors.Is(err, context.Canceled) {
					continue
				}
				w.logger.Error("failed to read from stream",
					zap.Error(err),
				)
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					w.handleMessage(message)
				}
			}
		}
	}
}

// handleMessage renders one stream entry and publishes its outcome. Entries
// are acknowledged whatever happens; a request that cannot be parsed has no
// request ID to report against.
func (w *Worker) handleMessage(message redis.XMessage) {
	logger := w.logger.With(zap.String("message_id", message.ID))
	defer w.acknowledgeMessage(message.ID)

	request, err := parseRenderRequest(message.Values)
	if err != nil {
		logger.Error("dropping malformed render request", zap.Error(err))
		return
	}
	logger = logger.With(zap.String("request_id", request.RequestID))

	started := time.Now()
	output, err := w.Render(w.ctx, request)
	result := &RenderResult{
		RequestID:  request.RequestID,
		Output:     output,
		DurationMS: time.Since(started).Milliseconds(),
		Timestamp:  started.UTC(),
	}

	stream := w.resultStream
	if err != nil {
		logger.Warn("render failed", zap.Error(err))
		result.Output = nil
		result.Error = err.Error()
		result.Kind = errorKind(err)
		stream = w.errorStream()
	}

	if err := w.publish(stream, result); err != nil {
		logger.Error("failed to publish render result", zap.String("stream", stream), zap.Error(err))
		return
	}
	logger.Debug("published render result",
		zap.String("stream", stream),
		zap.Int64("duration_ms", result.DurationMS),
	)
}

// RenderRequest is the JSON document carried in a work entry's "data" field
type RenderRequest struct {
	RequestID    string      `json:"request_id"`
	Template     string      `json:"template,omitempty"`
	TemplateName string      `json:"template_name,omitempty"`
	Context      interface{} `json:"context"`
}

// RenderResult is published to the result stream on success and to the error
// stream on failure
type RenderResult struct {
	RequestID  string      `json:"request_id"`
	Output     interface{} `json:"output,omitempty"`
	Error      string      `json:"error,omitempty"`
	Kind       string      `json:"kind,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	Timestamp  time.Time   `json:"timestamp"`
}

func parseRenderRequest(values map[string]interface{}) (*RenderRequest, error) {
	raw, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var request RenderRequest
	if err := json.Unmarshal([]byte(raw), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render request: %w", err)
	}

	if request.Template == "" && request.TemplateName == "" {
		return nil, fmt.Errorf("request needs either 'template' or 'template_name'")
	}

	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}

	return &request, nil
}

// Render runs a request's template against its context within the configured
// timeout. A template_name refers to a registered partial.
func (w *Worker) Render(ctx context.Context, request *RenderRequest) (interface{}, error) {
	source := request.Template
	if request.TemplateName != "" {
		var ok bool
		source, ok = w.executor.Environment().Partial(request.TemplateName)
		if !ok {
			return nil, &render.UnknownPartialError{Name: request.TemplateName}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, w.config.Render.Timeout)
	defer cancel()

	return w.executor.Run(ctx, source, request.Context)
}

func (w *Worker) errorStream() string {
	return w.resultStream + ".errors"
}

// publish appends result to stream as a JSON "data" field
func (w *Worker) publish(stream string, result *RenderResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return w.redisClient.XAdd(w.ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
}

// errorKind classifies a render error for consumers of the error stream
func errorKind(err error) string {
	var (
		unknownHelper  *render.UnknownHelperError
		unknownPartial *render.UnknownPartialError
		recursion      *render.RecursionLimitError
		shape          *render.ContentShapeConflictError
	)

	switch {
	case errors.As(err, &unknownHelper):
		return "unknown_helper"
	case errors.As(err, &unknownPartial):
		return "unknown_partial"
	case errors.As(err, &recursion):
		return "recursion_limit"
	case errors.As(err, &shape):
		return "content_shape_conflict"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "template_error"
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(messageID string) {
	err := w.redisClient.XAck(w.ctx, w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
