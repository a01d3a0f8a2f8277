package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryanwahyu/safety-inspector/internal/application"
	domai "github.com/bryanwahyu/safety-inspector/internal/domain/ai"
	"github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

const (
	// FailureScore is the compliance score of a degraded result.
	FailureScore = 50
	// ManualInspection is the only recommendation of a degraded result.
	ManualInspection = "수동 점검이 필요합니다."

	DefaultTimeout    = 30 * time.Second
	DefaultBatchDelay = time.Second
)

type Options struct {
	Parser        *inspections.Parser
	Clock         application.Clock
	Timeout       time.Duration // per external call; <0 disables
	BatchDelay    time.Duration // between live calls in AnalyzeBatch
	DefaultPrompt string        // used when a work item carries no prompt
	Logger        *slog.Logger
}

// Service invokes the vision capability for one image at a time and never
// returns an error: every failure becomes a degraded AnalysisResult.
//
// With a nil client the service runs in demo mode for its whole lifetime and
// answers from a canned table.
type Service struct {
	client        domai.VisionClient
	images        domai.ImageLoader
	parser        *inspections.Parser
	clock         application.Clock
	timeout       time.Duration
	delay         time.Duration
	defaultPrompt string
	demo          bool
	logger        *slog.Logger
}

func NewService(client domai.VisionClient, images domai.ImageLoader, opts Options) *Service {
	s := &Service{
		client:        client,
		images:        images,
		clock:         opts.Clock,
		timeout:       opts.Timeout,
		delay:         opts.BatchDelay,
		defaultPrompt: opts.DefaultPrompt,
		demo:          client == nil,
		logger:        opts.Logger,
	}
	if s.clock == nil {
		s.clock = application.SystemClock{}
	}
	if s.timeout == 0 {
		s.timeout = DefaultTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	parser := opts.Parser
	if parser == nil {
		parser = inspections.NewDefaultParser()
	}
	s.parser = parser.WithClock(s.clock.Now)
	if s.demo {
		s.logger.Warn("vision client not configured, running in demo mode")
	}
	return s
}

// DemoMode reports whether canned results are returned.
func (s *Service) DemoMode() bool { return s.demo }

// Analyze evaluates one image against prompt for itemLabel.
func (s *Service) Analyze(ctx context.Context, imageRef, prompt, itemLabel string) (res inspections.AnalysisResult) {
	if s.demo {
		return s.demoAnalysis(itemLabel)
	}

	defer func() {
		if r := recover(); r != nil {
			res = s.failed(itemLabel, fmt.Errorf("panic during analysis: %v", r))
		}
	}()

	raw, err := s.analyzeLive(ctx, imageRef, prompt)
	if err != nil {
		s.logger.Error("image analysis failed", "item", itemLabel, "image", imageRef, "err", err)
		return s.failed(itemLabel, err)
	}
	return s.parser.Parse(raw, itemLabel)
}

func (s *Service) analyzeLive(ctx context.Context, imageRef, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if s.images == nil {
		return "", fmt.Errorf("no image loader configured")
	}

	data, err := s.images.Load(ctx, imageRef)
	if err != nil {
		return "", fmt.Errorf("load image %s: %w", imageRef, err)
	}
	if prompt == "" {
		prompt = s.defaultPrompt
	}
	dataURL := "data:" + domai.MimeType(imageRef) + ";base64," + base64.StdEncoding.EncodeToString(data)

	raw, err := s.client.Analyze(ctx, prompt, dataURL)
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (s *Service) failed(itemLabel string, err error) inspections.AnalysisResult {
	return inspections.AnalysisResult{
		ComplianceScore: FailureScore,
		IssuesFound:     []string{fmt.Sprintf("%s 분석 중 오류 발생: %v", itemLabel, err)},
		Recommendations: []string{ManualInspection},
		AIAnalysis:      "분석 오류: " + err.Error(),
		AnalysisTime:    s.clock.Now(),
		ItemAnalyzed:    itemLabel,
		Error:           true,
		ErrorMessage:    err.Error(),
	}
}

// AnalyzeBatch analyzes items strictly in order. In live mode it waits the
// configured delay between calls to stay under the provider's rate limit.
func (s *Service) AnalyzeBatch(ctx context.Context, items []inspections.WorkItem) []inspections.ItemResult {
	out := make([]inspections.ItemResult, 0, len(items))
	for i, it := range items {
		if i > 0 && !s.demo && s.delay > 0 {
			t := time.NewTimer(s.delay)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
		s.logger.Info("analyzing item", "item", it.ItemName, "index", i+1, "total", len(items))
		res := s.Analyze(ctx, it.ImagePath, it.Prompt, it.ItemName)
		out = append(out, inspections.ItemResult{
			ItemID:         it.ItemID,
			ItemName:       it.ItemName,
			ImagePath:      it.ImagePath,
			AnalysisResult: res,
		})
	}
	return out
}
