package translation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/campus-assist/backend/internal/metrics"
	"github.com/campus-assist/backend/pkg/logger"
	"github.com/campus-assist/backend/pkg/utils"
)

var ErrTimeout = errors.New("translation timed out")

type Config struct {
	Workers       int
	DetectTimeout time.Duration
	Timeout       time.Duration
	Cache         Cache
	CacheTTL      time.Duration
}

// Service bounds every backend call by a small worker pool and a wall-clock
// timeout. A call that times out keeps running in the background; the caller
// gets the default value right away.
type Service struct {
	backend       Backend
	sem           *semaphore.Weighted
	detectTimeout time.Duration
	timeout       time.Duration
	cache         Cache
	cacheTTL      time.Duration
}

func NewService(backend Backend, cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	return &Service{
		backend:       backend,
		sem:           semaphore.NewWeighted(int64(cfg.Workers)),
		detectTimeout: cfg.DetectTimeout,
		timeout:       cfg.Timeout,
		cache:         cfg.Cache,
		cacheTTL:      cfg.CacheTTL,
	}
}

// Detect returns the language code of text, or "en" when detection fails,
// times out, or is inconclusive.
func (s *Service) Detect(ctx context.Context, text string) string {
	key := "detect:" + utils.CacheKey(text)

	var cached Translation
	if s.lookup(ctx, key, &cached) && cached.SourceLang != "" {
		return cached.SourceLang
	}

	var lang string
	err := s.run(ctx, "detect", s.detectTimeout, func(ctx context.Context) error {
		var err error
		lang, err = s.backend.Detect(ctx, text)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			logger.Warn("Language detection timed out", zap.Duration("timeout", s.detectTimeout))
		} else {
			logger.Error("Language detection failed", zap.Error(err))
		}
		return English
	}

	if lang == "" || lang == "auto" {
		return English
	}

	s.store(ctx, key, &Translation{SourceLang: lang})
	return lang
}

// ToEnglish translates text into English. An empty sourceLang is detected
// first; "en" is returned unchanged without calling the backend.
func (s *Service) ToEnglish(ctx context.Context, text, sourceLang string) string {
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = s.Detect(ctx, text)
	}
	if sourceLang == English {
		return text
	}

	tr, err := s.translate(ctx, text, sourceLang, English)
	if err != nil {
		s.logFailure("Translation to English failed", err, sourceLang, English)
		return text
	}
	return tr.Text
}

// FromEnglish translates an English answer into targetLang. Hindi and Marwari
// come back romanized when the backend supplies a pronunciation, otherwise in
// native script.
func (s *Service) FromEnglish(ctx context.Context, text, targetLang string) string {
	if targetLang == "" || targetLang == English {
		return text
	}

	if IsRomanized(targetLang) {
		tr, err := s.translate(ctx, text, English, "hi")
		if err != nil {
			s.logFailure("Translation from English failed", err, English, targetLang)
			return text
		}
		if tr.Pronunciation != "" {
			return tr.Pronunciation
		}
		return tr.Text
	}

	tr, err := s.translate(ctx, text, English, targetLang)
	if err != nil {
		s.logFailure("Translation from English failed", err, English, targetLang)
		return text
	}
	return tr.Text
}

func (s *Service) translate(ctx context.Context, text, src, dest string) (*Translation, error) {
	key := "translate:" + utils.CacheKey(src, dest, text)

	var cached Translation
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	var tr *Translation
	err := s.run(ctx, "translate", s.timeout, func(ctx context.Context) error {
		var err error
		tr, err = s.backend.Translate(ctx, text, src, dest)
		return err
	})
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, errors.New("translate returned no result")
	}

	s.store(ctx, key, tr)
	return tr, nil
}

// run executes fn on the worker pool and waits at most timeout, including
// time spent queued for a worker. fn is detached from ctx cancellation.
func (s *Service) run(ctx context.Context, op string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	done := make(chan error, 1)
	bg := context.WithoutCancel(ctx)

	go func() {
		if err := s.sem.Acquire(bg, 1); err != nil {
			done <- err
			return
		}
		defer s.sem.Release(1)
		done <- fn(bg)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		err = ErrTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	metrics.UpstreamDuration.WithLabelValues("translate").Observe(time.Since(start).Seconds())
	metrics.UpstreamCalls.WithLabelValues("translate", outcome(err)).Inc()

	logger.Debug("Translation call finished",
		zap.String("op", op),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)

	return err
}

func (s *Service) lookup(ctx context.Context, key string, dest *Translation) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		logger.Warn("Translation cache read failed", zap.Error(err))
		return false
	}
	return found
}

func (s *Service) store(ctx context.Context, key string, tr *Translation) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, tr, s.cacheTTL); err != nil {
		logger.Warn("Translation cache write failed", zap.Error(err))
	}
}

func (s *Service) logFailure(msg string, err error, src, dest string) {
	fields := []zap.Field{
		zap.String("src", src),
		zap.String("dest", dest),
	}
	if errors.Is(err, ErrTimeout) {
		logger.Warn(msg+": timed out", append(fields, zap.Duration("timeout", s.timeout))...)
		return
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
