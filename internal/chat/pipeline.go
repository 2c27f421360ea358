// Package chat runs a question through language resolution, translation, the
// model and persistence. Process never fails: downstream errors become a
// degraded answer carrying a typed Failure.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-assist/backend/internal/llm"
	"github.com/campus-assist/backend/internal/metrics"
	"github.com/campus-assist/backend/internal/storage/models"
	"github.com/campus-assist/backend/internal/translation"
	"github.com/campus-assist/backend/pkg/circuitbreaker"
	"github.com/campus-assist/backend/pkg/logger"
)

const (
	BranchEnglish   = "english"
	BranchTranslate = "translate"
	BranchRomanized = "romanized"

	ErrorConfidence = 0.0
)

type FailureKind string

const (
	FailureConfiguration FailureKind = "configuration"
	FailureUpstream      FailureKind = "upstream"
	FailureInternal      FailureKind = "internal"
)

type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

type Answerer interface {
	Generate(ctx context.Context, question, responseLanguage string) (*llm.Answer, error)
}

type ConversationStore interface {
	InsertConversation(ctx context.Context, conv *models.Conversation) error
}

type Request struct {
	Question  string
	Language  string
	SessionID string
}

type Result struct {
	Answer         string   `json:"answer"`
	Confidence     float64  `json:"confidence"`
	Language       string   `json:"language_detected"`
	SessionID      string   `json:"session_id"`
	ConversationID *int64   `json:"conversation_id"`
	Source         string   `json:"source,omitempty"`
	Branch         string   `json:"-"`
	Failure        *Failure `json:"failure,omitempty"`
}

type Pipeline struct {
	detector   translation.Detector
	translator translation.Translator
	answerer   Answerer
	store      ConversationStore
}

func NewPipeline(detector translation.Detector, translator translation.Translator, answerer Answerer, store ConversationStore) *Pipeline {
	return &Pipeline{
		detector:   detector,
		translator: translator,
		answerer:   answerer,
		store:      store,
	}
}

func (p *Pipeline) Process(ctx context.Context, req Request) Result {
	start := time.Now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	lang := p.resolveLanguage(ctx, req.Question, req.Language)

	logger.Info("Processing question",
		zap.String("session_id", sessionID),
		zap.String("language_in", req.Language),
		zap.String("language", lang),
		zap.Int("question_chars", len(req.Question)),
	)

	result := Result{
		Language:  lang,
		SessionID: sessionID,
		Branch:    branchFor(lang),
	}

	answer, err := p.generate(ctx, req.Question, lang)
	if err != nil {
		failure := classify(err)
		logger.Error("Question processing failed",
			zap.String("session_id", sessionID),
			zap.String("kind", string(failure.Kind)),
			zap.Error(err),
		)
		result.Answer = "Error: " + failure.Message
		result.Confidence = ErrorConfidence
		result.Failure = failure
	} else {
		result.Answer = answer.Text
		result.Confidence = answer.Confidence
		result.Source = answer.Source
	}

	p.persist(ctx, req.Question, &result)

	status := "success"
	if result.Failure != nil {
		status = string(result.Failure.Kind)
	}
	metrics.AskTotal.WithLabelValues(result.Branch, status).Inc()
	metrics.AskDuration.WithLabelValues(result.Branch).Observe(time.Since(start).Seconds())
	metrics.ConfidenceScore.Observe(result.Confidence)
	metrics.LanguageTotal.WithLabelValues(lang).Inc()

	return result
}

func (p *Pipeline) resolveLanguage(ctx context.Context, question, hint string) string {
	if hint != "" && hint != "auto" {
		return hint
	}

	lang := p.detector.Detect(ctx, question)
	if lang == "" || lang == "auto" {
		return translation.English
	}
	return lang
}

// generate runs the language branch. Hindi and Marwari are answered directly
// in Romanized form; other languages go through English both ways.
func (p *Pipeline) generate(ctx context.Context, question, lang string) (answer *llm.Answer, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered panic in pipeline", zap.Any("panic", r))
			err = &panicError{value: r}
		}
	}()

	if p.answerer == nil {
		return nil, llm.ErrMissingAPIKey
	}

	questionEN := question
	if lang != translation.English {
		questionEN = p.translator.ToEnglish(ctx, question, lang)
	}

	responseLang := translation.English
	if translation.IsRomanized(lang) {
		responseLang = lang
	}

	answer, err = p.answerer.Generate(ctx, questionEN, responseLang)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, errors.New("model returned no answer")
	}

	if lang != translation.English && !translation.IsRomanized(lang) {
		translated := *answer
		translated.Text = p.translator.FromEnglish(ctx, answer.Text, lang)
		return &translated, nil
	}

	return answer, nil
}

// persist stores the turn. A store failure only clears ConversationID.
func (p *Pipeline) persist(ctx context.Context, question string, result *Result) {
	if p.store == nil {
		return
	}

	conv := &models.Conversation{
		SessionID:        result.SessionID,
		UserMessage:      question,
		BotResponse:      result.Answer,
		LanguageDetected: result.Language,
		ConfidenceScore:  result.Confidence,
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{value: r}
			}
		}()
		return p.store.InsertConversation(ctx, conv)
	}()
	if err != nil {
		metrics.PersistFailures.Inc()
		logger.Error("Failed to persist conversation",
			zap.String("session_id", result.SessionID),
			zap.Error(err),
		)
		result.ConversationID = nil
		return
	}

	id := conv.ID
	result.ConversationID = &id
}

func branchFor(lang string) string {
	switch {
	case lang == translation.English:
		return BranchEnglish
	case translation.IsRomanized(lang):
		return BranchRomanized
	default:
		return BranchTranslate
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%v", e.value)
}

func classify(err error) *Failure {
	kind := FailureInternal

	var (
		pe     *panicError
		netErr net.Error
	)
	switch {
	case errors.As(err, &pe):
		kind = FailureInternal
	case errors.Is(err, llm.ErrMissingAPIKey):
		kind = FailureConfiguration
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, circuitbreaker.ErrCircuitOpen),
		errors.Is(err, circuitbreaker.ErrTooManyRequests),
		errors.Is(err, llm.ErrEmptyResponse),
		errors.As(err, &netErr):
		kind = FailureUpstream
	}

	return &Failure{Kind: kind, Message: err.Error()}
}
