package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-assist/backend/internal/llm"
	"github.com/campus-assist/backend/internal/storage/models"
	"github.com/campus-assist/backend/pkg/circuitbreaker"
)

type fakeTranslation struct {
	mu        sync.Mutex
	detected  string
	toEnglish func(text, src string) string
	fromEng   func(text, dest string) string
	calls     []string
}

func (f *fakeTranslation) Detect(_ context.Context, text string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "detect")
	return f.detected
}

func (f *fakeTranslation) ToEnglish(_ context.Context, text, src string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "to_en:"+src)
	if f.toEnglish != nil {
		return f.toEnglish(text, src)
	}
	return text
}

func (f *fakeTranslation) FromEnglish(_ context.Context, text, dest string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "from_en:"+dest)
	if f.fromEng != nil {
		return f.fromEng(text, dest)
	}
	return text
}

type llmCall struct {
	Question string
	Language string
}

type fakeAnswerer struct {
	answer *llm.Answer
	err    error
	panic  any
	calls  []llmCall
}

func (f *fakeAnswerer) Generate(_ context.Context, question, lang string) (*llm.Answer, error) {
	f.calls = append(f.calls, llmCall{question, lang})
	if f.panic != nil {
		panic(f.panic)
	}
	return f.answer, f.err
}

type fakeStore struct {
	err    error
	nextID int64
	saved  []models.Conversation
}

func (f *fakeStore) InsertConversation(_ context.Context, conv *models.Conversation) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	conv.ID = f.nextID
	f.saved = append(f.saved, *conv)
	return nil
}

func okAnswer(text string) *llm.Answer {
	return &llm.Answer{Text: text, Confidence: llm.SuccessConfidence, Source: "groq-llama3"}
}

func TestHostelFeesInEnglish(t *testing.T) {
	tr := &fakeTranslation{}
	ans := &fakeAnswerer{answer: okAnswer("AC rooms cost 50,000 per year.")}
	store := &fakeStore{}
	p := NewPipeline(tr, tr, ans, store)

	res := p.Process(context.Background(), Request{Question: "What are hostel fees?", Language: "en"})

	require.Len(t, ans.calls, 1)
	assert.Equal(t, llmCall{"What are hostel fees?", "en"}, ans.calls[0])
	assert.Empty(t, tr.calls)
	assert.Equal(t, llm.SuccessConfidence, res.Confidence)
	assert.Equal(t, "AC rooms cost 50,000 per year.", res.Answer)
	assert.Equal(t, BranchEnglish, res.Branch)
	assert.Nil(t, res.Failure)
	require.NotNil(t, res.ConversationID)
	assert.Equal(t, int64(1), *res.ConversationID)
}

func TestAutoNeverResolvesToAuto(t *testing.T) {
	for _, detected := range []string{"", "auto", "fr"} {
		t.Run(fmt.Sprintf("detected=%q", detected), func(t *testing.T) {
			tr := &fakeTranslation{detected: detected}
			p := NewPipeline(tr, tr, &fakeAnswerer{answer: okAnswer("OK")}, &fakeStore{})

			for _, hint := range []string{"auto", ""} {
				res := p.Process(context.Background(), Request{Question: "q", Language: hint})
				assert.NotEqual(t, "auto", res.Language)
				assert.NotEmpty(t, res.Language)
			}
		})
	}
}

func TestDetectedEnglishTakesPlainBranch(t *testing.T) {
	tr := &fakeTranslation{detected: "en"}
	ans := &fakeAnswerer{answer: okAnswer("OK")}
	p := NewPipeline(tr, tr, ans, &fakeStore{})

	res := p.Process(context.Background(), Request{Question: "When do classes start?", Language: "auto"})

	assert.Equal(t, "en", res.Language)
	assert.Equal(t, BranchEnglish, res.Branch)
	assert.Equal(t, []string{"detect"}, tr.calls)
	require.Len(t, ans.calls, 1)
	assert.Equal(t, "en", ans.calls[0].Language)
}

func TestRomanizedBranchSkipsAnswerTranslation(t *testing.T) {
	for _, lang := range []string{"hi", "mwr"} {
		t.Run(lang, func(t *testing.T) {
			tr := &fakeTranslation{toEnglish: func(text, src string) string { return "hostel fees?" }}
			ans := &fakeAnswerer{answer: okAnswer("Hostel fees 35,000 rupaye saal ki hai.")}
			p := NewPipeline(tr, tr, ans, &fakeStore{})

			res := p.Process(context.Background(), Request{Question: "hostel fees kitni hai?", Language: lang})

			assert.Equal(t, "Hostel fees 35,000 rupaye saal ki hai.", res.Answer)
			assert.NotContains(t, res.Answer, "Error")
			assert.Nil(t, res.Failure)
			assert.Equal(t, BranchRomanized, res.Branch)
			assert.Equal(t, []string{"to_en:" + lang}, tr.calls)
			require.Len(t, ans.calls, 1)
			assert.Equal(t, llmCall{"hostel fees?", lang}, ans.calls[0])
		})
	}
}

func TestOtherLanguageRoundTrips(t *testing.T) {
	tr := &fakeTranslation{
		toEnglish: func(text, src string) string { return "question in english" },
		fromEng: func(text, dest string) string {
			if text == "OK" {
				return "OK-translated"
			}
			return text
		},
	}
	ans := &fakeAnswerer{answer: okAnswer("OK")}
	p := NewPipeline(tr, tr, ans, &fakeStore{})

	res := p.Process(context.Background(), Request{Question: "kattanam enna?", Language: "ta"})

	assert.Equal(t, "OK-translated", res.Answer)
	assert.Equal(t, BranchTranslate, res.Branch)
	assert.Equal(t, []string{"to_en:ta", "from_en:ta"}, tr.calls)
	assert.Equal(t, llmCall{"question in english", "en"}, ans.calls[0])
	assert.Equal(t, llm.SuccessConfidence, res.Confidence)
}

func TestPersistenceFailureKeepsAnswer(t *testing.T) {
	tr := &fakeTranslation{}
	p := NewPipeline(tr, tr, &fakeAnswerer{answer: okAnswer("Library opens at 8 AM.")}, &fakeStore{err: errors.New("disk full")})

	res := p.Process(context.Background(), Request{Question: "Library hours?", Language: "en"})

	assert.Equal(t, "Library opens at 8 AM.", res.Answer)
	assert.Nil(t, res.ConversationID)
	assert.Nil(t, res.Failure)
}

func TestSessionIDMintedWhenMissing(t *testing.T) {
	tr := &fakeTranslation{}
	p := NewPipeline(tr, tr, &fakeAnswerer{answer: okAnswer("OK")}, &fakeStore{})

	first := p.Process(context.Background(), Request{Question: "q", Language: "en"})
	second := p.Process(context.Background(), Request{Question: "q", Language: "en"})
	kept := p.Process(context.Background(), Request{Question: "q", Language: "en", SessionID: "abc"})

	assert.NotEmpty(t, first.SessionID)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, "abc", kept.SessionID)
}

func TestErrorsAreContained(t *testing.T) {
	cases := []struct {
		name string
		ans  *fakeAnswerer
		kind FailureKind
	}{
		{"missing key", &fakeAnswerer{err: llm.ErrMissingAPIKey}, FailureConfiguration},
		{"breaker open", &fakeAnswerer{err: circuitbreaker.ErrCircuitOpen}, FailureUpstream},
		{"timeout", &fakeAnswerer{err: fmt.Errorf("failed to create completion: %w", context.DeadlineExceeded)}, FailureUpstream},
		{"network", &fakeAnswerer{err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}, FailureUpstream},
		{"unknown", &fakeAnswerer{err: errors.New("weird")}, FailureInternal},
		{"panic", &fakeAnswerer{panic: "nil map"}, FailureInternal},
		{"nil answer", &fakeAnswerer{}, FailureInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &fakeTranslation{}
			store := &fakeStore{}
			p := NewPipeline(tr, tr, tc.ans, store)

			res := p.Process(context.Background(), Request{Question: "q", Language: "en"})

			require.NotNil(t, res.Failure)
			assert.Equal(t, tc.kind, res.Failure.Kind)
			assert.Equal(t, "Error: "+res.Failure.Message, res.Answer)
			assert.Equal(t, ErrorConfidence, res.Confidence)
			require.NotNil(t, res.ConversationID)
			require.Len(t, store.saved, 1)
			assert.Equal(t, res.Answer, store.saved[0].BotResponse)
		})
	}
}

func TestMissingAnswererIsConfigurationFailure(t *testing.T) {
	tr := &fakeTranslation{}
	p := NewPipeline(tr, tr, nil, &fakeStore{})

	res := p.Process(context.Background(), Request{Question: "q", Language: "en"})

	require.NotNil(t, res.Failure)
	assert.Equal(t, FailureConfiguration, res.Failure.Kind)
}

func TestApologyAnswerIsNotAFailure(t *testing.T) {
	tr := &fakeTranslation{}
	ans := &fakeAnswerer{answer: &llm.Answer{Text: llm.Apology(503), Confidence: llm.FallbackConfidence, Source: llm.SourceFallback}}
	p := NewPipeline(tr, tr, ans, &fakeStore{})

	res := p.Process(context.Background(), Request{Question: "q", Language: "en"})

	assert.Nil(t, res.Failure)
	assert.Equal(t, llm.FallbackConfidence, res.Confidence)
	assert.Contains(t, res.Answer, "API Error: 503")
}

func TestStoredTurnMirrorsResult(t *testing.T) {
	tr := &fakeTranslation{fromEng: func(text, dest string) string { return "Bonjour" }}
	store := &fakeStore{}
	p := NewPipeline(tr, tr, &fakeAnswerer{answer: okAnswer("Hello")}, store)

	res := p.Process(context.Background(), Request{Question: "Salut", Language: "fr", SessionID: "s-1"})

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, "s-1", saved.SessionID)
	assert.Equal(t, "Salut", saved.UserMessage)
	assert.Equal(t, "Bonjour", saved.BotResponse)
	assert.Equal(t, "fr", saved.LanguageDetected)
	assert.Equal(t, res.Confidence, saved.ConfidenceScore)
}
