// Package translation detects the language of a question and moves text in
// and out of English. Every call is time-bounded and degrades to a safe
// default (English, or the untranslated text) instead of failing.
package translation

import (
	"context"
	"sort"
	"time"
)

const English = "en"

type Detector interface {
	Detect(ctx context.Context, text string) string
}

type Translator interface {
	ToEnglish(ctx context.Context, text, sourceLang string) string
	FromEnglish(ctx context.Context, text, targetLang string) string
}

// Translation is a raw backend result.
type Translation struct {
	Text          string `json:"text"`
	Pronunciation string `json:"pronunciation,omitempty"`
	SourceLang    string `json:"source_lang"`
}

// Backend is the third-party call that may fail or hang.
type Backend interface {
	Detect(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text, src, dest string) (*Translation, error)
}

// Cache stores backend results. Both internal/cache implementations satisfy it.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// IsRomanized reports whether answers for lang are written in Latin script
// by the model instead of being translated.
func IsRomanized(lang string) bool {
	return lang == "hi" || lang == "mwr"
}

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var languages = map[string]string{
	"af": "afrikaans", "sq": "albanian", "am": "amharic", "ar": "arabic",
	"hy": "armenian", "az": "azerbaijani", "eu": "basque", "be": "belarusian",
	"bn": "bengali", "bs": "bosnian", "bg": "bulgarian", "ca": "catalan",
	"ceb": "cebuano", "ny": "chichewa", "zh-cn": "chinese (simplified)", "zh-tw": "chinese (traditional)",
	"co": "corsican", "hr": "croatian", "cs": "czech", "da": "danish",
	"nl": "dutch", "en": "english", "eo": "esperanto", "et": "estonian",
	"tl": "filipino", "fi": "finnish", "fr": "french", "fy": "frisian",
	"gl": "galician", "ka": "georgian", "de": "german", "el": "greek",
	"gu": "gujarati", "ht": "haitian creole", "ha": "hausa", "haw": "hawaiian",
	"iw": "hebrew", "he": "hebrew", "hi": "hindi", "hmn": "hmong",
	"hu": "hungarian", "is": "icelandic", "ig": "igbo", "id": "indonesian",
	"ga": "irish", "it": "italian", "ja": "japanese", "jw": "javanese",
	"kn": "kannada", "kk": "kazakh", "km": "khmer", "ko": "korean",
	"ku": "kurdish (kurmanji)", "ky": "kyrgyz", "lo": "lao", "la": "latin",
	"lv": "latvian", "lt": "lithuanian", "lb": "luxembourgish", "mk": "macedonian",
	"mg": "malagasy", "ms": "malay", "ml": "malayalam", "mt": "maltese",
	"mi": "maori", "mr": "marathi", "mwr": "marwari", "mn": "mongolian",
	"my": "myanmar (burmese)", "ne": "nepali", "no": "norwegian", "or": "odia",
	"ps": "pashto", "fa": "persian", "pl": "polish", "pt": "portuguese",
	"pa": "punjabi", "ro": "romanian", "ru": "russian", "sm": "samoan",
	"gd": "scots gaelic", "sr": "serbian", "st": "sesotho", "sn": "shona",
	"sd": "sindhi", "si": "sinhala", "sk": "slovak", "sl": "slovenian",
	"so": "somali", "es": "spanish", "su": "sundanese", "sw": "swahili",
	"sv": "swedish", "tg": "tajik", "ta": "tamil", "te": "telugu",
	"th": "thai", "tr": "turkish", "uk": "ukrainian", "ur": "urdu",
	"ug": "uyghur", "uz": "uzbek", "vi": "vietnamese", "cy": "welsh",
	"xh": "xhosa", "yi": "yiddish", "yo": "yoruba", "zu": "zulu",
}

// SupportedLanguages returns the language table sorted by code.
func SupportedLanguages() []Language {
	out := make([]Language, 0, len(languages))
	for code, name := range languages {
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func LanguageName(code string) (string, bool) {
	name, ok := languages[code]
	return name, ok
}
