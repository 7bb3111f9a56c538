// Package locale holds the active UI language and resolves the few fixed
// strings the core inserts into a timeline itself (welcome, apology,
// default image question). Pure state, no I/O.
package locale

import (
	"fmt"
	"sync"

	"github.com/agrimitra/agrimitra/internal/domain"
)

const (
	English domain.LanguageCode = "en"
	Hindi   domain.LanguageCode = "hi"
	Punjabi domain.LanguageCode = "pa"
	Urdu    domain.LanguageCode = "ur"
)

var supported = map[domain.LanguageCode]bool{
	English: true,
	Hindi:   true,
	Punjabi: true,
	Urdu:    true,
}

var welcomeText = map[domain.LanguageCode]string{
	English: "Hello! I am AgriMitra, your farming assistant. Ask me anything about crops, soil, weather or livestock.",
	Hindi:   "नमस्ते! मैं एग्रीमित्र हूँ, आपका कृषि सहायक। फसल, मिट्टी, मौसम या पशुधन के बारे में कुछ भी पूछें।",
	Punjabi: "ਸਤ ਸ੍ਰੀ ਅਕਾਲ! ਮੈਂ ਐਗਰੀਮਿੱਤਰ ਹਾਂ, ਤੁਹਾਡਾ ਖੇਤੀ ਸਹਾਇਕ। ਫ਼ਸਲ, ਮਿੱਟੀ, ਮੌਸਮ ਜਾਂ ਪਸ਼ੂਆਂ ਬਾਰੇ ਕੁਝ ਵੀ ਪੁੱਛੋ।",
	Urdu:    "السلام علیکم! میں ایگری مترا ہوں، آپ کا زرعی معاون۔ فصل، مٹی، موسم یا مویشیوں کے بارے میں کچھ بھی پوچھیں۔",
}

var apologyText = map[domain.LanguageCode]string{
	English: "Sorry, I could not process your request right now. Please try again.",
	Hindi:   "क्षमा करें, मैं अभी आपका अनुरोध संसाधित नहीं कर सका। कृपया फिर से प्रयास करें।",
	Punjabi: "ਮੁਆਫ਼ ਕਰਨਾ, ਮੈਂ ਹੁਣੇ ਤੁਹਾਡੀ ਬੇਨਤੀ ਤੇ ਕਾਰਵਾਈ ਨਹੀਂ ਕਰ ਸਕਿਆ। ਕਿਰਪਾ ਕਰਕੇ ਦੁਬਾਰਾ ਕੋਸ਼ਿਸ਼ ਕਰੋ।",
	Urdu:    "معذرت، میں ابھی آپ کی درخواست پر کارروائی نہیں کر سکا۔ براہ کرم دوبارہ کوشش کریں۔",
}

var defaultImageQuestion = map[domain.LanguageCode]string{
	English: "What can you tell me about this crop image?",
	Hindi:   "इस फसल की तस्वीर के बारे में आप मुझे क्या बता सकते हैं?",
	Punjabi: "ਇਸ ਫ਼ਸਲ ਦੀ ਤਸਵੀਰ ਬਾਰੇ ਤੁਸੀਂ ਮੈਨੂੰ ਕੀ ਦੱਸ ਸਕਦੇ ਹੋ?",
	Urdu:    "اس فصل کی تصویر کے بارے میں آپ مجھے کیا بتا سکتے ہیں؟",
}

// Selector holds the active locale. Safe for concurrent reads from the
// presentation layer while the dispatcher reads it mid-exchange.
type Selector struct {
	mu   sync.RWMutex
	code domain.LanguageCode
}

func NewSelector(code domain.LanguageCode) *Selector {
	if !supported[code] {
		code = English
	}
	return &Selector{code: code}
}

func (s *Selector) Get() domain.LanguageCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// Set switches the active locale. Unknown codes are rejected rather than
// silently coerced; reads fall back to English on their own.
func (s *Selector) Set(code domain.LanguageCode) error {
	if !supported[code] {
		return fmt.Errorf("locale: unsupported language %q", code)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	return nil
}

func (s *Selector) WelcomeText() string {
	return resolve(welcomeText, s.Get())
}

// Apology is the fixed assistant text inserted when an exchange fails.
func (s *Selector) Apology() string {
	return resolve(apologyText, s.Get())
}

// DefaultImageQuestion substitutes an empty image caption.
func (s *Selector) DefaultImageQuestion() string {
	return resolve(defaultImageQuestion, s.Get())
}

func resolve(table map[domain.LanguageCode]string, code domain.LanguageCode) string {
	if text, ok := table[code]; ok {
		return text
	}
	return table[English]
}

// Supported lists the selectable codes in display order.
func Supported() []domain.LanguageCode {
	return []domain.LanguageCode{English, Hindi, Punjabi, Urdu}
}
