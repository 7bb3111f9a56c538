package locale_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrimitra/agrimitra/internal/app/locale"
	"github.com/agrimitra/agrimitra/internal/domain"
)

func TestSelectorDefaultsToEnglish(t *testing.T) {
	sel := locale.NewSelector("xx")
	require.Equal(t, locale.English, sel.Get())
}

func TestSetRejectsUnknownCode(t *testing.T) {
	sel := locale.NewSelector(locale.English)

	err := sel.Set(domain.LanguageCode("fr"))
	require.Error(t, err)
	require.Equal(t, locale.English, sel.Get())
}

func TestWelcomeTextPerLocale(t *testing.T) {
	sel := locale.NewSelector(locale.English)
	seen := map[string]bool{}

	for _, code := range locale.Supported() {
		require.NoError(t, sel.Set(code))
		text := sel.WelcomeText()
		require.NotEmpty(t, text)
		require.False(t, seen[text], "welcome text for %s duplicates another locale", code)
		seen[text] = true
	}
}

func TestApologyAndDefaultQuestionNeverEmpty(t *testing.T) {
	for _, code := range locale.Supported() {
		sel := locale.NewSelector(code)
		require.NotEmpty(t, sel.Apology())
		require.NotEmpty(t, sel.DefaultImageQuestion())
	}
}
