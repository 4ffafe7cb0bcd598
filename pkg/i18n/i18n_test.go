package i18n_test

import (
	"context"
	"testing"

	"github.com/protocolo/protocolo-backend/pkg/i18n"
	"github.com/stretchr/testify/assert"
)

func TestParseAcceptLanguage(t *testing.T) {
	assert.Equal(t, i18n.LocalePortuguese, i18n.ParseAcceptLanguage(""))
	assert.Equal(t, i18n.LocalePortuguese, i18n.ParseAcceptLanguage("pt-BR,pt;q=0.9,en;q=0.8"))
	assert.Equal(t, i18n.LocaleEnglish, i18n.ParseAcceptLanguage("en-US,en;q=0.9"))
	assert.Equal(t, i18n.LocalePortuguese, i18n.ParseAcceptLanguage("de-DE"))
}

func TestLocalizer_T(t *testing.T) {
	pt := i18n.NewLocalizer(i18n.LocalePortuguese)
	assert.Equal(t, "Protocolo não encontrado(a).", pt.T("errors.not_found", map[string]string{"resource": "Protocolo"}))

	en := i18n.LocalizerFromContext(i18n.WithLocale(context.Background(), i18n.LocaleEnglish))
	assert.Equal(t, "Tenant provisioning failed at step register.", en.T("errors.provisioning_failed", map[string]string{"step": "register"}))

	assert.Equal(t, "errors.missing_key", pt.T("errors.missing_key"))
}
