package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"github.com/shoestore/api/internal/platform/requestctx"
)

const defaultLocale = "vi"

var (
	supportedLocales = []language.Tag{language.Vietnamese, language.English}
	localeMatcher    = language.NewMatcher(supportedLocales)
)

// LocaleMiddleware negotiates "vi" or "en" from an explicit ?locale= or Accept-Language
// and stores it for payment providers that render hosted pages.
func LocaleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := negotiateLocale(r.URL.Query().Get("locale"), r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(requestctx.WithLocale(r.Context(), locale)))
	})
}

func negotiateLocale(explicit, acceptLanguage string) string {
	var tags []language.Tag
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		// VNPay's own code for Vietnamese.
		if strings.EqualFold(explicit, "vn") {
			explicit = "vi"
		}
		if tag, err := language.Parse(explicit); err == nil {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		parsed, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil {
			tags = parsed
		}
	}
	if len(tags) == 0 {
		return defaultLocale
	}
	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return defaultLocale
	}
	base, _ := supportedLocales[index].Base()
	return base.String()
}
