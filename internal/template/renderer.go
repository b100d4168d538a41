// Package template renders email subject lines and bodies by substituting
// brace-delimited tokens such as {first_name} with values from a Context.
//
// Substitution is a single literal pass: each known token is replaced
// everywhere it appears, replacement values are never re-scanned for
// tokens, and tokens with no value in the context are left verbatim so
// a typo in a template is visible in the delivered email rather than
// silently blanked.
package template

import (
	"strings"

	"github.com/projectinsight/insight/internal/domain"
)

// Context maps token names (without braces) to replacement values.
type Context map[string]string

// Render substitutes every {key} occurrence in text with the context value
// for key. Unknown tokens are preserved as-is.
func Render(text string, ctx Context) string {
	if text == "" || len(ctx) == 0 {
		return text
	}
	pairs := make([]string, 0, len(ctx)*2)
	for key, value := range ctx {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// ContactContext builds the standard token set for one contact receiving an
// invitation to one survey. surveyURL is the fully formed recipient link,
// already carrying the invitation's tracking token.
func ContactContext(contact *domain.Contact, survey *domain.Survey, org *domain.Organization, surveyURL string) Context {
	return Context{
		"first_name":         contact.FirstName,
		"last_name":          contact.LastName,
		"full_name":          contact.FullName(),
		"email":              contact.Email,
		"survey_title":       survey.Title,
		"survey_description": survey.Description,
		"organization_name":  org.Name,
		"survey_url":         surveyURL,
	}
}
