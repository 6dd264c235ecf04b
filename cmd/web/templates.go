package main

import (
	"bytes"
	"fmt"
	"github.com/medcircle/medresident/internal/contexthelpers"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/ui"
	"html/template"
	"log/slog"
	"net/http"
)

// BaseTemplateData is embedded in the data of every page.
type BaseTemplateData struct {
	CurrentPath string
	CSRFToken   string
}

func newBaseTemplateData(r *http.Request) BaseTemplateData {
	return BaseTemplateData{
		CurrentPath: contexthelpers.CurrentPath(r.Context()),
		CSRFToken:   contexthelpers.CSRFToken(r.Context()),
	}
}

// pageTemplate returns a template for the given page name.
//
// pageName corresponds to directory inside ui/templates/pages folder. It has to include a template named "page".
func (app *application) pageTemplate(pageName string) (*template.Template, error) {
	// We need to initialize the FuncMap before parsing the files. These will be overridden in the render function.
	t, err := template.New(pageName).Funcs(template.FuncMap{
		"nonce": func() string {
			panic("not implemented")
		},
		"csrf": func() string {
			panic("not implemented")
		},
	}).ParseFS(ui.Files, "templates/base.gohtml", fmt.Sprintf("templates/pages/%s/*.gohtml", pageName))
	if err != nil {
		return nil, errors.Wrap(err, "parse page templates", slog.String("page", pageName))
	}
	return t, nil
}

// render executes the base template of page. htmx requests only receive the template named fragment when it is not
// empty.
func (app *application) render(w http.ResponseWriter, r *http.Request, status int, page string, fragment string,
	data any) {
	var (
		err error
		t   *template.Template
	)

	if t, err = app.pageTemplate(page); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse template", slog.String("template", page)))
		return
	}

	name := "base"
	if fragment != "" && app.htmx.NewHandler(w, r).IsHxRequest() {
		name = fragment
	}

	buf := new(bytes.Buffer)
	ctx := r.Context()
	nonce := fmt.Sprintf("nonce=\"%s\"", contexthelpers.CSPNonce(ctx))
	csrf := fmt.Sprintf("<input type=\"hidden\" name=\"csrf_token\" value=\"%s\"/>",
		template.HTMLEscapeString(contexthelpers.CSRFToken(ctx)))
	t.Funcs(template.FuncMap{
		"nonce": func() template.HTMLAttr {
			return template.HTMLAttr(nonce) //nolint:gosec // the nonce is not provided by the user.
		},
		"csrf": func() template.HTML {
			return template.HTML(csrf) //nolint:gosec // the token is escaped.
		},
	})
	if err = t.ExecuteTemplate(buf, name, data); err != nil {
		app.serverError(w, r, errors.Wrap(err, "execute template", slog.String("template", page)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	_, _ = buf.WriteTo(w)
}
