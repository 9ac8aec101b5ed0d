package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/ofcardoso/medbox/internal/auth"
	"github.com/ofcardoso/medbox/internal/model"
	"github.com/ofcardoso/medbox/internal/service"
)

// PageHandler renders the HTML pages.
//
// The landing page switches between the welcome and home views on session
// state. The feature pages (new medication, new alarm, stock, adherence)
// are template stubs behind RequireAuth — the forms render, the data model
// behind them doesn't exist yet.
type PageHandler struct {
	pages  map[string]*template.Template
	auths  *service.AuthService
	logger *slog.Logger
}

// pageData is what every page template receives.
type pageData struct {
	Title string
	User  *model.User // nil on the welcome page
}

// NewPageHandler parses every page template against the shared base layout.
// Parsing happens once at startup; a broken template fails the boot instead
// of the first request.
func NewPageHandler(templateDir string, auths *service.AuthService, logger *slog.Logger) (*PageHandler, error) {
	h := &PageHandler{
		pages:  make(map[string]*template.Template),
		auths:  auths,
		logger: logger,
	}

	// Each page defines a "content" block that base.html pulls in.
	names := []string{"welcome", "home", "medication_new", "alarm_new", "stock", "adherence"}
	for _, name := range names {
		tmpl, err := template.ParseFiles(
			filepath.Join(templateDir, "base.html"),
			filepath.Join(templateDir, name+".html"),
		)
		if err != nil {
			return nil, err
		}
		h.pages[name] = tmpl
	}

	return h, nil
}

// HandleIndex serves the landing page: home for a signed-in user, welcome
// otherwise. It sits behind OptionalAuth, so an expired session quietly
// degrades to the welcome page instead of erroring.
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.render(w, "welcome", pageData{Title: "MedBox"})
		return
	}

	user, err := h.auths.GetUserByID(r.Context(), userID)
	if err != nil {
		// A valid session pointing at a missing user means the database
		// was reset under the cookie. Treat as anonymous.
		h.logger.Warn("index: session user not found", slog.String("userID", userID))
		h.render(w, "welcome", pageData{Title: "MedBox"})
		return
	}

	h.render(w, "home", pageData{Title: "MedBox", User: user})
}

// HandleNewMedication serves the new-medication form stub.
func (h *PageHandler) HandleNewMedication(w http.ResponseWriter, r *http.Request) {
	h.renderForUser(w, r, "medication_new", "New medication")
}

// HandleNewAlarm serves the new-alarm form stub.
func (h *PageHandler) HandleNewAlarm(w http.ResponseWriter, r *http.Request) {
	h.renderForUser(w, r, "alarm_new", "New alarm")
}

// HandleStock serves the stock page stub.
func (h *PageHandler) HandleStock(w http.ResponseWriter, r *http.Request) {
	h.renderForUser(w, r, "stock", "Stock")
}

// HandleAdherence serves the adherence page stub.
func (h *PageHandler) HandleAdherence(w http.ResponseWriter, r *http.Request) {
	h.renderForUser(w, r, "adherence", "Adherence")
}

// renderForUser renders a RequireAuth-protected page with the signed-in
// user loaded for the header.
func (h *PageHandler) renderForUser(w http.ResponseWriter, r *http.Request, page, title string) {
	data := pageData{Title: title}

	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		user, err := h.auths.GetUserByID(r.Context(), userID)
		if err != nil {
			h.logger.Warn("page: session user not found",
				slog.String("page", page),
				slog.String("userID", userID),
			)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		data.User = user
	}

	h.render(w, page, data)
}

func (h *PageHandler) render(w http.ResponseWriter, page string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := h.pages[page].ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
