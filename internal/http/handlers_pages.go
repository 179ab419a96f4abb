package http

import (
	"errors"
	"net/http"
	"strings"

	"finboard/internal/api"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/session"
	"finboard/internal/storage"
	"finboard/internal/view"
)

// pageData is shared by every full page.
type pageData struct {
	User       api.Profile
	Categories []string
	Today      string
}

type homePage struct {
	pageData
	*services.Home
	Summary summaryData
}

type accountPage struct {
	pageData
	accountData
}

// accountData is the table partial: one account view plus the saved views
// menu.
type accountData struct {
	AccountID string
	*services.AccountView
	Views []storage.SavedView
	Style view.ChartStyle
}

// ChartStyle is the selected chart style, area unless one was picked.
func (a accountData) ChartStyle() view.ChartStyle {
	if a.Style == "" {
		return view.DefaultChartStyle
	}
	return a.Style
}

func (a accountData) Plot() view.Plot { return a.Chart.Plot(a.ChartStyle()) }

type summaryData struct {
	Overview view.Overview
	Carousel view.Carousel
	Range    view.RangeKey
}

type signInPage struct {
	Email string
	Error string
}

func (s *Server) newPageData(r *http.Request) pageData {
	pd := pageData{
		Categories: core.Categories(),
		Today:      s.dash.Now().Format("2006-01-02"),
	}
	if sess := currentSession(r); sess != nil {
		pd.User = sess.Profile
	}
	return pd
}

func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Get(r.Context(), session.IDFromRequest(r)); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "sign_in", signInPage{})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}
	creds := api.Credentials{
		Email:    strings.ToLower(sanitizeInput(r.Form.Get("email"))),
		Password: r.Form.Get("password"),
	}
	logger := s.reqLogger(r)

	if creds.Email == "" || creds.Password == "" {
		s.respond(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "sign_in",
			signInPage{Email: creds.Email, Error: "Email and password are required"})
		return
	}

	profile, err := s.auth.SignIn(r.Context(), creds)
	if err != nil {
		s.appMetrics.signInFailures.Add(1)
		status, msg := http.StatusUnauthorized, "Invalid email or password"
		if !errors.Is(err, api.ErrUnauthorized) && !errors.Is(err, api.ErrNotFound) {
			status, msg = http.StatusBadGateway, "Sign in is unavailable right now"
		}
		logger.WarnContext(r.Context(), "Sign in failed",
			log.NewFields().WithOperation(log.OpSignIn).WithError(err, log.ErrorTypeAuth).ToSlice()...)
		s.respond(w, r, NewHTMXResponse().Status(status), "sign_in", signInPage{Email: creds.Email, Error: msg})
		return
	}

	sess, err := s.sessions.Create(r.Context(), *profile)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.appMetrics.signIns.Add(1)
	logger.InfoContext(r.Context(), "User signed in", log.FieldUserID, profile.UserID)

	session.SetCookie(w, sess.ID, s.sessionTTL, s.cookieSecure)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if id := session.IDFromRequest(r); id != "" {
		_ = s.sessions.Delete(r.Context(), id)
	}
	session.ClearCookie(w, s.cookieSecure)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/sign-in").Write(w)
		return
	}
	http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	rangeKey := queryRange(r)
	home, err := s.dash.Home(r.Context(), rangeKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "home", homePage{
		pageData: s.newPageData(r),
		Home:     home,
		Summary:  summaryData{Overview: home.Overview, Carousel: view.NewCarousel(), Range: rangeKey},
	})
}

func (s *Server) handleAccountPage(w http.ResponseWriter, r *http.Request) {
	data, ok := s.loadAccountData(w, r, nil)
	if !ok {
		return
	}
	s.render(w, r, "account", accountPage{pageData: s.newPageData(r), accountData: *data})
}

// queryRange reads the range parameter, falling back to the default on
// anything unknown.
func queryRange(r *http.Request) view.RangeKey {
	k, err := view.ParseRangeKey(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("range"))))
	if err != nil {
		return view.DefaultRange
	}
	return k
}
